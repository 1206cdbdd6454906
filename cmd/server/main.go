package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/clinical"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	v1 "github.com/dmehra2102/prod-golang-projects/oralscreen/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/inference"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/report"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/leveldb"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/tracer"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: reading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, err := tracer.Init(cfg.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			zl.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	m := metrics.NewDefaultCollector(cfg.App.Name)

	st, err := openStores(cfg, zl)
	if err != nil {
		return err
	}
	defer st.close()

	files, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	sessions, err := auth.NewSessionManager(cfg.Session)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	policy, err := inference.NewConfidencePolicy(cfg.Inference.ConfidenceMode, nil)
	if err != nil {
		return fmt.Errorf("confidence policy: %w", err)
	}
	classifier := inference.NewTFServingClient(cfg.Inference, zl)

	audit := service.NewAuditService(st.audit, m, zl)
	records := service.NewRecordService(st.records, classifier, policy, files, audit, m, zl)
	generator := report.NewGenerator(files.ReportDir(), report.NewFPDFRenderer(cfg.App.Name), clinical.NewSynthesizer(nil), zl)
	reports := service.NewReportService(records, st.records, generator, audit, m, zl)
	authSvc := service.NewAuthService(st.users, sessions, audit, zl)

	router, err := v1.NewRouter(v1.RouterDeps{
		Config:   cfg,
		Records:  records,
		Reports:  reports,
		Auth:     authSvc,
		Sessions: sessions,
		Files:    files,
		Metrics:  m,
		Log:      zl,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("store", cfg.Store.Driver),
			zap.String("confidence_mode", cfg.Inference.ConfidenceMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			audit.Shutdown()
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		zl.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}

	// Drain pending audit entries before the stores close.
	audit.Shutdown()
	zl.Info("server stopped")
	return nil
}

type stores struct {
	records record.Repository
	users   service.UserRepository
	audit   service.AuditRepository
	close   func()
}

// openStores selects the record backend. Users and audit entries live in
// postgres when it is configured and in memory otherwise.
func openStores(cfg *config.Config, zl *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(db, zl); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database handle: %w", err)
		}
		return &stores{
			records: postgres.NewRecordRepository(db),
			users:   postgres.NewUserRepository(db),
			audit:   postgres.NewAuditRepository(db),
			close: func() {
				if err := sqlDB.Close(); err != nil {
					zl.Warn("closing database", zap.Error(err))
				}
			},
		}, nil

	case config.DriverLevelDB:
		repo, err := leveldb.Open(cfg.Store.LevelDBPath)
		if err != nil {
			return nil, err
		}
		return &stores{
			records: repo,
			users:   repo.Users(),
			audit:   memory.NewAuditRepository(memoryAuditCapacity),
			close: func() {
				if err := repo.Close(); err != nil {
					zl.Warn("closing leveldb", zap.Error(err))
				}
			},
		}, nil

	default:
		return &stores{
			records: memory.NewRecordRepository(),
			users:   memory.NewUserRepository(),
			audit:   memory.NewAuditRepository(memoryAuditCapacity),
			close:   func() {},
		}, nil
	}
}

const memoryAuditCapacity = 10000
