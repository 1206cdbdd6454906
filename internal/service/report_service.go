package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/report"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/tracer"
)

type ReportGenerator interface {
	Generate(ctx context.Context, rec *record.Record, meta report.PatientMeta) (string, error)
}

type ReportService struct {
	records   *RecordService
	repo      record.Repository
	generator ReportGenerator
	audit     *AuditService
	metrics   *metrics.Collector
	tracer    trace.Tracer
	log       *zap.Logger
}

func NewReportService(records *RecordService, repo record.Repository, generator ReportGenerator, audit *AuditService, m *metrics.Collector, log *zap.Logger) *ReportService {
	return &ReportService{
		records:   records,
		repo:      repo,
		generator: generator,
		audit:     audit,
		metrics:   m,
		tracer:    tracer.Tracer("report"),
		log:       log,
	}
}

// Render writes the PDF report for key and returns its path. The path is
// also recorded on the record.
func (s *ReportService) Render(ctx context.Context, caller Caller, key string, meta report.PatientMeta) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.Render", trace.WithAttributes(attribute.String("record.key", key)))
	defer span.End()

	rec, err := s.records.Get(ctx, caller, key)
	if err != nil {
		return "", err
	}

	start := time.Now()
	path, err := s.generator.Generate(ctx, rec, meta)
	s.metrics.ReportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ReportsFailed.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "report generation failed")
		s.log.Error("report generation failed", zap.String("record_key", key), zap.Error(err))
		return "", &ProcessingError{Op: "generating report", Err: err}
	}
	s.metrics.ReportsGenerated.Inc()

	if _, err := s.repo.SetPDFPath(ctx, key, path); err != nil {
		// The record was deleted while rendering; the file is still valid.
		s.log.Warn("failed to record report path", zap.String("record_key", key), zap.Error(err))
	}

	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionRead,
		ResourceType: "report",
		ResourceID:   key,
	})
	return path, nil
}
