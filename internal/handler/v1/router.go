package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
)

type RouterDeps struct {
	Config   *config.Config
	Records  *service.RecordService
	Reports  *service.ReportService
	Auth     *service.AuthService
	Sessions *auth.SessionManager
	Files    *storage.FileStore
	Metrics  *metrics.Collector
	Log      *zap.Logger
}

func NewRouter(d RouterDeps) (*gin.Engine, error) {
	cfg := d.Config

	tmpl, err := LoadTemplates(d.Files.PublicURL)
	if err != nil {
		return nil, err
	}

	h := NewHandler(d.Records, d.Reports, d.Auth, cfg.Session, cfg.App.IsDevelopment(), d.Log)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery())

	// Probes bypass logging and rate limiting.
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	r.Use(
		RequestLogger(d.Log),
		Metrics(d.Metrics),
		CORS(cfg.CORS),
	)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(NewIPRateLimiter(cfg.RateLimit).Middleware())
	}
	r.Use(
		LimitBodySize(cfg.Server.MaxUploadBytes),
		LoadPrincipal(d.Sessions, cfg.Session.CookieName, d.Log),
	)

	r.Group("/static", h.ProtectReports()).Static("/", cfg.Storage.StaticDir)

	r.NoRoute(func(c *gin.Context) {
		h.renderError(c, http.StatusNotFound, "Not found", "Page not found", nil)
	})

	// Open to everyone; a logged-in caller owns what they submit.
	r.GET("/", h.Home)
	r.GET("/index", h.ScreeningForm)
	r.GET("/start_screening", h.ScreeningForm)
	r.GET("/welcome", h.Welcome)
	r.POST("/predict", h.Predict)
	r.POST("/submit_patient_data", h.SubmitPatientData)
	r.POST("/upload_image", h.UploadImage)
	r.GET("/login", h.LoginForm)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	loggedIn := r.Group("", h.RequireLogin())
	loggedIn.POST("/upload_audio", h.UploadAudio)

	doctor := r.Group("", h.RequireRole(domain.RoleDoctor))
	doctor.GET("/doctor_dashboard", h.DoctorDashboard)
	doctor.GET("/chat_doctor", h.ChatDoctor)
	doctor.POST("/download_pdf", h.DownloadPDF)
	doctor.POST("/doctor_reply", h.DoctorReply)
	doctor.POST("/chat_reply_doctor", h.ChatReplyDoctor)
	doctor.POST("/flag_follow_up", h.FlagFollowUp)
	doctor.POST("/unflag_follow_up", h.UnflagFollowUp)
	doctor.POST("/delete_record", h.DeleteRecord)
	doctor.POST("/edit_doctor_profile", h.EditDoctorProfile)

	patient := r.Group("", h.RequireRole(domain.RolePatient))
	patient.GET("/patient_dashboard", h.PatientDashboard)
	patient.GET("/chat", h.Chat)
	patient.POST("/patient_download_pdf", h.DownloadPDF)
	patient.POST("/patient_reply", h.PatientReply)
	patient.POST("/chat_reply", h.ChatReply)

	return r, nil
}
