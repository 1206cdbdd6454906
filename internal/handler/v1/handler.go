package v1

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
)

// Handler serves the HTML and form endpoints.
type Handler struct {
	records *service.RecordService
	reports *service.ReportService
	auth    *service.AuthService
	session config.SessionConfig
	devMode bool
	log     *zap.Logger
}

func NewHandler(
	records *service.RecordService,
	reports *service.ReportService,
	auth *service.AuthService,
	session config.SessionConfig,
	devMode bool,
	log *zap.Logger,
) *Handler {
	return &Handler{
		records: records,
		reports: reports,
		auth:    auth,
		session: session,
		devMode: devMode,
		log:     log,
	}
}

// symptomsFromForm reads the screening questionnaire. Absent fields stay
// empty.
func symptomsFromForm(c *gin.Context) record.Symptoms {
	return record.Symptoms{
		PainLevel:    c.PostForm("pain_level"),
		Bleeding:     c.PostForm("bleeding"),
		Swelling:     c.PostForm("swelling"),
		Duration:     c.PostForm("duration"),
		History:      c.PostForm("history"),
		Habits:       c.PostFormArray("habits"),
		TobaccoYears: c.PostForm("tobacco_years"),
		AlcoholYears: c.PostForm("alcohol_years"),
		SmokingYears: c.PostForm("smoking_years"),
		TrismusTest:  c.PostForm("trismus_test"),
		MouthPain:    c.PostForm("mouth_pain"),
		ExtraDetails: c.PostForm("extra_details"),
	}
}

// formFile returns the named upload, or nil when the field is absent or the
// browser sent an empty file input.
func formFile(c *gin.Context, field string) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil || fh.Filename == "" {
		return nil
	}
	return fh
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, token, int(time.Until(expiresAt).Seconds()), "/", "", h.session.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.session.CookieName, "", -1, "/", "", h.session.Secure, true)
}
