package v1

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/report"
)

// DownloadPDF renders the report for the posted record key and returns it
// as an attachment. Doctors and owning patients share this handler.
func (h *Handler) DownloadPDF(c *gin.Context) {
	key := c.PostForm("timestamp")
	if key == "" {
		c.String(http.StatusBadRequest, "Timestamp is missing")
		return
	}

	meta := report.PatientMeta{
		Name:    c.PostForm("name"),
		DOB:     c.PostForm("dob"),
		Age:     c.PostForm("age"),
		Sex:     c.PostForm("sex"),
		Address: c.PostForm("address"),
	}

	path, err := h.reports.Render(c.Request.Context(), callerFrom(c), key, meta)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
