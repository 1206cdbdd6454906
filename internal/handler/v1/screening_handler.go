package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
)

func (h *Handler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "main.html", gin.H{"User": principalFrom(c)})
}

func (h *Handler) ScreeningForm(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"User": principalFrom(c)})
}

func (h *Handler) Welcome(c *gin.Context) {
	c.HTML(http.StatusOK, "welcome.html", gin.H{"User": principalFrom(c)})
}

func (h *Handler) submitCommand(c *gin.Context) (record.SubmitCommand, error) {
	fh := formFile(c, "image")
	if fh == nil {
		return record.SubmitCommand{}, &service.MissingInputError{Field: "image"}
	}
	data, err := readFormFile(fh)
	if err != nil {
		return record.SubmitCommand{}, &service.ProcessingError{Op: "reading upload", Err: err}
	}
	return record.SubmitCommand{Image: data, Symptoms: symptomsFromForm(c)}, nil
}

// Predict classifies the uploaded image and renders the result page.
func (h *Handler) Predict(c *gin.Context) {
	cmd, err := h.submitCommand(c)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	rec, err := h.records.Predict(c.Request.Context(), callerFrom(c), cmd)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"User":   principalFrom(c),
		"Record": rec,
	})
}

// SubmitPatientData stores the questionnaire without classification.
func (h *Handler) SubmitPatientData(c *gin.Context) {
	cmd, err := h.submitCommand(c)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	if _, err := h.records.Submit(c.Request.Context(), callerFrom(c), cmd); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/patient_dashboard")
}

func (h *Handler) UploadImage(c *gin.Context) {
	fh := formFile(c, "image")
	if fh == nil {
		c.String(http.StatusBadRequest, "No image file uploaded")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondServiceError(c, &service.ProcessingError{Op: "reading upload", Err: err})
		return
	}
	defer f.Close()

	if _, err := h.records.UploadImage(c.Request.Context(), callerFrom(c), f); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.String(http.StatusOK, "Image uploaded successfully")
}

func (h *Handler) UploadAudio(c *gin.Context) {
	fh := formFile(c, "audio")
	if fh == nil {
		c.String(http.StatusBadRequest, "No audio file uploaded")
		return
	}
	key := c.PostForm("timestamp")
	if key == "" {
		c.String(http.StatusBadRequest, "Timestamp is missing")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondServiceError(c, &service.ProcessingError{Op: "reading upload", Err: err})
		return
	}
	defer f.Close()

	if _, err := h.records.AttachAudio(c.Request.Context(), callerFrom(c), key, fh.Filename, f); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.String(http.StatusOK, "Audio uploaded successfully")
}
