package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/inference"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
)

const (
	ctxPrincipal = "principal"
	ctxRequestID = "request_id"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// errorView is rendered by error.html.
type errorView struct {
	Status  int
	Title   string
	Message string
	Detail  string
}

func principalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(ctxPrincipal); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func callerFrom(c *gin.Context) service.Caller {
	return service.Caller{
		Principal: principalFrom(c),
		IP:        c.ClientIP(),
		RequestID: c.GetString(ctxRequestID),
	}
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// respondServiceError maps a service error to a status and renders the
// error view. Internal causes are logged and only shown in development.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var (
		missingErr *service.MissingInputError
		invalidImg *inference.InvalidImageError
		procErr    *service.ProcessingError
	)

	switch {
	case errors.As(err, &missingErr):
		h.renderError(c, http.StatusBadRequest, "Missing input", capitalize(missingErr.Error()), nil)

	case errors.Is(err, record.ErrRecordNotFound):
		h.renderError(c, http.StatusNotFound, "Not found", "Record not found", nil)

	case errors.As(err, &invalidImg):
		h.renderError(c, http.StatusUnprocessableEntity, "Invalid image", "The uploaded file could not be read as an image.", err)

	case errors.Is(err, service.ErrUnauthenticated):
		if wantsHTML(c) {
			c.Redirect(http.StatusSeeOther, "/login")
			return
		}
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})

	case errors.Is(err, service.ErrForbidden):
		h.renderError(c, http.StatusForbidden, "Access denied", "You do not have access to this resource.", nil)

	case errors.Is(err, service.ErrInvalidCredentials):
		h.renderError(c, http.StatusUnauthorized, "Invalid credentials", "Invalid password.", nil)

	case errors.As(err, &procErr):
		h.log.Error("request failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("op", procErr.Op),
			zap.Error(procErr.Err),
		)
		h.renderError(c, http.StatusInternalServerError, "Processing error", "We could not process your request. Please try again.", err)

	default:
		h.log.Error("unhandled error",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		h.renderError(c, http.StatusInternalServerError, "Internal error", "Internal server error", err)
	}
}

func (h *Handler) renderError(c *gin.Context, status int, title, message string, cause error) {
	view := errorView{Status: status, Title: title, Message: message}
	if cause != nil && h.devMode {
		view.Detail = cause.Error()
	}

	if !wantsHTML(c) {
		c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Detail: view.Detail})
		return
	}
	c.HTML(status, "error.html", view)
	c.Abort()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
