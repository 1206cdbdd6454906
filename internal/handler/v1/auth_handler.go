package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
)

func (h *Handler) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Error": "", "Username": ""})
}

// Login authenticates or registers the user and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	role := domain.Role(c.DefaultPostForm("role", string(domain.RolePatient)))

	sess, err := h.auth.Login(c.Request.Context(), username, c.PostForm("password"), role, callerFrom(c))
	switch {
	case errors.Is(err, service.ErrMissingInput):
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"Error": "Please fill in all fields.", "Username": username})
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "Invalid password.", "Username": username})
		return
	case err != nil:
		h.respondServiceError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token, sess.ExpiresAt)
	if sess.Principal.IsDoctor() {
		c.Redirect(http.StatusSeeOther, "/doctor_dashboard")
		return
	}
	c.Redirect(http.StatusSeeOther, "/patient_dashboard")
}

func (h *Handler) Logout(c *gin.Context) {
	h.auth.Logout(c.Request.Context(), callerFrom(c))
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/index")
}

// EditDoctorProfile renames the doctor. A blank name leaves the profile
// unchanged.
func (h *Handler) EditDoctorProfile(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("doctor_name"))
	if name == "" {
		c.Redirect(http.StatusSeeOther, "/doctor_dashboard")
		return
	}

	sess, err := h.auth.UpdateDisplayName(c.Request.Context(), callerFrom(c), name)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.setSessionCookie(c, sess.Token, sess.ExpiresAt)
	c.Redirect(http.StatusSeeOther, "/doctor_dashboard")
}
