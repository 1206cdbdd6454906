package v1

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

func (h *Handler) DoctorDashboard(c *gin.Context) {
	recs, err := h.records.ListForDoctor(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.HTML(http.StatusOK, "doctor_dashboard.html", gin.H{
		"User":    principalFrom(c),
		"Records": recs,
	})
}

func (h *Handler) PatientDashboard(c *gin.Context) {
	recs, err := h.records.ListForPatient(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.HTML(http.StatusOK, "patient_dashboard.html", gin.H{
		"User":    principalFrom(c),
		"Records": recs,
	})
}

// chatView renders a single record's conversation with the given template.
func (h *Handler) chatView(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.records.Get(c.Request.Context(), callerFrom(c), c.Query("timestamp"))
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.HTML(http.StatusOK, name, gin.H{
			"User":   principalFrom(c),
			"Record": rec,
		})
	}
}

func (h *Handler) Chat(c *gin.Context) { h.chatView("chat.html")(c) }
func (h *Handler) ChatDoctor(c *gin.Context) { h.chatView("chat_doctor.html")(c) }

// reply appends the posted message and redirects to target, which may
// reference the record key.
func (h *Handler) reply(target func(key string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.PostForm("timestamp")
		if _, err := h.records.Reply(c.Request.Context(), callerFrom(c), key, c.PostForm("message")); err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, target(key))
	}
}

func (h *Handler) DoctorReply(c *gin.Context) {
	h.reply(func(string) string { return "/doctor_dashboard" })(c)
}

func (h *Handler) PatientReply(c *gin.Context) {
	h.reply(func(string) string { return "/patient_dashboard" })(c)
}

func (h *Handler) ChatReply(c *gin.Context) {
	h.reply(func(key string) string { return "/chat?timestamp=" + url.QueryEscape(key) })(c)
}

func (h *Handler) ChatReplyDoctor(c *gin.Context) {
	h.reply(func(key string) string { return "/chat_doctor?timestamp=" + url.QueryEscape(key) })(c)
}

func (h *Handler) setFollowUp(flagged bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := h.records.SetFollowUp(c.Request.Context(), callerFrom(c), c.PostForm("timestamp"), flagged); err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/doctor_dashboard")
	}
}

func (h *Handler) FlagFollowUp(c *gin.Context) { h.setFollowUp(true)(c) }
func (h *Handler) UnflagFollowUp(c *gin.Context) { h.setFollowUp(false)(c) }

func (h *Handler) DeleteRecord(c *gin.Context) {
	key := c.PostForm("timestamp")
	if key == "" {
		c.String(http.StatusBadRequest, "Timestamp is missing")
		return
	}
	if _, err := h.records.Delete(c.Request.Context(), callerFrom(c), key); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/doctor_dashboard")
}
