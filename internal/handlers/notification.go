package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

// NotificationHandler manages notification endpoints.
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.notifications.List(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// UnreadCount handles GET /notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetInt("userID")

	var category *models.NotificationCategory
	if v := c.Query("category"); v != "" {
		cat := models.NotificationCategory(v)
		category = &cat
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), userID, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead handles POST /notifications/read/:notification_id.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), notificationID, c.GetInt("userID")); err != nil {
		respondError(c, err, "could not mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	count, err := h.notifications.MarkAllRead(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark notifications read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// UpdatePreference handles PUT /notification-preferences/:category.
func (h *NotificationHandler) UpdatePreference(c *gin.Context) {
	category := models.NotificationCategory(c.Param("category"))

	var req struct {
		InAppEnabled    bool    `json:"in_app_enabled"`
		EmailEnabled    bool    `json:"email_enabled"`
		PushEnabled     bool    `json:"push_enabled"`
		SMSEnabled      bool    `json:"sms_enabled"`
		DigestFrequency string  `json:"digest_frequency"`
		QuietHoursStart *string `json:"quiet_hours_start"`
		QuietHoursEnd   *string `json:"quiet_hours_end"`
		Timezone        string  `json:"timezone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DigestFrequency == "" {
		req.DigestFrequency = "immediate"
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	pref := models.NotificationPreference{
		UserID:          c.GetInt("userID"),
		Category:        category,
		InAppEnabled:    req.InAppEnabled,
		EmailEnabled:    req.EmailEnabled,
		PushEnabled:     req.PushEnabled,
		SMSEnabled:      req.SMSEnabled,
		DigestFrequency: req.DigestFrequency,
		QuietHoursStart: req.QuietHoursStart,
		QuietHoursEnd:   req.QuietHoursEnd,
		Timezone:        req.Timezone,
	}
	if err := h.notifications.UpdatePreference(c.Request.Context(), pref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save preference"})
		return
	}
	c.JSON(http.StatusOK, pref)
}
