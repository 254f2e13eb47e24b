package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/services"
)

// EventsHandler exposes the notify helpers the rest of the platform calls
// when its own domain events fire (connection accepted, project invitation).
type EventsHandler struct {
	notifications *services.NotificationService
}

// NewEventsHandler builds an EventsHandler.
func NewEventsHandler(notifications *services.NotificationService) *EventsHandler {
	return &EventsHandler{notifications: notifications}
}

// ConnectionRequest handles POST /events/connection-request.
func (h *EventsHandler) ConnectionRequest(c *gin.Context) {
	var req struct {
		TargetID int `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := c.GetInt("userID")
	if err := h.notifications.NotifyConnectionRequest(c.Request.Context(), actorID, req.TargetID); err != nil {
		respondError(c, err, "could not create notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// ConnectionAccepted handles POST /events/connection-accepted.
func (h *EventsHandler) ConnectionAccepted(c *gin.Context) {
	var req struct {
		TargetID int `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := c.GetInt("userID")
	if err := h.notifications.NotifyConnectionAccepted(c.Request.Context(), actorID, req.TargetID); err != nil {
		respondError(c, err, "could not create notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// Mention handles POST /events/mention.
func (h *EventsHandler) Mention(c *gin.Context) {
	var req struct {
		TargetID       int    `json:"target_id" binding:"required"`
		ConversationID int    `json:"conversation_id" binding:"required"`
		Preview        string `json:"preview"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := c.GetInt("userID")
	if err := h.notifications.NotifyMention(c.Request.Context(), actorID, req.TargetID, req.ConversationID, req.Preview); err != nil {
		respondError(c, err, "could not create notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// ProjectInvitation handles POST /events/project-invitation.
func (h *EventsHandler) ProjectInvitation(c *gin.Context) {
	var req struct {
		TargetID    int    `json:"target_id" binding:"required"`
		ProjectID   string `json:"project_id" binding:"required"`
		ProjectName string `json:"project_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := c.GetInt("userID")
	if err := h.notifications.NotifyProjectInvitation(c.Request.Context(), actorID, req.TargetID, req.ProjectID, req.ProjectName); err != nil {
		respondError(c, err, "could not create notification")
		return
	}
	c.Status(http.StatusNoContent)
}
