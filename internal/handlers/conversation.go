package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	conversations *services.ConversationService
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations *services.ConversationService, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, audit: audit}
}

// Create handles POST /conversations.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Kind           models.ConversationKind `json:"kind" binding:"required"`
		ParticipantIDs []int                   `json:"participant_ids" binding:"required"`
		Name           string                  `json:"name"`
		Description    string                  `json:"description"`
		AvatarURL      string                  `json:"avatar_url"`
		ProjectRef     string                  `json:"project_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), userID, req.Kind, req.ParticipantIDs, models.ConversationMeta{
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		ProjectRef:  req.ProjectRef,
	})
	if err != nil {
		respondError(c, err, "could not create conversation")
		return
	}

	h.emitAudit(c, "INFO", "conversation created")
	c.JSON(http.StatusCreated, conv)
}

// List handles GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Delete handles DELETE /conversations/:conversation_id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	if err := h.conversations.Deactivate(c.Request.Context(), conversationID, c.GetInt("userID")); err != nil {
		respondError(c, err, "could not delete conversation")
		return
	}

	h.emitAudit(c, "INFO", "conversation deleted")
	c.Status(http.StatusNoContent)
}

// UpdateSettings handles PATCH /conversations/:conversation_id/settings.
func (h *ConversationHandler) UpdateSettings(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		NotificationsEnabled *bool `json:"notifications_enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.conversations.UpdateSettings(c.Request.Context(), conversationID, c.GetInt("userID"), *req.NotificationsEnabled)
	if err != nil {
		respondError(c, err, "could not update settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// AddParticipant handles POST /conversations/:conversation_id/participants.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestedBy := c.GetInt("userID")
	if err := h.conversations.AddParticipant(c.Request.Context(), conversationID, req.UserID, requestedBy); err != nil {
		respondError(c, err, "could not add participant")
		return
	}

	h.emitAudit(c, "INFO", "participant added")
	c.Status(http.StatusNoContent)
}

// RemoveParticipant handles DELETE /conversations/:conversation_id/participants/:user_id.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	requestedBy := c.GetInt("userID")
	if err := h.conversations.RemoveParticipant(c.Request.Context(), conversationID, userID, requestedBy); err != nil {
		respondError(c, err, "could not remove participant")
		return
	}

	h.emitAudit(c, "INFO", "participant removed")
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
