package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	messages *services.MessageService
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, audit: audit}
}

// Send handles POST /conversations/:conversation_id/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content     string             `json:"content" binding:"required"`
		Type        models.MessageType `json:"type"`
		Attachments json.RawMessage    `json:"attachments"`
		ReplyToID   *int               `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), services.SendInput{
		ConversationID: conversationID,
		SenderID:       c.GetInt("userID"),
		Content:        req.Content,
		Type:           req.Type,
		Attachments:    req.Attachments,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		respondError(c, err, "failed to store message")
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// History handles GET /conversations/:conversation_id/messages.
func (h *MessageHandler) History(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var before *time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &t
	}

	msgs, err := h.messages.History(c.Request.Context(), conversationID, c.GetInt("userID"), limit, before)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Edit handles PATCH /messages/:message_id.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), messageID, c.GetInt("userID"), req.Content)
	if err != nil {
		respondError(c, err, "could not edit message")
		return
	}

	h.emitAudit(c, "INFO", "message edited")
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /messages/:message_id.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if _, err := h.messages.Delete(c.Request.Context(), messageID, c.GetInt("userID")); err != nil {
		respondError(c, err, "could not delete message")
		return
	}

	h.emitAudit(c, "INFO", "message deleted")
	c.Status(http.StatusNoContent)
}

// AddReaction handles PUT /messages/:message_id/reactions/:emoji.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	emoji := c.Param("emoji")
	if emoji == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing emoji"})
		return
	}

	if err := h.messages.AddReaction(c.Request.Context(), messageID, c.GetInt("userID"), emoji); err != nil {
		respondError(c, err, "could not add reaction")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveReaction handles DELETE /messages/:message_id/reactions/:emoji.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	emoji := c.Param("emoji")
	if emoji == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing emoji"})
		return
	}

	if err := h.messages.RemoveReaction(c.Request.Context(), messageID, c.GetInt("userID"), emoji); err != nil {
		respondError(c, err, "could not remove reaction")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkRead handles POST /messages/:message_id/read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.messages.MarkMessageRead(c.Request.Context(), messageID, c.GetInt("userID")); err != nil {
		respondError(c, err, "could not mark message read")
		return
	}
	c.Status(http.StatusNoContent)
}

// Receipts handles GET /messages/:message_id/receipts.
func (h *MessageHandler) Receipts(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	markers, err := h.messages.Receipts(c.Request.Context(), messageID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "failed to load read receipts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": markers})
}

// MarkConversationRead handles POST /conversations/:conversation_id/read.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	count, err := h.messages.MarkConversationRead(c.Request.Context(), conversationID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// UnreadCount handles GET /conversations/:conversation_id/unread-count.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), conversationID, c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
