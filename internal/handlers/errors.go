package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
)

// respondError translates domain sentinel errors to HTTP statuses.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotAParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrAlreadyDeleted):
		c.JSON(http.StatusConflict, gin.H{"error": "message already deleted"})
	case errors.Is(err, services.ErrInvalidParticipants),
		errors.Is(err, services.ErrSelfConversation),
		errors.Is(err, services.ErrMissingTemplateVar):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrDuplicateMembership):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
	case errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound),
		errors.Is(err, repositories.ErrParticipantNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrTemplateNotFound):
		// A missing template is a configuration defect; fail loudly.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification template missing"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
