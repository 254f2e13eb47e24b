package services

import (
	"context"
	"errors"
	"log"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ConversationService enforces membership rules and deduplicates direct
// conversations.
type ConversationService struct {
	convRepo      repositories.ConversationRepository
	notifications *NotificationService
}

// NewConversationService constructs a ConversationService.
func NewConversationService(convRepo repositories.ConversationRepository, notifications *NotificationService) *ConversationService {
	return &ConversationService{convRepo: convRepo, notifications: notifications}
}

// Create validates participants for the kind and persists the conversation.
// DIRECT creation is idempotent: an existing conversation between the pair is
// returned unchanged. No event is published on creation so participants are
// not notified twice, once on creation and once on first message.
func (s *ConversationService) Create(ctx context.Context, creatorID int, kind models.ConversationKind, participantIDs []int, meta models.ConversationMeta) (models.Conversation, error) {
	others := dedupeIDs(participantIDs, creatorID)

	switch kind {
	case models.ConversationDirect:
		if len(participantIDs) == 1 && participantIDs[0] == creatorID {
			return models.Conversation{}, ErrSelfConversation
		}
		if len(others) != 1 {
			return models.Conversation{}, ErrInvalidParticipants
		}
		conv, _, err := s.convRepo.CreateDirect(ctx, creatorID, others[0])
		return conv, err
	case models.ConversationGroup, models.ConversationProject:
		if len(others) < 2 {
			return models.Conversation{}, ErrInvalidParticipants
		}
		return s.convRepo.CreateGroup(ctx, kind, creatorID, others, meta)
	default:
		return models.Conversation{}, ErrInvalidParticipants
	}
}

// Get returns a conversation the user is an active participant of.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID int) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	member, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !member {
		return models.Conversation{}, ErrNotAParticipant
	}
	return conv, nil
}

// List returns the user's active conversations with their unread counts.
func (s *ConversationService) List(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	return s.convRepo.ListForUser(ctx, userID)
}

// Deactivate soft-deletes a conversation. Only active admins may destroy;
// the rows stay behind for history and a DIRECT pair may start over.
func (s *ConversationService) Deactivate(ctx context.Context, conversationID, requestedBy int) error {
	if err := s.requireAdmin(ctx, conversationID, requestedBy); err != nil {
		return err
	}
	return s.convRepo.Deactivate(ctx, conversationID)
}

// UpdateSettings flips the conversation-level notification mute. Admin-gated
// like the other conversation mutations.
func (s *ConversationService) UpdateSettings(ctx context.Context, conversationID, requestedBy int, notificationsEnabled bool) (models.ConversationSettings, error) {
	if err := s.requireAdmin(ctx, conversationID, requestedBy); err != nil {
		return models.ConversationSettings{}, err
	}
	return s.convRepo.SetNotificationsEnabled(ctx, conversationID, notificationsEnabled)
}

func (s *ConversationService) requireAdmin(ctx context.Context, conversationID, userID int) error {
	p, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !p.IsActive || !p.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// AddParticipant adds a user to a conversation. Only active admins may add;
// adding an existing active member surfaces ErrDuplicateMembership. The added
// user gets a notification.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, userID, requestedBy int) error {
	if err := s.requireAdmin(ctx, conversationID, requestedBy); err != nil {
		return err
	}

	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := s.convRepo.AddParticipant(ctx, conversationID, userID, false); err != nil {
		return err
	}

	if s.notifications != nil {
		if err := s.notifications.NotifyConversationAdded(ctx, requestedBy, userID, conv); err != nil {
			log.Printf("conversation-added notification failed conversation=%d user=%d: %v", conversationID, userID, err)
		}
	}
	return nil
}

// RemoveParticipant soft-removes a membership row. Allowed for self-leave or
// for active admins.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, userID, requestedBy int) error {
	if requestedBy != userID {
		if err := s.requireAdmin(ctx, conversationID, requestedBy); err != nil {
			return err
		}
	}
	return s.convRepo.DeactivateParticipant(ctx, conversationID, userID)
}

// dedupeIDs drops duplicates and the excluded id while preserving order.
func dedupeIDs(ids []int, exclude int) []int {
	seen := map[int]struct{}{exclude: {}}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
