package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"messaging-service/internal/broker"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// NotificationService renders notifications, enforces preferences and quiet
// hours, persists rows, and publishes delivery events.
type NotificationService struct {
	repo   repositories.NotificationRepository
	users  repositories.UserRepository
	broker broker.Broker

	// persistWhenDisabled keeps the row for the inbox when in-app delivery is
	// disabled; only the live publish is suppressed. When false, creation is
	// skipped entirely.
	persistWhenDisabled bool
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo repositories.NotificationRepository, users repositories.UserRepository, b broker.Broker, persistWhenDisabled bool) *NotificationService {
	return &NotificationService{
		repo:                repo,
		users:               users,
		broker:              b,
		persistWhenDisabled: persistWhenDisabled,
	}
}

// CreateInput carries the fields for a directly created notification.
type CreateInput struct {
	UserID     int
	Type       string
	Title      string
	Message    string
	Data       json.RawMessage
	Priority   models.NotificationPriority
	Category   models.NotificationCategory
	SenderID   *int
	ActionURL  *string
	ActionText *string
	ExpiresAt  *time.Time
}

// Create persists a notification subject to the recipient's preferences and
// publishes a notification_received event on their personal channel. During
// quiet hours the notification is scheduled instead of delivered live.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) (models.Notification, error) {
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}

	pref, err := s.repo.GetPreference(ctx, in.UserID, in.Category)
	if err != nil {
		return models.Notification{}, err
	}

	insert := repositories.NotificationInsert{
		UserID:     in.UserID,
		Type:       in.Type,
		Title:      in.Title,
		Message:    in.Message,
		Data:       in.Data,
		Priority:   in.Priority,
		Category:   in.Category,
		SenderID:   in.SenderID,
		ActionURL:  in.ActionURL,
		ActionText: in.ActionText,
		ExpiresAt:  in.ExpiresAt,
	}

	if !pref.InAppEnabled {
		if !s.persistWhenDisabled {
			observability.IncNotification("skipped")
			return models.Notification{}, nil
		}
		n, err := s.repo.Create(ctx, insert)
		if err != nil {
			return models.Notification{}, err
		}
		observability.IncNotification("suppressed")
		return n, nil
	}

	now := time.Now()
	if inQuietHours(pref, now) {
		slot := nextDeliveryTime(pref, now)
		insert.ScheduledAt = &slot
		n, err := s.repo.Create(ctx, insert)
		if err != nil {
			return models.Notification{}, err
		}
		observability.IncNotification("scheduled")
		return n, nil
	}

	n, err := s.repo.Create(ctx, insert)
	if err != nil {
		return models.Notification{}, err
	}

	s.publishReceived(ctx, n)
	return n, nil
}

// publishReceived pushes a notification_received event to the recipient's
// personal channel.
func (s *NotificationService) publishReceived(ctx context.Context, n models.Notification) {
	s.broker.Publish(ctx, broker.UserChannel(n.UserID), models.EventNotificationReceived, models.NotificationEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Priority:       n.Priority,
		Category:       n.Category,
		SenderID:       n.SenderID,
		ActionURL:      n.ActionURL,
		CreatedAt:      n.CreatedAt,
	})
	observability.IncNotification("delivered")
}

// CreateFromTemplate renders the template registered for the type and
// delegates to Create. A missing template row is a configuration defect and
// fails loudly; a missing required variable fails before the row lookup.
func (s *NotificationService) CreateFromTemplate(ctx context.Context, userID int, typ string, vars map[string]string, senderID *int) (models.Notification, error) {
	if err := validateTemplateVars(typ, vars); err != nil {
		return models.Notification{}, err
	}

	tpl, err := s.repo.GetTemplate(ctx, typ)
	if err != nil {
		return models.Notification{}, err
	}

	title, message, actionURL := renderTemplate(tpl, vars)

	data, err := json.Marshal(vars)
	if err != nil {
		return models.Notification{}, err
	}

	return s.Create(ctx, CreateInput{
		UserID:     userID,
		Type:       typ,
		Title:      title,
		Message:    message,
		Data:       data,
		Priority:   tpl.Priority,
		Category:   tpl.Category,
		SenderID:   senderID,
		ActionURL:  actionURL,
		ActionText: tpl.ActionText,
	})
}

// MarkRead flips a notification to read. Re-invocation is a no-op; other
// connected devices get a notification_read event to reconcile badge counts.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID int) error {
	changed, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !changed {
		n, err := s.repo.Get(ctx, notificationID)
		if err != nil {
			return err
		}
		if n.UserID != userID {
			return repositories.ErrNotificationNotFound
		}
		return nil
	}

	s.broker.Publish(ctx, broker.UserChannel(userID), models.EventNotificationRead, models.NotificationReadEvent{
		NotificationID: notificationID,
		UserID:         userID,
		ReadAt:         time.Now().UTC(),
	})
	return nil
}

// MarkAllRead flips every unread notification for the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.broker.Publish(ctx, broker.UserChannel(userID), models.EventNotificationRead, models.NotificationReadEvent{
			UserID: userID,
			All:    true,
			ReadAt: time.Now().UTC(),
		})
	}
	return count, nil
}

// UnreadCount counts unread, unexpired notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int, category *models.NotificationCategory) (int, error) {
	return s.repo.UnreadCount(ctx, userID, category)
}

// List returns the user's active inbox.
func (s *NotificationService) List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.repo.List(ctx, userID, unreadOnly, limit)
}

// UpdatePreference writes the (user, category) preference row.
func (s *NotificationService) UpdatePreference(ctx context.Context, pref models.NotificationPreference) error {
	return s.repo.UpsertPreference(ctx, pref)
}

// scheduledBatch bounds one sweep of quiet-hours deliveries so a backlog
// never monopolizes the loop.
const scheduledBatch = 200

// DeliverScheduled claims notifications whose quiet-hours deferral has passed
// and publishes each to its recipient's channel. Returns how many went out.
func (s *NotificationService) DeliverScheduled(ctx context.Context) (int, error) {
	due, err := s.repo.ClaimScheduled(ctx, time.Now(), scheduledBatch)
	if err != nil {
		return 0, err
	}
	for _, n := range due {
		s.publishReceived(ctx, n)
	}
	return len(due), nil
}

// StartMaintenanceLoop runs the background sweeps until the context is
// cancelled: quiet-hours deliveries on the short interval, garbage collection
// of read or expired notifications on the long one.
func (s *NotificationService) StartMaintenanceLoop(ctx context.Context, deliverEvery, purgeEvery, retention time.Duration) {
	go func() {
		deliver := time.NewTicker(deliverEvery)
		defer deliver.Stop()
		purge := time.NewTicker(purgeEvery)
		defer purge.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-deliver.C:
				count, err := s.DeliverScheduled(ctx)
				if err != nil {
					log.Printf("scheduled notification sweep failed: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("delivered %d scheduled notifications", count)
				}
			case <-purge.C:
				count, err := s.repo.PurgeExpired(ctx, time.Now().Add(-retention))
				if err != nil {
					log.Printf("notification purge failed: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("purged %d expired notifications", count)
				}
			}
		}
	}()
}

// Fixed notification types used by the rest of the platform through the
// helper calls below.
const (
	TypeMessageReceived    = "message_received"
	TypeConversationAdded  = "conversation_added"
	TypeConnectionRequest  = "connection_request"
	TypeConnectionAccepted = "connection_accepted"
	TypeMention            = "mention"
	TypeProjectInvitation  = "project_invitation"
)

// NotifyConnectionRequest tells targetID that actorID wants to connect.
func (s *NotificationService) NotifyConnectionRequest(ctx context.Context, actorID, targetID int) error {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	_, err = s.CreateFromTemplate(ctx, targetID, TypeConnectionRequest, map[string]string{
		"actorName": actor.DisplayName,
	}, &actorID)
	return err
}

// NotifyConnectionAccepted tells targetID that actorID accepted their request.
func (s *NotificationService) NotifyConnectionAccepted(ctx context.Context, actorID, targetID int) error {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	_, err = s.CreateFromTemplate(ctx, targetID, TypeConnectionAccepted, map[string]string{
		"actorName": actor.DisplayName,
		"actorId":   strconv.Itoa(actorID),
	}, &actorID)
	return err
}

// NotifyMention tells targetID they were mentioned in a conversation.
func (s *NotificationService) NotifyMention(ctx context.Context, actorID, targetID, conversationID int, preview string) error {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	_, err = s.CreateFromTemplate(ctx, targetID, TypeMention, map[string]string{
		"actorName":      actor.DisplayName,
		"preview":        preview,
		"conversationId": strconv.Itoa(conversationID),
	}, &actorID)
	return err
}

// NotifyProjectInvitation tells targetID they were invited to a project.
func (s *NotificationService) NotifyProjectInvitation(ctx context.Context, actorID, targetID int, projectID, projectName string) error {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	_, err = s.CreateFromTemplate(ctx, targetID, TypeProjectInvitation, map[string]string{
		"actorName":   actor.DisplayName,
		"projectName": projectName,
		"projectId":   projectID,
	}, &actorID)
	return err
}

// NotifyConversationAdded tells targetID they were added to a conversation.
func (s *NotificationService) NotifyConversationAdded(ctx context.Context, actorID, targetID int, conv models.Conversation) error {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		return err
	}
	name := "a conversation"
	if conv.Name != nil && *conv.Name != "" {
		name = *conv.Name
	}
	_, err = s.CreateFromTemplate(ctx, targetID, TypeConversationAdded, map[string]string{
		"actorName":        actor.DisplayName,
		"conversationName": name,
		"conversationId":   strconv.Itoa(conv.ID),
	}, &actorID)
	return err
}
