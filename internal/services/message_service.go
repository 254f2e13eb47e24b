package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"messaging-service/internal/broker"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const previewRunes = 80

// MessageService is the message pipeline: it validates membership, persists
// messages, maintains read state, publishes live events and fans out
// notifications.
type MessageService struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	users    repositories.UserRepository
	broker   broker.Broker
	fanout   *FanoutWorker
}

// NewMessageService constructs a MessageService.
func NewMessageService(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, users repositories.UserRepository, b broker.Broker, fanout *FanoutWorker) *MessageService {
	return &MessageService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		users:    users,
		broker:   b,
		fanout:   fanout,
	}
}

// SendInput carries the fields accepted for a new message.
type SendInput struct {
	ConversationID int
	SenderID       int
	Content        string
	Type           models.MessageType
	Attachments    json.RawMessage
	ReplyToID      *int
}

// Send persists a message and runs the delivery pipeline: summary update in
// the same transaction, read marker for the sender, live event on the
// conversation channel, then async notification fan-out to the other active
// participants.
func (s *MessageService) Send(ctx context.Context, in SendInput) (models.Message, error) {
	member, err := s.convRepo.IsActiveParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if !member {
		return models.Message{}, ErrNotAParticipant
	}

	if in.Type == "" {
		in.Type = models.MessageText
	}

	msg, err := s.msgRepo.Create(ctx, in.ConversationID, in.SenderID, in.Content, in.Type, in.Attachments, in.ReplyToID)
	if err != nil {
		return models.Message{}, err
	}

	// A sender always sees their own message as read.
	if err := s.msgRepo.UpsertReadMarker(ctx, msg.ID, in.SenderID); err != nil {
		log.Printf("sender read marker failed message=%d: %v", msg.ID, err)
	}

	s.broker.Publish(ctx, broker.ConversationChannel(msg.ConversationID), models.EventMessageReceived, messageEvent(msg))

	// A muted conversation still gets the live event above; only the
	// per-recipient notification fan-out is skipped.
	if settings, err := s.convRepo.GetSettings(ctx, msg.ConversationID); err != nil {
		log.Printf("settings lookup failed conversation=%d: %v", msg.ConversationID, err)
	} else if !settings.NotificationsEnabled {
		return msg, nil
	}

	recipients, err := s.convRepo.ActiveParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		log.Printf("fan-out recipient lookup failed conversation=%d: %v", msg.ConversationID, err)
		return msg, nil
	}

	senderName := ""
	if sender, err := s.users.Get(ctx, in.SenderID); err == nil {
		senderName = sender.DisplayName
	}

	s.fanout.Enqueue(fanoutJob{
		ConversationID: msg.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     senderName,
		Preview:        preview(msg.Content),
		Recipients:     recipients,
	})

	return msg, nil
}

// Edit rewrites a message's content. Only the original sender may edit, and
// only while the message is not tombstoned.
func (s *MessageService) Edit(ctx context.Context, messageID, userID int, newContent string) (models.Message, error) {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrForbidden
	}
	if msg.IsDeleted {
		return models.Message{}, ErrAlreadyDeleted
	}

	edited, err := s.msgRepo.MarkEdited(ctx, messageID, newContent)
	if err != nil {
		return models.Message{}, err
	}

	s.broker.Publish(ctx, broker.ConversationChannel(edited.ConversationID), models.EventMessageEdited, messageEvent(edited))
	return edited, nil
}

// Delete tombstones a message. The content is replaced with the placeholder
// and is unrecoverable; ordering and reply chains stay intact.
func (s *MessageService) Delete(ctx context.Context, messageID, userID int) (models.Message, error) {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != userID {
		return models.Message{}, ErrForbidden
	}
	if msg.IsDeleted {
		return msg, nil
	}

	deleted, err := s.msgRepo.Tombstone(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	s.broker.Publish(ctx, broker.ConversationChannel(deleted.ConversationID), models.EventMessageDeleted, messageEvent(deleted))
	return deleted, nil
}

// AddReaction upserts a reaction. The composite key makes repeated calls
// collapse into a single row.
func (s *MessageService) AddReaction(ctx context.Context, messageID, userID int, emoji string) error {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	member, err := s.convRepo.IsActiveParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAParticipant
	}

	if err := s.msgRepo.UpsertReaction(ctx, messageID, userID, emoji); err != nil {
		return err
	}

	s.broker.Publish(ctx, broker.ConversationChannel(msg.ConversationID), models.EventMessageReaction, models.ReactionEvent{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Emoji:          emoji,
		Action:         "add",
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// RemoveReaction deletes a reaction. Removing one that does not exist is a
// no-op and publishes nothing.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID int, emoji string) error {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}

	existed, err := s.msgRepo.DeleteReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}

	s.broker.Publish(ctx, broker.ConversationChannel(msg.ConversationID), models.EventMessageReaction, models.ReactionEvent{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Emoji:          emoji,
		Action:         "remove",
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// MarkMessageRead records that the user has seen a single message.
func (s *MessageService) MarkMessageRead(ctx context.Context, messageID, userID int) error {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return err
	}
	member, err := s.convRepo.IsActiveParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAParticipant
	}
	return s.msgRepo.UpsertReadMarker(ctx, messageID, userID)
}

// MarkConversationRead marks every currently-unread message in the
// conversation read for the user and tells their other devices.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error) {
	member, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, ErrNotAParticipant
	}

	count, err := s.msgRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.broker.Publish(ctx, broker.UserChannel(userID), models.EventConversationRead, models.ConversationReadEvent{
			ConversationID: conversationID,
			UserID:         userID,
			ReadAt:         time.Now().UTC(),
		})
	}
	return count, nil
}

// UnreadCount returns the user's unread count in a conversation.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	return s.msgRepo.UnreadCount(ctx, conversationID, userID)
}

// Receipts returns who has read a message. Only active participants of the
// message's conversation may look.
func (s *MessageService) Receipts(ctx context.Context, messageID, userID int) ([]models.ReadMarker, error) {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	member, err := s.convRepo.IsActiveParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAParticipant
	}
	return s.msgRepo.ReadMarkers(ctx, messageID)
}

// History returns an ordered page of messages for an active participant,
// enriched with reactions and resolved sender names.
func (s *MessageService) History(ctx context.Context, conversationID, userID int, limit int, before *time.Time) ([]models.Message, error) {
	member, err := s.convRepo.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAParticipant
	}

	msgs, err := s.msgRepo.ListPage(ctx, conversationID, limit, before)
	if err != nil || len(msgs) == 0 {
		return msgs, err
	}
	return s.enrich(ctx, msgs)
}

// enrich attaches reactions and sender display names to a page of messages.
// Enrichment failures degrade to the bare page rather than failing the read.
func (s *MessageService) enrich(ctx context.Context, msgs []models.Message) ([]models.Message, error) {
	messageIDs := make([]int, 0, len(msgs))
	senderSet := make(map[int]struct{})
	for _, m := range msgs {
		messageIDs = append(messageIDs, m.ID)
		senderSet[m.SenderID] = struct{}{}
	}
	senderIDs := make([]int, 0, len(senderSet))
	for id := range senderSet {
		senderIDs = append(senderIDs, id)
	}

	byMessage := make(map[int][]models.Reaction)
	if reactions, err := s.msgRepo.ListReactions(ctx, messageIDs); err != nil {
		log.Printf("reaction lookup failed: %v", err)
	} else {
		for _, r := range reactions {
			byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
		}
	}

	names := make(map[int]string)
	if users, err := s.users.BulkGet(ctx, senderIDs); err != nil {
		log.Printf("sender lookup failed: %v", err)
	} else {
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	for i := range msgs {
		msgs[i].Reactions = byMessage[msgs[i].ID]
		msgs[i].SenderName = names[msgs[i].SenderID]
	}
	return msgs, nil
}

func messageEvent(msg models.Message) models.MessageEvent {
	return models.MessageEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		ReplyToID:      msg.ReplyToID,
		Attachments:    msg.Attachments,
		IsEdited:       msg.IsEdited,
		IsDeleted:      msg.IsDeleted,
		CreatedAt:      msg.CreatedAt,
	}
}

// preview truncates content for notification text.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}
