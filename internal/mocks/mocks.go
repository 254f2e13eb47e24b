package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/broker"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateDirect(ctx context.Context, creatorID, otherID int) (models.Conversation, bool, error) {
	args := m.Called(ctx, creatorID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, kind models.ConversationKind, creatorID int, participantIDs []int, meta models.ConversationMeta) (models.Conversation, error) {
	args := m.Called(ctx, kind, creatorID, participantIDs, meta)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) GetParticipant(ctx context.Context, conversationID, userID int) (models.Participant, error) {
	args := m.Called(ctx, conversationID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ConversationRepositoryMock) IsActiveParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ActiveParticipantIDs(ctx context.Context, conversationID int) ([]int, error) {
	args := m.Called(ctx, conversationID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) AddParticipant(ctx context.Context, conversationID, userID int, isAdmin bool) error {
	args := m.Called(ctx, conversationID, userID, isAdmin)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) DeactivateParticipant(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UpdateLastMessage(ctx context.Context, conversationID, messageID int, at time.Time) error {
	args := m.Called(ctx, conversationID, messageID, at)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) Deactivate(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetSettings(ctx context.Context, conversationID int) (models.ConversationSettings, error) {
	args := m.Called(ctx, conversationID)
	var settings models.ConversationSettings
	if val := args.Get(0); val != nil {
		settings = val.(models.ConversationSettings)
	}
	return settings, args.Error(1)
}

func (m *ConversationRepositoryMock) SetNotificationsEnabled(ctx context.Context, conversationID int, enabled bool) (models.ConversationSettings, error) {
	args := m.Called(ctx, conversationID, enabled)
	var settings models.ConversationSettings
	if val := args.Get(0); val != nil {
		settings = val.(models.ConversationSettings)
	}
	return settings, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID int, content string, typ models.MessageType, attachments json.RawMessage, replyToID *int) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content, typ, attachments, replyToID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, conversationID int, limit int, before *time.Time) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, before)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkEdited(ctx context.Context, messageID int, newContent string) (models.Message, error) {
	args := m.Called(ctx, messageID, newContent)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Tombstone(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID, userID int, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListReactions(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

func (m *MessageRepositoryMock) ReadMarkers(ctx context.Context, messageID int) ([]models.ReadMarker, error) {
	args := m.Called(ctx, messageID)
	var markers []models.ReadMarker
	if val := args.Get(0); val != nil {
		markers = val.([]models.ReadMarker)
	}
	return markers, args.Error(1)
}

func (m *MessageRepositoryMock) UpsertReadMarker(ctx context.Context, messageID, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, in repositories.NotificationInsert) (models.Notification, error) {
	args := m.Called(ctx, in)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) Get(ctx context.Context, notificationID int) (models.Notification, error) {
	args := m.Called(ctx, notificationID)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID int) (bool, error) {
	args := m.Called(ctx, notificationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) UnreadCount(ctx context.Context, userID int, category *models.NotificationCategory) (int, error) {
	args := m.Called(ctx, userID, category)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, now, limit)
	var claimed []models.Notification
	if val := args.Get(0); val != nil {
		claimed = val.([]models.Notification)
	}
	return claimed, args.Error(1)
}

func (m *NotificationRepositoryMock) PurgeExpired(ctx context.Context, readBefore time.Time) (int, error) {
	args := m.Called(ctx, readBefore)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) GetPreference(ctx context.Context, userID int, category models.NotificationCategory) (models.NotificationPreference, error) {
	args := m.Called(ctx, userID, category)
	var pref models.NotificationPreference
	if val := args.Get(0); val != nil {
		pref = val.(models.NotificationPreference)
	}
	return pref, args.Error(1)
}

func (m *NotificationRepositoryMock) UpsertPreference(ctx context.Context, pref models.NotificationPreference) error {
	args := m.Called(ctx, pref)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) GetTemplate(ctx context.Context, typ string) (models.NotificationTemplate, error) {
	args := m.Called(ctx, typ)
	var tpl models.NotificationTemplate
	if val := args.Get(0); val != nil {
		tpl = val.(models.NotificationTemplate)
	}
	return tpl, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var u models.User
	if val := args.Get(0); val != nil {
		u = val.(models.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) BulkGet(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

// BrokerMock records published events for assertions.
type BrokerMock struct {
	mock.Mock
}

func (m *BrokerMock) Publish(ctx context.Context, channel, event string, payload any) {
	m.Called(ctx, channel, event, payload)
}

func (m *BrokerMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ broker.Broker = (*BrokerMock)(nil)
