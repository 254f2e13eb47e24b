package models

import (
	"encoding/json"
	"time"
)

// Event names routed through the real-time broker.
const (
	EventMessageReceived      = "message_received"
	EventMessageEdited        = "message_edited"
	EventMessageDeleted       = "message_deleted"
	EventMessageReaction      = "message_reaction"
	EventConversationRead     = "conversation_read"
	EventNotificationReceived = "notification_received"
	EventNotificationRead     = "notification_read"
)

// MessageEvent is published on a conversation channel after a durable write.
// It carries enough for optimistic client rendering; clients reconcile order
// by timestamp, not by arrival order.
type MessageEvent struct {
	MessageID      int             `json:"message_id"`
	ConversationID int             `json:"conversation_id"`
	SenderID       int             `json:"sender_id"`
	Content        string          `json:"content"`
	Type           MessageType     `json:"type"`
	ReplyToID      *int            `json:"reply_to_id,omitempty"`
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	IsEdited       bool            `json:"is_edited,omitempty"`
	IsDeleted      bool            `json:"is_deleted,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReactionEvent carries an explicit add/remove discriminator so clients can
// apply the delta without re-fetching.
type ReactionEvent struct {
	MessageID      int       `json:"message_id"`
	ConversationID int       `json:"conversation_id"`
	UserID         int       `json:"user_id"`
	Emoji          string    `json:"emoji"`
	Action         string    `json:"action"` // "add" or "remove"
	OccurredAt     time.Time `json:"occurred_at"`
}

// ConversationReadEvent lets other devices of the same user reconcile badges.
type ConversationReadEvent struct {
	ConversationID int       `json:"conversation_id"`
	UserID         int       `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// NotificationEvent is published on the recipient's personal channel.
type NotificationEvent struct {
	NotificationID int                  `json:"notification_id"`
	UserID         int                  `json:"user_id"`
	Type           string               `json:"type"`
	Title          string               `json:"title"`
	Message        string               `json:"message"`
	Priority       NotificationPriority `json:"priority"`
	Category       NotificationCategory `json:"category"`
	SenderID       *int                 `json:"sender_id,omitempty"`
	ActionURL      *string              `json:"action_url,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// NotificationReadEvent reconciles badge counts across devices.
type NotificationReadEvent struct {
	NotificationID int       `json:"notification_id,omitempty"`
	UserID         int       `json:"user_id"`
	All            bool      `json:"all,omitempty"`
	ReadAt         time.Time `json:"read_at"`
}
