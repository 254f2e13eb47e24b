package models

import (
	"encoding/json"
	"time"
)

// MessageType discriminates message content kinds.
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageFile   MessageType = "FILE"
	MessageSystem MessageType = "SYSTEM"
)

// DeletedPlaceholder replaces the content of tombstoned messages. The original
// text is unrecoverable once a message is deleted.
const DeletedPlaceholder = "This message was deleted"

// Message is a single message in a conversation. Deleted messages stay in
// place as tombstones so ordering and reply chains remain intact.
type Message struct {
	ID             int             `db:"id" json:"id"`
	ConversationID int             `db:"conversation_id" json:"conversation_id"`
	SenderID       int             `db:"sender_id" json:"sender_id"`
	Content        string          `db:"content" json:"content"`
	Type           MessageType     `db:"type" json:"type"`
	Attachments    json.RawMessage `db:"attachments" json:"attachments,omitempty"`
	ReplyToID      *int            `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsEdited       bool            `db:"is_edited" json:"is_edited"`
	EditedAt       *time.Time      `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted      bool            `db:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`

	// Populated on history reads, never stored on the row itself.
	SenderName string     `db:"-" json:"sender_name,omitempty"`
	Reactions  []Reaction `db:"-" json:"reactions,omitempty"`
}

// Reaction is a per-user emoji attached to a message, unique per
// (message, user, emoji).
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReadMarker proves a user has seen a message, unique per (message, user).
type ReadMarker struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// User is the read-mostly directory row owned by the rest of the platform;
// this service only resolves display names from it.
type User struct {
	ID          int    `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
}
