package models

import "time"

// ConversationKind discriminates conversation flavors.
type ConversationKind string

const (
	ConversationDirect  ConversationKind = "DIRECT"
	ConversationGroup   ConversationKind = "GROUP"
	ConversationProject ConversationKind = "PROJECT"
)

// Conversation is a multi-party messaging thread.
type Conversation struct {
	ID            int              `db:"id" json:"id"`
	Kind          ConversationKind `db:"kind" json:"kind"`
	Name          *string          `db:"name" json:"name,omitempty"`
	Description   *string          `db:"description" json:"description,omitempty"`
	AvatarURL     *string          `db:"avatar_url" json:"avatar_url,omitempty"`
	ProjectRef    *string          `db:"project_ref" json:"project_ref,omitempty"`
	DirectKey     *string          `db:"direct_key" json:"-"`
	LastMessageID *int             `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time       `db:"last_message_at" json:"last_message_at,omitempty"`
	IsActive      bool             `db:"is_active" json:"is_active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Participant is a user's membership row in a conversation.
type Participant struct {
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	UserID         int        `db:"user_id" json:"user_id"`
	IsAdmin        bool       `db:"is_admin" json:"is_admin"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt         *time.Time `db:"left_at" json:"left_at,omitempty"`
}

// ConversationSettings is the per-conversation settings sub-record created
// alongside the conversation.
type ConversationSettings struct {
	ConversationID       int       `db:"conversation_id" json:"conversation_id"`
	NotificationsEnabled bool      `db:"notifications_enabled" json:"notifications_enabled"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// ConversationMeta carries optional fields supplied at creation time.
type ConversationMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	ProjectRef  string `json:"project_ref"`
}

// ConversationSummary is the per-user listing view of a conversation.
type ConversationSummary struct {
	Conversation
	UnreadCount int `db:"unread_count" json:"unread_count"`
}
