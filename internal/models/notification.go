package models

import (
	"encoding/json"
	"time"
)

// NotificationCategory groups notifications for preference lookups.
type NotificationCategory string

const (
	CategoryMessage    NotificationCategory = "MESSAGE"
	CategoryConnection NotificationCategory = "CONNECTION"
	CategoryMention    NotificationCategory = "MENTION"
	CategoryProject    NotificationCategory = "PROJECT"
	CategorySystem     NotificationCategory = "SYSTEM"
)

// NotificationPriority orders client-side presentation.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
)

// Notification is a persisted in-app notification.
type Notification struct {
	ID          int                  `db:"id" json:"id"`
	UserID      int                  `db:"user_id" json:"user_id"`
	Type        string               `db:"type" json:"type"`
	Title       string               `db:"title" json:"title"`
	Message     string               `db:"message" json:"message"`
	Data        json.RawMessage      `db:"data" json:"data,omitempty"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	Category    NotificationCategory `db:"category" json:"category"`
	SenderID    *int                 `db:"sender_id" json:"sender_id,omitempty"`
	ActionURL   *string              `db:"action_url" json:"action_url,omitempty"`
	ActionText  *string              `db:"action_text" json:"action_text,omitempty"`
	IsRead      bool                 `db:"is_read" json:"is_read"`
	ReadAt      *time.Time           `db:"read_at" json:"read_at,omitempty"`
	ExpiresAt   *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	ScheduledAt *time.Time           `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
}

// NotificationPreference governs delivery per (user, category); suppression
// and deferral only, never content.
type NotificationPreference struct {
	UserID          int                  `db:"user_id" json:"user_id"`
	Category        NotificationCategory `db:"category" json:"category"`
	InAppEnabled    bool                 `db:"in_app_enabled" json:"in_app_enabled"`
	EmailEnabled    bool                 `db:"email_enabled" json:"email_enabled"`
	PushEnabled     bool                 `db:"push_enabled" json:"push_enabled"`
	SMSEnabled      bool                 `db:"sms_enabled" json:"sms_enabled"`
	DigestFrequency string               `db:"digest_frequency" json:"digest_frequency"`
	QuietHoursStart *string              `db:"quiet_hours_start" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *string              `db:"quiet_hours_end" json:"quiet_hours_end,omitempty"`
	Timezone        string               `db:"timezone" json:"timezone"`
}

// DefaultPreference is used when no row exists for (user, category).
func DefaultPreference(userID int, category NotificationCategory) NotificationPreference {
	return NotificationPreference{
		UserID:          userID,
		Category:        category,
		InAppEnabled:    true,
		EmailEnabled:    false,
		PushEnabled:     true,
		SMSEnabled:      false,
		DigestFrequency: "immediate",
		Timezone:        "UTC",
	}
}

// NotificationTemplate renders a notification for a known type. Title,
// message and action URL may carry {{var}} tokens.
type NotificationTemplate struct {
	Type       string               `db:"type" json:"type"`
	Title      string               `db:"title" json:"title"`
	Message    string               `db:"message" json:"message"`
	ActionURL  *string              `db:"action_url" json:"action_url,omitempty"`
	ActionText *string              `db:"action_text" json:"action_text,omitempty"`
	Priority   NotificationPriority `db:"priority" json:"priority"`
	Category   NotificationCategory `db:"category" json:"category"`
}
