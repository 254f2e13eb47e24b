package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrTemplateNotFound     = errors.New("notification template not found")
)

// NotificationInsert carries the fields persisted for a new notification.
type NotificationInsert struct {
	UserID      int
	Type        string
	Title       string
	Message     string
	Data        json.RawMessage
	Priority    models.NotificationPriority
	Category    models.NotificationCategory
	SenderID    *int
	ActionURL   *string
	ActionText  *string
	ExpiresAt   *time.Time
	ScheduledAt *time.Time
}

// NotificationRepository abstracts notification, preference and template
// persistence.
type NotificationRepository interface {
	Create(ctx context.Context, in NotificationInsert) (models.Notification, error)
	Get(ctx context.Context, notificationID int) (models.Notification, error)
	List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int) (bool, error)
	MarkAllRead(ctx context.Context, userID int) (int, error)
	UnreadCount(ctx context.Context, userID int, category *models.NotificationCategory) (int, error)
	ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	PurgeExpired(ctx context.Context, readBefore time.Time) (int, error)
	GetPreference(ctx context.Context, userID int, category models.NotificationCategory) (models.NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref models.NotificationPreference) error
	GetTemplate(ctx context.Context, typ string) (models.NotificationTemplate, error)
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, title, message, data, priority, category,
    sender_id, action_url, action_text, is_read, read_at, expires_at, scheduled_at, created_at`

// Create persists a notification row.
func (r *NotificationRepo) Create(ctx context.Context, in NotificationInsert) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, data, priority, category,
            sender_id, action_url, action_text, expires_at, scheduled_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
         RETURNING `+notificationColumns,
		in.UserID, in.Type, in.Title, in.Message, in.Data, in.Priority, in.Category,
		in.SenderID, in.ActionURL, in.ActionText, in.ExpiresAt, in.ScheduledAt).
		StructScan(&n)
	return n, err
}

// Get fetches a notification by id.
func (r *NotificationRepo) Get(ctx context.Context, notificationID int) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// List returns the user's active (unexpired) notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
        WHERE user_id=$1 AND (expires_at IS NULL OR expires_at > NOW())`
	if unreadOnly {
		query += ` AND is_read=FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	var list []models.Notification
	err := r.db.SelectContext(ctx, &list, query, userID, limit)
	return list, err
}

// MarkRead flips is_read for the user's own notification. Conditioned on
// is_read=FALSE so re-invocation is a no-op; reports whether a row changed.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read=TRUE, read_at=NOW()
         WHERE id=$1 AND user_id=$2 AND is_read=FALSE`,
		notificationID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// MarkAllRead flips every unread notification for the user.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read=TRUE, read_at=NOW() WHERE user_id=$1 AND is_read=FALSE`,
		userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// UnreadCount counts unread, unexpired notifications, optionally per
// category.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID int, category *models.NotificationCategory) (int, error) {
	var count int
	if category != nil {
		err := r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM notifications
             WHERE user_id=$1 AND is_read=FALSE AND category=$2
               AND (expires_at IS NULL OR expires_at > NOW())`,
			userID, *category)
		return count, err
	}
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications
         WHERE user_id=$1 AND is_read=FALSE AND (expires_at IS NULL OR expires_at > NOW())`,
		userID)
	return count, err
}

// ClaimScheduled atomically takes ownership of notifications whose scheduled
// delivery slot has passed, clearing scheduled_at so no other instance
// delivers them again. SKIP LOCKED keeps concurrent sweepers from claiming
// the same rows.
func (r *NotificationRepo) ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryxContext(ctx,
		`UPDATE notifications SET scheduled_at=NULL
         WHERE id IN (
             SELECT id FROM notifications
             WHERE scheduled_at IS NOT NULL AND scheduled_at <= $1
             ORDER BY scheduled_at ASC
             LIMIT $2
             FOR UPDATE SKIP LOCKED
         )
         RETURNING `+notificationColumns,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.StructScan(&n); err != nil {
			return nil, err
		}
		claimed = append(claimed, n)
	}
	return claimed, rows.Err()
}

// PurgeExpired removes notifications that were read before the cutoff, plus
// any whose own expiry has passed regardless of read state.
func (r *NotificationRepo) PurgeExpired(ctx context.Context, readBefore time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
         WHERE (is_read=TRUE AND read_at < $1)
            OR (expires_at IS NOT NULL AND expires_at < NOW())`,
		readBefore)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// GetPreference loads the preference row, falling back to defaults when the
// user never configured the category.
func (r *NotificationRepo) GetPreference(ctx context.Context, userID int, category models.NotificationCategory) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := r.db.GetContext(ctx, &pref,
		`SELECT user_id, category, in_app_enabled, email_enabled, push_enabled, sms_enabled,
            digest_frequency, quiet_hours_start, quiet_hours_end, timezone
         FROM notification_preferences WHERE user_id=$1 AND category=$2`,
		userID, category)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreference(userID, category), nil
	}
	return pref, err
}

// UpsertPreference writes the preference row for (user, category).
func (r *NotificationRepo) UpsertPreference(ctx context.Context, pref models.NotificationPreference) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, category, in_app_enabled, email_enabled,
            push_enabled, sms_enabled, digest_frequency, quiet_hours_start, quiet_hours_end, timezone)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
         ON CONFLICT (user_id, category) DO UPDATE SET
            in_app_enabled=EXCLUDED.in_app_enabled,
            email_enabled=EXCLUDED.email_enabled,
            push_enabled=EXCLUDED.push_enabled,
            sms_enabled=EXCLUDED.sms_enabled,
            digest_frequency=EXCLUDED.digest_frequency,
            quiet_hours_start=EXCLUDED.quiet_hours_start,
            quiet_hours_end=EXCLUDED.quiet_hours_end,
            timezone=EXCLUDED.timezone`,
		pref.UserID, pref.Category, pref.InAppEnabled, pref.EmailEnabled,
		pref.PushEnabled, pref.SMSEnabled, pref.DigestFrequency,
		pref.QuietHoursStart, pref.QuietHoursEnd, pref.Timezone)
	return err
}

// GetTemplate loads the template row for a notification type. A missing
// template is a configuration defect and fails loudly.
func (r *NotificationRepo) GetTemplate(ctx context.Context, typ string) (models.NotificationTemplate, error) {
	var tpl models.NotificationTemplate
	err := r.db.GetContext(ctx, &tpl,
		`SELECT type, title, message, action_url, action_text, priority, category
         FROM notification_templates WHERE type=$1`, typ)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationTemplate{}, ErrTemplateNotFound
	}
	return tpl, err
}
