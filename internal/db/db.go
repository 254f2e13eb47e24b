package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            display_name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id SERIAL PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('DIRECT', 'GROUP', 'PROJECT')),
            name TEXT,
            description TEXT,
            avatar_url TEXT,
            project_ref TEXT,
            direct_key TEXT,
            last_message_id INT,
            last_message_at TIMESTAMPTZ,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		// Partial so a deactivated DIRECT pair can get a fresh conversation.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_direct_key_active
            ON conversations (direct_key) WHERE is_active;`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            is_admin BOOLEAN NOT NULL DEFAULT FALSE,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            left_at TIMESTAMPTZ,
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_settings (
            conversation_id INT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
            notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            content TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT 'TEXT',
            attachments JSONB,
            reply_to_id INT REFERENCES messages(id),
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
            ON messages (conversation_id, created_at, id);`,
		`CREATE TABLE IF NOT EXISTS message_reactions (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            emoji TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, user_id, emoji)
        );`,
		`CREATE TABLE IF NOT EXISTS message_read_markers (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id SERIAL PRIMARY KEY,
            user_id INT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            data JSONB,
            priority TEXT NOT NULL DEFAULT 'NORMAL',
            category TEXT NOT NULL,
            sender_id INT,
            action_url TEXT,
            action_text TEXT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ,
            expires_at TIMESTAMPTZ,
            scheduled_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
            ON notifications (user_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_scheduled
            ON notifications (scheduled_at) WHERE scheduled_at IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
            user_id INT NOT NULL,
            category TEXT NOT NULL,
            in_app_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            email_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
            sms_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            digest_frequency TEXT NOT NULL DEFAULT 'immediate',
            quiet_hours_start TEXT,
            quiet_hours_end TEXT,
            timezone TEXT NOT NULL DEFAULT 'UTC',
            PRIMARY KEY (user_id, category)
        );`,
		`CREATE TABLE IF NOT EXISTS notification_templates (
            type TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            action_url TEXT,
            action_text TEXT,
            priority TEXT NOT NULL DEFAULT 'NORMAL',
            category TEXT NOT NULL
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	if err := seedTemplates(db); err != nil {
		return err
	}

	log.Println("database migrations applied")
	return nil
}

// seedTemplates inserts the built-in notification templates. A deployment may
// edit the rows afterwards; the seed never overwrites existing ones.
func seedTemplates(db *sqlx.DB) error {
	seeds := []struct {
		typ, title, message, actionURL, actionText, priority, category string
	}{
		{"message_received", "New message from {{senderName}}", "{{preview}}", "/chat/{{conversationId}}", "Open chat", "NORMAL", "MESSAGE"},
		{"conversation_added", "{{actorName}} added you to a conversation", "You were added to {{conversationName}}", "/chat/{{conversationId}}", "Open chat", "NORMAL", "MESSAGE"},
		{"connection_request", "{{actorName}} wants to connect", "{{actorName}} sent you a connection request", "/connections/requests", "View request", "NORMAL", "CONNECTION"},
		{"connection_accepted", "{{actorName}} accepted your request", "You are now connected with {{actorName}}", "/profile/{{actorId}}", "View profile", "NORMAL", "CONNECTION"},
		{"mention", "{{actorName}} mentioned you", "{{actorName}} mentioned you: {{preview}}", "/chat/{{conversationId}}", "Open chat", "HIGH", "MENTION"},
		{"project_invitation", "Invitation to {{projectName}}", "{{actorName}} invited you to join {{projectName}}", "/projects/{{projectId}}", "View project", "NORMAL", "PROJECT"},
		{"system_announcement", "{{title}}", "{{body}}", "", "", "NORMAL", "SYSTEM"},
	}

	for _, s := range seeds {
		_, err := db.Exec(`INSERT INTO notification_templates (type, title, message, action_url, action_text, priority, category)
            VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
            ON CONFLICT (type) DO NOTHING`,
			s.typ, s.title, s.message, s.actionURL, s.actionText, s.priority, s.category)
		if err != nil {
			return err
		}
	}
	return nil
}
