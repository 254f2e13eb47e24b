package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for messages, reactions and read
// markers.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content string, typ models.MessageType, attachments json.RawMessage, replyToID *int) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListPage(ctx context.Context, conversationID int, limit int, before *time.Time) ([]models.Message, error)
	MarkEdited(ctx context.Context, messageID int, newContent string) (models.Message, error)
	Tombstone(ctx context.Context, messageID int) (models.Message, error)
	UpsertReaction(ctx context.Context, messageID, userID int, emoji string) error
	DeleteReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageIDs []int) ([]models.Reaction, error)
	UpsertReadMarker(ctx context.Context, messageID, userID int) error
	ReadMarkers(ctx context.Context, messageID int) ([]models.ReadMarker, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error)
	UnreadCount(ctx context.Context, conversationID, userID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, type, attachments, reply_to_id,
    is_edited, edited_at, is_deleted, deleted_at, created_at`

// Create stores a message and moves the conversation summary pointer in one
// transaction.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content string, typ models.MessageType, attachments json.RawMessage, replyToID *int) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, type, attachments, reply_to_id)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		conversationID, senderID, content, typ, attachments, replyToID).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_id=$2, last_message_at=$3, updated_at=NOW() WHERE id=$1`,
		conversationID, msg.ID, msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListPage returns an ordered page of messages. Ordering is by persisted
// creation time with the id as tiebreaker, never by delivery order.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID int, limit int, before *time.Time) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var msgs []models.Message
	var err error
	if before != nil {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE conversation_id=$1 AND created_at < $2
             ORDER BY created_at DESC, id DESC LIMIT $3`,
			conversationID, *before, limit)
	} else {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE conversation_id=$1
             ORDER BY created_at DESC, id DESC LIMIT $2`,
			conversationID, limit)
	}
	return msgs, err
}

// MarkEdited updates content and stamps the edit fields.
func (r *MessageRepo) MarkEdited(ctx context.Context, messageID int, newContent string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$2, is_edited=TRUE, edited_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns,
		messageID, newContent).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Tombstone soft-deletes a message, replacing its content with the fixed
// placeholder. The row is never physically removed.
func (r *MessageRepo) Tombstone(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$2, is_deleted=TRUE, deleted_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns,
		messageID, models.DeletedPlaceholder).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpsertReaction records a reaction. The composite primary key makes a
// concurrent double-click collapse into a single row.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID, userID int, emoji string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO UPDATE SET created_at = message_reactions.created_at`,
		messageID, userID, emoji)
	if isForeignKeyViolation(err) {
		return ErrMessageNotFound
	}
	return err
}

// DeleteReaction removes a reaction and reports whether a row existed.
// Removing a nonexistent reaction is a no-op.
func (r *MessageRepo) DeleteReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// ListReactions returns the reactions for a batch of messages in one query.
func (r *MessageRepo) ListReactions(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return []models.Reaction{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT message_id, user_id, emoji, created_at FROM message_reactions
         WHERE message_id IN (?) ORDER BY created_at ASC`, messageIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var reactions []models.Reaction
	err = r.db.SelectContext(ctx, &reactions, query, args...)
	return reactions, err
}

// UpsertReadMarker records that a user has seen a message. Re-marking an
// already-read message only touches read_at.
func (r *MessageRepo) UpsertReadMarker(ctx context.Context, messageID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_read_markers (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = NOW()`,
		messageID, userID)
	if isForeignKeyViolation(err) {
		return ErrMessageNotFound
	}
	return err
}

// ReadMarkers returns who has read a message, oldest read first.
func (r *MessageRepo) ReadMarkers(ctx context.Context, messageID int) ([]models.ReadMarker, error) {
	var markers []models.ReadMarker
	err := r.db.SelectContext(ctx, &markers,
		`SELECT message_id, user_id, read_at FROM message_read_markers
         WHERE message_id=$1 ORDER BY read_at ASC`, messageID)
	return markers, err
}

// MarkConversationRead upserts a read marker for every currently-unread
// message the user has in the conversation, in one pass. Returns the number
// of messages marked.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, userID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO message_read_markers (message_id, user_id)
         SELECT m.id, $2 FROM messages m
         WHERE m.conversation_id=$1 AND m.sender_id<>$2
           AND NOT EXISTS (SELECT 1 FROM message_read_markers rm WHERE rm.message_id=m.id AND rm.user_id=$2)
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// UnreadCount counts messages in the conversation the user has not read. A
// message is unread iff the user is not the sender and no marker row exists;
// tombstones are excluded.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         WHERE m.conversation_id=$1 AND m.sender_id<>$2 AND m.is_deleted=FALSE
           AND NOT EXISTS (SELECT 1 FROM message_read_markers rm WHERE rm.message_id=m.id AND rm.user_id=$2)`,
		conversationID, userID)
	return count, err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
