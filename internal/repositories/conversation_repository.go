package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDuplicateMembership  = errors.New("user is already a member")
	ErrParticipantNotFound  = errors.New("participant not found")
)

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	CreateDirect(ctx context.Context, creatorID, otherID int) (models.Conversation, bool, error)
	CreateGroup(ctx context.Context, kind models.ConversationKind, creatorID int, participantIDs []int, meta models.ConversationMeta) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	GetParticipant(ctx context.Context, conversationID, userID int) (models.Participant, error)
	IsActiveParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	ActiveParticipantIDs(ctx context.Context, conversationID int) ([]int, error)
	AddParticipant(ctx context.Context, conversationID, userID int, isAdmin bool) error
	DeactivateParticipant(ctx context.Context, conversationID, userID int) error
	UpdateLastMessage(ctx context.Context, conversationID, messageID int, at time.Time) error
	Deactivate(ctx context.Context, conversationID int) error
	GetSettings(ctx context.Context, conversationID int) (models.ConversationSettings, error)
	SetNotificationsEnabled(ctx context.Context, conversationID int, enabled bool) (models.ConversationSettings, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// DirectKey is the canonical sorted-pair key that makes DIRECT conversations
// unique per unordered participant pair at the store layer.
func DirectKey(a, b int) string {
	pair := []int{a, b}
	sort.Ints(pair)
	return fmt.Sprintf("%d:%d", pair[0], pair[1])
}

const conversationColumns = `id, kind, name, description, avatar_url, project_ref, direct_key,
    last_message_id, last_message_at, is_active, created_at, updated_at`

// CreateDirect creates a DIRECT conversation between two users, or returns
// the existing one. The partial unique index on direct_key (active rows only)
// closes the lookup-then-create race: a concurrent duplicate insert surfaces
// as a unique violation and is read back as the existing row, while a
// deactivated pair can start over. The second return value reports whether a
// new conversation was created.
func (r *ConversationRepo) CreateDirect(ctx context.Context, creatorID, otherID int) (models.Conversation, bool, error) {
	key := DirectKey(creatorID, otherID)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1 AND is_active=TRUE`, key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, false, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, direct_key) VALUES ('DIRECT', $1) RETURNING `+conversationColumns, key).
		StructScan(&conv)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race; the winner's row is the conversation. The unique
			// index is partial on is_active, so the readback must match it.
			var existing models.Conversation
			if getErr := r.db.GetContext(ctx, &existing,
				`SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1 AND is_active=TRUE`, key); getErr != nil {
				return models.Conversation{}, false, getErr
			}
			return existing, false, nil
		}
		return models.Conversation{}, false, err
	}

	for _, p := range []struct {
		userID  int
		isAdmin bool
	}{{creatorID, true}, {otherID, false}} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, $3)`,
			conv.ID, p.userID, p.isAdmin); err != nil {
			return models.Conversation{}, false, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_settings (conversation_id) VALUES ($1)`, conv.ID); err != nil {
		return models.Conversation{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, false, err
	}
	return conv, true, nil
}

// CreateGroup persists a GROUP or PROJECT conversation with its participant
// rows and default settings in one transaction. The creator is flagged admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, kind models.ConversationKind, creatorID int, participantIDs []int, meta models.ConversationMeta) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, name, description, avatar_url, project_ref)
         VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
         RETURNING `+conversationColumns,
		kind, meta.Name, meta.Description, meta.AvatarURL, meta.ProjectRef).
		StructScan(&conv)
	if err != nil {
		return models.Conversation{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, TRUE)`,
		conv.ID, creatorID); err != nil {
		return models.Conversation{}, err
	}
	for _, id := range participantIDs {
		if id == creatorID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_settings (conversation_id) VALUES ($1)`, conv.ID); err != nil {
		return models.Conversation{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns active conversations the user actively participates in,
// most recently updated first, with the user's unread count per conversation.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.kind, c.name, c.description, c.avatar_url, c.project_ref, c.direct_key,
            c.last_message_id, c.last_message_at, c.is_active, c.created_at, c.updated_at,
            (SELECT COUNT(*) FROM messages m
             WHERE m.conversation_id=c.id AND m.sender_id<>$1 AND m.is_deleted=FALSE
               AND NOT EXISTS (SELECT 1 FROM message_read_markers rm
                               WHERE rm.message_id=m.id AND rm.user_id=$1)) AS unread_count
        FROM conversations c
        JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id=$1 AND p.is_active=TRUE AND c.is_active=TRUE
        ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`
	var convs []models.ConversationSummary
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}

// GetParticipant fetches a membership row regardless of its active flag.
func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationID, userID int) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p,
		`SELECT conversation_id, user_id, is_admin, is_active, joined_at, left_at
         FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// IsActiveParticipant checks active membership.
func (r *ConversationRepo) IsActiveParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants
         WHERE conversation_id=$1 AND user_id=$2 AND is_active=TRUE)`,
		conversationID, userID)
	return exists, err
}

// ActiveParticipantIDs returns the user ids of all active participants.
func (r *ConversationRepo) ActiveParticipantIDs(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM conversation_participants WHERE conversation_id=$1 AND is_active=TRUE`,
		conversationID)
	return ids, err
}

// AddParticipant inserts a membership row. A previously removed participant
// is reactivated; an active duplicate is reported as ErrDuplicateMembership.
func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, userID int, isAdmin bool) error {
	existing, err := r.GetParticipant(ctx, conversationID, userID)
	if err == nil {
		if existing.IsActive {
			return ErrDuplicateMembership
		}
		_, err = r.db.ExecContext(ctx,
			`UPDATE conversation_participants SET is_active=TRUE, left_at=NULL, joined_at=NOW()
             WHERE conversation_id=$1 AND user_id=$2`,
			conversationID, userID)
		return err
	}
	if !errors.Is(err, ErrParticipantNotFound) {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, $3)`,
		conversationID, userID, isAdmin)
	if isUniqueViolation(err) {
		return ErrDuplicateMembership
	}
	return err
}

// DeactivateParticipant soft-removes a membership row. Historical rows are
// retained for audit and history.
func (r *ConversationRepo) DeactivateParticipant(ctx context.Context, conversationID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversation_participants SET is_active=FALSE, left_at=NOW()
         WHERE conversation_id=$1 AND user_id=$2 AND is_active=TRUE`,
		conversationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// UpdateLastMessage moves the conversation summary pointer. Last write wins;
// the summary is a hint, not the source of truth for history.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_id=$2, last_message_at=$3, updated_at=NOW() WHERE id=$1`,
		conversationID, messageID, at)
	return err
}

// Deactivate logically destroys a conversation.
func (r *ConversationRepo) Deactivate(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, conversationID)
	return err
}

// GetSettings loads the conversation's settings row.
func (r *ConversationRepo) GetSettings(ctx context.Context, conversationID int) (models.ConversationSettings, error) {
	var settings models.ConversationSettings
	err := r.db.GetContext(ctx, &settings,
		`SELECT conversation_id, notifications_enabled, created_at
         FROM conversation_settings WHERE conversation_id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationSettings{}, ErrConversationNotFound
	}
	return settings, err
}

// SetNotificationsEnabled flips the conversation-level notification mute and
// returns the updated settings row.
func (r *ConversationRepo) SetNotificationsEnabled(ctx context.Context, conversationID int, enabled bool) (models.ConversationSettings, error) {
	var settings models.ConversationSettings
	err := r.db.QueryRowxContext(ctx,
		`UPDATE conversation_settings SET notifications_enabled=$2
         WHERE conversation_id=$1
         RETURNING conversation_id, notifications_enabled, created_at`,
		conversationID, enabled).
		StructScan(&settings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationSettings{}, ErrConversationNotFound
	}
	return settings, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
