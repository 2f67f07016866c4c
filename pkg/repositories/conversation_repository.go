package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// ConversationRepository provides data access for analyst conversations and
// their messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *models.AnalystConversation) error
	GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, error)
	// ListConversations returns the subject's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, subject string, limit int) ([]*models.AnalystConversation, error)
	// Touch bumps a conversation's updated_at, setting the title if still empty.
	Touch(ctx context.Context, conversationID uuid.UUID, title string) error

	AddMessage(ctx context.Context, msg *models.AnalystMessage) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.AnalystMessage, error)
}

type conversationRepository struct{}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository() ConversationRepository {
	return &conversationRepository{}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) CreateConversation(ctx context.Context, conv *models.AnalystConversation) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	now := time.Now()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now

	query := `
		INSERT INTO engine_conversations (id, subject, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := scope.Conn.Exec(ctx, query,
		conv.ID, conv.Subject, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

func (r *conversationRepository) GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.AnalystConversation, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, subject, title, created_at, updated_at
		FROM engine_conversations
		WHERE id = $1`

	var conv models.AnalystConversation
	err := scope.Conn.QueryRow(ctx, query, conversationID).Scan(
		&conv.ID, &conv.Subject, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (r *conversationRepository) ListConversations(ctx context.Context, subject string, limit int) ([]*models.AnalystConversation, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, subject, title, created_at, updated_at
		FROM engine_conversations
		WHERE subject = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.AnalystConversation
	for rows.Next() {
		var conv models.AnalystConversation
		if err := rows.Scan(&conv.ID, &conv.Subject, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

func (r *conversationRepository) Touch(ctx context.Context, conversationID uuid.UUID, title string) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	query := `
		UPDATE engine_conversations
		SET updated_at = $2,
		    title = CASE WHEN title = '' THEN $3 ELSE title END
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query, conversationID, time.Now(), title)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *conversationRepository) AddMessage(ctx context.Context, msg *models.AnalystMessage) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()

	query := `
		INSERT INTO engine_messages (
			id, conversation_id, role, content, sql_query, verified_query_id,
			row_count, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := scope.Conn.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.SQL, msg.VerifiedQueryID,
		msg.RowCount, msg.DurationMs, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	return nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.AnalystMessage, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, conversation_id, role, content, sql_query, verified_query_id,
		       row_count, duration_ms, created_at
		FROM engine_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := scope.Conn.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.AnalystMessage
	for rows.Next() {
		var msg models.AnalystMessage
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.SQL, &msg.VerifiedQueryID,
			&msg.RowCount, &msg.DurationMs, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
