package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"console-gw/internal/domain"
)

// ChatMessageRepository persiste mensajes del asistente, incluida la traza
// de thinking serializada. La traza se recupera de forma perezosa por chat id.
type ChatMessageRepository interface {
	Append(ctx context.Context, sessionID string, msg domain.ChatMessage) (domain.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	GetThinking(ctx context.Context, chatID string) ([]domain.ThinkingStep, error)
}

type PgChatMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatMessageRepository(pool *pgxpool.Pool) *PgChatMessageRepository {
	return &PgChatMessageRepository{pool: pool}
}

func (r *PgChatMessageRepository) Append(ctx context.Context, sessionID string, msg domain.ChatMessage) (domain.ChatMessage, error) {
	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("marshal content: %w", err)
	}
	var thinkingJSON []byte
	if msg.Thinking != nil {
		thinkingJSON, err = json.Marshal(msg.Thinking)
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("marshal thinking: %w", err)
		}
	}

	msg.ChatID = uuid.NewString()

	const query = `
		INSERT INTO chat_messages (id, session_id, seq, sender, content, thinking, is_completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		msg.ChatID,
		sessionID,
		msg.ID,
		msg.Sender,
		contentJSON,
		thinkingJSON,
		msg.IsCompleted,
		msg.Timestamp,
	)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

func (r *PgChatMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	const query = `
		SELECT id, seq, sender, content, is_completed, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var contentJSON []byte
		if err := rows.Scan(
			&msg.ChatID,
			&msg.ID,
			&msg.Sender,
			&contentJSON,
			&msg.IsCompleted,
			&msg.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(contentJSON) > 0 {
			if err := json.Unmarshal(contentJSON, &msg.Content); err != nil {
				// contenido ilegible: degradar a texto crudo
				msg.Content = string(contentJSON)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *PgChatMessageRepository) GetThinking(ctx context.Context, chatID string) ([]domain.ThinkingStep, error) {
	const query = `
		SELECT thinking
		FROM chat_messages
		WHERE id = $1
	`
	var thinkingJSON []byte
	err := r.pool.QueryRow(ctx, query, chatID).Scan(&thinkingJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if len(thinkingJSON) == 0 {
		return nil, nil
	}
	var steps []domain.ThinkingStep
	if err := json.Unmarshal(thinkingJSON, &steps); err != nil {
		return nil, fmt.Errorf("unmarshal thinking: %w", err)
	}
	return steps, nil
}
