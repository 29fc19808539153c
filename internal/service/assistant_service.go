package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"console-gw/internal/assistant"
	"console-gw/internal/domain"
	"console-gw/internal/repository"
)

// DialFunc abre una conexión de streaming nueva para un turno.
type DialFunc func(ctx context.Context) (assistant.Streamer, error)

// Embedder calcula embeddings para la búsqueda de contexto del workspace.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	ErrSessionNotFound     = errors.New("chat session not found")
	ErrGenerationClosed    = errors.New("generation closed before completion")
	ErrEmbedderUnavailable = errors.New("embedding backend not configured")
)

// AssistantService orquesta un turno del asistente: persiste el mensaje del
// usuario, enriquece con contexto del workspace, abre el stream y persiste el
// mensaje final con su traza.
type AssistantService struct {
	logger   *zap.Logger
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	contexts repository.ContextSnippetRepository
	embedder Embedder
	limiter  SendRateLimiter
	dial     DialFunc
}

func NewAssistantService(
	logger *zap.Logger,
	sessions repository.ChatSessionRepository,
	messages repository.ChatMessageRepository,
	contexts repository.ContextSnippetRepository,
	embedder Embedder,
	limiter SendRateLimiter,
	dial DialFunc,
) *AssistantService {
	return &AssistantService{
		logger:   logger,
		sessions: sessions,
		messages: messages,
		contexts: contexts,
		embedder: embedder,
		limiter:  limiter,
		dial:     dial,
	}
}

func (s *AssistantService) CreateSession(ctx context.Context, userID, workspaceID, solutionID, title string) (domain.ChatSession, error) {
	session := domain.ChatSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		SolutionID:  solutionID,
		Title:       strings.TrimSpace(title),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.ChatSession{}, err
	}
	return session, nil
}

func (s *AssistantService) GetSession(ctx context.Context, id string) (domain.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatSession{}, ErrSessionNotFound
		}
		return domain.ChatSession{}, err
	}
	return session, nil
}

func (s *AssistantService) ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *AssistantService) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	return s.messages.ListBySession(ctx, sessionID)
}

// GetThinking recupera la traza de un mensaje de forma perezosa.
func (s *AssistantService) GetThinking(ctx context.Context, chatID string) ([]domain.ThinkingStep, error) {
	return s.messages.GetThinking(ctx, chatID)
}

// AddContextSnippet embebe e ingesta conocimiento del workspace para la
// búsqueda de contexto.
func (s *AssistantService) AddContextSnippet(ctx context.Context, workspaceID, content string) (domain.ContextSnippet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ContextSnippet{}, errors.New("empty snippet content")
	}
	if s.embedder == nil || s.contexts == nil {
		return domain.ContextSnippet{}, ErrEmbedderUnavailable
	}

	embed, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return domain.ContextSnippet{}, fmt.Errorf("embed snippet: %w", err)
	}

	snippet := domain.ContextSnippet{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Content:     content,
		Embedding:   pgvector.NewVector(embed),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.contexts.Create(ctx, snippet); err != nil {
		return domain.ContextSnippet{}, err
	}
	return snippet, nil
}

// SendMessage ejecuta un turno completo y devuelve el mensaje final del asistente.
func (s *AssistantService) SendMessage(ctx context.Context, sessionID, text string) (domain.ChatMessage, error) {
	return s.StreamMessage(ctx, sessionID, text, nil)
}

// StreamMessage ejecuta un turno reenviando cada evento intermedio a onEvent.
// Cancelar ctx cierra el transporte: la traza parcial se descarta y no se
// persiste ningún mensaje parcial.
func (s *AssistantService) StreamMessage(ctx context.Context, sessionID, text string, onEvent func(assistant.Event)) (domain.ChatMessage, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(session.UserID) {
		return domain.ChatMessage{}, ErrRateLimited
	}

	existing, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	userMsg := domain.ChatMessage{
		ID:          len(existing) + 1,
		Sender:      domain.SenderUser,
		Content:     text,
		Timestamp:   time.Now().UTC(),
		IsCompleted: true,
	}
	userMsg, err = s.messages.Append(ctx, sessionID, userMsg)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	outbound := s.enrich(ctx, session.WorkspaceID, text)

	stream, err := s.dial(ctx)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("open assistant stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Send(outbound, session.WorkspaceID, session.SolutionID); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("send message: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			stream.Close()
			return domain.ChatMessage{}, ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return domain.ChatMessage{}, ErrGenerationClosed
			}
			if onEvent != nil {
				onEvent(ev)
			}
			if ev.Message == nil {
				continue
			}
			final := *ev.Message
			final.ID = userMsg.ID + 1
			persisted, err := s.messages.Append(ctx, sessionID, final)
			if err != nil {
				s.logger.Error("persist assistant message failed", zap.Error(err))
				return final, nil
			}
			return persisted, nil
		}
	}
}

// enrich antepone snippets de contexto del workspace al mensaje saliente.
// Cualquier falla degrada al texto original.
func (s *AssistantService) enrich(ctx context.Context, workspaceID, text string) string {
	if s.embedder == nil || s.contexts == nil {
		return text
	}
	embed, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("context embed failed", zap.Error(err))
		return text
	}
	snippets, err := s.contexts.Search(ctx, workspaceID, pgvector.NewVector(embed), 3)
	if err != nil {
		s.logger.Warn("context search failed", zap.Error(err))
		return text
	}
	if len(snippets) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString("Workspace context:\n")
	for _, sn := range snippets {
		b.WriteString("- ")
		b.WriteString(sn.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(text)
	return b.String()
}
