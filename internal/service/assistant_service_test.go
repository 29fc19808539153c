package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"console-gw/internal/assistant"
	"console-gw/internal/domain"
)

type fakeSessionRepo struct {
	sessions map[string]domain.ChatSession
}

func (f *fakeSessionRepo) Create(_ context.Context, session domain.ChatSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (domain.ChatSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return domain.ChatSession{}, pgx.ErrNoRows
	}
	return session, nil
}

func (f *fakeSessionRepo) ListByUser(_ context.Context, userID string) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type storedMessage struct {
	sessionID string
	msg       domain.ChatMessage
}

type fakeMessageRepo struct {
	appended []storedMessage
}

func (f *fakeMessageRepo) Append(_ context.Context, sessionID string, msg domain.ChatMessage) (domain.ChatMessage, error) {
	msg.ChatID = fmt.Sprintf("chat-%d", len(f.appended)+1)
	f.appended = append(f.appended, storedMessage{sessionID: sessionID, msg: msg})
	return msg, nil
}

func (f *fakeMessageRepo) ListBySession(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	for _, s := range f.appended {
		if s.sessionID == sessionID {
			out = append(out, s.msg)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) GetThinking(_ context.Context, chatID string) ([]domain.ThinkingStep, error) {
	for _, s := range f.appended {
		if s.msg.ChatID == chatID {
			return s.msg.Thinking, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeStreamer struct {
	events          chan assistant.Event
	sentMessage     string
	sentWorkspaceID string
	sentSolutionID  string
	closed          bool
}

// newFakeStreamer entrega los eventos dados y luego cierra el canal.
func newFakeStreamer(events ...assistant.Event) *fakeStreamer {
	ch := make(chan assistant.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeStreamer{events: ch}
}

func (f *fakeStreamer) Send(userMessage, workspaceID, solutionID string) error {
	f.sentMessage = userMessage
	f.sentWorkspaceID = workspaceID
	f.sentSolutionID = solutionID
	return nil
}

func (f *fakeStreamer) Events() <-chan assistant.Event { return f.events }

func (f *fakeStreamer) Close() error {
	f.closed = true
	return nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fakeContextRepo struct {
	snippets []domain.ContextSnippet
}

func (f *fakeContextRepo) Create(_ context.Context, snippet domain.ContextSnippet) error {
	f.snippets = append(f.snippets, snippet)
	return nil
}

func (f *fakeContextRepo) Search(_ context.Context, _ string, _ pgvector.Vector, k int) ([]domain.ContextSnippet, error) {
	if k > len(f.snippets) {
		k = len(f.snippets)
	}
	return f.snippets[:k], nil
}

func newTestAssistantService(t *testing.T, stream *fakeStreamer, limiter SendRateLimiter) (*AssistantService, *fakeSessionRepo, *fakeMessageRepo) {
	t.Helper()
	sessions := &fakeSessionRepo{sessions: map[string]domain.ChatSession{
		"s1": {ID: "s1", UserID: "user-1", WorkspaceID: "ws-1", SolutionID: "sol-1", CreatedAt: time.Now().UTC()},
	}}
	messages := &fakeMessageRepo{}
	dial := func(_ context.Context) (assistant.Streamer, error) { return stream, nil }
	svc := NewAssistantService(zap.NewNop(), sessions, messages, nil, nil, limiter, dial)
	return svc, sessions, messages
}

func TestStreamMessageFullTurn(t *testing.T) {
	final := domain.ChatMessage{
		Sender:  domain.SenderAI,
		Content: "Done",
		Thinking: []domain.ThinkingStep{
			{ID: 1, Content: "Outlining"},
			{ID: 2, Content: "Mapping"},
		},
		IsCompleted: true,
	}
	stream := newFakeStreamer(
		assistant.Event{Generating: true},
		assistant.Event{Message: &final, Generating: false},
	)
	svc, _, messages := newTestAssistantService(t, stream, allowAllLimiter{})

	var seen int
	got, err := svc.StreamMessage(context.Background(), "s1", "build a report", func(assistant.Event) { seen++ })
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", seen)
	}
	if got.Sender != domain.SenderAI || got.Content != "Done" {
		t.Fatalf("unexpected final message: %+v", got)
	}
	if got.ID != 2 {
		t.Fatalf("expected assistant message to follow the user message, got id %d", got.ID)
	}
	if len(got.Thinking) != 2 {
		t.Fatalf("expected thinking preserved, got %v", got.Thinking)
	}

	if len(messages.appended) != 2 {
		t.Fatalf("expected user and assistant messages persisted, got %d", len(messages.appended))
	}
	userMsg := messages.appended[0].msg
	if userMsg.Sender != domain.SenderUser || userMsg.Content != "build a report" || userMsg.ID != 1 {
		t.Fatalf("unexpected persisted user message: %+v", userMsg)
	}
	if stream.sentWorkspaceID != "ws-1" || stream.sentSolutionID != "sol-1" {
		t.Fatalf("expected session routing forwarded, got ws=%q sol=%q", stream.sentWorkspaceID, stream.sentSolutionID)
	}
	if !stream.closed {
		t.Fatalf("expected stream closed after the turn")
	}

	steps, err := svc.GetThinking(context.Background(), messages.appended[1].msg.ChatID)
	if err != nil {
		t.Fatalf("GetThinking returned error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected lazy thinking lookup to return 2 steps, got %d", len(steps))
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	stream := newFakeStreamer()
	svc, _, messages := newTestAssistantService(t, stream, denyAllLimiter{})

	if _, err := svc.SendMessage(context.Background(), "s1", "hello"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(messages.appended) != 0 {
		t.Fatalf("rate limited turn must not persist anything, got %d messages", len(messages.appended))
	}
}

func TestSendMessageSessionNotFound(t *testing.T) {
	svc, _, _ := newTestAssistantService(t, newFakeStreamer(), allowAllLimiter{})
	if _, err := svc.SendMessage(context.Background(), "missing", "hello"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStreamMessageClosedWithoutFinal(t *testing.T) {
	// El stream entrega una traza y se cierra sin mensaje final.
	stream := newFakeStreamer(assistant.Event{Generating: true})
	svc, _, messages := newTestAssistantService(t, stream, allowAllLimiter{})

	if _, err := svc.StreamMessage(context.Background(), "s1", "hello", nil); !errors.Is(err, ErrGenerationClosed) {
		t.Fatalf("expected ErrGenerationClosed, got %v", err)
	}
	// Solo el mensaje del usuario queda persistido; nada parcial del asistente.
	if len(messages.appended) != 1 || messages.appended[0].msg.Sender != domain.SenderUser {
		t.Fatalf("expected only the user message persisted, got %+v", messages.appended)
	}
}

func TestStreamMessageContextCancel(t *testing.T) {
	stream := &fakeStreamer{events: make(chan assistant.Event)}
	svc, _, _ := newTestAssistantService(t, stream, allowAllLimiter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.StreamMessage(ctx, "s1", "hello", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !stream.closed {
		t.Fatalf("expected transport closed on cancellation")
	}
}

func TestSendMessageEnrichesWithWorkspaceContext(t *testing.T) {
	final := domain.ChatMessage{Sender: domain.SenderAI, Content: "Done", IsCompleted: true}
	stream := newFakeStreamer(assistant.Event{Message: &final})
	svc, _, _ := newTestAssistantService(t, stream, allowAllLimiter{})
	svc.embedder = &fakeEmbedder{vec: []float32{0.1, 0.2}}
	svc.contexts = &fakeContextRepo{snippets: []domain.ContextSnippet{
		{ID: "c1", WorkspaceID: "ws-1", Content: "sales table lives in warehouse_a"},
	}}

	if _, err := svc.SendMessage(context.Background(), "s1", "where is the sales data?"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if !strings.Contains(stream.sentMessage, "Workspace context:") {
		t.Fatalf("expected context header in outbound message, got %q", stream.sentMessage)
	}
	if !strings.Contains(stream.sentMessage, "sales table lives in warehouse_a") {
		t.Fatalf("expected snippet in outbound message, got %q", stream.sentMessage)
	}
	if !strings.Contains(stream.sentMessage, "where is the sales data?") {
		t.Fatalf("expected original text preserved, got %q", stream.sentMessage)
	}
}

func TestAddContextSnippet(t *testing.T) {
	svc, _, _ := newTestAssistantService(t, newFakeStreamer(), allowAllLimiter{})
	contexts := &fakeContextRepo{}
	svc.embedder = &fakeEmbedder{vec: []float32{0.5, 0.5}}
	svc.contexts = contexts

	snippet, err := svc.AddContextSnippet(context.Background(), "ws-1", "  sales table lives in warehouse_a  ")
	if err != nil {
		t.Fatalf("AddContextSnippet returned error: %v", err)
	}
	if snippet.WorkspaceID != "ws-1" || snippet.Content != "sales table lives in warehouse_a" {
		t.Fatalf("unexpected snippet: %+v", snippet)
	}
	if snippet.ID == "" {
		t.Fatalf("expected snippet id assigned")
	}
	if len(contexts.snippets) != 1 {
		t.Fatalf("expected snippet persisted, got %d", len(contexts.snippets))
	}
	if contexts.snippets[0].Embedding.Slice() == nil {
		t.Fatalf("expected embedding stored with the snippet")
	}
}

func TestAddContextSnippetWithoutEmbedder(t *testing.T) {
	svc, _, _ := newTestAssistantService(t, newFakeStreamer(), allowAllLimiter{})
	if _, err := svc.AddContextSnippet(context.Background(), "ws-1", "anything"); !errors.Is(err, ErrEmbedderUnavailable) {
		t.Fatalf("expected ErrEmbedderUnavailable, got %v", err)
	}
}

func TestAddContextSnippetEmptyContent(t *testing.T) {
	svc, _, _ := newTestAssistantService(t, newFakeStreamer(), allowAllLimiter{})
	svc.embedder = &fakeEmbedder{vec: []float32{0.5}}
	svc.contexts = &fakeContextRepo{}
	if _, err := svc.AddContextSnippet(context.Background(), "ws-1", "   "); err == nil {
		t.Fatalf("expected error for empty content")
	}
}

func TestSendMessageEnrichDegradesOnEmbedError(t *testing.T) {
	final := domain.ChatMessage{Sender: domain.SenderAI, Content: "Done", IsCompleted: true}
	stream := newFakeStreamer(assistant.Event{Message: &final})
	svc, _, _ := newTestAssistantService(t, stream, allowAllLimiter{})
	svc.embedder = &fakeEmbedder{err: errors.New("embedding backend down")}
	svc.contexts = &fakeContextRepo{}

	if _, err := svc.SendMessage(context.Background(), "s1", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if stream.sentMessage != "hello" {
		t.Fatalf("expected degraded outbound message, got %q", stream.sentMessage)
	}
}
