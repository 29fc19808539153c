package domain

import "time"

// Valores de sender para mensajes del asistente.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// ThinkingStep es un fragmento incremental de traza del asistente.
// Content puede ser un string o un objeto estructurado.
type ThinkingStep struct {
	ID        int       `json:"id"`
	Content   any       `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage es una unidad de conversación con el asistente.
type ChatMessage struct {
	ID          int            `json:"id"`
	Sender      string         `json:"sender"`
	Content     any            `json:"content"`
	Timestamp   time.Time      `json:"timestamp"`
	Thinking    []ThinkingStep `json:"thinking,omitempty"`
	IsCompleted bool           `json:"is_completed,omitempty"`
	ChatID      string         `json:"chat_id,omitempty"`
}
