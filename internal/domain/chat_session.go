package domain

import "time"

// ChatSession agrupa mensajes del asistente dentro de un workspace/solution.
type ChatSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	SolutionID  string    `json:"solution_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
