package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"console-gw/internal/assistant"
	"console-gw/internal/service"
)

// StreamHandler expone el turno del asistente como WebSocket hacia el navegador.
type StreamHandler struct {
	logger        *zap.Logger
	assistantServ *service.AssistantService
	upgrader      websocket.Upgrader
}

func NewStreamHandler(logger *zap.Logger, assistantServ *service.AssistantService) *StreamHandler {
	return &StreamHandler{
		logger:        logger,
		assistantServ: assistantServ,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
	}
}

type streamInbound struct {
	UserMessage string `json:"userMessage"`
}

type streamOutbound struct {
	Type       string `json:"type"`
	Trace      any    `json:"trace,omitempty"`
	Message    any    `json:"message,omitempty"`
	Generating bool   `json:"generating"`
}

// streamWriter serializa escrituras concurrentes sobre la conexión del navegador.
type streamWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *streamWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// Stream maneja GET /chat/sessions/:id/stream. Cada mensaje entrante del
// navegador corre un turno; los eventos intermedios se reenvían tal como los
// produce el reducer. Cerrar el socket cancela el turno en curso.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := c.Param("id")
	writer := &streamWriter{conn: conn}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		var inbound streamInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			// navegador desconectado: cancelar el turno en curso
			cancel()
			return
		}
		if inbound.UserMessage == "" {
			continue
		}

		_, err := h.assistantServ.StreamMessage(ctx, sessionID, inbound.UserMessage, func(ev assistant.Event) {
			out := streamOutbound{Generating: ev.Generating}
			switch {
			case ev.Message != nil:
				out.Type = "message"
				out.Message = ev.Message
			default:
				out.Type = "trace"
				out.Trace = ev.Frame.Trace
			}
			if err := writer.writeJSON(out); err != nil {
				h.logger.Warn("stream write failed", zap.Error(err))
			}
		})
		if err != nil {
			errOut := map[string]any{"type": "error", "error": err.Error(), "generating": false}
			if writeErr := writer.writeJSON(errOut); writeErr != nil {
				return
			}
		}
	}
}
