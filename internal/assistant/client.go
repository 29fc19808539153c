package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"console-gw/internal/domain"
)

// sendMessageRequest es el frame saliente hacia el backend del asistente.
type sendMessageRequest struct {
	Action      string `json:"action"`
	UserMessage string `json:"userMessage"`
	WorkspaceID string `json:"workspaceid"`
	SolutionID  string `json:"solutionid"`
}

// Event notifica el resultado de procesar un frame entrante.
// Message queda seteado solo cuando el frame cerró el turno.
type Event struct {
	Frame      Frame
	Message    *domain.ChatMessage
	Generating bool
}

// Streamer abstrae la conexión de streaming para testear la orquestación sin socket.
type Streamer interface {
	Send(userMessage, workspaceID, solutionID string) error
	Events() <-chan Event
	Close() error
}

// Client implementa Streamer sobre una conexión WebSocket al backend del asistente.
type Client struct {
	conn      *websocket.Conn
	logger    *zap.Logger
	reducer   *Reducer
	events    chan Event
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial abre la conexión y arranca el loop de lectura.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial assistant: %w", err)
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		reducer: NewReducer(),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Send(userMessage, workspaceID, solutionID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(sendMessageRequest{
		Action:      "sendMessage",
		UserMessage: userMessage,
		WorkspaceID: workspaceID,
		SolutionID:  solutionID,
	})
}

func (c *Client) Events() <-chan Event { return c.events }

// Close es la única vía de cancelación de un turno en curso: cierra el
// transporte, el loop de lectura termina y la traza parcial se descarta.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.reducer.Cancel()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("assistant stream closed", zap.Error(err))
			}
			return
		}

		frame := Classify(raw)
		if frame.Kind == FrameDiscard || frame.Kind == FrameControl {
			continue
		}

		msg, done := c.reducer.Apply(frame)
		ev := Event{Frame: frame, Generating: c.reducer.Generating()}
		if done {
			finalized := msg
			ev.Message = &finalized
		}

		// Si el consumidor abandonó el turno, Close destraba el envío.
		select {
		case c.events <- ev:
		case <-c.done:
			c.reducer.Cancel()
			return
		}
	}
}
