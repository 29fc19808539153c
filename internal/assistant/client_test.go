package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// newTraceServer sirve una conexión WebSocket que escribe n frames de traza y
// luego queda a la espera de que el cliente cierre.
func newTraceServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < n; i++ {
			frame := fmt.Sprintf(`{"AITrace":"step %d"}`, i)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientCloseUnblocksReadLoop(t *testing.T) {
	// Más frames que la capacidad del canal de eventos, sin consumir ninguno.
	srv := newTraceServer(t, 40)
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// Dejar que el loop de lectura llene el buffer de eventos.
	time.Sleep(100 * time.Millisecond)

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Tras Close el loop de lectura debe terminar y cerrar el canal, aun con
	// eventos pendientes que nadie leyó.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-client.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("read loop still blocked after close")
		}
	}
}

func TestClientDeliversReducedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"AITrace":"Outlining"}`,
			`{"message":"Endpoint request timed out"}`,
			`{"AIMessage":"Done"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var events []Event
	deadline := time.After(2 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-client.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("expected 2 events, got %d", len(events))
		}
	}

	// El frame de control se suprime: trace y final, nada más.
	if events[0].Message != nil || events[0].Frame.Kind != FrameTrace {
		t.Fatalf("expected trace event first, got %+v", events[0])
	}
	final := events[1]
	if final.Message == nil || final.Message.Content != "Done" {
		t.Fatalf("expected final message event, got %+v", final)
	}
	if len(final.Message.Thinking) != 1 {
		t.Fatalf("expected 1 thinking step, got %v", final.Message.Thinking)
	}
	if final.Generating {
		t.Fatalf("expected generating=false after final frame")
	}
}
