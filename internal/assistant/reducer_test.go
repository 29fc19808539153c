package assistant

import (
	"fmt"
	"testing"
	"time"
)

func newTestReducer() *Reducer {
	r := NewReducer()
	r.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestReducerAccumulatesTraceInOrder(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("analyze my tables")

	const n = 5
	for i := 0; i < n; i++ {
		if _, done := r.Apply(Classify([]byte(fmt.Sprintf(`{"AITrace":"step %d"}`, i)))); done {
			t.Fatalf("trace frame %d should not finalize the turn", i)
		}
	}
	if !r.Generating() {
		t.Fatalf("expected generating=true while streaming")
	}

	msg, done := r.Apply(Classify([]byte(`{"Metadata":{"IsComplete":true},"AIMessage":"Done"}`)))
	if !done {
		t.Fatalf("final frame should close the turn")
	}
	if len(msg.Thinking) != n {
		t.Fatalf("expected %d thinking steps, got %d", n, len(msg.Thinking))
	}
	for i, step := range msg.Thinking {
		if step.Content != fmt.Sprintf("step %d", i) {
			t.Fatalf("thinking out of order at %d: %v", i, step.Content)
		}
	}
	if r.Generating() {
		t.Fatalf("expected generating=false after final frame")
	}
	if r.PendingTraceLen() != 0 {
		t.Fatalf("trace buffer not cleared after final frame")
	}
}

func TestReducerFinalWithoutTraceHasNilThinking(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("hola")

	msg, done := r.Apply(Classify([]byte(`{"Metadata":{"IsComplete":true},"AIMessage":"Done"}`)))
	if !done {
		t.Fatalf("expected finalized message")
	}
	if msg.Thinking != nil {
		t.Fatalf("expected nil thinking when no trace arrived, got %v", msg.Thinking)
	}
	if !msg.IsCompleted || msg.Sender != "ai" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestReducerEndToEndScenario(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("build me a dashboard")

	frames := []string{
		`{"AITrace":"Outlining"}`,
		`{"AITrace":"Mapping"}`,
		`{"AIMessage":"Done","Metadata":{"IsComplete":true}}`,
	}
	var final []string
	for _, raw := range frames {
		if msg, done := r.Apply(Classify([]byte(raw))); done {
			final = append(final, msg.Content.(string))
			if len(msg.Thinking) != 2 {
				t.Fatalf("expected 2 thinking steps, got %d", len(msg.Thinking))
			}
			if msg.Thinking[0].Content != "Outlining" || msg.Thinking[1].Content != "Mapping" {
				t.Fatalf("unexpected thinking: %v", msg.Thinking)
			}
		}
	}
	if len(final) != 1 || final[0] != "Done" {
		t.Fatalf("expected one final message 'Done', got %v", final)
	}
	if r.Generating() {
		t.Fatalf("expected generating=false after the turn")
	}
	// user + ai
	if len(r.Messages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(r.Messages()))
	}
}

func TestReducerCancelDiscardsPartialTurn(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("hi")
	before := len(r.Messages())

	if _, done := r.Apply(Classify([]byte(`{"AITrace":"step1"}`))); done {
		t.Fatalf("trace frame should not finalize")
	}
	r.Cancel()

	if len(r.Messages()) != before {
		t.Fatalf("cancel must not synthesize a partial message")
	}
	if r.PendingTraceLen() != 0 {
		t.Fatalf("cancel must clear the trace buffer")
	}
	if r.Generating() {
		t.Fatalf("cancel must reset generating")
	}
}

func TestReducerFallbackFrameFinalizesDirectly(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("hi")

	msg, done := r.Apply(Classify([]byte(`{"response":"legacy answer"}`)))
	if !done {
		t.Fatalf("fallback frame should finalize immediately")
	}
	if msg.Content != "legacy answer" || msg.Thinking != nil {
		t.Fatalf("unexpected fallback message: %+v", msg)
	}
	if r.Generating() {
		t.Fatalf("expected generating=false after fallback message")
	}
}

func TestReducerControlAndDiscardAreNoOps(t *testing.T) {
	r := newTestReducer()
	r.AppendUserMessage("hi")
	r.Apply(Classify([]byte(`{"AITrace":"step"}`)))

	for _, raw := range []string{`{"message":"Endpoint request timed out"}`, "  "} {
		if _, done := r.Apply(Classify([]byte(raw))); done {
			t.Fatalf("frame %q must not finalize", raw)
		}
	}
	if r.PendingTraceLen() != 1 {
		t.Fatalf("no-op frames must not touch the trace buffer")
	}
	if !r.Generating() {
		t.Fatalf("no-op frames must not reset generating")
	}
}

func TestReducerAssignsSequentialIDs(t *testing.T) {
	r := newTestReducer()
	first := r.AppendUserMessage("one")
	msg, _ := r.Apply(Classify([]byte(`{"AIMessage":"two"}`)))
	second := r.AppendUserMessage("three")

	if first.ID != 1 || msg.ID != 2 || second.ID != 3 {
		t.Fatalf("expected sequential ids 1,2,3 got %d,%d,%d", first.ID, msg.ID, second.ID)
	}
}
