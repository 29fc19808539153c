package assistant

import (
	"time"

	"console-gw/internal/domain"
)

// Reducer pliega frames clasificados en el estado de una conversación:
// lista de mensajes finalizados, buffer transitorio de traza y flag de
// generación. No es seguro para uso concurrente: está confinado al loop
// de lectura del transporte, que entrega un frame a la vez.
type Reducer struct {
	messages   []domain.ChatMessage
	trace      []domain.ThinkingStep
	generating bool
	msgSeq     int
	stepSeq    int
	now        func() time.Time
}

func NewReducer() *Reducer {
	return &Reducer{now: time.Now}
}

// AppendUserMessage registra el mensaje del usuario y abre el turno.
func (r *Reducer) AppendUserMessage(content any) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        r.nextMsgID(),
		Sender:    domain.SenderUser,
		Content:   content,
		Timestamp: r.now(),
	}
	r.messages = append(r.messages, msg)
	r.generating = true
	return msg
}

// Apply procesa un frame. Devuelve el mensaje resultante y true cuando el
// frame cierra el turno; los frames de traza, control y descarte devuelven
// false sin producir mensaje.
func (r *Reducer) Apply(f Frame) (domain.ChatMessage, bool) {
	switch f.Kind {
	case FrameTrace, FrameCodeTrace:
		r.stepSeq++
		r.trace = append(r.trace, domain.ThinkingStep{
			ID:        r.stepSeq,
			Content:   f.Trace,
			Timestamp: r.now(),
		})
		r.generating = true
		return domain.ChatMessage{}, false

	case FrameFinal:
		msg := domain.ChatMessage{
			ID:          r.nextMsgID(),
			Sender:      domain.SenderAI,
			Content:     f.Text,
			Timestamp:   r.now(),
			Thinking:    r.snapshotTrace(),
			IsCompleted: true,
		}
		r.messages = append(r.messages, msg)
		r.trace = nil
		r.generating = false
		return msg, true

	case FrameFallback:
		// Forma legacy: mensaje final inmediato, sin traza.
		msg := domain.ChatMessage{
			ID:          r.nextMsgID(),
			Sender:      domain.SenderAI,
			Content:     f.Text,
			Timestamp:   r.now(),
			IsCompleted: true,
		}
		r.messages = append(r.messages, msg)
		r.generating = false
		return msg, true
	}

	// FrameControl y FrameDiscard no mutan estado.
	return domain.ChatMessage{}, false
}

// Cancel descarta el turno en curso. La traza parcial se pierde y no se
// sintetiza ningún mensaje parcial.
func (r *Reducer) Cancel() {
	r.trace = nil
	r.generating = false
}

func (r *Reducer) Messages() []domain.ChatMessage { return r.messages }

func (r *Reducer) Generating() bool { return r.generating }

// PendingTraceLen expone el tamaño del buffer transitorio de traza.
func (r *Reducer) PendingTraceLen() int { return len(r.trace) }

func (r *Reducer) snapshotTrace() []domain.ThinkingStep {
	if len(r.trace) == 0 {
		return nil
	}
	out := make([]domain.ThinkingStep, len(r.trace))
	copy(out, r.trace)
	return out
}

func (r *Reducer) nextMsgID() int {
	r.msgSeq++
	return r.msgSeq
}
