package assistant

import (
	"encoding/json"
	"strings"
)

// FrameKind identifica la variante de un frame entrante del asistente.
type FrameKind int

const (
	FrameDiscard FrameKind = iota
	FrameControl
	FrameTrace
	FrameCodeTrace
	FrameFinal
	FrameFallback
)

// controlTimedOut es un frame de control de un backend concreto: se reconoce
// y se descarta sin mutar estado. Caso especial conocido, no generalizar.
const controlTimedOut = "Endpoint request timed out"

// fallbackKeys fija la precedencia exacta de extracción legacy: primer match gana.
var fallbackKeys = []string{"response", "content", "message", "text"}

type frameMetadata struct {
	IsComplete bool
	IsCode     bool
}

// Frame es la unión etiquetada de los frames entrantes.
type Frame struct {
	Kind     FrameKind
	Text     string // contenido de FrameFinal y FrameFallback
	Trace    any    // contenido de FrameTrace y FrameCodeTrace
	Complete bool
}

// Classify convierte un frame crudo en exactamente una variante de Frame.
// Nunca falla: payloads malformados degradan a FrameFallback con el texto
// crudo, y los frames vacíos a FrameDiscard.
func Classify(raw []byte) Frame {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Frame{Kind: FrameDiscard}
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Frame{Kind: FrameFallback, Text: text}
	}

	switch v := payload.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Frame{Kind: FrameDiscard}
		}
		return Frame{Kind: FrameFallback, Text: v}
	case map[string]any:
		return classifyObject(v, text)
	default:
		// Números, arrays, null: mejor esfuerzo con el texto crudo.
		return Frame{Kind: FrameFallback, Text: text}
	}
}

func classifyObject(obj map[string]any, raw string) Frame {
	meta := decodeMetadata(obj["Metadata"])

	if meta.IsCode {
		// Variante con código: el objeto completo es el contenido del paso.
		return Frame{Kind: FrameCodeTrace, Trace: obj, Complete: meta.IsComplete}
	}
	if trace, ok := obj["AITrace"]; ok {
		return Frame{Kind: FrameTrace, Trace: trace, Complete: meta.IsComplete}
	}
	if msg, ok := obj["AIMessage"].(string); ok {
		return Frame{Kind: FrameFinal, Text: msg, Complete: meta.IsComplete}
	}
	if msg, ok := obj["message"].(string); ok && msg == controlTimedOut {
		return Frame{Kind: FrameControl}
	}
	for _, key := range fallbackKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return Frame{Kind: FrameFallback, Text: s}
		}
	}
	return Frame{Kind: FrameFallback, Text: raw}
}

func decodeMetadata(v any) frameMetadata {
	m, ok := v.(map[string]any)
	if !ok {
		return frameMetadata{}
	}
	var meta frameMetadata
	meta.IsComplete, _ = m["IsComplete"].(bool)
	meta.IsCode, _ = m["IsCode"].(bool)
	return meta
}
