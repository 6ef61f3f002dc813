package llm

import (
	"context"
	"strings"

	"browser-pilot/internal/entity"
)

// QueryEngine answers instructions against one indexed page.
type QueryEngine interface {
	Query(ctx context.Context, instruction string) (StreamingResponse, error)
}

// StreamingResponse is a finite, non-restartable stream of generated code.
type StreamingResponse interface {
	Next() bool
	Chunk() string
	Err() error
	FormatSources(maxChars int) string
	Evidence() []entity.EvidenceNode
}

type streamingResponse struct {
	text     TextStream
	evidence []entity.EvidenceNode
	done     bool
	err      error
}

func newStreamingResponse(text TextStream, evidence []entity.EvidenceNode) *streamingResponse {
	return &streamingResponse{text: text, evidence: evidence}
}

func (r *streamingResponse) Next() bool {
	if r.done {
		return false
	}
	if r.text.Next() {
		return true
	}
	r.done = true
	r.err = r.text.Err()
	if err := r.text.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return false
}

func (r *streamingResponse) Chunk() string {
	if r.done {
		return ""
	}
	return r.text.Chunk()
}

func (r *streamingResponse) Err() error { return r.err }

func (r *streamingResponse) FormatSources(maxChars int) string {
	return FormatSources(r.evidence, maxChars)
}

func (r *streamingResponse) Evidence() []entity.EvidenceNode {
	out := make([]entity.EvidenceNode, len(r.evidence))
	copy(out, r.evidence)
	return out
}

// Drain consumes the rest of the stream and returns everything it produced.
func Drain(r StreamingResponse, onPartial func(partial string)) (string, error) {
	var sb strings.Builder
	for r.Next() {
		sb.WriteString(r.Chunk())
		if onPartial != nil {
			onPartial(sb.String())
		}
	}
	return sb.String(), r.Err()
}
