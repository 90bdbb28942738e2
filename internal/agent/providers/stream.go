// Package providers contains LLM provider implementations.
package providers

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// StreamEventType discriminates the events a dialect parser can produce.
type StreamEventType int

const (
	// EventContent carries a fragment of assistant text.
	EventContent StreamEventType = iota

	// EventToolCall carries a partial tool-call fragment keyed by index.
	EventToolCall

	// EventDone terminates the event sequence.
	EventDone
)

// ToolCallFragment is a partial tool call as it arrives on the wire.
// The id, name, and argument string may each be split across fragments
// sharing the same index; consumers assemble them in arrival order.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamEvent is one decoded event from a provider's streaming response.
// A single event never carries both content and a tool-call fragment.
// Token counts are set only on EventDone, and only when the dialect
// reports usage.
type StreamEvent struct {
	Type         StreamEventType
	Text         string
	ToolCall     ToolCallFragment
	InputTokens  int
	OutputTokens int
}

// PayloadParser decodes one dialect's JSON payload into zero or more events.
// Payloads that fail to parse yield no events.
type PayloadParser interface {
	ParsePayload(payload []byte) []StreamEvent
}

const doneSentinel = "[DONE]"

// scanStream reads newline-delimited payloads from r, applies the shared
// framing rules, and forwards decoded events to emit until the sequence
// terminates or emit returns false.
//
// Framing: blank lines are skipped; lines framed as "data: <payload>" have
// the prefix stripped; a payload equal to the [DONE] sentinel ends the
// sequence with EventDone and no further reads; all other lines pass through
// as raw payload.
func scanStream(ctx context.Context, r io.Reader, parser PayloadParser, emit func(StreamEvent) bool) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimSpace(payload)
		}
		if line == doneSentinel {
			emit(StreamEvent{Type: EventDone})
			return nil
		}

		for _, ev := range parser.ParsePayload([]byte(line)) {
			if !emit(ev) {
				return nil
			}
			if ev.Type == EventDone {
				return nil
			}
		}
	}
	return scanner.Err()
}
