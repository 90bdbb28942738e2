package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProvider indicates that no LLM provider is configured.
	ErrNoProvider = errors.New("no LLM provider configured")

	// ErrMaxTurns indicates the turn loop reached its tool-call cap.
	ErrMaxTurns = errors.New("tool call limit exceeded")
)

// TurnPhase identifies where in the turn loop an error occurred.
type TurnPhase int

const (
	PhaseInit TurnPhase = iota
	PhaseStream
	PhaseExecuteTools
	PhaseContinue
	PhaseComplete
)

func (p TurnPhase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseStream:
		return "stream"
	case PhaseExecuteTools:
		return "execute_tools"
	case PhaseContinue:
		return "continue"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// TurnError wraps a failure with the phase and turn it occurred in.
type TurnError struct {
	Phase TurnPhase
	Turn  int
	Cause error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %d (%s): %v", e.Turn, e.Phase, e.Cause)
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}
