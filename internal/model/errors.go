package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidInput marks an input that violates a submission constraint
	// (oversized document, unknown kind, malformed URL).
	ErrInvalidInput = eris.New("invalid input")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = eris.New("not found")

	// ErrNotCompleted is returned when result artifacts are requested for a
	// deal whose run has not completed.
	ErrNotCompleted = eris.New("run not completed")

	// ErrInvalidTransition is returned for a stage move that is not forward
	// along the canonical order and not a jump to failed.
	ErrInvalidTransition = eris.New("invalid stage transition")
)

// InsufficientInputError means no input produced usable text. It is fatal
// to the run and is raised before any enrichment call.
type InsufficientInputError struct {
	Reason string
}

func (e *InsufficientInputError) Error() string {
	if e.Reason == "" {
		return "insufficient input"
	}
	return "insufficient input: " + e.Reason
}

// StageWriteConflictError means the dual-record status write could not be
// made consistent within its retry budget.
type StageWriteConflictError struct {
	DealID     string
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *StageWriteConflictError) Error() string {
	return fmt.Sprintf("stage write conflict: deal %s and document %s disagree on stage %q: %v",
		e.DealID, e.DocumentID, e.Stage, e.Err)
}

func (e *StageWriteConflictError) Unwrap() error { return e.Err }

// SourceFailure is a per-source enrichment failure. It is recovered into an
// error EnrichmentRecord and never propagates.
type SourceFailure struct {
	Source  string
	Timeout bool
	Err     error
}

func (e *SourceFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("source %s: timeout: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceFailure) Unwrap() error { return e.Err }

// AgentFailure is a per-agent scoring failure. It is recovered into a
// minimum-score placeholder.
type AgentFailure struct {
	Agent string
	Err   error
}

func (e *AgentFailure) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Agent, e.Err)
}

func (e *AgentFailure) Unwrap() error { return e.Err }

// SectionGenerationFailure is a per-section narrative failure. It is
// recovered into a placeholder section.
type SectionGenerationFailure struct {
	Section  string
	Attempts int
	Err      error
}

func (e *SectionGenerationFailure) Error() string {
	return fmt.Sprintf("section %s failed after %d attempts: %v", e.Section, e.Attempts, e.Err)
}

func (e *SectionGenerationFailure) Unwrap() error { return e.Err }
