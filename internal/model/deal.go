package model

import "time"

// Stage is a step of the fixed pipeline sequence shared by a Deal and its Document.
type Stage string

const (
	StageProcessing       Stage = "processing"
	StageExtracting       Stage = "extracting"
	StageEnriching        Stage = "enriching"
	StageScoring          Stage = "scoring"
	StageGeneratingOutput Stage = "generating_output"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// stageOrder is the canonical forward order. StageFailed sits outside it.
var stageOrder = []Stage{
	StageProcessing,
	StageExtracting,
	StageEnriching,
	StageScoring,
	StageGeneratingOutput,
	StageCompleted,
}

// StageOrder returns a copy of the canonical stage sequence.
func StageOrder() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

func stageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s == StageFailed || stageIndex(s) >= 0
}

// Next returns the stage that follows s in the canonical order, or "" if
// s is terminal or unknown.
func (s Stage) Next() Stage {
	i := stageIndex(s)
	if i < 0 || i == len(stageOrder)-1 {
		return ""
	}
	return stageOrder[i+1]
}

// CanTransition reports whether moving from one stage to another is legal:
// exactly one step forward along the canonical order, or a jump to failed
// from any non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() || !from.Valid() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return from.Next() == to
}

// Deal is one company under evaluation.
type Deal struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Stage         Stage     `json:"stage"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Website       string    `json:"website,omitempty"`
	Location      string    `json:"location,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Document is the input-document record coupled to a Deal. It carries the
// same stage as its Deal after every committed transition.
type Document struct {
	ID            string       `json:"id"`
	DealID        string       `json:"deal_id"`
	Kind          DocumentKind `json:"kind"`
	Filename      string       `json:"filename,omitempty"`
	SizeBytes     int64        `json:"size_bytes"`
	Stage         Stage        `json:"stage"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// StatusView is the answer to a status poll.
type StatusView struct {
	DealID        string    `json:"deal_id"`
	Name          string    `json:"name"`
	Stage         Stage     `json:"stage"`
	FailureReason string    `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RunResult is every artifact of a completed run.
type RunResult struct {
	Deal       Deal                        `json:"deal"`
	Extraction *ExtractionBundle           `json:"extraction"`
	Enrichment map[string]EnrichmentRecord `json:"enrichment"`
	Score      *ScoreRecord                `json:"score"`
	Narrative  *NarrativeDocument          `json:"narrative"`
}
