package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Stage names a step of a sync run.
type Stage string

const (
	StageImport Stage = "import"
	StageEnrich Stage = "enrich"
	StageEmbed  Stage = "embed"
	StageDone   Stage = "done"
)

// Kind classifies an Event.
type Kind string

const (
	KindStageStart Kind = "stage_start"
	KindProgress   Kind = "progress"
	KindStageEnd   Kind = "stage_end"
	// KindDone is the last event of a successful run and carries the Summary.
	KindDone Kind = "done"
	// KindError is the last event of a failed run.
	KindError Kind = "error"
)

// Event reports pipeline progress. Within a stage Current never decreases.
type Event struct {
	RunID   uuid.UUID     `json:"run_id"`
	Stage   Stage         `json:"stage"`
	Kind    Kind          `json:"kind"`
	Current int           `json:"current"`
	Total   int           `json:"total"`
	Label   string        `json:"label,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	ETA     time.Duration `json:"eta"`
	Err     string        `json:"error,omitempty"`
	Summary *Summary      `json:"summary,omitempty"`
}

// Terminal reports whether e is the final event of a run.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Summary counts the work done by one run.
type Summary struct {
	Imported int `json:"imported"`
	// Attempted counts metadata rows written, with or without a description.
	Attempted int `json:"attempted"`
	// Enriched counts books that received a non-empty description.
	Enriched int `json:"enriched"`
	Embedded int `json:"embedded"`
}

// Observer receives pipeline events synchronously.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type discard struct{}

func (discard) Observe(Event) {}

// EstimateRemaining extrapolates the time left from the average pace so far:
// elapsed * (total - current) / current. It is zero before any item is done.
func EstimateRemaining(elapsed time.Duration, current, total int) time.Duration {
	if current <= 0 || total <= current {
		return 0
	}
	return time.Duration(float64(elapsed) * float64(total-current) / float64(current))
}
