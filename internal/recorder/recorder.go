package recorder

import "time"

// Cycle outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// CycleEvent holds the result of one poll cycle.
type CycleEvent struct {
	CycleID       string
	StartedAt     time.Time
	Duration      time.Duration
	Outcome       string
	Candles       int
	Stage         string // failing stage, empty on success
	Error         string
	ArtifactBytes int64
}

// Recorder persists the cycle history for later analysis.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	Close() error
}
