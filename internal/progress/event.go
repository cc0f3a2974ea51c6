package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart  Stage = "SESSION_START"
	StageStatementDone Stage = "STATEMENT_DONE"
	StageResultsStart  Stage = "RESULTS_START"
	StageSessionDone   Stage = "SESSION_DONE"
	StageSessionError  Stage = "SESSION_ERROR"
)

// Event captures a single component of session progress.
type Event struct {
	// SessionID uniquely identifies a processing session.
	SessionID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or classification milestone occurred.
	Stage Stage
	// Destination labels statement events with the routed destination.
	Destination string
	// Processed and Total track classification counts for the session.
	Processed int
	Total     int
	// Dur captures execution latency for completed sessions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageResultsStart, StageSessionDone, StageSessionError:
	case StageStatementDone:
		if e.Destination == "" {
			return errors.New("statement done requires destination")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Processed < 0 || e.Total < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}
