package engine

import (
	"errors"
	"fmt"
)

// RunError represents a condition that prevents or aborts a sync run.
//
// Run errors include:
//   - Run active: a second sync was attempted while one is in progress
//   - No batch: no new extract files have arrived in the intake directory
//   - Stop requested: a cooperative stop was observed at a poll point
//
// A batch that fails mid-run is not a RunError; it is reported through
// RunState.Status.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one exists.
	RunID string

	// Kind identifies the entity kind being processed, when relevant.
	Kind Kind
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeRunActive indicates a sync is already in progress.
	ErrCodeRunActive RunErrorCode = "RUN_ACTIVE"

	// ErrCodeNoBatch indicates no new batch exists in the intake directory.
	ErrCodeNoBatch RunErrorCode = "NO_BATCH"

	// ErrCodeStopRequested indicates a cooperative stop was honored.
	ErrCodeStopRequested RunErrorCode = "STOP_REQUESTED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	switch {
	case e.RunID != "" && e.Kind != "":
		return fmt.Sprintf("%s: %s (run=%s, kind=%s)", e.Code, e.Message, e.RunID, e.Kind)
	case e.RunID != "":
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRunActive reports whether err is a run-already-active rejection.
// Uses errors.As to handle wrapped errors.
func IsRunActive(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRunActive
	}
	return false
}

// IsNoBatch reports whether err is a no-batch-uploaded rejection.
func IsNoBatch(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoBatch
	}
	return false
}

// IsStopRequested reports whether err was raised by a cooperative stop.
func IsStopRequested(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopRequested
	}
	return false
}

func newStopError(runID string, kind Kind) *RunError {
	return &RunError{
		Code:    ErrCodeStopRequested,
		Message: "stop requested, abandoning batch processing",
		RunID:   runID,
		Kind:    kind,
	}
}
