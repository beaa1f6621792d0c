package models

import (
	"fmt"
	"time"
)

// ExecutionStatus is the lifecycle state of a NodeExecution.
//
// Transitions: queued → running → {completed | failed}, plus a user-initiated
// running → stopped. Stop is advisory: it flips the record's status but does
// not preempt the script goroutine.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusStopped   ExecutionStatus = "stopped"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusStopped:
		return true
	default:
		return false
	}
}

// NodeExecution is one timed, logged invocation of a published version's
// script. The record is mutated only by the execution runtime and the
// explicit stop action, and is never deleted by the core.
type NodeExecution struct {
	ID          string          `json:"id"`
	VersionID   string          `json:"version_id" validate:"required"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Log         string          `json:"log"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
	Artifacts   map[string]any  `json:"artifacts,omitempty"`
}

// Duration returns the elapsed execution time, or zero while still running.
func (e *NodeExecution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}

	return e.CompletedAt.Sub(e.StartedAt)
}

// MarkCompleted transitions the execution into the completed terminal state.
func (e *NodeExecution) MarkCompleted() {
	now := time.Now().UTC()
	e.Status = ExecutionStatusCompleted
	e.CompletedAt = &now
}

// MarkFailed transitions the execution into the failed terminal state.
func (e *NodeExecution) MarkFailed() {
	now := time.Now().UTC()
	e.Status = ExecutionStatusFailed
	e.CompletedAt = &now
}

// MarkStopped transitions the execution into the stopped terminal state.
func (e *NodeExecution) MarkStopped() {
	now := time.Now().UTC()
	e.Status = ExecutionStatusStopped
	e.CompletedAt = &now
}

// LogLine formats one timestamped log line as appended to the execution log.
func LogLine(ts time.Time, msg string) string {
	return fmt.Sprintf("[%s] %s\n", ts.UTC().Format(time.RFC3339Nano), msg)
}
