// Package events defines the event types published on the execution
// lifecycle bus.
package events

import (
	"time"
)

type EventType string

// Topic is the bus topic all lifecycle events travel on.
const Topic = "nodeflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionStoppedEvent   EventType = "execution.stopped"

	// Version lifecycle.
	VersionPublishedEvent EventType = "version.published"
	FamilyRolledBackEvent EventType = "family.rolledback"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FamilyID  string         `json:"family_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	VersionID   string `json:"version_id"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	VersionID   string         `json:"version_id"`
	Duration    time.Duration  `json:"duration"`
	Artifacts   map[string]any `json:"artifacts,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	VersionID   string        `json:"version_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionStopped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	VersionID   string `json:"version_id"`
	StoppedBy   string `json:"stopped_by,omitempty"`
}

func (e ExecutionStopped) GetType() EventType {
	return ExecutionStoppedEvent
}

type VersionPublished struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Version   int    `json:"version"`
}

func (e VersionPublished) GetType() EventType {
	return VersionPublishedEvent
}

type FamilyRolledBack struct {
	BaseEvent

	VersionID     string `json:"version_id"`
	TargetVersion int    `json:"target_version"`
}

func (e FamilyRolledBack) GetType() EventType {
	return FamilyRolledBackEvent
}
