// internal/models/events.go
package models

import "time"

// EventType discriminates the variants of PipelineEvent.
type EventType string

const (
	EventStatus   EventType = "status"
	EventContent  EventType = "content"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// PipelineEvent is one observable step of a pipeline run. A run emits zero or
// more status events followed by exactly one terminal sequence: a content
// event then a complete event, or a single error event.
type PipelineEvent struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Answer    *Answer   `json:"answer,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func StatusEvent(stage, message string) PipelineEvent {
	return PipelineEvent{
		Type:      EventStatus,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func ContentEvent(answer *Answer) PipelineEvent {
	return PipelineEvent{
		Type:      EventContent,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorEvent(code, message string) PipelineEvent {
	return PipelineEvent{
		Type:      EventError,
		ErrorCode: code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func CompleteEvent() PipelineEvent {
	return PipelineEvent{
		Type:      EventComplete,
		Timestamp: time.Now().UTC(),
	}
}

// IsTerminal reports whether the event ends the run's stream.
func (e PipelineEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
