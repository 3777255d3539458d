package domain

import (
	"context"
	"time"
)

// Event is the envelope exchanged over an event bus or handed to a sink.
type Event struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ActivityAction distinguishes entering and leaving an activity instance.
type ActivityAction string

const (
	ActionEnter ActivityAction = "enter"
	ActionExit  ActivityAction = "exit"
)

// ActivityEvent is published by the host each time a token enters or exits an element.
// Only exits advance the automaton.
type ActivityEvent struct {
	ElementID string         `json:"elementId"`
	Name      string         `json:"name,omitempty"`
	Action    ActivityAction `json:"action"`
}

// DisplayName returns the element name, falling back to its id.
func (e ActivityEvent) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ElementID
}

// ToggleEvent is published when the host switches simulation mode on or off.
type ToggleEvent struct {
	Active bool `json:"active"`
}

// StatusEvent reports the status of one constraint after an automaton step.
type StatusEvent struct {
	ConstraintFlowID string         `json:"constraintFlowId"`
	ConstraintType   ConstraintType `json:"constraintType"`
	Status           Status         `json:"status"`
	ActivityID       string         `json:"activityId"`
	CurrentState     string         `json:"currentState"`
	Timestamp        time.Time      `json:"timestamp"`
	Color            string         `json:"color"`
}

// ColorEntry is one constraint status carried by an automaton state.
type ColorEntry struct {
	ConstraintFlowID string `json:"constraintFlowId"`
	Status           Status `json:"status"`
}

// AdvanceEvent reports that a completed activity moved the automaton.
type AdvanceEvent struct {
	ActivityID    string       `json:"activityId"`
	ActivityName  string       `json:"activityName"`
	PreviousState string       `json:"previousState"`
	CurrentState  string       `json:"currentState"`
	Colors        []ColorEntry `json:"stateColor"`
	Timestamp     time.Time    `json:"timestamp"`
}

// PatternEvent is convenience sugar emitted for activities whose name
// matches a well-known pattern (approval, rejection).
type PatternEvent struct {
	ActivityID   string `json:"activityId"`
	ActivityName string `json:"activityName"`
	CurrentState string `json:"currentState"`
}

// MonitorHooks defines callbacks for monitor observability.
// Every field is optional.
type MonitorHooks struct {
	OnBind     func(ctx context.Context, initial string, constraints int)
	OnAdvance  func(ctx context.Context, e *AdvanceEvent)
	OnStatus   func(ctx context.Context, e *StatusEvent)
	OnIgnored  func(ctx context.Context, activityID, state string)
	OnRejected func(ctx context.Context, activityID, state string)
	OnReset    func(ctx context.Context, reason string)
}
