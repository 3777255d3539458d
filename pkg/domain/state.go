package domain

import "time"

// Phase is the lifecycle position of a monitor.
type Phase string

const (
	PhaseUnbound      Phase = "unbound"       // No compiled automaton
	PhaseBoundIdle    Phase = "bound_idle"    // Automaton bound, simulation not started
	PhaseBoundRunning Phase = "bound_running" // Simulation running, cursor advancing
)

// Cursor is the persisted snapshot of a monitoring session.
type Cursor struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Initial   string    `json:"initial"`
	Phase     Phase     `json:"phase"`
	Steps     int       `json:"steps"`
	History   []string  `json:"history,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
