package domain

import "fmt"

// Status is the verdict of a constraint in a given automaton state.
type Status string

const (
	StatusSatisfied          Status = "satisfied"
	StatusViolated           Status = "violated"
	StatusTemporarySatisfied Status = "temporary_satisfied"
	StatusTemporaryViolated  Status = "temporary_violated"
)

// Display colors used by renderers.
const (
	ColorSatisfied          = "#28a745"
	ColorTemporarySatisfied = "#ffc107"
	ColorTemporaryViolated  = "#fd7e14"
	ColorViolated           = "#dc3545"
	ColorUnknown            = "#6c757d"
)

// ParseStatus validates a wire status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusSatisfied, StatusViolated, StatusTemporarySatisfied, StatusTemporaryViolated:
		return st, nil
	}
	return "", fmt.Errorf("unknown constraint status %q", s)
}

// IsViolation reports whether the status is violated or temporarily violated.
func (s Status) IsViolation() bool {
	return s == StatusViolated || s == StatusTemporaryViolated
}

// Color returns the hex color a renderer should paint the constraint with.
func (s Status) Color() string {
	switch s {
	case StatusSatisfied:
		return ColorSatisfied
	case StatusTemporarySatisfied:
		return ColorTemporarySatisfied
	case StatusTemporaryViolated:
		return ColorTemporaryViolated
	case StatusViolated:
		return ColorViolated
	}
	return ColorUnknown
}

// Topic returns the status-specific topic emitted alongside TopicStatusChanged.
func (s Status) Topic() string {
	return "constraint." + string(s)
}
