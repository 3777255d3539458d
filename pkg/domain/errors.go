package domain

import "errors"

// ErrNotBound is returned when an operation needs a compiled automaton but none is bound.
var ErrNotBound = errors.New("monitor not bound to an automaton")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrCompileFailed wraps every failure of the external compiler round-trip.
var ErrCompileFailed = errors.New("automaton compilation failed")

// ErrInvalidModel is returned when a serialized process model cannot be parsed.
var ErrInvalidModel = errors.New("invalid process model")
