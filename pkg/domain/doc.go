/*
Package domain contains the core domain models of the constraint monitor.

It defines the vocabulary shared by every other package: the closed set of
declarative constraint kinds, constraint records extracted from a model, the
four constraint statuses, the payloads exchanged with the host simulation
engine and the events emitted to listeners. The package is kept free of I/O
and persistence, following Hexagonal Architecture principles.

# Key Entities

  - ConstraintType: one of the sixteen declarative templates (response, precedence...).
  - ConstraintRecord: a constraint flow between one or two activities.
  - Status: satisfied, violated, temporary_satisfied or temporary_violated.
  - ActivityEvent / ToggleEvent: what the host simulation engine publishes.
  - StatusEvent / AdvanceEvent / PatternEvent: what the monitor emits.
*/
package domain
