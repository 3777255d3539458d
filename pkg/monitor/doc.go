/*
Package monitor follows a running simulation against a compiled colored DFA.

A Monitor is bound to an automaton and to the host's event bus. Each time the
host reports that an activity completed, the monitor advances its cursor and
reports the constraint statuses carried by the new state.

# Lifecycle

	Unbound --Bind--> BoundIdle --Start/Toggle(true)--> BoundRunning
	   ^                 |  ^                              |
	   +-----Unbind------+  +-----------Toggle(false)------+

Reset moves the cursor back to the initial state without changing the phase.
Rebinding releases every subscription held by the previous binding before the
new ones are installed.

# Emitted topics

For every status entry of the state reached:

  - constraint.status.changed
  - constraint.<status>
  - constraint.violation.detected or constraint.satisfaction.detected

Then dfa.activity.fired once, plus dfa.approval.activity and
dfa.rejection.activity when the activity name contains "approve" or "reject".
*/
package monitor
