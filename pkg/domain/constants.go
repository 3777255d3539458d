package domain

// Topics published by the host simulation engine.
const (
	TopicTrace  = "tokenSimulation.simulator.trace"
	TopicToggle = "tokenSimulation.toggleMode"
	TopicPlay   = "tokenSimulation.playSimulation"
	TopicPause  = "tokenSimulation.pauseSimulation"
	TopicReset  = "tokenSimulation.resetSimulation"
)

// Topics emitted by the monitor.
const (
	TopicStatusChanged        = "constraint.status.changed"
	TopicViolationDetected    = "constraint.violation.detected"
	TopicSatisfactionDetected = "constraint.satisfaction.detected"
	TopicActivityFired        = "dfa.activity.fired"
	TopicApprovalActivity     = "dfa.approval.activity"
	TopicRejectionActivity    = "dfa.rejection.activity"
)

// TopicAll subscribes to every topic on an event bus.
const TopicAll = "*"
