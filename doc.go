/*
Package constraintflow monitors declarative constraints over a running
process simulation.

A process model (BPMN 2.0 XML) carries constraint flows between activities:
response, precedence, existence and the other Declare-style templates. The
engine prepares the model, sends it to an external compiler service that
returns a colored automaton, and binds that automaton to a monitor. From then
on every activity the host simulator completes advances the automaton, and the
monitor emits the status of each constraint: satisfied, violated, or one of
their temporary and possible variants.

# Usage

	eng := constraintflow.New(
		constraintflow.WithBackendURL("http://localhost:8000"),
		constraintflow.WithLogger(logger),
	)
	if err := eng.Load(ctx, xml); err != nil {
		log.Fatal(err)
	}

	// The host simulator publishes on the engine bus.
	eng.Bus().Publish(ctx, domain.Event{
		Topic:   domain.TopicTrace,
		Payload: domain.ActivityEvent{ElementID: "Activity_Pay", Action: domain.ActionExit},
	})

# Architecture

The engine is a thin facade over independent packages:

  - pkg/bpmn: model normalization, constraint extraction, per-pool split.
  - pkg/compiler: HTTP client for the compiler service, plus single-flight and cache decorators.
  - pkg/automaton: the colored DFA.
  - pkg/monitor: the stateful cursor wired to the host event bus.
  - pkg/adapters: cursor stores (memory, Redis, bbolt) and event sinks (Redis, MQTT, HTTP).
*/
package constraintflow
