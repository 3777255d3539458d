/*
Package ports defines the driven ports (interfaces) of the constraint monitor.

These interfaces decouple the monitor from the host simulation engine and from
storage and transport backends.

# Key Interfaces

  - EventBus: The host's publish/subscribe channel (activity traces, simulation controls).
  - Sink: Receives every event emitted by the monitor (SSE, websocket, Redis, MQTT).
  - CursorStore: Persists the monitor cursor so a session survives restarts.
  - DistributedLocker: Serializes automaton compilation across replicas.
*/
package ports
