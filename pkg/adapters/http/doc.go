// Package http exposes a constraintflow engine over HTTP.
//
// Remote simulators post activities and simulation controls; renderers
// read the cursor and follow emitted events over SSE (GET /events) or a
// websocket (GET /ws).
package http
