/*
Package automaton holds the colored deterministic finite automaton returned by
the compiler service.

A ColoredDFA is an immutable value: states are identified by their canonical
string encoding (composite states are parenthesized, comma-joined tuples of
per-pool sub-states), transitions are keyed by (state, activity id) and every
state may carry a color vector listing constraint statuses. All lookups are
pure and safe for concurrent use once the automaton is built.

	dfa, err := automaton.Decode(payload)
	if err != nil {
		return err
	}
	next, ok := dfa.NextState(dfa.InitialState(), "Activity_1")
*/
package automaton
