package automaton

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// Wire is the JSON shape of a colored DFA as produced by the compiler service.
type Wire struct {
	Current            string                       `json:"current"`
	States             []string                     `json:"states"`
	Alphabet           []string                     `json:"alphabet"`
	TransitionFunction map[string][]WireTransition  `json:"transition_function"`
	InitState          string                       `json:"init_state"`
	AcceptStates       []string                     `json:"accept_states"`
	Colors             map[string][]json.RawMessage `json:"colors"`
}

// WireTransition is one entry of a transition_function row.
type WireTransition struct {
	Symbol string `json:"symbol"`
	Target string `json:"target"`
}

// Decode parses a colored_dfa JSON document.
func Decode(data []byte) (*ColoredDFA, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode colored dfa: %w", err)
	}
	return FromWire(w)
}

// FromWire builds an automaton from its wire form.
// Transition symbols missing from the declared alphabet are added to it.
// Malformed color entries are skipped: they mean "no status change".
func FromWire(w Wire) (*ColoredDFA, error) {
	b := NewBuilder(NewState(w.InitState))
	if w.Current != "" {
		b.Current(NewState(w.Current))
	}
	for _, s := range w.States {
		b.State(NewState(s))
	}
	for _, sym := range w.Alphabet {
		b.Symbol(sym)
	}

	// Map order is random; sort rows so errors and state order are stable.
	from := make([]string, 0, len(w.TransitionFunction))
	for k := range w.TransitionFunction {
		from = append(from, k)
	}
	sort.Strings(from)
	for _, k := range from {
		src := NewState(k)
		for _, t := range w.TransitionFunction[k] {
			b.Transition(src, t.Symbol, NewState(t.Target))
		}
	}

	for _, s := range w.AcceptStates {
		b.Accept(NewState(s))
	}
	colored := make([]string, 0, len(w.Colors))
	for k := range w.Colors {
		colored = append(colored, k)
	}
	sort.Strings(colored)
	for _, k := range colored {
		b.Color(NewState(k), decodeColors(w.Colors[k])...)
	}
	return b.Build()
}

// decodeColors accepts both {"<flowId>": "<status>"} objects (compiler form)
// and {"constraintFlowId": ..., "status": ...} objects.
func decodeColors(raw []json.RawMessage) []domain.ColorEntry {
	var out []domain.ColorEntry
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}

		if _, ok := obj["constraintFlowId"]; ok {
			var e struct {
				ID     string `json:"constraintFlowId"`
				Status string `json:"status"`
			}
			if err := json.Unmarshal(item, &e); err != nil {
				continue
			}
			if st, err := domain.ParseStatus(e.Status); err == nil && e.ID != "" {
				out = append(out, domain.ColorEntry{ConstraintFlowID: e.ID, Status: st})
			}
			continue
		}

		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var s string
			if err := json.Unmarshal(obj[k], &s); err != nil {
				continue
			}
			if st, err := domain.ParseStatus(s); err == nil {
				out = append(out, domain.ColorEntry{ConstraintFlowID: k, Status: st})
			}
		}
	}
	return out
}

// Wire converts the automaton back to its wire form.
func (d *ColoredDFA) Wire() Wire {
	w := Wire{
		Current:            d.current.String(),
		InitState:          d.initial.String(),
		Alphabet:           d.Alphabet(),
		States:             make([]string, 0, len(d.states)),
		TransitionFunction: make(map[string][]WireTransition, len(d.transitions)),
		AcceptStates:       make([]string, 0, len(d.accepting)),
		Colors:             make(map[string][]json.RawMessage, len(d.colors)),
	}
	for _, s := range d.states {
		w.States = append(w.States, s.String())
	}
	for s, ts := range d.transitions {
		row := make([]WireTransition, 0, len(ts))
		for _, t := range ts {
			row = append(row, WireTransition{Symbol: t.Symbol, Target: t.To.String()})
		}
		w.TransitionFunction[s.String()] = row
	}
	for _, s := range d.AcceptingStates() {
		w.AcceptStates = append(w.AcceptStates, s.String())
	}
	for s, vec := range d.colors {
		row := make([]json.RawMessage, 0, len(vec))
		for _, e := range vec {
			b, _ := json.Marshal(map[string]string{e.ConstraintFlowID: string(e.Status)})
			row = append(row, b)
		}
		w.Colors[s.String()] = row
	}
	return w
}

// MarshalJSON encodes the automaton in the compiler's wire format.
func (d *ColoredDFA) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Wire())
}
