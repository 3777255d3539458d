package automaton

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/constraintflow/pkg/domain"
)

var (
	// ErrNoInitialState is returned when the compiler response lacks init_state.
	ErrNoInitialState = errors.New("automaton has no initial state")

	// ErrNondeterministic is returned when a state has two transitions with the
	// same symbol leading to different targets.
	ErrNondeterministic = errors.New("automaton is not deterministic")
)

// Transition is a single labelled edge of the automaton.
type Transition struct {
	From   State  `json:"-"`
	Symbol string `json:"symbol"`
	To     State  `json:"target"`
}

// ColorVector lists the constraint statuses attached to a state.
type ColorVector []domain.ColorEntry

// ColoredDFA is an immutable deterministic automaton with per-state colors.
type ColoredDFA struct {
	current     State
	initial     State
	states      []State
	alphabet    []string
	symbols     map[string]struct{}
	transitions map[State][]Transition
	next        map[State]map[string]State
	accepting   map[State]struct{}
	colors      map[State]ColorVector
}

// Builder assembles a ColoredDFA. It is used by the wire decoder and by tests.
type Builder struct {
	dfa  *ColoredDFA
	seen map[State]struct{}
	err  error
}

// NewBuilder starts an automaton with the given initial state.
func NewBuilder(initial State) *Builder {
	b := &Builder{seen: make(map[State]struct{}), dfa: &ColoredDFA{
		current:     initial,
		initial:     initial,
		symbols:     make(map[string]struct{}),
		transitions: make(map[State][]Transition),
		next:        make(map[State]map[string]State),
		accepting:   make(map[State]struct{}),
		colors:      make(map[State]ColorVector),
	}}
	if !initial.IsZero() {
		b.State(initial)
	}
	return b
}

// Current overrides the wire "current" pointer (defaults to the initial state).
func (b *Builder) Current(s State) *Builder {
	b.dfa.current = s
	return b
}

// State declares a state.
func (b *Builder) State(s State) *Builder {
	if s.IsZero() {
		return b
	}
	if _, ok := b.seen[s]; ok {
		return b
	}
	b.seen[s] = struct{}{}
	b.dfa.states = append(b.dfa.states, s)
	return b
}

// Symbol declares an alphabet symbol.
func (b *Builder) Symbol(sym string) *Builder {
	if _, ok := b.dfa.symbols[sym]; ok {
		return b
	}
	b.dfa.symbols[sym] = struct{}{}
	b.dfa.alphabet = append(b.dfa.alphabet, sym)
	return b
}

// Transition adds from --symbol--> to. Symbols and states are declared implicitly.
// A second, different target for the same (from, symbol) pair fails the build.
func (b *Builder) Transition(from State, symbol string, to State) *Builder {
	if b.err != nil {
		return b
	}
	b.State(from).State(to).Symbol(symbol)

	row, ok := b.dfa.next[from]
	if !ok {
		row = make(map[string]State)
		b.dfa.next[from] = row
	}
	if existing, dup := row[symbol]; dup {
		if existing != to {
			b.err = fmt.Errorf("%w: %s --%s--> {%s, %s}", ErrNondeterministic, from, symbol, existing, to)
		}
		return b
	}
	row[symbol] = to
	b.dfa.transitions[from] = append(b.dfa.transitions[from], Transition{From: from, Symbol: symbol, To: to})
	return b
}

// Accept marks a state as accepting.
func (b *Builder) Accept(s State) *Builder {
	b.State(s)
	b.dfa.accepting[s] = struct{}{}
	return b
}

// Color attaches a color vector to a state.
func (b *Builder) Color(s State, entries ...domain.ColorEntry) *Builder {
	b.State(s)
	b.dfa.colors[s] = append(ColorVector(nil), entries...)
	return b
}

// Build validates and returns the automaton.
func (b *Builder) Build() (*ColoredDFA, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.dfa.initial.IsZero() {
		return nil, ErrNoInitialState
	}
	if b.dfa.current.IsZero() {
		b.dfa.current = b.dfa.initial
	}
	return b.dfa, nil
}

// InitialState returns the designated initial state.
func (d *ColoredDFA) InitialState() State {
	return d.initial
}

// Current returns the state the compiler reported as current.
func (d *ColoredDFA) Current() State {
	return d.current
}

// States returns every declared state.
func (d *ColoredDFA) States() []State {
	return slices.Clone(d.states)
}

// Alphabet returns the declared input symbols (activity ids).
func (d *ColoredDFA) Alphabet() []string {
	return slices.Clone(d.alphabet)
}

// AcceptingStates returns the accepting states in a stable order.
func (d *ColoredDFA) AcceptingStates() []State {
	out := make([]State, 0, len(d.accepting))
	for s := range d.accepting {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// TransitionsFrom returns the outgoing transitions of state, empty if unknown.
func (d *ColoredDFA) TransitionsFrom(state State) []Transition {
	return slices.Clone(d.transitions[state])
}

// CanTransition reports whether some transition from state is labelled symbol.
func (d *ColoredDFA) CanTransition(state State, symbol string) bool {
	_, ok := d.next[state][symbol]
	return ok
}

// NextState performs the deterministic lookup. ok is false when the activity
// is not expected from state.
func (d *ColoredDFA) NextState(state State, symbol string) (next State, ok bool) {
	next, ok = d.next[state][symbol]
	return next, ok
}

// ColorOf returns the color vector of state. ok is false when none is attached.
func (d *ColoredDFA) ColorOf(state State) (ColorVector, bool) {
	c, ok := d.colors[state]
	if !ok {
		return nil, false
	}
	return slices.Clone(c), true
}

// IsAccepting reports whether state is accepting.
func (d *ColoredDFA) IsAccepting(state State) bool {
	_, ok := d.accepting[state]
	return ok
}

// AvailableSymbols returns the deduplicated labels usable from state, in
// transition order.
func (d *ColoredDFA) AvailableSymbols(state State) []string {
	ts := d.transitions[state]
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Symbol)
	}
	return out
}

// IsAvailable reports whether symbol is usable from state.
func (d *ColoredDFA) IsAvailable(state State, symbol string) bool {
	return slices.Contains(d.AvailableSymbols(state), symbol)
}
