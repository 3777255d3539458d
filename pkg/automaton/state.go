package automaton

import "strings"

const (
	tupleOpen  = "("
	tupleClose = ")"
	tupleSep   = ","
)

// State is an automaton state identified by its canonical encoding.
// Two states are equal iff their canonical encodings are equal, so State
// can be compared with == and used as a map key.
type State struct {
	key string
}

// NewState canonicalizes a label received from the compiler.
// Tuple labels have their components trimmed, so "(q1, q3)" and "(q1,q3)"
// denote the same state.
func NewState(label string) State {
	return State{key: canonical(label)}
}

// Tuple builds a composite state from per-pool sub-state labels.
// Parts are canonicalized like any label: surrounding whitespace is dropped,
// and a single empty part yields the empty tuple "()", whose Parts is empty.
// Parts must not contain unbalanced parentheses or top-level commas.
func Tuple(parts ...string) State {
	canon := make([]string, len(parts))
	for i, p := range parts {
		canon[i] = canonical(p)
	}
	return State{key: tupleOpen + strings.Join(canon, tupleSep) + tupleClose}
}

// String returns the canonical encoding.
func (s State) String() string {
	return s.key
}

// Equal reports whether both states share the same canonical encoding.
func (s State) Equal(o State) bool {
	return s.key == o.key
}

// IsZero reports whether s is the empty state.
func (s State) IsZero() bool {
	return s.key == ""
}

// IsTuple reports whether s is a composite state.
func (s State) IsTuple() bool {
	return isTuple(s.key)
}

// Parts decodes a composite state into its sub-state labels.
// A plain state yields a single part.
func (s State) Parts() []string {
	if !s.IsTuple() {
		return []string{s.key}
	}
	return splitTuple(s.key)
}

// MarshalText encodes the state as its canonical label.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.key), nil
}

// UnmarshalText canonicalizes a label.
func (s *State) UnmarshalText(b []byte) error {
	*s = NewState(string(b))
	return nil
}

func isTuple(label string) bool {
	return len(label) >= 2 && strings.HasPrefix(label, tupleOpen) && strings.HasSuffix(label, tupleClose)
}

func canonical(label string) string {
	label = strings.TrimSpace(label)
	if !isTuple(label) {
		return label
	}
	parts := splitTuple(label)
	for i, p := range parts {
		parts[i] = canonical(p)
	}
	return tupleOpen + strings.Join(parts, tupleSep) + tupleClose
}

// splitTuple splits the inside of a parenthesized label on top-level commas.
func splitTuple(label string) []string {
	inner := label[1 : len(label)-1]
	if strings.TrimSpace(inner) == "" {
		return []string{}
	}
	var parts []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(inner[start:]))
}
