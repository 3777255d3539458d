package domain

import "fmt"

// ConstraintType identifies a declarative constraint template.
type ConstraintType string

const (
	ConstraintExistence          ConstraintType = "existence"
	ConstraintAbsence2           ConstraintType = "absence2"
	ConstraintChoice             ConstraintType = "choice"
	ConstraintRespExistence      ConstraintType = "resp-existence"
	ConstraintCoexistence        ConstraintType = "coexistence"
	ConstraintResponse           ConstraintType = "response"
	ConstraintPrecedence         ConstraintType = "precedence"
	ConstraintSuccession         ConstraintType = "succession"
	ConstraintAltResponse        ConstraintType = "alt-response"
	ConstraintAltPrecedence      ConstraintType = "alt-precedence"
	ConstraintChainResponse      ConstraintType = "chain-response"
	ConstraintChainPrecedence    ConstraintType = "chain-precedence"
	ConstraintChainSuccession    ConstraintType = "chain-succession"
	ConstraintNotCoexistence     ConstraintType = "not-coexistence"
	ConstraintNegSuccession      ConstraintType = "neg-succession"
	ConstraintNegChainSuccession ConstraintType = "neg-chain-succession"

	// ConstraintUnknown tags events whose constraint id is not part of the bound set.
	ConstraintUnknown ConstraintType = "unknown"
)

// ConstraintTypes lists every supported template in declaration order.
var ConstraintTypes = []ConstraintType{
	ConstraintExistence,
	ConstraintAbsence2,
	ConstraintChoice,
	ConstraintRespExistence,
	ConstraintCoexistence,
	ConstraintResponse,
	ConstraintPrecedence,
	ConstraintSuccession,
	ConstraintAltResponse,
	ConstraintAltPrecedence,
	ConstraintChainResponse,
	ConstraintChainPrecedence,
	ConstraintChainSuccession,
	ConstraintNotCoexistence,
	ConstraintNegSuccession,
	ConstraintNegChainSuccession,
}

// ParseConstraintType maps a wire value onto the closed enumeration.
func ParseConstraintType(s string) (ConstraintType, error) {
	t := ConstraintType(s)
	if !t.Valid() {
		return ConstraintUnknown, fmt.Errorf("unknown constraint type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the sixteen templates.
func (t ConstraintType) Valid() bool {
	switch t {
	case ConstraintExistence, ConstraintAbsence2, ConstraintChoice, ConstraintRespExistence,
		ConstraintCoexistence, ConstraintResponse, ConstraintPrecedence, ConstraintSuccession,
		ConstraintAltResponse, ConstraintAltPrecedence, ConstraintChainResponse,
		ConstraintChainPrecedence, ConstraintChainSuccession, ConstraintNotCoexistence,
		ConstraintNegSuccession, ConstraintNegChainSuccession:
		return true
	}
	return false
}

// IsUnary reports whether the template constrains a single activity.
// Unary records carry the same activity id as source and target.
func (t ConstraintType) IsUnary() bool {
	return t == ConstraintExistence || t == ConstraintAbsence2
}

// ConstraintRecord is a constraint flow declared in a process model.
// JSON names match the compiler service contract.
type ConstraintRecord struct {
	ID        string         `json:"id"`
	SourceRef string         `json:"sourceRef"`
	TargetRef string         `json:"targetRef"`
	Type      ConstraintType `json:"constraintType"`
}

// Validate reports a record whose type is outside the enumeration, or a
// unary template spanning two activities.
func (r ConstraintRecord) Validate() error {
	t, err := ParseConstraintType(string(r.Type))
	if err != nil {
		return fmt.Errorf("constraint %q: %w", r.ID, err)
	}
	if t.IsUnary() && r.SourceRef != r.TargetRef {
		return fmt.Errorf("constraint %q: %s must reference a single activity, got %q and %q", r.ID, t, r.SourceRef, r.TargetRef)
	}
	return nil
}

// LookupConstraintType resolves the template of the constraint with the given id.
// It returns ConstraintUnknown when no record matches.
func LookupConstraintType(records []ConstraintRecord, id string) ConstraintType {
	for _, r := range records {
		if r.ID == id {
			if r.Type == "" {
				return ConstraintUnknown
			}
			return r.Type
		}
	}
	return ConstraintUnknown
}
