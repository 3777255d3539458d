package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/domain"
)

// Report describes a compiled model for the inspect command.
type Report struct {
	Title       string
	Automaton   *automaton.ColoredDFA
	Constraints []domain.ConstraintRecord
	// State is the state whose colors are tabulated. Zero means initial.
	State automaton.State
}

// Markdown renders the report as a markdown document.
func (r Report) Markdown() string {
	var sb strings.Builder
	dfa := r.Automaton
	state := r.State
	if state.IsZero() {
		state = dfa.InitialState()
	}

	title := r.Title
	if title == "" {
		title = "Constraint automaton"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- **States:** %d\n", len(dfa.States()))
	fmt.Fprintf(&sb, "- **Alphabet:** %d activities\n", len(dfa.Alphabet()))
	fmt.Fprintf(&sb, "- **Initial:** `%s`\n", dfa.InitialState())
	accepting := make([]string, 0)
	for _, s := range dfa.AcceptingStates() {
		accepting = append(accepting, "`"+s.String()+"`")
	}
	fmt.Fprintf(&sb, "- **Accepting:** %s\n\n", orNone(strings.Join(accepting, ", ")))

	colors, _ := dfa.ColorOf(state)
	statuses := make(map[string]domain.Status, len(colors))
	for _, c := range colors {
		statuses[c.ConstraintFlowID] = c.Status
	}

	fmt.Fprintf(&sb, "## Constraints at `%s`\n\n", state)
	if len(r.Constraints) == 0 {
		sb.WriteString("_No constraints declared._\n\n")
	} else {
		sb.WriteString("| Constraint | Type | Source | Target | Status |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, c := range r.Constraints {
			status := "-"
			if st, ok := statuses[c.ID]; ok {
				status = string(st)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				c.ID, c.Type, orNone(c.SourceRef), orNone(c.TargetRef), status)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Transitions\n\n")
	for _, s := range dfa.States() {
		ts := dfa.TransitionsFrom(s)
		if len(ts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- `%s`\n", s)
		for _, t := range ts {
			fmt.Fprintf(&sb, "  - %s → `%s`\n", t.Symbol, t.To)
		}
	}
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
