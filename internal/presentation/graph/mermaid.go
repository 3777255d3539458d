package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/domain"
)

// Overlay contains dynamic cursor data to visualize on the graph.
type Overlay struct {
	// History is the sequence of activities that advanced the cursor.
	History []string
	Current automaton.State
}

// GenerateMermaid produces a Mermaid flowchart of a colored automaton.
// It applies semantic styling:
// - Initial state: ((Circle))
// - Accepting state: (((Double circle)))
// - Default: [Rectangle]
// States are filled with the worst status they carry, and the overlay
// marks the states replayed from History and the current state.
func GenerateMermaid(dfa *automaton.ColoredDFA, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	states := dfa.States()
	ids := make(map[automaton.State]string, len(states))
	for i, s := range states {
		ids[s] = fmt.Sprintf("s%d", i)
	}

	for _, s := range states {
		opener, closer := "[", "]"
		switch {
		case s == dfa.InitialState():
			opener, closer = "((", "))"
		case dfa.IsAccepting(s):
			opener, closer = "(((", ")))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", ids[s], opener, escapeLabel(s.String()), closer))
	}

	for _, s := range states {
		for _, t := range dfa.TransitionsFrom(s) {
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", ids[s], escapeLabel(t.Symbol), ids[t.To]))
		}
	}

	sb.WriteString("\n    %% Status Styles\n")
	for _, st := range []domain.Status{domain.StatusSatisfied, domain.StatusTemporarySatisfied, domain.StatusTemporaryViolated, domain.StatusViolated} {
		sb.WriteString(fmt.Sprintf("    classDef %s fill:%s,color:#000;\n", st, st.Color()))
	}
	for _, s := range states {
		if st, ok := worstStatus(dfa, s); ok {
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", ids[s], st))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds.
		sb.WriteString("    classDef visited stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		cursor := dfa.InitialState()
		for _, activity := range overlay.History {
			if id := ids[cursor]; !visited[id] {
				visited[id] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", id))
			}
			next, ok := dfa.NextState(cursor, activity)
			if !ok {
				break
			}
			cursor = next
		}

		if id, ok := ids[overlay.Current]; ok {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", id))
		}
	}

	return sb.String()
}

// worstStatus ranks violated above temporary_violated above
// temporary_satisfied above satisfied.
func worstStatus(dfa *automaton.ColoredDFA, s automaton.State) (domain.Status, bool) {
	colors, ok := dfa.ColorOf(s)
	if !ok || len(colors) == 0 {
		return "", false
	}
	rank := map[domain.Status]int{
		domain.StatusSatisfied:          1,
		domain.StatusTemporarySatisfied: 2,
		domain.StatusTemporaryViolated:  3,
		domain.StatusViolated:           4,
	}
	var worst domain.Status
	for _, c := range colors {
		if rank[c.Status] > rank[worst] {
			worst = c.Status
		}
	}
	return worst, worst != ""
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
