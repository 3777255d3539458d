package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/constraintflow/internal/presentation/graph"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDFA(t *testing.T) *automaton.ColoredDFA {
	t.Helper()
	q0 := automaton.Tuple("q0", "c0")
	q1 := automaton.Tuple("q1", "c1")
	q2 := automaton.Tuple("q2", "c2")
	dfa, err := automaton.NewBuilder(q0).
		Transition(q0, "Activity_A", q1).
		Transition(q1, "Activity_B", q2).
		Transition(q1, `Say "hi"`, q0).
		Accept(q2).
		Color(q1,
			domain.ColorEntry{ConstraintFlowID: "c1", Status: domain.StatusSatisfied},
			domain.ColorEntry{ConstraintFlowID: "c2", Status: domain.StatusTemporaryViolated},
		).
		Color(q2, domain.ColorEntry{ConstraintFlowID: "c1", Status: domain.StatusViolated}).
		Build()
	require.NoError(t, err)
	return dfa
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(buildDFA(t), nil)

	tests := []struct {
		name     string
		contains []string
	}{
		{"Header", []string{"graph TD\n"}},
		{"Initial State Shape", []string{`s0(("(q0,c0)"))`}},
		{"Plain State Shape", []string{`s1["(q1,c1)"]`}},
		{"Accepting State Shape", []string{`s2((("(q2,c2)")))`}},
		{"Transitions", []string{
			`s0 -- "Activity_A" --> s1`,
			`s1 -- "Activity_B" --> s2`,
		}},
		{"Label Escaping", []string{`s1 -- "Say 'hi'" --> s0`}},
		{"Worst Status Wins", []string{
			"class s1 temporary_violated;",
			"class s2 violated;",
			"classDef satisfied fill:" + domain.ColorSatisfied,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}

	assert.NotContains(t, out, "class s0 ")
	assert.NotContains(t, out, "Overlay Styles")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	dfa := buildDFA(t)
	out := graph.GenerateMermaid(dfa, &graph.Overlay{
		History: []string{"Activity_A", "Activity_B"},
		Current: automaton.Tuple("q2", "c2"),
	})

	assert.Contains(t, out, "class s0 visited;")
	assert.Contains(t, out, "class s1 visited;")
	assert.Contains(t, out, "class s2 current;")
	assert.Equal(t, 1, strings.Count(out, "class s0 visited;"))
}

func TestGenerateMermaid_OverlayStopsOnUnknownActivity(t *testing.T) {
	out := graph.GenerateMermaid(buildDFA(t), &graph.Overlay{
		History: []string{"Activity_B", "Activity_A"},
	})
	assert.Contains(t, out, "class s0 visited;")
	assert.NotContains(t, out, "class s1 visited;")
	assert.NotContains(t, out, " current;")
}
