package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	q0 := automaton.NewState("q0")
	q1 := automaton.NewState("q1")
	dfa, err := automaton.NewBuilder(q0).
		Transition(q0, "Activity_A", q1).
		Accept(q1).
		Color(q0, domain.ColorEntry{ConstraintFlowID: "Flow_c1", Status: domain.StatusTemporaryViolated}).
		Color(q1, domain.ColorEntry{ConstraintFlowID: "Flow_c1", Status: domain.StatusSatisfied}).
		Build()
	require.NoError(t, err)
	return Report{
		Automaton: dfa,
		Constraints: []domain.ConstraintRecord{
			{ID: "Flow_c1", SourceRef: "Activity_A", TargetRef: "Activity_B", Type: domain.ConstraintResponse},
			{ID: "Flow_c2", SourceRef: "Activity_B", Type: domain.ConstraintExistence},
		},
	}
}

func TestReport_Markdown(t *testing.T) {
	md := sampleReport(t).Markdown()

	assert.True(t, strings.HasPrefix(md, "# Constraint automaton\n"))
	assert.Contains(t, md, "- **States:** 2")
	assert.Contains(t, md, "- **Accepting:** `q1`")
	assert.Contains(t, md, "## Constraints at `q0`")
	assert.Contains(t, md, "| Flow_c1 | response | Activity_A | Activity_B | temporary_violated |")
	assert.Contains(t, md, "| Flow_c2 | existence | Activity_B | - | - |")
	assert.Contains(t, md, "  - Activity_A → `q1`")
}

func TestReport_AtState(t *testing.T) {
	r := sampleReport(t)
	r.Title = "order.bpmn"
	r.State = automaton.NewState("q1")
	md := r.Markdown()

	assert.Contains(t, md, "# order.bpmn")
	assert.Contains(t, md, "| Flow_c1 | response | Activity_A | Activity_B | satisfied |")
}

func TestReport_NoConstraints(t *testing.T) {
	r := sampleReport(t)
	r.Constraints = nil
	assert.Contains(t, r.Markdown(), "_No constraints declared._")
}

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(80)
	require.NoError(t, err)
	out, err := render(sampleReport(t).Markdown())
	require.NoError(t, err)
	assert.Contains(t, out, "Flow_c1")
}

func TestStatusString(t *testing.T) {
	// Ascii profile strips colors so the text is stable.
	assert.Equal(t, "✔ satisfied", StatusString(termenv.Ascii, domain.StatusSatisfied).String())
	assert.Equal(t, "✘ violated", StatusString(termenv.Ascii, domain.StatusViolated).String())
	assert.Equal(t, "? bogus", StatusString(termenv.Ascii, domain.Status("bogus")).String())

	line := FormatStatusEvent(termenv.Ascii, domain.StatusEvent{
		ConstraintFlowID: "Flow_c1",
		ConstraintType:   domain.ConstraintResponse,
		Status:           domain.StatusTemporaryViolated,
		ActivityID:       "Activity_A",
	})
	assert.Contains(t, line, "Flow_c1")
	assert.Contains(t, line, "◑ temporary_violated")
	assert.Contains(t, line, "(after Activity_A)")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")
	assert.Contains(t, buf.String(), "v1.2.3")
}
