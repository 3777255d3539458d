package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "../../pkg/bpmn/testdata/two_pools.bpmn"

const orderDFA = `{
	"states": ["(q0,c0)", "(q1,c1)", "(q2,c2)"],
	"alphabet": ["Activity_Order", "Activity_Ship"],
	"transition_function": {
		"(q0,c0)": [{"symbol": "Activity_Order", "target": "(q1,c1)"}],
		"(q1,c1)": [{"symbol": "Activity_Ship", "target": "(q2,c2)"}]
	},
	"init_state": "(q0,c0)",
	"accept_states": ["(q2,c2)"],
	"colors": {
		"(q1,c1)": [{"Constraint_Response": "temporary_violated"}],
		"(q2,c2)": [{"Constraint_Response": "satisfied"}]
	}
}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeAutomaton(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(path, []byte(orderDFA), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "0.1.0")
}

func TestNormalize(t *testing.T) {
	out, err := run(t, "", "normalize", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "definitions")
	assert.NotContains(t, out, "eventBasedGateway")
}

func TestConstraints(t *testing.T) {
	out, err := run(t, "", "constraints", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Constraint_Response")
	assert.Contains(t, out, "Constraint_Exists")
}

func TestSplit(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "", "split", fixture, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Process_Customer")

	data, err := os.ReadFile(filepath.Join(dir, "Process_Shop.bpmn"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Process_Shop")
}

func TestInspect_Mermaid(t *testing.T) {
	out, err := run(t, "", "inspect", fixture, "--automaton", writeAutomaton(t), "--format", "mermaid", "--state", "(q1,c1)")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"), out)
	assert.Contains(t, out, "Activity_Order")
}

func TestInspect_UnknownFormat(t *testing.T) {
	_, err := run(t, "", "inspect", fixture, "--automaton", writeAutomaton(t), "--format", "svg")
	assert.ErrorContains(t, err, "unknown format")
}

func TestReplay_Stdin(t *testing.T) {
	out, err := run(t, "Activity_Order\nActivity_Ship\n", "replay", fixture, "--automaton", writeAutomaton(t))
	require.NoError(t, err)
	assert.Contains(t, out, "2 activities, 2 advanced")
	assert.Contains(t, out, "(accepting)")
}

func TestReplay_MissingModel(t *testing.T) {
	_, err := run(t, "", "replay", "missing.bpmn", "--automaton", writeAutomaton(t))
	assert.ErrorContains(t, err, "failed to read model")
}

func TestInspect_MarkdownPlain(t *testing.T) {
	out, err := run(t, "", "inspect", fixture, "--automaton", writeAutomaton(t), "--format", "markdown", "--state", "")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+fixture)
	assert.Contains(t, out, "| Constraint_Response | response |")
}
