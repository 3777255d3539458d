package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/presentation/graph"
	"github.com/aretw0/constraintflow/internal/presentation/tui"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <model.bpmn>",
	Short: "Compile a model into its colored automaton",
	Long:  `Sends the per-pool documents and constraints to the compiler service and prints the automaton in its wire format.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		dfa, _, err := compileModel(cmd, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(dfa, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, append(data, '\n'))
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <model.bpmn>",
	Short: "Describe the automaton compiled from a model",
	Long: `Compiles the model and prints a report of its states, transitions and the
constraint colors at a given state. --format mermaid emits a state diagram instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		at, _ := cmd.Flags().GetString("state")
		from, _ := cmd.Flags().GetString("automaton")

		var (
			dfa         *automaton.ColoredDFA
			constraints []domain.ConstraintRecord
			err         error
		)
		if from != "" {
			dfa, constraints, err = loadAutomaton(cmd, args[0], from)
		} else {
			dfa, constraints, err = compileModel(cmd, args[0])
		}
		if err != nil {
			return err
		}

		var state automaton.State
		if at != "" {
			state = automaton.NewState(at)
		}

		switch format {
		case "mermaid":
			var overlay *graph.Overlay
			if !state.IsZero() {
				overlay = &graph.Overlay{Current: state}
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(dfa, overlay))
			return nil
		case "markdown", "md":
			report := tui.Report{Title: args[0], Automaton: dfa, Constraints: constraints, State: state}
			if !isTerminal(cmd.OutOrStdout()) {
				fmt.Fprint(cmd.OutOrStdout(), report.Markdown())
				return nil
			}
			render, err := tui.NewRenderer(0)
			if err != nil {
				return err
			}
			text, err := render(report.Markdown())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		default:
			return fmt.Errorf("unknown format %q (expected markdown or mermaid)", format)
		}
	},
}

func compileModel(cmd *cobra.Command, path string) (*automaton.ColoredDFA, []domain.ConstraintRecord, error) {
	data, err := readModel(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	eng := constraintflow.New(
		constraintflow.WithLogger(logger),
		constraintflow.WithBackendURL(cfg.Backend.URL),
		constraintflow.WithCompileTimeout(cfg.Backend.Timeout),
	)
	return eng.Compile(cmd.Context(), data)
}

// loadAutomaton pairs a previously compiled automaton with the constraints of its model.
func loadAutomaton(cmd *cobra.Command, modelPath, dfaPath string) (*automaton.ColoredDFA, []domain.ConstraintRecord, error) {
	data, err := readModel(cmd, modelPath)
	if err != nil {
		return nil, nil, err
	}
	p, err := constraintflow.New(constraintflow.WithLogger(logger)).Prepare(data)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(dfaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read automaton: %w", err)
	}
	dfa, err := automaton.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return dfa, p.Constraints, nil
}

// staticCompiler serves an already compiled automaton.
func staticCompiler(dfa *automaton.ColoredDFA) compiler.Func {
	return func(context.Context, []bpmn.SubModel, []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
		return dfa, nil
	}
}

func init() {
	compileCmd.Flags().StringP("output", "o", "", "Write the automaton to a file instead of stdout")
	inspectCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown or mermaid")
	inspectCmd.Flags().String("state", "", "State whose constraint colors are shown (default: initial)")
	inspectCmd.Flags().String("automaton", "", "Use a previously compiled automaton instead of calling the compiler")

	rootCmd.AddCommand(compileCmd, inspectCmd)
}
