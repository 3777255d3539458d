package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/cli"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <model.bpmn> [trace]",
	Short: "Replay a simulation trace against a model",
	Long: `Loads the model, then feeds each line of the trace to the monitor as a host
event. A line is either an activity id (its exit), an activity event as JSON, or
{"topic": ..., "payload": ...}. The trace is read from stdin when omitted or "-".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("automaton")
		ctx := cmd.Context()

		var extra []cli.StackOption
		if from != "" {
			raw, err := os.ReadFile(from)
			if err != nil {
				return fmt.Errorf("failed to read automaton: %w", err)
			}
			dfa, err := automaton.Decode(raw)
			if err != nil {
				return err
			}
			extra = append(extra, cli.WithEngineOption(constraintflow.WithCompiler(staticCompiler(dfa))))
		}

		stack, err := cli.BuildStack(ctx, cfg, logger, extra...)
		if err != nil {
			return err
		}
		defer stack.Close()

		data, err := readModel(cmd, args[0])
		if err != nil {
			return err
		}
		if err := stack.Engine.Load(ctx, data); err != nil {
			return err
		}

		var trace io.Reader = cmd.InOrStdin()
		if len(args) == 2 && args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open trace: %w", err)
			}
			defer f.Close()
			trace = f
		}

		out := cmd.OutOrStdout()
		sum, err := cli.Replay(ctx, stack.Engine, trace, out, colorProfile(out))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d activities, %d advanced, %d violation reports. Final state %s",
			sum.Activities, sum.Advanced, sum.Violations, sum.Final)
		if sum.Accepting {
			fmt.Fprint(out, " (accepting)")
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	replayCmd.Flags().String("automaton", "", "Use a previously compiled automaton instead of calling the compiler")
	rootCmd.AddCommand(replayCmd)
}
