package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/constraintflow/internal/cli"
	"github.com/aretw0/constraintflow/internal/config"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cflow",
	Short: "cflow monitors declarative constraints over BPMN simulations",
	Long: `cflow compiles the constraints annotated on a BPMN model into a colored
automaton and tracks token simulation traces against it, reporting which
constraints are satisfied or violated as activities complete.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			cfg.Backend.URL, _ = cmd.Flags().GetString("backend")
		}
		logger = cli.NewLogger(cfg, debug)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the configuration file (yaml or json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("backend", "", "Base URL of the automaton compiler service")
}

// readModel reads a BPMN document from path, or from stdin when path is "-".
func readModel(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return data, nil
}

// writeOutput writes data to path, or to the command output when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorProfile returns the profile to paint w with; anything but a terminal gets plain text.
func colorProfile(w io.Writer) termenv.Profile {
	if !isTerminal(w) {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}
