package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/constraintflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP monitor server",
	Long: `Starts the monitor behind an HTTP API with server-sent events and a websocket
stream of emitted events. With Redis configured, host events published by other
processes are relayed onto the local bus.

With --mcp the monitor is served as a Model Context Protocol server on
stdin/stdout instead, so an agent can load models and fire activities as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		useMCP, _ := cmd.Flags().GetBool("mcp")
		if cmd.Flags().Changed("listen") {
			cfg.Listen, _ = cmd.Flags().GetString("listen")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stack, err := cli.BuildStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		return cli.Serve(ctx, stack, cfg, logger, cli.ServeOptions{
			Model: model,
			MCP:   useMCP,
			In:    cmd.InOrStdin(),
			Out:   cmd.OutOrStdout(),
		})
	},
}

func init() {
	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	serveCmd.Flags().StringP("model", "m", "", "BPMN model to load at startup")
	serveCmd.Flags().Bool("mcp", false, "Serve the Model Context Protocol over stdio instead of HTTP")
	rootCmd.AddCommand(serveCmd)
}
