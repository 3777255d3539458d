package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <model.bpmn>",
	Short: "Rewrite event-based gateways into exclusive gateways",
	Long: `Parses the model, replaces every event-based gateway and its intermediate
catch events with plain exclusive routing, and prints the resulting XML.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		data, err := readModel(cmd, args[0])
		if err != nil {
			return err
		}
		m, err := bpmn.ParseBytes(data)
		if err != nil {
			return err
		}
		bpmn.Normalize(m)
		xml, err := m.Bytes()
		if err != nil {
			return err
		}
		return writeOutput(cmd, out, xml)
	},
}

var constraintsCmd = &cobra.Command{
	Use:   "constraints <model.bpmn>",
	Short: "List the constraints declared in a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		data, err := readModel(cmd, args[0])
		if err != nil {
			return err
		}
		p, err := constraintflow.New(constraintflow.WithLogger(logger)).Prepare(data)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p.Constraints)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSOURCE\tTARGET")
		for _, c := range p.Constraints {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Type, c.SourceRef, c.TargetRef)
		}
		return w.Flush()
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <model.bpmn>",
	Short: "Export one standalone document per pool",
	Long: `Normalizes the model and writes one BPMN document per participant into the
output directory, named after the process id. Without --dir only the ids are listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		data, err := readModel(cmd, args[0])
		if err != nil {
			return err
		}
		p, err := constraintflow.New(constraintflow.WithLogger(logger)).Prepare(data)
		if err != nil {
			return err
		}

		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		for _, sub := range p.SubModels {
			if dir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), sub.ID)
				continue
			}
			path := filepath.Join(dir, sub.ID+".bpmn")
			if err := os.WriteFile(path, []byte(sub.XML), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", sub.ID, path)
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringP("output", "o", "", "Write the result to a file instead of stdout")
	constraintsCmd.Flags().Bool("json", false, "Print the constraint records as JSON")
	splitCmd.Flags().StringP("dir", "d", "", "Directory to write the per-pool documents into")

	rootCmd.AddCommand(normalizeCmd, constraintsCmd, splitCmd)
}
