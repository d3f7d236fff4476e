package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"restqa/internal/assert"
	"restqa/internal/endpoints"
	"restqa/internal/steps"
)

// restqa endpoints: print the endpoint catalog.
var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the endpoint catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATH")
		fmt.Fprintln(w, "----\t----")
		for _, name := range endpoints.Names() {
			path, _ := endpoints.Lookup(name)
			fmt.Fprintf(w, "%s\t%s\n", name, path)
		}
		return w.Flush()
	},
}

// restqa steps: print every step pattern and built-in schema.
var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the registered step patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := steps.Default()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range reg.Patterns() {
			fmt.Fprintln(out, p)
		}
		fmt.Fprintf(out, "\n%d steps; schemas: %v\n", reg.Len(), assert.SchemaNames())
		return nil
	},
}
