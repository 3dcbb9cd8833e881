package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosim-dev/cosim/sim/component"
	"github.com/cosim-dev/cosim/sim/execution"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the scheduling methods",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, m := range execution.Methods() {
			pooled := ""
			if m.IsPooled() {
				pooled = " [--workers]"
			}
			fmt.Fprintf(out, "%-28s %s%s\n", m, execution.Describe(m), pooled)
		}
	},
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the built-in component kinds and their variables",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, k := range component.Kinds() {
			c, err := component.New(k, k, nil)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "%s\n", k)
			for _, v := range c.Variables() {
				start := ""
				if v.Start != "" {
					start = " = " + v.Start
				}
				fmt.Fprintf(out, "  %-10s %-9s %s%s\n", v.Name, v.Causality, v.Type, start)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(kindsCmd)
}
