package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cosim-dev/cosim/sim/system"
)

var graphSystemPath string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph of a system",
	Long:  "Build a system description and print its dependency graph in DOT format, followed by the algebraic loops found in it.",
	Run: func(cmd *cobra.Command, args []string) {
		d, err := system.Load(graphSystemPath)
		if err != nil {
			logrus.Fatalf("Failed to load system %s: %v", graphSystemPath, err)
		}
		s, err := d.Build()
		if err != nil {
			logrus.Fatalf("Failed to build system: %v", err)
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		fmt.Fprint(out, s.Graph.DOT())
		loops := s.Graph.AlgebraicLoops()
		if len(loops) == 0 {
			fmt.Fprintln(out, "// no algebraic loops")
			return
		}
		fmt.Fprintf(out, "// %d algebraic loop(s); seidel methods cannot order them\n", len(loops))
		fmt.Fprint(out, s.Graph.FormatComponents(loops))
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphSystemPath, "system", "", "Path to the YAML system description")
	_ = graphCmd.MarkFlagRequired("system")

	rootCmd.AddCommand(graphCmd)
}
