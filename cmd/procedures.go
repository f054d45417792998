package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/hostcomply/pkg/procedures"
)

var proceduresCmd = &cobra.Command{
	Use:   "procedures",
	Short: "List the built-in procedures",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tAUDIT\tREMEDIATE")
		for _, p := range procedures.NewRegistry().Procedures() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, yesNo(p.HasAudit), yesNo(p.HasRemediate))
		}
		w.Flush()
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(proceduresCmd)
}
