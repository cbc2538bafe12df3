package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/birmacher/capoeira-portal/prompt"
	"github.com/spf13/cobra"
)

var panelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "List the available study panels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTITLE\tDESCRIPTION")
		for _, panel := range prompt.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", panel.Name, panel.Title, panel.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(panelsCmd)
}
