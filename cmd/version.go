package cmd

import (
	"fmt"

	"github.com/birmacher/capoeira-portal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the version of the capoeira portal CLI`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Capoeira Portal v%s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
