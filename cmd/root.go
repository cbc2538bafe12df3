package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/birmacher/capoeira-portal/logger"
	"github.com/spf13/cobra"
)

var (
	// Command line flags
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "capoeira-portal",
	Short: "Capoeira Portal - ask the portal's study panels from the terminal",
	Long: `Capoeira Portal sends questions from the portal's study panels (history, movements,
music, song translation, training plans) to a generative-text API and prints the answers.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize logger with the specified log level
		logger.Init(logLevel)
		logger.Debugf("Log level set to: %s", logLevel)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior when no subcommands are provided
		cmd.Help()
	},
}

// Execute runs the root command and handles errors. An interrupt cancels
// in-flight requests, including their backoff waits.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Subcommands are added in their respective init() functions
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all subcommands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Set the logging level (debug, info, warn, error, dpanic, panic, fatal)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a settings file (defaults to capoeira.yml in the current directory)")
}
