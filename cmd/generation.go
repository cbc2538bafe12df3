package cmd

import (
	"fmt"
	"sync"

	"github.com/birmacher/capoeira-portal/common"
	"github.com/birmacher/capoeira-portal/indicator"
	"github.com/birmacher/capoeira-portal/llm"
	"github.com/birmacher/capoeira-portal/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// addGenerationFlags registers the flags shared by every command that calls the API
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("provider", "p", common.ProviderGemini, "LLM provider to use (gemini, openai, anthropic)")
	cmd.Flags().StringP("model", "m", "", "Model to use (defaults to the provider's default model)")
	cmd.Flags().IntP("max-retries", "r", 3, "Maximum attempts per request; only rate-limited attempts are repeated")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().BoolP("quiet", "q", false, "Report progress in the debug log instead of on stderr")
}

// newIndicator picks the progress indicator for one request
func newIndicator(cmd *cobra.Command, label string, lock *sync.Mutex) llm.Indicator {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return indicator.NewLog(label)
	}
	return indicator.NewTerminal(label, cmd.ErrOrStderr(), lock)
}

// parseSettings loads the settings file and applies command line overrides
func parseSettings(cmd *cobra.Command) (common.Settings, error) {
	var settings common.Settings
	if configPath != "" {
		var err error
		if settings, err = common.LoadSettings(configPath); err != nil {
			return settings, err
		}
	} else {
		settings = common.WithYamlFile()
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		settings.Generation.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		settings.Generation.Model, _ = flags.GetString("model")
	}
	if flags.Changed("max-retries") {
		settings.Generation.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if noColor, _ := flags.GetBool("no-color"); noColor || settings.Output.NoColor {
		color.NoColor = true
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}

	logger.Debugf("Using settings: %+v", settings.Generation)
	return settings, nil
}

// newInvoker builds the provider and invoker described by settings
func newInvoker(settings common.Settings) (*llm.Invoker, error) {
	gen := settings.Generation

	provider, err := llm.NewProvider(gen.Provider, settings.APIKey,
		llm.WithModel(gen.Model),
		llm.WithBaseURL(gen.BaseURL),
		llm.WithMaxTokens(gen.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for provider: %w", err)
	}

	return llm.NewInvoker(provider,
		llm.WithMaxRetries(gen.MaxRetries),
		llm.WithRetryBaseDelay(gen.RetryBaseDelay),
		llm.WithAPITimeout(gen.APITimeout),
	), nil
}
