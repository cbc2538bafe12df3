package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/birmacher/capoeira-portal/common"
	"github.com/birmacher/capoeira-portal/llm"
	"github.com/birmacher/capoeira-portal/prompt"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <panel> [text...]",
	Short: "Ask one of the study panels a question",
	Long: `Forward text to a study panel's prompt and print the generated answer.
When no text is given on the command line it is read from stdin.`,
	Example: `  capoeira-portal ask movement "meia lua de compasso"
  echo "Paranauê, paranauê, paraná" | capoeira-portal ask translate`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		panel, err := prompt.Get(args[0])
		if err != nil {
			return err
		}

		input := strings.Join(args[1:], " ")
		if len(args) == 1 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			input = strings.TrimSpace(string(data))
		}

		settings, err := parseSettings(cmd)
		if err != nil {
			return err
		}

		invoker, err := newInvoker(settings)
		if err != nil {
			return err
		}
		defer invoker.Close()

		text, err := prompt.Build(panel.Name, input)
		if err != nil {
			return err
		}
		req := llm.Request{
			Prompt: prompt.Localize(text, settings.Language),
			Label:  panel.Name,
		}
		result := invoker.Invoke(cmd.Context(), req, newIndicator(cmd, panel.Title, nil))

		fmt.Fprintln(cmd.OutOrStdout(), common.WrapString(result, settings.Output.WrapWidth))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	addGenerationFlags(askCmd)
}
