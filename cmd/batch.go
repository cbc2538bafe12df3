package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/birmacher/capoeira-portal/common"
	"github.com/birmacher/capoeira-portal/llm"
	"github.com/birmacher/capoeira-portal/prompt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type batchItem struct {
	line  int
	panel prompt.Panel
	input string
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Ask several panels at once",
	Long: `Read "panel: text" lines from a file (or stdin) and send them concurrently.
Blank lines and lines starting with # are skipped. Answers are printed in input order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open batch file: %w", err)
			}
			defer f.Close()
			in = f
		}

		items, err := parseBatch(in)
		if err != nil {
			return err
		}

		settings, err := parseSettings(cmd)
		if err != nil {
			return err
		}
		if concurrency, _ := cmd.Flags().GetInt("concurrency"); cmd.Flags().Changed("concurrency") {
			settings.Output.Concurrency = concurrency
		}

		invoker, err := newInvoker(settings)
		if err != nil {
			return err
		}
		defer invoker.Close()

		results := runBatch(cmd, invoker, settings, items)

		out := cmd.OutOrStdout()
		for i, item := range items {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "## %s: %s\n%s\n", item.panel.Title, item.input,
				common.WrapString(results[i], settings.Output.WrapWidth))
		}
		return nil
	},
}

// runBatch invokes every item with at most settings.Output.Concurrency requests in flight
func runBatch(cmd *cobra.Command, invoker *llm.Invoker, settings common.Settings, items []batchItem) []string {
	results := make([]string, len(items))
	var lock sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	if settings.Output.Concurrency > 0 {
		g.SetLimit(settings.Output.Concurrency)
	}

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			text, err := prompt.Build(item.panel.Name, item.input)
			if err != nil {
				results[i] = llm.ErrorMessage(err)
				return nil
			}
			req := llm.Request{
				Prompt: prompt.Localize(text, settings.Language),
				Label:  fmt.Sprintf("%s#%d", item.panel.Name, item.line),
			}
			label := fmt.Sprintf("%s (line %d)", item.panel.Title, item.line)
			results[i] = invoker.Invoke(ctx, req, newIndicator(cmd, label, &lock))
			return nil
		})
	}
	// Invoke never fails, so Wait only waits
	_ = g.Wait()

	return results
}

func parseBatch(r io.Reader) ([]batchItem, error) {
	var items []batchItem
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, input, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"panel: text\", got %q", lineNo, line)
		}
		panel, err := prompt.Get(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		items = append(items, batchItem{
			line:  lineNo,
			panel: panel,
			input: strings.TrimSpace(input),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("batch input contains no requests")
	}
	return items, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addGenerationFlags(batchCmd)
	batchCmd.Flags().IntP("concurrency", "j", 4, "Maximum number of requests in flight")
}
