// File: cmd/history.go
package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/tripwire-cli/internal/observability"
	"github.com/xkilldash9x/tripwire-cli/internal/runner"
	"github.com/xkilldash9x/tripwire-cli/internal/store"
)

func newHistoryCmd(deps *dependencies) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [scenario]",
		Short: "List recent runs from the run history database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := observability.GetLogger()

			s, cleanup, err := deps.stores.Create(ctx, cfg, logger)
			if err != nil {
				return &runner.ConfigError{Err: fmt.Errorf("failed to open run history store: %w", err)}
			}
			defer cleanup()

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			records, err := s.RecentRuns(ctx, name, limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}

func printHistory(w io.Writer, records []store.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	renderer := lipgloss.NewRenderer(w)
	headerStyle := renderer.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := renderer.NewStyle().Padding(0, 1)

	rows := make([][]string, len(records))
	for i, r := range records {
		verdict := "PASS"
		if !r.Success {
			verdict = "FAIL"
		}
		rows[i] = []string{
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Name,
			verdict,
			strconv.Itoa(r.FailedSteps),
			r.BaseURL,
			r.ID,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("STARTED", "SCENARIO", "VERDICT", "FAILED STEPS", "BASE URL", "RUN ID").
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}
