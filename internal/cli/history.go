package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valentindosimont/keyquery/internal/present"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lookups",
		Long:  "List recent lookups from the local journal. Tokens are never recorded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.History(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No lookups recorded yet")
				return nil
			}
			p := a.Presenter()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-8s  %s\n", p.FormatTime(e.StartedAt.Unix()), e.Outcome, e.Elapsed)
			}

			counts, err := a.HistorySummary()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, present.OutcomeSummary(counts))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries to show (default history.limit)")

	return cmd
}
