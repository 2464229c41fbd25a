package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/report-harvester/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recent harvest runs, or per-company outcomes for one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.Path == "" {
			return eris.New("run history is disabled (store.path is empty)")
		}
		st, err := storeOpen(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 1 {
			outcomes, err := st.Outcomes(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "load outcomes")
			}
			for _, o := range outcomes {
				fmt.Printf("%-12s %-20s %s\n", o.Symbol, o.Outcome, firstLine(o.Messages))
			}
			return nil
		}

		runs, err := st.RecentRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "load runs")
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  companies=%d satisfied=%d unsatisfied=%d\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Companies, r.Satisfied, r.Unsatisfied)
		}
		return nil
	},
}

func storeOpen(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate run store")
	}
	return st, nil
}

func firstLine(messages []string) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[0]
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}
