package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/archive"
	"github.com/sells-group/report-harvester/internal/fetcher"
	"github.com/sells-group/report-harvester/internal/harvest"
	"github.com/sells-group/report-harvester/internal/ledger"
	"github.com/sells-group/report-harvester/internal/model"
	"github.com/sells-group/report-harvester/internal/source"
	"github.com/sells-group/report-harvester/internal/store"
	"github.com/sells-group/report-harvester/internal/worklist"
)

var (
	harvestWorklistPath string
	harvestOutputDir    string
	harvestHeaded       bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Download annual reports for every company in the worklist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		companies, err := worklist.Read(harvestWorklistPath)
		if err != nil {
			return eris.Wrap(err, "read worklist")
		}
		zap.L().Info("worklist loaded",
			zap.Int("companies", len(companies)),
			zap.String("path", harvestWorklistPath),
		)

		outputBase := cfg.Output.BaseDir
		if harvestOutputDir != "" {
			outputBase = harvestOutputDir
		}

		var history store.Store
		if cfg.Store.Path != "" {
			st, err := store.NewSQLite(cfg.Store.Path)
			if err != nil {
				return eris.Wrap(err, "open run store")
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate run store")
			}
			history = st
		}

		browser, err := source.LaunchBrowser(cfg.Browser.Headless && !harvestHeaded)
		if err != nil {
			return eris.Wrap(err, "launch browser")
		}
		defer func() {
			if err := browser.Close(); err != nil {
				zap.L().Warn("browser close failed", zap.Error(err))
			}
		}()

		navTimeout := time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second
		waitTimeout := time.Duration(cfg.Browser.WaitTimeoutSecs) * time.Second

		primary := source.NewBSE(browser, cfg.Sources.BSE.IndexURL, navTimeout, waitTimeout)
		fallback := source.NewNSE(browser, cfg.Sources.NSE.QuoteURLTemplate, navTimeout, waitTimeout, cfg.Output.ScreenshotDir)

		led := ledger.New()
		fetch := fetcher.New(fetcher.Options{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(cfg.Fetch.HostRate, cfg.Fetch.HostBurst),
			Progress:     printTransferRate,
		})
		orchestrator := harvest.New(primary, fallback, fetch, archive.New(led), led, harvest.Options{
			OutputBase:  outputBase,
			PrimaryDir:  cfg.Output.PrimaryDir,
			FallbackDir: cfg.Output.FallbackDir,
		})

		var runID string
		if history != nil {
			if runID, err = history.CreateRun(ctx); err != nil {
				return eris.Wrap(err, "create run record")
			}
		}

		summary := orchestrator.Run(ctx, companies)

		if history != nil {
			recordRun(cmd, history, runID, companies, summary, led)
		}

		return finishRun(summary, led)
	},
}

// recordRun persists the run outcome. History failures are logged, never
// allowed to fail a completed acquisition run.
func recordRun(cmd *cobra.Command, history store.Store, runID string, companies []model.Company, summary *harvest.Summary, led *ledger.Ledger) {
	ctx := cmd.Context()
	for _, c := range companies {
		err := history.RecordOutcome(ctx, store.CompanyOutcome{
			RunID:    runID,
			Symbol:   c.Symbol,
			Name:     c.Name,
			Outcome:  summary.Outcomes[c.Symbol],
			Messages: led.Messages(c.Symbol),
		})
		if err != nil {
			zap.L().Warn("record outcome failed", zap.String("symbol", c.Symbol), zap.Error(err))
		}
	}
	if err := history.CompleteRun(ctx, runID, summary.Total, summary.Satisfied, summary.Unsatisfied); err != nil {
		zap.L().Warn("complete run record failed", zap.Error(err))
	}
}

// finishRun writes the failure report when needed and prints the final
// summary. A report-writing failure is surfaced but does not negate the
// completed acquisition phase.
func finishRun(summary *harvest.Summary, led *ledger.Ledger) error {
	if led.Len() == 0 {
		fmt.Printf("All %d companies satisfied; no failure report written.\n", summary.Total)
		return nil
	}

	if err := worklist.WriteFailureReport(cfg.Output.FailureReport, led.Entries()); err != nil {
		zap.L().Error("failure report could not be written; acquisition phase completed",
			zap.String("path", cfg.Output.FailureReport),
			zap.Error(err),
		)
		fmt.Printf("Run complete: %d/%d companies satisfied; failure report could not be written.\n",
			summary.Satisfied, summary.Total)
		return eris.Wrap(err, "write failure report")
	}

	fmt.Printf("Run complete: %d/%d companies satisfied; %d companies have messages in %s.\n",
		summary.Satisfied, summary.Total, led.Len(), cfg.Output.FailureReport)
	return nil
}

// printTransferRate is the advisory download progress indicator.
func printTransferRate(bytesPerSec, total int64) {
	fmt.Fprintf(os.Stdout, "\r  downloading: %s/s (%s received)", formatBytes(bytesPerSec), formatBytes(total))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	harvestCmd.Flags().StringVar(&harvestWorklistPath, "worklist", "", "path to the company worklist xlsx (required)")
	harvestCmd.Flags().StringVar(&harvestOutputDir, "output", "", "base output directory (overrides config)")
	harvestCmd.Flags().BoolVar(&harvestHeaded, "headed", false, "run the browser with a visible window")
	_ = harvestCmd.MarkFlagRequired("worklist")
	rootCmd.AddCommand(harvestCmd)
}
