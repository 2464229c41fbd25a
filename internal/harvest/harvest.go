// Package harvest runs the per-company acquisition state machine:
// primary source first, fallback second, every diagnostic into the ledger.
package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/archive"
	"github.com/sells-group/report-harvester/internal/fetcher"
	"github.com/sells-group/report-harvester/internal/ledger"
	"github.com/sells-group/report-harvester/internal/model"
	"github.com/sells-group/report-harvester/internal/source"
)

// Options locates the output layout: one directory per source under
// OutputBase, one subdirectory per company symbol inside it.
type Options struct {
	OutputBase  string
	PrimaryDir  string
	FallbackDir string
}

// Orchestrator processes companies strictly sequentially. A company's
// failure never aborts the run.
type Orchestrator struct {
	primary    source.Source
	fallback   source.Source
	fetcher    *fetcher.Fetcher
	normalizer *archive.Normalizer
	ledger     *ledger.Ledger
	opts       Options
}

// New creates an Orchestrator with all dependencies.
func New(primary, fallback source.Source, f *fetcher.Fetcher, n *archive.Normalizer, led *ledger.Ledger, opts Options) *Orchestrator {
	return &Orchestrator{
		primary:    primary,
		fallback:   fallback,
		fetcher:    f,
		normalizer: n,
		ledger:     led,
		opts:       opts,
	}
}

// Summary is the final tally of a run.
type Summary struct {
	Total       int
	Satisfied   int
	Unsatisfied int
	Outcomes    map[string]model.Outcome
}

// Run acquires reports for every company in worklist order.
func (o *Orchestrator) Run(ctx context.Context, companies []model.Company) *Summary {
	summary := &Summary{
		Total:    len(companies),
		Outcomes: make(map[string]model.Outcome, len(companies)),
	}

	for i, c := range companies {
		zap.L().Info("harvest: processing company",
			zap.String("symbol", c.Symbol),
			zap.Int("position", i+1),
			zap.Int("total", len(companies)),
		)
		outcome := o.acquireCompany(ctx, c)
		summary.Outcomes[c.Symbol] = outcome
		if outcome.Satisfied() {
			summary.Satisfied++
		} else {
			summary.Unsatisfied++
		}
		zap.L().Info("harvest: company finished",
			zap.String("symbol", c.Symbol),
			zap.String("outcome", string(outcome)),
		)
	}
	return summary
}

// acquireCompany runs one company's full attempt sequence. Panics are
// contained here so one company cannot take down the run.
func (o *Orchestrator) acquireCompany(ctx context.Context, c model.Company) (outcome model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.ledger.Recordf(c.Symbol, c.Name, "unexpected failure: %v", r)
			outcome = model.OutcomeUnsatisfied
		}
	}()

	if o.acquireFrom(ctx, o.primary, o.opts.PrimaryDir, c) > 0 {
		return model.OutcomeSatisfiedPrimary
	}
	if o.acquireFrom(ctx, o.fallback, o.opts.FallbackDir, c) > 0 {
		return model.OutcomeSatisfiedFallback
	}

	o.ledger.Record(c.Symbol, c.Name, "no reports found on either source")
	return model.OutcomeUnsatisfied
}

// acquireFrom discovers and downloads every reference one source holds
// for the company, returning the number of successful downloads. A
// discovery error is a source failure; an empty reference list is not.
func (o *Orchestrator) acquireFrom(ctx context.Context, src source.Source, dirName string, c model.Company) int {
	refs, err := src.Discover(ctx, c)
	if err != nil {
		o.ledger.Recordf(c.Symbol, c.Name, "%s: discovery failed: %v", src.Name(), err)
		return 0
	}
	if len(refs) == 0 {
		zap.L().Info("harvest: no references found",
			zap.String("source", src.Name()),
			zap.String("symbol", c.Symbol),
		)
		return 0
	}

	companyDir := filepath.Join(o.opts.OutputBase, dirName, model.SanitizeFilename(c.Symbol))
	if err := os.MkdirAll(companyDir, 0o755); err != nil {
		o.ledger.Recordf(c.Symbol, c.Name, "%s: create output directory: %v", src.Name(), err)
		return 0
	}

	downloaded := 0
	for _, ref := range refs {
		// Sources filter by year; this is the last gate before the fetcher.
		if ref.Year < model.MinReportYear {
			continue
		}
		dest := filepath.Join(companyDir, destName(c.Symbol, ref))
		if _, err := o.fetcher.DownloadToFile(ctx, ref.URL, dest); err != nil {
			o.ledger.Recordf(c.Symbol, c.Name, "%s: download failed for %s: %v",
				src.Name(), model.CanonicalFilename(c.Symbol, ref.Year), err)
			continue
		}
		downloaded++

		if ref.Format == model.FormatZIP {
			o.normalizer.Normalize(dest, companyDir, c, ref.Year)
		}
	}
	return downloaded
}

// destName is the on-disk name a reference downloads to: canonical for
// pdf, a temporary zip name for archives awaiting normalization.
func destName(symbol string, ref model.ReportReference) string {
	if ref.Format == model.FormatZIP {
		return model.SanitizeFilename(fmt.Sprintf("%s_%d.zip", symbol, ref.Year))
	}
	return model.CanonicalFilename(symbol, ref.Year)
}
