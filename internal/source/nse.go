package source

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/model"
)

const (
	nseReportsTab   = `a[href="#annualReports"]`
	nseReportsTable = "#annualReports table"
)

// nseRowExtractJS pulls the whole reports table in one evaluation. The
// per-row CDP round trips the primary source can afford are too slow here:
// the NSE quote page keeps the table inside a lazy panel that re-renders.
const nseRowExtractJS = `() => Array.from(document.querySelectorAll('#annualReports table tbody tr')).map(tr => {
	const cells = tr.querySelectorAll('td');
	const a = tr.querySelector('a');
	return {
		year: cells.length > 0 ? cells[0].innerText.trim() : '',
		url: a ? a.href : '',
	};
})`

// NSE is the fallback report source: a per-symbol quote page with an
// annual-reports panel.
type NSE struct {
	browser          *Browser
	quoteURLTemplate string
	navTimeout       time.Duration
	waitTimeout      time.Duration
	screenshotDir    string
}

// NewNSE creates the fallback source. quoteURLTemplate must contain one
// %s verb for the symbol. Screenshots taken on navigation failure land in
// screenshotDir.
func NewNSE(b *Browser, quoteURLTemplate string, navTimeout, waitTimeout time.Duration, screenshotDir string) *NSE {
	return &NSE{
		browser:          b,
		quoteURLTemplate: quoteURLTemplate,
		navTimeout:       navTimeout,
		waitTimeout:      waitTimeout,
		screenshotDir:    screenshotDir,
	}
}

// Name implements Source.
func (s *NSE) Name() string { return "NSE" }

// Discover loads the symbol's quote page, opens the annual-reports panel
// and bulk-extracts the table client-side. On a navigation failure it
// captures a full-page screenshot for postmortem before returning the
// error; a screenshot failure never masks the original error.
func (s *NSE) Discover(ctx context.Context, company model.Company) ([]model.ReportReference, error) {
	quoteURL := fmt.Sprintf(s.quoteURLTemplate, url.QueryEscape(company.Symbol))
	page, err := s.browser.OpenPage(ctx, quoteURL, s.navTimeout)
	if err != nil {
		return nil, eris.Wrapf(err, "nse: open quote page for %s", company.Symbol)
	}
	defer func() { _ = page.Close() }()

	tab, err := page.Timeout(s.waitTimeout).Element(nseReportsTab)
	if err != nil {
		s.debugScreenshot(page, company.Symbol)
		return nil, eris.Wrapf(err, "nse: annual reports panel not found for %s", company.Symbol)
	}
	if err := tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.debugScreenshot(page, company.Symbol)
		return nil, eris.Wrap(err, "nse: open annual reports panel")
	}

	if _, err := page.Timeout(s.waitTimeout).Element(nseReportsTable); err != nil {
		s.debugScreenshot(page, company.Symbol)
		return nil, eris.Wrapf(err, "nse: reports table did not render for %s", company.Symbol)
	}

	res, err := page.Timeout(s.waitTimeout).Eval(nseRowExtractJS)
	if err != nil {
		s.debugScreenshot(page, company.Symbol)
		return nil, eris.Wrapf(err, "nse: extract rows for %s", company.Symbol)
	}

	var refs []model.ReportReference
	for _, item := range res.Value.Arr() {
		if ref, ok := nseRowReference(item.Get("year").Str(), item.Get("url").Str()); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// nseRowReference validates one extracted row. Rows without a url, a
// numeric year >= the minimum, or a .pdf/.zip extension are dropped.
func nseRowReference(yearText, rawURL string) (model.ReportReference, bool) {
	if rawURL == "" {
		return model.ReportReference{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearText))
	if err != nil || year < model.MinReportYear {
		return model.ReportReference{}, false
	}
	format, ok := model.FormatFromURL(rawURL)
	if !ok {
		return model.ReportReference{}, false
	}
	if !model.IsSecureURL(rawURL) {
		return model.ReportReference{}, false
	}
	return model.ReportReference{Year: year, URL: rawURL, Format: format}, true
}

// debugScreenshot is the best-effort postmortem capture; its own failure
// is logged and swallowed.
func (s *NSE) debugScreenshot(page *rod.Page, symbol string) {
	name := fmt.Sprintf("debug_%s_%s.png", s.Name(), model.SanitizeFilename(symbol))
	if err := saveScreenshot(page, filepath.Join(s.screenshotDir, name)); err != nil {
		zap.L().Warn("nse: debug screenshot failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
}
