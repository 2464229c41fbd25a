package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/model"
)

// Selectors for the BSE historical annual report page. Markup drift here
// is an expected operational failure mode: a selector that stops matching
// surfaces as a discovery timeout, not a crash.
const (
	bseSearchInput = "#ContentPlaceHolder1_SmartSearch_smartSearch"
	bseSuggestion  = "ul#listEQ li a"
	bseSubmit      = "#ContentPlaceHolder1_btnSubmit"
	bseTable       = "#ContentPlaceHolder1_grdAnnualReport"
	bseNextPage    = "#ContentPlaceHolder1_grdAnnualReport a[href*='Page$2']"
)

// bseSuggestionWait bounds the optional autocomplete wait. Some symbols
// resolve without a suggestion list, so absence is not an error.
const bseSuggestionWait = 5 * time.Second

// BSE is the primary report source: a search-driven index page with a
// paginated results grid.
type BSE struct {
	browser     *Browser
	indexURL    string
	navTimeout  time.Duration
	waitTimeout time.Duration
}

// NewBSE creates the primary source.
func NewBSE(b *Browser, indexURL string, navTimeout, waitTimeout time.Duration) *BSE {
	return &BSE{browser: b, indexURL: indexURL, navTimeout: navTimeout, waitTimeout: waitTimeout}
}

// Name implements Source.
func (s *BSE) Name() string { return "BSE" }

// Discover searches the index page for the symbol and walks the results
// grid, following at most one pagination continuation.
func (s *BSE) Discover(ctx context.Context, company model.Company) ([]model.ReportReference, error) {
	page, err := s.browser.OpenPage(ctx, s.indexURL, s.navTimeout)
	if err != nil {
		return nil, eris.Wrapf(err, "bse: open index page for %s", company.Symbol)
	}
	defer func() { _ = page.Close() }()

	search, err := page.Timeout(s.waitTimeout).Element(bseSearchInput)
	if err != nil {
		return nil, eris.Wrap(err, "bse: search control not found")
	}
	if err := search.SelectAllText(); err != nil {
		return nil, eris.Wrap(err, "bse: clear search control")
	}
	if err := search.Input(company.Symbol); err != nil {
		return nil, eris.Wrapf(err, "bse: enter symbol %s", company.Symbol)
	}

	if suggestion, err := page.Timeout(bseSuggestionWait).Element(bseSuggestion); err == nil {
		if err := suggestion.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, eris.Wrap(err, "bse: select suggestion")
		}
	} else {
		zap.L().Debug("bse: no autocomplete suggestion", zap.String("symbol", company.Symbol))
	}

	submit, err := page.Timeout(s.waitTimeout).Element(bseSubmit)
	if err != nil {
		return nil, eris.Wrap(err, "bse: submit control not found")
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, eris.Wrap(err, "bse: submit search")
	}

	if _, err := page.Timeout(s.waitTimeout).Element(bseTable); err != nil {
		return nil, eris.Wrapf(err, "bse: results table did not render for %s", company.Symbol)
	}

	refs, err := s.collectRows(page)
	if err != nil {
		return nil, err
	}

	// The grid supports exactly one continuation; listings beyond the
	// second page predate the minimum report year.
	if next, err := page.Timeout(3 * time.Second).Element(bseNextPage); err == nil {
		if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
			zap.L().Warn("bse: pagination click failed", zap.String("symbol", company.Symbol), zap.Error(err))
			return refs, nil
		}
		if _, err := page.Timeout(s.waitTimeout).Element(bseTable); err != nil {
			zap.L().Warn("bse: second page did not render", zap.String("symbol", company.Symbol), zap.Error(err))
			return refs, nil
		}
		more, err := s.collectRows(page)
		if err != nil {
			zap.L().Warn("bse: second page row enumeration failed", zap.String("symbol", company.Symbol), zap.Error(err))
			return refs, nil
		}
		refs = append(refs, more...)
	}

	return refs, nil
}

// collectRows enumerates the current grid page, skipping the header row
// and any row that fails validation.
func (s *BSE) collectRows(page *rod.Page) ([]model.ReportReference, error) {
	rows, err := page.Timeout(s.waitTimeout).Elements(bseTable + " tr")
	if err != nil {
		return nil, eris.Wrap(err, "bse: enumerate rows")
	}

	var refs []model.ReportReference
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cells, err := row.Elements("td")
		if err != nil || len(cells) < 2 {
			continue
		}
		yearText, err := cells[0].Text()
		if err != nil {
			continue
		}
		anchor, err := cells[1].Element("a")
		if err != nil {
			continue
		}
		href, err := anchor.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		if ref, ok := bseRowReference(yearText, *href); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// bseRowReference validates a (year cell, anchor href) pair. Rows with a
// non-numeric or pre-2009 year, or without an absolute secure URL, are
// dropped. Hrefs without a recognizable extension are treated as pdf.
func bseRowReference(yearText, href string) (model.ReportReference, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(yearText))
	if err != nil || year < model.MinReportYear {
		return model.ReportReference{}, false
	}
	if !model.IsSecureURL(href) {
		return model.ReportReference{}, false
	}
	format, ok := model.FormatFromURL(href)
	if !ok {
		format = model.FormatPDF
	}
	return model.ReportReference{Year: year, URL: href, Format: format}, true
}
