package harvest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/report-harvester/internal/archive"
	"github.com/sells-group/report-harvester/internal/fetcher"
	"github.com/sells-group/report-harvester/internal/ledger"
	"github.com/sells-group/report-harvester/internal/model"
)

// fakeSource implements source.Source with a fixed response.
type fakeSource struct {
	name  string
	refs  []model.ReportReference
	err   error
	panic bool
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Discover(_ context.Context, _ model.Company) ([]model.ReportReference, error) {
	f.calls.Add(1)
	if f.panic {
		panic("selector engine gone")
	}
	return f.refs, f.err
}

type fixture struct {
	led  *ledger.Ledger
	base string
}

func newOrchestrator(t *testing.T, primary, fallback *fakeSource) (*Orchestrator, *fixture) {
	t.Helper()
	fx := &fixture{led: ledger.New(), base: t.TempDir()}
	o := New(primary, fallback, fetcher.New(fetcher.Options{}), archive.New(fx.led), fx.led, Options{
		OutputBase:  fx.base,
		PrimaryDir:  "BSE_AnnualReports",
		FallbackDir: "NSE_AnnualReports",
	})
	return o, fx
}

// serveDocs returns a server handing out the given paths, 404 otherwise.
func serveDocs(t *testing.T, docs map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func zipWithPDF(t *testing.T, entryName, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: entryName, Method: zip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

var pdfBody = []byte(strings.Repeat("%PDF-1.4 annual report ", 100))

func TestRun_SatisfiedViaPrimary(t *testing.T) {
	srv := serveDocs(t, map[string][]byte{"/ar/TESTCO_2015.pdf": pdfBody})

	primary := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/TESTCO_2015.pdf", Format: model.FormatPDF},
	}}
	fallback := &fakeSource{name: "NSE"}

	o, fx := newOrchestrator(t, primary, fallback)
	summary := o.Run(context.Background(), []model.Company{{Symbol: "TESTCO", Name: "Test Co"}})

	assert.Equal(t, model.OutcomeSatisfiedPrimary, summary.Outcomes["TESTCO"])
	assert.Equal(t, 1, summary.Satisfied)
	assert.Equal(t, int32(0), fallback.calls.Load(), "fallback must not run when primary satisfies")

	data, err := os.ReadFile(filepath.Join(fx.base, "BSE_AnnualReports", "TESTCO", "TESTCO_2015.pdf"))
	require.NoError(t, err)
	assert.Equal(t, pdfBody, data)
	assert.Equal(t, 0, fx.led.Len())
}

func TestRun_SatisfiedViaFallbackZip(t *testing.T) {
	zipBody := zipWithPDF(t, "report.PDF", strings.Repeat("%PDF-1.4 fallback report ", 100))
	srv := serveDocs(t, map[string][]byte{"/ar/TESTCO_2012.zip": zipBody})

	primary := &fakeSource{name: "BSE"}
	fallback := &fakeSource{name: "NSE", refs: []model.ReportReference{
		{Year: 2012, URL: srv.URL + "/ar/TESTCO_2012.zip", Format: model.FormatZIP},
	}}

	o, fx := newOrchestrator(t, primary, fallback)
	summary := o.Run(context.Background(), []model.Company{{Symbol: "TESTCO", Name: "Test Co"}})

	assert.Equal(t, model.OutcomeSatisfiedFallback, summary.Outcomes["TESTCO"])

	companyDir := filepath.Join(fx.base, "NSE_AnnualReports", "TESTCO")
	_, err := os.Stat(filepath.Join(companyDir, "TESTCO_2012.pdf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(companyDir, "TESTCO_2012.zip"))
	assert.True(t, os.IsNotExist(err), "zip must be deleted after normalization")
}

func TestRun_NothingOnEitherSource(t *testing.T) {
	primary := &fakeSource{name: "BSE"}
	fallback := &fakeSource{name: "NSE"}

	o, fx := newOrchestrator(t, primary, fallback)
	summary := o.Run(context.Background(), []model.Company{{Symbol: "GHOST", Name: "Ghost Corp"}})

	assert.Equal(t, model.OutcomeUnsatisfied, summary.Outcomes["GHOST"])
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), fallback.calls.Load())

	entries := fx.led.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "GHOST", entries[0].Symbol)
	assert.Equal(t, []string{"no reports found on either source"}, entries[0].Messages)
}

func TestRun_TransferErrorRecordedAndRunContinues(t *testing.T) {
	srv := serveDocs(t, map[string][]byte{"/ar/OK_2015.pdf": pdfBody})

	primary := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/GONE_2015.pdf", Format: model.FormatPDF},
	}}
	fallback := &fakeSource{name: "NSE"}

	primaryOK := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/OK_2015.pdf", Format: model.FormatPDF},
	}}

	o, fx := newOrchestrator(t, primary, fallback)
	summary := o.Run(context.Background(), []model.Company{{Symbol: "GONE", Name: "Gone Ltd"}})
	assert.Equal(t, model.OutcomeUnsatisfied, summary.Outcomes["GONE"])

	msgs := fx.led.Messages("GONE")
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "download failed for GONE_2015.pdf")
	assert.Contains(t, msgs[0], "404")

	// A later company on the same orchestrator wiring still succeeds.
	o2, _ := newOrchestrator(t, primaryOK, &fakeSource{name: "NSE"})
	summary2 := o2.Run(context.Background(), []model.Company{{Symbol: "OK"}})
	assert.Equal(t, model.OutcomeSatisfiedPrimary, summary2.Outcomes["OK"])
}

func TestRun_MixedReferences_OneFailureStillSatisfies(t *testing.T) {
	srv := serveDocs(t, map[string][]byte{"/ar/TESTCO_2016.pdf": pdfBody})

	primary := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/missing.pdf", Format: model.FormatPDF},
		{Year: 2016, URL: srv.URL + "/ar/TESTCO_2016.pdf", Format: model.FormatPDF},
	}}

	o, fx := newOrchestrator(t, primary, &fakeSource{name: "NSE"})
	summary := o.Run(context.Background(), []model.Company{{Symbol: "TESTCO"}})

	assert.Equal(t, model.OutcomeSatisfiedPrimary, summary.Outcomes["TESTCO"])
	msgs := fx.led.Messages("TESTCO")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "download failed for TESTCO_2015.pdf")
}

func TestRun_DiscoveryErrorFallsThrough(t *testing.T) {
	zipBody := zipWithPDF(t, "annual.pdf", strings.Repeat("%PDF-1.4 ", 200))
	srv := serveDocs(t, map[string][]byte{"/ar/TESTCO_2013.zip": zipBody})

	primary := &fakeSource{name: "BSE", err: eris.New("results table did not render")}
	fallback := &fakeSource{name: "NSE", refs: []model.ReportReference{
		{Year: 2013, URL: srv.URL + "/ar/TESTCO_2013.zip", Format: model.FormatZIP},
	}}

	o, fx := newOrchestrator(t, primary, fallback)
	summary := o.Run(context.Background(), []model.Company{{Symbol: "TESTCO"}})

	assert.Equal(t, model.OutcomeSatisfiedFallback, summary.Outcomes["TESTCO"])
	msgs := fx.led.Messages("TESTCO")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "BSE: discovery failed")
}

func TestRun_PreMinimumYearNeverFetched(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pdfBody)
	}))
	defer srv.Close()

	// A rogue source that ignores the year filter; the orchestrator is
	// the last gate before the fetcher.
	primary := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2005, URL: srv.URL + "/ar/TESTCO_2005.pdf", Format: model.FormatPDF},
	}}

	o, _ := newOrchestrator(t, primary, &fakeSource{name: "NSE"})
	summary := o.Run(context.Background(), []model.Company{{Symbol: "TESTCO"}})

	assert.Equal(t, model.OutcomeUnsatisfied, summary.Outcomes["TESTCO"])
	assert.Equal(t, int32(0), hits.Load())
}

func TestRun_PanicContained(t *testing.T) {
	srv := serveDocs(t, map[string][]byte{"/ar/NEXT_2015.pdf": pdfBody})

	broken := &fakeSource{name: "BSE", panic: true}
	next := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/NEXT_2015.pdf", Format: model.FormatPDF},
	}}

	o, fx := newOrchestrator(t, broken, &fakeSource{name: "NSE"})
	summary := o.Run(context.Background(), []model.Company{{Symbol: "BOOM"}})
	assert.Equal(t, model.OutcomeUnsatisfied, summary.Outcomes["BOOM"])
	msgs := fx.led.Messages("BOOM")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "unexpected failure")

	o2, _ := newOrchestrator(t, next, &fakeSource{name: "NSE"})
	summary2 := o2.Run(context.Background(), []model.Company{{Symbol: "NEXT"}})
	assert.Equal(t, model.OutcomeSatisfiedPrimary, summary2.Outcomes["NEXT"])
}

func TestRun_SanitizesSymbolInPaths(t *testing.T) {
	srv := serveDocs(t, map[string][]byte{"/ar/report.pdf": pdfBody})

	primary := &fakeSource{name: "BSE", refs: []model.ReportReference{
		{Year: 2015, URL: srv.URL + "/ar/report.pdf", Format: model.FormatPDF},
	}}

	o, fx := newOrchestrator(t, primary, &fakeSource{name: "NSE"})
	o.Run(context.Background(), []model.Company{{Symbol: "M&M/LTD"}})

	_, err := os.Stat(filepath.Join(fx.base, "BSE_AnnualReports", "M&MLTD", "M&MLTD_2015.pdf"))
	require.NoError(t, err)
}
