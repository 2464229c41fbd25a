package worklist

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/report-harvester/internal/ledger"
)

// WriteFailureReport writes the ledger entries to an xlsx file with the
// columns Symbol, Company Name and Error/Status Messages (newline-joined).
// Callers should only invoke this when the ledger is non-empty.
func WriteFailureReport(path string, entries []ledger.Entry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Failures")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Symbol", "Company Name", "Error/Status Messages"} {
		header.AddCell().SetString(h)
	}

	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().SetString(e.Symbol)
		row.AddCell().SetString(e.Name)
		row.AddCell().SetString(strings.Join(e.Messages, "\n"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
