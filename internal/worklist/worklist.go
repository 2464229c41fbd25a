// Package worklist handles the tabular boundary of a harvest run: reading
// the input company list and writing the failure report, both as xlsx.
package worklist

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/model"
)

// Read parses the input worklist. The first sheet must carry a header row
// with a column matching "symbol" (case-insensitive); a column matching
// "company name" or "company" is optional. Row order defines processing
// order. A missing symbol column or an empty sheet is a fatal error.
func Read(path string) ([]model.Company, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "worklist: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("worklist: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("worklist: %s is empty", path)
	}

	symbolCol, nameCol := headerColumns(sheet.Rows[0])
	if symbolCol < 0 {
		return nil, eris.Errorf("worklist: %s has no symbol column", path)
	}

	seen := make(map[string]bool)
	var companies []model.Company
	for _, row := range sheet.Rows[1:] {
		if symbolCol >= len(row.Cells) {
			continue
		}
		symbol := strings.TrimSpace(row.Cells[symbolCol].String())
		if symbol == "" {
			continue
		}
		if seen[symbol] {
			zap.L().Warn("worklist: duplicate symbol skipped", zap.String("symbol", symbol))
			continue
		}
		seen[symbol] = true

		var name string
		if nameCol >= 0 && nameCol < len(row.Cells) {
			name = strings.TrimSpace(row.Cells[nameCol].String())
		}
		companies = append(companies, model.Company{Symbol: symbol, Name: name})
	}

	if len(companies) == 0 {
		return nil, eris.Errorf("worklist: %s has no company rows", path)
	}
	return companies, nil
}

// headerColumns locates the symbol and company-name columns in the header
// row. Returns -1 for a column that is absent.
func headerColumns(header *xlsx.Row) (symbolCol, nameCol int) {
	symbolCol, nameCol = -1, -1
	for i, cell := range header.Cells {
		h := strings.TrimSpace(cell.String())
		switch {
		case strings.EqualFold(h, "symbol"):
			if symbolCol < 0 {
				symbolCol = i
			}
		case strings.EqualFold(h, "company name"), strings.EqualFold(h, "company"):
			if nameCol < 0 {
				nameCol = i
			}
		}
	}
	return symbolCol, nameCol
}
