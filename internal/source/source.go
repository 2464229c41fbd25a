// Package source implements the two report sources as navigable document
// indexes behind a common interface, so navigation mechanics stay a
// swappable implementation detail.
package source

import (
	"context"

	"github.com/sells-group/report-harvester/internal/model"
)

// Source is an external document index for one exchange site.
type Source interface {
	// Name identifies the source in logs, directories and diagnostics.
	Name() string

	// Discover returns the annual-report references the source holds for
	// the company, already filtered to year >= model.MinReportYear and
	// recognized formats. A navigation failure or timeout is returned as
	// an error; a clean empty result is ([], nil).
	Discover(ctx context.Context, company model.Company) ([]model.ReportReference, error)
}
