// Package archive turns downloaded zip archives into canonically named
// pdf documents.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/report-harvester/internal/ledger"
	"github.com/sells-group/report-harvester/internal/model"
)

// minArchiveSize is the malformed-archive guard: anything smaller cannot
// be a real report archive and is skipped without extraction. Skipped
// archives are kept on disk for manual inspection.
const minArchiveSize = 1024

// Normalizer extracts pdf entries from downloaded archives and renames
// them to the canonical SYMBOL_YEAR.pdf convention. It never reports
// errors to the caller; every failure is routed to the ledger.
type Normalizer struct {
	ledger *ledger.Ledger
}

// New creates a Normalizer that records diagnostics in the given ledger.
func New(led *ledger.Ledger) *Normalizer {
	return &Normalizer{ledger: led}
}

// Normalize extracts every pdf entry of the archive into targetDir under
// the canonical name for (company, year). Multiple pdf entries overwrite
// each other under the same name, last one wins. The archive is deleted
// after processing unless the size guard skipped it.
func (n *Normalizer) Normalize(archivePath, targetDir string, company model.Company, year int) {
	info, err := os.Stat(archivePath)
	if err != nil {
		n.ledger.Recordf(company.Symbol, company.Name, "archive missing: %s: %v", archivePath, err)
		return
	}
	if info.Size() < minArchiveSize {
		n.ledger.Recordf(company.Symbol, company.Name,
			"archive too small (%d bytes), skipped: %s", info.Size(), filepath.Base(archivePath))
		return
	}

	found, err := n.extractPDFs(archivePath, targetDir, company, year)
	switch {
	case err != nil:
		n.ledger.Recordf(company.Symbol, company.Name, "open archive %s: %v", filepath.Base(archivePath), err)
	case !found:
		n.ledger.Recordf(company.Symbol, company.Name,
			"no pdf found inside archive %s", filepath.Base(archivePath))
	}

	if err := os.Remove(archivePath); err != nil {
		n.ledger.Recordf(company.Symbol, company.Name, "delete archive %s: %v", filepath.Base(archivePath), err)
	}
}

// extractPDFs writes each pdf entry to the canonical name. Entry names are
// never used for destination paths, so a hostile archive cannot escape
// targetDir.
func (n *Normalizer) extractPDFs(archivePath, targetDir string, company model.Company, year int) (bool, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false, err
	}
	defer r.Close() //nolint:errcheck

	dest := filepath.Join(targetDir, model.CanonicalFilename(company.Symbol, year))
	found := false
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name), ".pdf") {
			continue
		}
		if err := writeEntry(entry, dest); err != nil {
			n.ledger.Recordf(company.Symbol, company.Name, "extract %s: %v", entry.Name, err)
			continue
		}
		found = true
		zap.L().Debug("archive: extracted pdf",
			zap.String("symbol", company.Symbol),
			zap.String("entry", entry.Name),
			zap.String("dest", dest),
		)
	}
	return found, nil
}

func writeEntry(entry *zip.File, dest string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, rc)
	return err
}
