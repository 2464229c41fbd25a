// Package model holds the core domain types shared across the harvester.
package model

import (
	"net/url"
	"path"
	"strings"
)

// MinReportYear is the oldest report year worth collecting. References
// tagged with an earlier year are dropped at discovery time and never
// reach the fetcher.
const MinReportYear = 2009

// Format identifies the file format of a discovered report document.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatZIP Format = "zip"
)

// Company is one row of the input worklist. Symbol is the unique
// processing key; Name is optional display data carried through to the
// failure report.
type Company struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// ReportReference is a discovered (year, url, format) tuple not yet
// downloaded. It is transient: produced by a report source, consumed by
// the fetcher, never persisted.
type ReportReference struct {
	Year   int
	URL    string
	Format Format
}

// Outcome is the terminal state of one company's acquisition.
type Outcome string

const (
	OutcomeSatisfiedPrimary  Outcome = "satisfied_primary"
	OutcomeSatisfiedFallback Outcome = "satisfied_fallback"
	OutcomeUnsatisfied       Outcome = "unsatisfied"
)

// Satisfied reports whether the outcome means at least one document was
// persisted from either source.
func (o Outcome) Satisfied() bool {
	return o == OutcomeSatisfiedPrimary || o == OutcomeSatisfiedFallback
}

// FormatFromURL infers the report format from the URL's file extension.
// Returns false for any extension other than .pdf or .zip.
func FormatFromURL(rawURL string) (Format, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pdf":
		return FormatPDF, true
	case ".zip":
		return FormatZIP, true
	default:
		return "", false
	}
}

// IsSecureURL reports whether the raw URL is an absolute HTTPS address.
func IsSecureURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}
