package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		format Format
		ok     bool
	}{
		{"pdf", "https://example.com/reports/TESTCO_2015.pdf", FormatPDF, true},
		{"pdf uppercase", "https://example.com/reports/TESTCO.PDF", FormatPDF, true},
		{"zip", "https://example.com/archives/ar2012.zip", FormatZIP, true},
		{"html excluded", "https://example.com/reports/index.html", "", false},
		{"no extension", "https://example.com/reports/latest", "", false},
		{"query ignored", "https://example.com/r.pdf?dl=1", FormatPDF, true},
		{"unparseable", "://bad", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, ok := FormatFromURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestIsSecureURL(t *testing.T) {
	assert.True(t, IsSecureURL("https://www.bseindia.com/report.pdf"))
	assert.False(t, IsSecureURL("http://www.bseindia.com/report.pdf"))
	assert.False(t, IsSecureURL("/relative/report.pdf"))
	assert.False(t, IsSecureURL("report.pdf"))
	assert.False(t, IsSecureURL("https://"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "MM_2015.pdf", SanitizeFilename(`M*M?_2015.pdf`))
	assert.Equal(t, "TESTCO_2015.pdf", SanitizeFilename("TESTCO_2015.pdf"))
	assert.Equal(t, "ab", SanitizeFilename(`a\/:"*?<>|b`))
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	inputs := []string{`M&M/LTD:2015?.pdf`, "CLEAN_2020.pdf", `"<>|`}
	for _, in := range inputs {
		once := SanitizeFilename(in)
		assert.Equal(t, once, SanitizeFilename(once))
	}
}

func TestCanonicalFilename(t *testing.T) {
	assert.Equal(t, "TESTCO_2015.pdf", CanonicalFilename("TESTCO", 2015))
	assert.Equal(t, "MM_2012.pdf", CanonicalFilename("M/M", 2012))
}

func TestOutcomeSatisfied(t *testing.T) {
	assert.True(t, OutcomeSatisfiedPrimary.Satisfied())
	assert.True(t, OutcomeSatisfiedFallback.Satisfied())
	assert.False(t, OutcomeUnsatisfied.Satisfied())
}
