package model

import (
	"fmt"
	"strings"
)

// filenameStripper removes characters that are unsafe in filenames on
// common filesystems.
var filenameStripper = strings.NewReplacer(
	`\`, "", `/`, "", `:`, "", `"`, "",
	`*`, "", `?`, "", `<`, "", `>`, "", `|`, "",
)

// SanitizeFilename strips path-unsafe characters from a constructed
// filename. The operation is idempotent: sanitizing an already-sanitized
// name yields the same name.
func SanitizeFilename(name string) string {
	return filenameStripper.Replace(name)
}

// CanonicalFilename builds the canonical document name SYMBOL_YEAR.pdf,
// sanitized for filesystem use.
func CanonicalFilename(symbol string, year int) string {
	return SanitizeFilename(fmt.Sprintf("%s_%d.pdf", symbol, year))
}
