package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format tags a supported input encoding.
type Format string

const (
	FormatAuto       Format = "auto"
	FormatCSV        Format = "csv"
	FormatJSON       Format = "json"
	FormatDelimited  Format = "txt"
	FormatFixedWidth Format = "cobol"
	FormatXLSX       Format = "xlsx"
)

var formatAliases = map[string]Format{
	"":            FormatAuto,
	"auto":        FormatAuto,
	"csv":         FormatCSV,
	"json":        FormatJSON,
	"txt":         FormatDelimited,
	"delimited":   FormatDelimited,
	"cobol":       FormatFixedWidth,
	"fixed-width": FormatFixedWidth,
	"fixed_width": FormatFixedWidth,
	"legacy":      FormatFixedWidth,
	"xlsx":        FormatXLSX,
}

var extensionFormats = map[string]Format{
	".csv":  FormatCSV,
	".json": FormatJSON,
	".txt":  FormatDelimited,
	".dat":  FormatFixedWidth,
	".cob":  FormatFixedWidth,
	".xlsx": FormatXLSX,
}

// ParseFormat maps a user supplied tag (or alias) onto a Format.
func ParseFormat(tag string) (Format, bool) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(tag))]
	return f, ok
}

// ResolveFormat returns the concrete format for path. "auto" is inferred from the
// file extension; anything unresolvable is an InputFormatError.
func ResolveFormat(path, requested string) (Format, error) {
	f, ok := ParseFormat(requested)
	if !ok {
		return "", &InputFormatError{
			Path:   path,
			Format: requested,
			Reason: fmt.Sprintf("unknown input format %q", requested),
		}
	}
	if f != FormatAuto {
		return f, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if inferred, ok := extensionFormats[ext]; ok {
		return inferred, nil
	}
	return "", &InputFormatError{
		Path:   path,
		Format: requested,
		Reason: fmt.Sprintf("cannot infer input format from extension %q", ext),
	}
}
