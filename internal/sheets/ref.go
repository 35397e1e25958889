package sheets

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidSheetRef is returned when a sheet reference matches none of
// the accepted shapes.
var ErrInvalidSheetRef = errors.New("invalid google sheets reference")

// Accepted reference shapes: a full spreadsheet URL, a URL with an id
// query parameter, or a bare spreadsheet ID.
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9_-]+)$`),
}

// ExtractSpreadsheetID pulls the spreadsheet ID out of a sheet
// reference. The first matching pattern wins.
func ExtractSpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidSheetRef
	}
	for _, p := range refPatterns {
		if m := p.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
	}
	return "", ErrInvalidSheetRef
}
