// Package normalizer provides the pure date and amount normalization used by
// every format parser. Input is locale-formatted text; output is a canonical
// calendar date or a signed decimal.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// dateLayouts are tried in order; the first match wins.
var dateLayouts = []string{
	"02/01/2006", // DD/MM/YYYY
	"02-01-2006", // DD-MM-YYYY
	"2006-01-02", // ISO
	"02/01/06",   // DD/MM/YY, century inferred as 2000+YY
}

// ParseDate converts free text into a calendar date. It never panics; an
// unrecognized value returns an error and the caller rejects the row.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Go maps two-digit years 69-99 into the 1900s; the source data
		// always means 2000+YY.
		if t.Year() < 2000 {
			t = time.Date(t.Year()+100, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %s", s)
}

// FromSerial converts a spreadsheet date serial (days since the Excel epoch)
// into a calendar date.
func FromSerial(serial float64) (time.Time, error) {
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date serial %v: %w", serial, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
