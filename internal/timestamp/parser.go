// Package timestamp parses the date cells found in exported network reports.
package timestamp

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts carrying an explicit zone or offset. Results are converted to UTC.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700 MST",
}

// Naive layouts. Reports carry no zone, so these are read as UTC.
// Slash dates are day-first (dd/mm/yyyy).
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"02/01/06 15:04",
	"02/01/06",
}

// Excel serial day numbers: 1 is 1900-01-01, 2958465 is 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Parser converts date cell values into UTC instants.
type Parser struct {
	zoned []string
	naive []string
	loc   *time.Location
}

// NewParser creates a Parser that reads naive timestamps as UTC.
func NewParser() *Parser {
	return &Parser{zoned: zonedLayouts, naive: naiveLayouts, loc: time.UTC}
}

// Parse returns the UTC instant for value. Numeric values are read as Excel
// serial dates. The second result is false when value is empty or not a
// recognized date.
func (p *Parser) Parse(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range p.zoned {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	for _, layout := range p.naive {
		if ts, err := time.ParseInLocation(layout, value, p.loc); err == nil {
			return ts.UTC(), true
		}
	}

	if serial, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64); err == nil {
		return FromExcelSerial(serial)
	}
	return time.Time{}, false
}

// FromExcelSerial converts an Excel serial date (1900 date system) to UTC.
// The fractional part is the time of day, rounded to the second.
func FromExcelSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}

// HoursSince returns whole hours elapsed from ts to now, clamped at zero.
func HoursSince(ts, now time.Time) int {
	h := int(now.Sub(ts) / time.Hour)
	if h < 0 {
		return 0
	}
	return h
}
