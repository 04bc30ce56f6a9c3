package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/clinic/clinic/pkg/civil"
)

// Tried in order, so day-first wins over month-first for ambiguous
// slash dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
}

// UnknownBirthDate stands in for a missing or unreadable birth date.
var UnknownBirthDate = civil.Date{Time: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)}

// parseDate reads a calendar date. Excel serial numbers are accepted for
// cells that lost their date format; the range keeps plain years out.
func parseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 10000 && serial <= 80000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// parseBirthDate never fails: anything unreadable becomes UnknownBirthDate.
func parseBirthDate(s string) civil.Date {
	if d, ok := parseDate(s); ok {
		return d
	}
	return UnknownBirthDate
}

// parseDateTime reads an appointment start in loc. A date without a time
// takes clock from the separate time cell, or 10:00.
func parseDateTime(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return t, true
		}
	}
	d, ok := parseDate(date)
	if !ok {
		return time.Time{}, false
	}
	hour, minute := 10, 0
	if clock = strings.TrimSpace(clock); clock != "" {
		t, err := time.Parse("15:04", clock)
		if err != nil {
			return time.Time{}, false
		}
		hour, minute = t.Hour(), t.Minute()
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), true
}
