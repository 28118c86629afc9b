// Package calweek derives ISO-8601 calendar week information.
//
// The spreadsheets boardsync reads are organized by ISO week (weeks run
// Monday–Sunday, week 1 contains the year's first Thursday), so most range
// discovery starts from the values computed here.
package calweek

import (
	"fmt"
	"time"
)

// Info describes one ISO calendar week relative to a reference date.
type Info struct {
	Year    int // ISO year (may differ from the civil year around January 1)
	Week    int // ISO week number, 1..53
	Weekday int // ISO weekday, Monday=1 .. Sunday=7
}

// At returns the ISO week info for the given instant.
func At(t time.Time) Info {
	year, week := t.ISOWeek()
	return Info{Year: year, Week: week, Weekday: isoWeekday(t)}
}

// Now returns the ISO week info for the current instant.
func Now() Info {
	return At(time.Now())
}

// Boundaries returns the Monday and Sunday of the ISO week containing t.
// The Monday is always on or before t; the Sunday is monday plus six days.
// Times of day are preserved from t.
func Boundaries(t time.Time) (monday, sunday time.Time) {
	monday = t.AddDate(0, 0, -(isoWeekday(t) - 1))
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// Label renders a short human-readable label for the week containing t,
// e.g. "W34 2025 (Aug 18-Aug 24)".
func Label(t time.Time) string {
	info := At(t)
	monday, sunday := Boundaries(t)
	return fmt.Sprintf("W%d %d (%s %d-%s %d)",
		info.Week, info.Year,
		monday.Month().String()[:3], monday.Day(),
		sunday.Month().String()[:3], sunday.Day())
}

// isoWeekday maps Go's Sunday=0 convention to ISO's Monday=1..Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
