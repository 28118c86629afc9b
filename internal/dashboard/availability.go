package dashboard

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/avasseur/boardsync/internal/calweek"
)

// PeriodStatus is one half-day availability state.
type PeriodStatus string

const (
	StatusOffice      PeriodStatus = "office"
	StatusOnline      PeriodStatus = "online"
	StatusUnavailable PeriodStatus = "unavailable"
)

// Columns B through O hold Monday..Sunday, morning then evening.
var dayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// DayAvailability is one member's schedule for one day. Empty statuses mean
// the cell was blank or unrecognized.
type DayAvailability struct {
	Day     string       `json:"day"`
	Morning PeriodStatus `json:"morning,omitempty"`
	Evening PeriodStatus `json:"evening,omitempty"`
}

// Member is one team member's parsed availability.
type Member struct {
	Name     string            `json:"name"`
	Status   PeriodStatus      `json:"status"` // majority status over the week
	Rate     float64           `json:"availability_rate"`
	Schedule []DayAvailability `json:"schedule"`
}

// Availability is the parsed availability board for one week.
type Availability struct {
	WeekLabel   string         `json:"week_label"`
	SourceRange string         `json:"source_range"`
	Summary     map[string]int `json:"summary"` // available / occupied / unavailable
	Members     []Member       `json:"members"`
	OverallRate float64        `json:"weekly_availability_rate"`
	UpdatedAt   time.Time      `json:"last_updated"`
}

// parseAvailability reads member rows out of the raw board values. Ranges
// starting at A1 include header rows of unknown height, so the first data
// row is detected rather than assumed.
func parseAvailability(values [][]string, sourceRange string, now time.Time) *Availability {
	out := &Availability{
		WeekLabel:   calweek.Label(now),
		SourceRange: sourceRange,
		Summary:     map[string]int{"available": 0, "occupied": 0, "unavailable": 0},
		UpdatedAt:   now,
	}

	start := dataStartIndex(values, sourceRange)
	for _, row := range values[start:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		member := parseMemberRow(row)
		out.Members = append(out.Members, member)

		switch member.Status {
		case StatusOffice:
			out.Summary["available"]++
		case StatusOnline:
			out.Summary["occupied"]++
		default:
			out.Summary["unavailable"]++
		}
	}

	if total := len(out.Members); total > 0 {
		available := out.Summary["available"] + out.Summary["occupied"]
		out.OverallRate = math.Round(float64(available)/float64(total)*1000) / 10
	}
	slog.Debug("availability parsed", "range", sourceRange, "members", len(out.Members))
	return out
}

// dataStartIndex finds the first member row. Boards fetched from row 3
// onwards have no headers left; boards fetched from A1 do.
func dataStartIndex(values [][]string, sourceRange string) int {
	const defaultStart = 2
	if !strings.Contains(sourceRange, "A1:") {
		if len(values) < defaultStart {
			return len(values)
		}
		return defaultStart
	}
	for i, row := range values {
		if i == 0 || len(row) < 2 {
			continue
		}
		first := strings.ToLower(strings.TrimSpace(row[0]))
		if first == "" || strings.HasPrefix(first, "staff") || strings.HasPrefix(first, "team") {
			continue
		}
		return i
	}
	return defaultStart
}

func parseMemberRow(row []string) Member {
	member := Member{Name: strings.TrimSpace(row[0])}

	counts := map[PeriodStatus]int{}
	periods := make([]PeriodStatus, 14)
	for col := 1; col < len(row) && col <= 14; col++ {
		status := mapStatus(row[col])
		periods[col-1] = status
		if status != "" {
			counts[status]++
		}
	}

	for d, day := range dayNames {
		member.Schedule = append(member.Schedule, DayAvailability{
			Day:     day,
			Morning: periods[d*2],
			Evening: periods[d*2+1],
		})
	}

	office, online, unavailable := counts[StatusOffice], counts[StatusOnline], counts[StatusUnavailable]
	switch {
	case office >= online && office >= unavailable:
		member.Status = StatusOffice
	case online >= unavailable:
		member.Status = StatusOnline
	default:
		member.Status = StatusUnavailable
	}

	if total := office + online + unavailable; total > 0 {
		member.Rate = math.Round(float64(office+online)/float64(total)*1000) / 10
	}
	return member
}

// mapStatus recognizes a status keyword anywhere in the cell, so values
// like "Office (HQ)" still count.
func mapStatus(cell string) PeriodStatus {
	v := strings.ToLower(strings.TrimSpace(cell))
	if v == "" {
		return ""
	}
	for _, status := range []PeriodStatus{StatusOffice, StatusOnline, StatusUnavailable} {
		if strings.Contains(v, string(status)) {
			return status
		}
	}
	return ""
}
