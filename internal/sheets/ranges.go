package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avasseur/boardsync/internal/calweek"
)

// Kind selects a range-candidate naming convention. The availability board
// names tabs "W{week}", the planning board names them "{week}" or "S{week}".
type Kind string

const (
	KindAvailability Kind = "availability"
	KindPlanning     Kind = "planning"
)

// Relative week offsets tried after the current week, nearest-past first.
const (
	weeksBack    = 2
	weeksForward = 1
)

// Static fallbacks appended after all calendar-derived candidates. These are
// tab names that have been observed on manually maintained boards; they rank
// strictly below anything derived from the calendar.
var (
	availabilityFallbacks = []string{
		"W33!A1:O20",
		"W33!A3:O20",
		"Availability!A3:O20",
		"Team!A3:O20",
		"Current!A3:O20",
	}
	planningFallbacks = []string{
		"Planning!A2:G50",
		"Tasks!A2:G50",
		"Current!A2:G50",
		"33!A2:G50",
	}
)

// CandidateRanges returns the ordered, de-duplicated list of ranges to probe
// for the given board kind, most likely first. The list is a pure function
// of the reference time, so two calls for the same instant are identical.
func CandidateRanges(kind Kind, now time.Time) []string {
	switch kind {
	case KindPlanning:
		return planningCandidates(now)
	default:
		return availabilityCandidates(now)
	}
}

func availabilityCandidates(now time.Time) []string {
	week := calweek.At(now).Week

	var out []string
	seen := make(map[string]bool)
	add := func(rng string) {
		if !seen[rng] {
			seen[rng] = true
			out = append(out, rng)
		}
	}

	// Current week in both observed layouts, headers included and excluded.
	add(fmt.Sprintf("W%d!A1:O20", week))
	add(fmt.Sprintf("W%d!A3:O20", week))

	// Offset weeks come from the shifted date's ISO calendar, so the walk
	// wraps across year boundaries: during W1 it yields W52/W51 of the
	// previous year instead of nothing.
	for offset := -weeksBack; offset <= weeksForward; offset++ {
		w := calweek.At(now.AddDate(0, 0, 7*offset)).Week
		add(fmt.Sprintf("W%d!A1:O20", w))
		add(fmt.Sprintf("W%d!A3:O20", w))
	}

	for _, rng := range availabilityFallbacks {
		add(rng)
	}
	return out
}

func planningCandidates(now time.Time) []string {
	week := calweek.At(now).Week

	var out []string
	seen := make(map[string]bool)
	add := func(rng string) {
		if !seen[rng] {
			seen[rng] = true
			out = append(out, rng)
		}
	}
	addWeek := func(w int) {
		if w < 1 || w > 52 {
			return
		}
		add(fmt.Sprintf("%d!A2:G50", w))
		add(fmt.Sprintf("S%d!A2:G50", w))
	}

	// The current week always leads, even in a 53-week ISO year.
	add(fmt.Sprintf("%d!A2:G50", week))
	add(fmt.Sprintf("S%d!A2:G50", week))

	// Immediate neighbors use plain arithmetic bounded to 1..52; the wider
	// walk below derives each week from the shifted date and so wraps at
	// year boundaries.
	for _, offset := range []int{-1, 1, -2, 2} {
		addWeek(week + offset)
	}
	for offset := -weeksBack; offset <= weeksForward; offset++ {
		w := calweek.At(now.AddDate(0, 0, 7*offset)).Week
		add(fmt.Sprintf("%d!A2:G50", w))
		add(fmt.Sprintf("S%d!A2:G50", w))
	}

	for _, rng := range planningFallbacks {
		add(rng)
	}
	return out
}

// ProbeResult carries the values of the first accepted candidate range.
type ProbeResult struct {
	Values    [][]string
	UsedRange string
}

// Probe fetches each candidate in order and returns the first one holding
// usable data. A candidate is accepted when it has at least 3 rows and at
// least one row past the first two has a non-empty first cell. Fetch errors
// on individual candidates are logged and skipped. When every candidate is
// exhausted, Probe returns (nil, nil): no data is a reportable state, not
// an error.
func Probe(ctx context.Context, r Reader, spreadsheetID string, candidates []string) (*ProbeResult, error) {
	for _, rng := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		values, err := r.Values(ctx, spreadsheetID, rng)
		if err != nil {
			slog.Warn("range candidate fetch failed", "range", rng, "error", err)
			continue
		}
		if !acceptable(values) {
			slog.Debug("range candidate rejected", "range", rng, "rows", len(values))
			continue
		}

		slog.Debug("range candidate accepted", "range", rng, "rows", len(values))
		return &ProbeResult{Values: values, UsedRange: rng}, nil
	}
	return nil, nil
}

func acceptable(values [][]string) bool {
	if len(values) < 3 {
		return false
	}
	for _, row := range values[2:] {
		if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
			return true
		}
	}
	return false
}
