// Package sync implements the Basecamp-to-spreadsheet synchronization
// engine and its recurring scheduler.
package sync

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avasseur/boardsync/internal/basecamp"
)

// Headers is the standard header row of every destination tab.
var Headers = []string{"ID", "Title", "Status", "Assigned_To", "Due_Date"}

// datePatterns are tried in order. ISO forms come first so that
// "2025-12-31" is never misread as a European date.
var datePatterns = []struct {
	name   string
	layout string
}{
	{"iso", "2006-01-02"},
	{"iso_datetime", "2006-01-02T15:04:05"},
	{"european", "02/01/2006"},
	{"european_dashes", "02-01-2006"},
	{"iso_slashes", "2006/01/02"},
}

// DateStats accumulates conversion outcomes over one run.
type DateStats struct {
	Total     int            `json:"total"`
	Converted int            `json:"converted"`
	Failed    int            `json:"failed"`
	Formats   map[string]int `json:"formats,omitempty"`
}

// DateConverter reformats upstream date strings into the canonical
// M/D/YYYY form the dashboard expects, keeping per-run statistics.
type DateConverter struct {
	mu    sync.Mutex
	stats DateStats
}

// NewDateConverter returns a converter with zeroed statistics.
func NewDateConverter() *DateConverter {
	return &DateConverter{stats: DateStats{Formats: make(map[string]int)}}
}

// Convert reformats one date string. Empty input stays empty and is not
// counted. Unrecognized input is returned unchanged and counted as failed.
func (c *DateConverter) Convert(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}

	c.mu.Lock()
	c.stats.Total++
	c.mu.Unlock()

	normalized := normalizeDateInput(raw)
	for _, p := range datePatterns {
		t, err := time.Parse(p.layout, normalized)
		if err != nil {
			continue
		}
		c.mu.Lock()
		c.stats.Converted++
		c.stats.Formats[p.name]++
		c.mu.Unlock()
		return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
	}

	c.mu.Lock()
	c.stats.Failed++
	c.mu.Unlock()
	slog.Warn("unrecognized date format, passing through", "value", raw)
	return raw
}

// Stats returns a snapshot of the accumulated statistics.
func (c *DateConverter) Stats() DateStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.Formats = make(map[string]int, len(c.stats.Formats))
	for k, v := range c.stats.Formats {
		out.Formats[k] = v
	}
	return out
}

// normalizeDateInput strips timezone designators, UTC offsets, and
// fractional seconds from datetime inputs so the plain layouts match.
func normalizeDateInput(s string) string {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "T")
	if i < 0 {
		return s
	}

	rest := strings.TrimSuffix(s[i+1:], "Z")
	if j := strings.IndexByte(rest, '.'); j >= 0 {
		rest = rest[:j]
	}
	if j := strings.IndexByte(rest, '+'); j >= 0 {
		rest = rest[:j]
	}
	// A '-' past the clock digits is a negative UTC offset.
	if j := strings.IndexByte(rest, '-'); j >= 0 {
		rest = rest[:j]
	}
	return s[:i+1] + rest
}

// RowFor maps one task record to its destination row shape.
func RowFor(todo basecamp.Todo, dates *DateConverter) []string {
	status := "pending"
	if todo.Completed {
		status = "completed"
	}

	names := make([]string, 0, len(todo.Assignees))
	for _, p := range todo.Assignees {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}

	// The API carries the todo text in content; title is the fallback.
	title := todo.Content
	if title == "" {
		title = todo.Title
	}

	return []string{
		strconv.FormatInt(todo.ID, 10),
		title,
		status,
		strings.Join(names, ", "),
		dates.Convert(todo.DueOn),
	}
}
