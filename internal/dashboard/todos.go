package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// TodoItem is one synced task read back from a destination tab.
type TodoItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
	Category   string `json:"category"`
}

// CategoryTodos groups the todos of one destination tab with its counts.
type CategoryTodos struct {
	Category  string     `json:"category"`
	Todos     []TodoItem `json:"todos"`
	Total     int        `json:"total_count"`
	Pending   int        `json:"pending_count"`
	Completed int        `json:"completed_count"`
}

// TodosReport aggregates all synced tabs for the dashboard.
type TodosReport struct {
	Categories []CategoryTodos `json:"categories"`
	Stats      map[string]int  `json:"global_stats"` // total / pending / completed / in_progress
	Urgent     []TodoItem      `json:"urgent_todos"` // pending, due within 7 days
	UpdatedAt  time.Time       `json:"last_updated"`
}

const (
	urgentWindow = 7 * 24 * time.Hour
	urgentLimit  = 10
)

// Layouts accepted when interpreting due dates read back from tabs. The
// sync writes M/D/YYYY but manually edited cells show up in other shapes.
var dueDateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// Todos reads every mapped destination tab and aggregates the synced
// tasks. A tab that fails to read is skipped with a warning; the report
// covers whatever could be read.
func (s *Service) Todos(ctx context.Context) (*TodosReport, error) {
	now := s.now()
	report := &TodosReport{
		Stats:     map[string]int{"total": 0, "pending": 0, "completed": 0, "in_progress": 0},
		UpdatedAt: now,
	}

	var all []TodoItem
	for _, m := range s.cfg.Sync.Mappings {
		rng := fmt.Sprintf("%s!A1:E%d", m.Tab, s.cfg.Sync.MaxRows+1)
		values, err := s.reader.Values(ctx, s.cfg.Sheets.TodosSpreadsheetID, rng)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("failed to read todos tab", "tab", m.Tab, "error", err)
			continue
		}
		if len(values) <= 1 {
			continue
		}

		cat := CategoryTodos{Category: m.Tab}
		for i, row := range values[1:] {
			item, ok := parseTodoRow(row, m.Tab, i+2)
			if !ok {
				continue
			}
			cat.Todos = append(cat.Todos, item)
			cat.Total++
			switch item.Status {
			case "pending":
				cat.Pending++
			case "completed":
				cat.Completed++
			}
		}
		if cat.Total == 0 {
			continue
		}
		report.Categories = append(report.Categories, cat)
		all = append(all, cat.Todos...)
	}

	for _, item := range all {
		report.Stats["total"]++
		switch item.Status {
		case "pending", "completed", "in_progress":
			report.Stats[item.Status]++
		}
	}
	report.Urgent = urgentTodos(all, now)
	return report, nil
}

// parseTodoRow maps one sheet row back to a todo item. Rows without a
// title are skipped, rows without an id get a synthetic one.
func parseTodoRow(row []string, category string, rowNumber int) (TodoItem, bool) {
	title := cellAt(row, 1)
	if len(row) < 2 || title == "" {
		return TodoItem{}, false
	}

	id := cellAt(row, 0)
	if id == "" {
		id = fmt.Sprintf("%s_%d", category, rowNumber)
	}
	status := strings.ToLower(cellAt(row, 2))
	if status == "" {
		status = "pending"
	}

	return TodoItem{
		ID:         id,
		Title:      title,
		Status:     status,
		AssignedTo: cellAt(row, 3),
		DueDate:    cellAt(row, 4),
		Category:   category,
	}, true
}

// urgentTodos picks pending items due within the urgency window, soonest
// first, capped.
func urgentTodos(all []TodoItem, now time.Time) []TodoItem {
	threshold := now.Add(urgentWindow)

	type dated struct {
		item TodoItem
		due  time.Time
	}
	var urgent []dated
	for _, item := range all {
		if item.Status != "pending" || item.DueDate == "" {
			continue
		}
		due, ok := parseDueDate(item.DueDate)
		if !ok {
			slog.Warn("unparseable due date on todo", "id", item.ID, "due_date", item.DueDate)
			continue
		}
		if !due.After(threshold) {
			urgent = append(urgent, dated{item, due})
		}
	}

	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].due.Before(urgent[j].due) })
	if len(urgent) > urgentLimit {
		urgent = urgent[:urgentLimit]
	}

	out := make([]TodoItem, len(urgent))
	for i, d := range urgent {
		out[i] = d.item
	}
	return out
}

func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
