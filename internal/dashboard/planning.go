package dashboard

import (
	"log/slog"
	"strings"
	"time"

	"github.com/avasseur/boardsync/internal/calweek"
)

// The planning board is maintained in French; cell literals are matched
// exactly so blank or free-form cells stay blank rather than defaulting.
var (
	priorityValues = []string{"Haute", "Moyenne", "Basse"}
	statusValues   = []string{"À faire", "En cours", "Terminé"}
)

const statusDone = "Terminé"

// Task is one parsed planning row. Priority and Status carry the exact
// cell values; empty means the cell was blank.
type Task struct {
	AssignedTo string `json:"assigned_to"`
	Objective  string `json:"objective,omitempty"`
	Title      string `json:"title"`
	Priority   string `json:"priority,omitempty"`
	DueDate    string `json:"due_date,omitempty"`
	Status     string `json:"status,omitempty"`
	Comments   string `json:"comments,omitempty"`
}

// Planning is the parsed planning board for one week. Tasks keep the
// sheet's original row order.
type Planning struct {
	Year        int       `json:"year"`
	Week        int       `json:"week_number"`
	WeekStart   string    `json:"week_start"`
	WeekEnd     string    `json:"week_end"`
	SourceRange string    `json:"source_range"`
	Tasks       []Task    `json:"tasks"`
	Total       int       `json:"total_tasks"`
	Completed   int       `json:"completed_tasks"`
	UpdatedAt   time.Time `json:"last_updated"`
}

// parsePlanning reads task rows starting below the two header rows. A row
// with a blank first cell belongs to the collaborator named above it.
func parsePlanning(values [][]string, sourceRange string, now time.Time) *Planning {
	info := calweek.At(now)
	monday, sunday := calweek.Boundaries(now)
	out := &Planning{
		Year:        info.Year,
		Week:        info.Week,
		WeekStart:   monday.Format("2006-01-02"),
		WeekEnd:     sunday.Format("2006-01-02"),
		SourceRange: sourceRange,
		UpdatedAt:   now,
	}

	carried := ""
	start := 2
	if len(values) < start {
		return out
	}
	for _, row := range values[start:] {
		if len(row) < 3 {
			continue
		}

		assignee := cellAt(row, 0)
		if assignee != "" {
			carried = assignee
		} else {
			assignee = carried
		}
		if assignee == "" {
			continue
		}

		task := Task{
			AssignedTo: assignee,
			Objective:  cellAt(row, 1),
			Title:      cellAt(row, 2),
			Priority:   scanExact(row, []int{3, 4, 5}, priorityValues),
			DueDate:    scanDate(row, []int{4, 5}),
			Status:     scanExact(row, []int{5, 6}, statusValues),
			Comments:   cellAt(row, 6),
		}
		if task.Status == statusDone {
			out.Completed++
		}
		out.Tasks = append(out.Tasks, task)
		out.Total++
	}

	slog.Debug("planning parsed", "range", sourceRange, "tasks", out.Total, "completed", out.Completed)
	return out
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// scanExact returns the first cell among cols that exactly matches one of
// the allowed literals.
func scanExact(row []string, cols []int, allowed []string) string {
	for _, col := range cols {
		cell := cellAt(row, col)
		for _, v := range allowed {
			if cell == v {
				return cell
			}
		}
	}
	return ""
}

// scanDate returns the first slash-formatted date cell among cols.
func scanDate(row []string, cols []int) string {
	for _, col := range cols {
		cell := cellAt(row, col)
		if strings.Contains(cell, "/") && len(cell) >= 8 {
			return cell
		}
	}
	return ""
}
