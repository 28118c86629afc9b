package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avasseur/boardsync/internal/config"
)

type fakeReader struct {
	values map[string][][]string
	errs   map[string]error
}

func (f *fakeReader) Values(_ context.Context, _ string, rng string) ([][]string, error) {
	if err := f.errs[rng]; err != nil {
		return nil, err
	}
	return f.values[rng], nil
}

func todosService(reader *fakeReader) *Service {
	cfg := config.DefaultConfig()
	cfg.Sheets.TodosSpreadsheetID = "todos-sheet"
	cfg.Sync.Mappings = []config.Mapping{
		{Group: "IT", Tab: "IT"},
		{Group: "Money", Tab: "Money"},
		{Group: "Product", Tab: "Product"},
	}
	svc := NewService(cfg, reader)
	svc.now = func() time.Time { return parseTime }
	return svc
}

func header() []string {
	return []string{"ID", "Title", "Status", "Assigned_To", "Due_Date"}
}

func TestTodosAggregation(t *testing.T) {
	reader := &fakeReader{
		values: map[string][][]string{
			"IT!A1:E500": {
				header(),
				{"1", "Patch servers", "pending", "Alice", "8/22/2025"},
				{"2", "Rotate keys", "completed", "Bob", "8/10/2025"},
				{"", "", ""}, // blank row ignored
			},
			"Money!A1:E500": {
				header(),
				{"3", "Close books", "pending", "Carol", "9/30/2025"},
				{"", "No id row", "pending"},
			},
			"Product!A1:E500": {header()}, // header only, dropped
		},
	}
	svc := todosService(reader)

	report, err := svc.Todos(context.Background())
	if err != nil {
		t.Fatalf("Todos: %v", err)
	}

	if len(report.Categories) != 2 {
		t.Fatalf("got %d categories, want 2 (empty tab dropped)", len(report.Categories))
	}
	it := report.Categories[0]
	if it.Category != "IT" || it.Total != 2 || it.Pending != 1 || it.Completed != 1 {
		t.Errorf("IT category = %+v", it)
	}
	if report.Stats["total"] != 4 || report.Stats["pending"] != 3 || report.Stats["completed"] != 1 {
		t.Errorf("global stats = %v", report.Stats)
	}

	// Only the pending task due within 7 days of Aug 20 is urgent.
	if len(report.Urgent) != 1 || report.Urgent[0].ID != "1" {
		t.Errorf("urgent = %+v, want only task 1", report.Urgent)
	}

	// Rows without an id get a synthetic one.
	money := report.Categories[1]
	if money.Todos[1].ID != "Money_3" {
		t.Errorf("synthetic id = %q, want Money_3", money.Todos[1].ID)
	}
}

func TestTodosSkipsFailingTab(t *testing.T) {
	reader := &fakeReader{
		values: map[string][][]string{
			"IT!A1:E500": {
				header(),
				{"1", "Patch servers", "pending", "", ""},
			},
		},
		errs: map[string]error{
			"Money!A1:E500": errors.New("permission denied"),
		},
	}
	svc := todosService(reader)

	report, err := svc.Todos(context.Background())
	if err != nil {
		t.Fatalf("Todos should tolerate one failing tab: %v", err)
	}
	if len(report.Categories) != 1 || report.Categories[0].Category != "IT" {
		t.Errorf("categories = %+v", report.Categories)
	}
}

func TestUrgentOrderingAndCap(t *testing.T) {
	var all []TodoItem
	for i := 0; i < 15; i++ {
		all = append(all, TodoItem{
			ID:      string(rune('a' + i)),
			Title:   "t",
			Status:  "pending",
			DueDate: time.Date(2025, time.August, 26-(i%7), 0, 0, 0, 0, time.UTC).Format("1/2/2006"),
		})
	}
	urgent := urgentTodos(all, parseTime)

	if len(urgent) != 10 {
		t.Fatalf("urgent count = %d, want capped at 10", len(urgent))
	}
	for i := 1; i < len(urgent); i++ {
		prev, _ := parseDueDate(urgent[i-1].DueDate)
		cur, _ := parseDueDate(urgent[i].DueDate)
		if cur.Before(prev) {
			t.Fatalf("urgent not sorted by due date at %d", i)
		}
	}
}

func TestUrgentSkipsCompletedAndUnparseable(t *testing.T) {
	all := []TodoItem{
		{ID: "1", Status: "completed", DueDate: "8/21/2025"},
		{ID: "2", Status: "pending", DueDate: "soonish"},
		{ID: "3", Status: "pending", DueDate: "8/21/2025"},
		{ID: "4", Status: "pending"}, // no due date
	}
	urgent := urgentTodos(all, parseTime)
	if len(urgent) != 1 || urgent[0].ID != "3" {
		t.Errorf("urgent = %+v, want only task 3", urgent)
	}
}

func TestWeekInfo(t *testing.T) {
	svc := todosService(&fakeReader{})
	week := svc.Week()
	if week.Year != 2025 || week.Week != 34 || week.Weekday != 3 {
		t.Errorf("week = %+v", week)
	}
	if week.WeekStart != "2025-08-18" || week.WeekEnd != "2025-08-24" {
		t.Errorf("boundaries = %s..%s", week.WeekStart, week.WeekEnd)
	}
	if week.Label != "W34 2025 (Aug 18-Aug 24)" {
		t.Errorf("label = %q", week.Label)
	}
}
