package sync

import (
	"testing"

	"github.com/avasseur/boardsync/internal/basecamp"
)

func TestDateConverterCanonicalForms(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-12-31", "12/31/2025"},
		{"31/12/2025", "12/31/2025"},
		{"2025-08-17T10:30:00Z", "8/17/2025"},
		{"2025-08-17T10:30:00.123Z", "8/17/2025"},
		{"2025-08-17T10:30:00+02:00", "8/17/2025"},
		{"2025/12/31", "12/31/2025"},
		{"17-08-2025", "8/17/2025"},
		{"2025-01-05", "1/5/2025"}, // no leading zeros
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := NewDateConverter()
			if got := c.Convert(tt.in); got != tt.want {
				t.Errorf("Convert(%q) = %q, want %q", tt.in, got, tt.want)
			}
			stats := c.Stats()
			if stats.Converted != 1 || stats.Failed != 0 {
				t.Errorf("stats = %+v, want one conversion", stats)
			}
		})
	}
}

func TestDateConverterPassesThroughUnrecognized(t *testing.T) {
	c := NewDateConverter()
	if got := c.Convert("not-a-date"); got != "not-a-date" {
		t.Errorf("Convert(not-a-date) = %q, want unchanged input", got)
	}
	stats := c.Stats()
	if stats.Total != 1 || stats.Failed != 1 || stats.Converted != 0 {
		t.Errorf("stats = %+v, want one failure", stats)
	}
}

func TestDateConverterIgnoresEmpty(t *testing.T) {
	c := NewDateConverter()
	if got := c.Convert(""); got != "" {
		t.Errorf("Convert(empty) = %q", got)
	}
	if stats := c.Stats(); stats.Total != 0 {
		t.Errorf("empty input counted: %+v", stats)
	}
}

func TestDateConverterAccumulatesStats(t *testing.T) {
	c := NewDateConverter()
	for _, in := range []string{"2025-12-31", "2025-11-30", "31/12/2025", "garbage"} {
		c.Convert(in)
	}
	stats := c.Stats()
	if stats.Total != 4 || stats.Converted != 3 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 4/3/1", stats)
	}
	if stats.Formats["iso"] != 2 || stats.Formats["european"] != 1 {
		t.Errorf("format counts = %v", stats.Formats)
	}
}

func TestRowFor(t *testing.T) {
	c := NewDateConverter()
	todo := basecamp.Todo{
		ID:        987654,
		Title:     "Prepare board deck",
		Completed: false,
		Assignees: []basecamp.Person{{Name: "Alice"}, {Name: "Bob"}},
		DueOn:     "2025-08-17",
	}

	row := RowFor(todo, c)
	want := []string{"987654", "Prepare board deck", "pending", "Alice, Bob", "8/17/2025"}
	if len(row) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestRowForCompletedAndBare(t *testing.T) {
	c := NewDateConverter()
	todo := basecamp.Todo{ID: 1, Content: "From content field", Title: "ignored", Completed: true}

	row := RowFor(todo, c)
	if row[1] != "From content field" {
		t.Errorf("title cell = %q, want the content field", row[1])
	}
	if row[2] != "completed" {
		t.Errorf("status = %q, want completed", row[2])
	}
	if row[3] != "" || row[4] != "" {
		t.Errorf("assignees/due = %q/%q, want empty", row[3], row[4])
	}
}
