package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avasseur/boardsync/internal/basecamp"
	"github.com/avasseur/boardsync/internal/config"
	"github.com/avasseur/boardsync/internal/sheets"
)

// TaskSource is the slice of the Basecamp client the syncer needs.
type TaskSource interface {
	Todolists(ctx context.Context) ([]basecamp.Todolist, error)
	TodosForList(ctx context.Context, listID int64, opts basecamp.FetchOptions) ([]basecamp.Todo, error)
}

// SheetStore is the slice of the spreadsheet client the syncer needs.
type SheetStore interface {
	sheets.Writer
	sheets.TabManager
}

// RunOptions adjusts a single run without touching configuration. The
// zero value is a normal full run: all groups, completed and archived
// tasks included.
type RunOptions struct {
	DryRun           bool     // fetch and transform, skip clear and write
	Groups           []string // restrict to these groups; empty = all mapped
	ExcludeCompleted bool
	ExcludeArchived  bool
	NoAutoCreate     bool // skip tab creation even if configured on
}

// MissingReport lists destination tabs that do not exist yet and Basecamp
// groups that have no mapping entry.
type MissingReport struct {
	MissingTabs    []string `json:"missing_tabs"`
	UnmappedGroups []string `json:"unmapped_groups"`
}

// Syncer copies todos from Basecamp todolists into destination spreadsheet
// tabs, one tab per mapped group. Runs are sequential over the mapping
// table; a failing group never stops the others.
type Syncer struct {
	cfg    *config.Config
	source TaskSource
	store  SheetStore
}

// NewSyncer wires a syncer from its collaborators.
func NewSyncer(cfg *config.Config, source TaskSource, store SheetStore) *Syncer {
	return &Syncer{cfg: cfg, source: source, store: store}
}

// DetectMissing compares the mapping table against the live todolists and
// the destination spreadsheet's tabs.
func (s *Syncer) DetectMissing(ctx context.Context) (*MissingReport, error) {
	lists, err := s.source.Todolists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list todolists: %w", err)
	}
	tabs, err := s.store.ListTabs(ctx, s.cfg.Sheets.TodosSpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list destination tabs: %w", err)
	}

	report := &MissingReport{}
	existing := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		existing[tab] = true
	}
	for _, m := range s.cfg.Sync.Mappings {
		if !existing[m.Tab] {
			report.MissingTabs = append(report.MissingTabs, m.Tab)
		}
	}
	for _, list := range lists {
		if _, ok := s.cfg.Sync.TabFor(list.DisplayName()); !ok {
			report.UnmappedGroups = append(report.UnmappedGroups, list.DisplayName())
		}
	}
	return report, nil
}

// Run executes one full synchronization pass and returns its result.
// Only setup failures (unreachable store or task API) return an error;
// everything below that is recorded per group in the result.
func (s *Syncer) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	started := time.Now()
	dates := NewDateConverter()
	result := &RunResult{Timestamp: started, DryRun: opts.DryRun}

	lists, err := s.source.Todolists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list todolists: %w", err)
	}
	listByName := make(map[string]*basecamp.Todolist, len(lists))
	for i := range lists {
		listByName[strings.ToLower(lists[i].DisplayName())] = &lists[i]
	}

	for _, list := range lists {
		if _, ok := s.cfg.Sync.TabFor(list.DisplayName()); !ok {
			slog.Warn("todolist has no mapping entry, skipping", "group", list.DisplayName())
			result.UnmappedGroups = append(result.UnmappedGroups, list.DisplayName())
		}
	}

	mappings := s.selectMappings(opts.Groups)
	result.TotalGroups = len(mappings)

	if err := s.ensureTabs(ctx, mappings, opts, result); err != nil {
		return nil, err
	}

	for _, m := range mappings {
		detail := s.syncGroup(ctx, m, listByName, dates, opts)
		result.Details = append(result.Details, detail)
		if detail.OK {
			result.Successful++
		} else {
			result.Failed++
			slog.Warn("group sync failed", "group", m.Group, "tab", m.Tab, "error", detail.Error)
		}
	}

	result.DateStats = dates.Stats()
	result.Duration = time.Since(started)
	slog.Info("sync run finished",
		"groups", result.TotalGroups,
		"successful", result.Successful,
		"failed", result.Failed,
		"dry_run", opts.DryRun,
		"duration", result.Duration)
	return result, nil
}

// selectMappings filters the configured mappings down to the requested
// groups, preserving mapping order.
func (s *Syncer) selectMappings(groups []string) []config.Mapping {
	if len(groups) == 0 {
		return s.cfg.Sync.Mappings
	}
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[strings.ToLower(g)] = true
	}
	var out []config.Mapping
	for _, m := range s.cfg.Sync.Mappings {
		if wanted[strings.ToLower(m.Group)] {
			out = append(out, m)
		}
	}
	return out
}

// ensureTabs creates missing destination tabs with the standard header row.
// Creation failures are logged and recorded but do not abort the run; the
// affected group will fail on write and be reported there.
func (s *Syncer) ensureTabs(ctx context.Context, mappings []config.Mapping, opts RunOptions, result *RunResult) error {
	if opts.DryRun {
		return nil
	}

	tabs, err := s.store.ListTabs(ctx, s.cfg.Sheets.TodosSpreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to list destination tabs: %w", err)
	}
	existing := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		existing[tab] = true
	}

	autoCreate := s.cfg.Sync.AutoCreateTabs && !opts.NoAutoCreate
	for _, m := range mappings {
		if existing[m.Tab] {
			continue
		}
		if !autoCreate {
			slog.Warn("destination tab missing and auto-create is off", "tab", m.Tab)
			continue
		}
		if err := s.store.CreateTabWithHeaders(ctx, s.cfg.Sheets.TodosSpreadsheetID, m.Tab, Headers); err != nil {
			slog.Warn("failed to create destination tab", "tab", m.Tab, "error", err)
			continue
		}
		slog.Info("created destination tab", "tab", m.Tab)
		result.CreatedTabs = append(result.CreatedTabs, m.Tab)
		existing[m.Tab] = true
	}
	return nil
}

// syncGroup fetches, transforms, and rewrites one destination tab.
// The clear-then-write is not atomic: a write failure after the clear
// leaves the tab empty until the next run.
func (s *Syncer) syncGroup(ctx context.Context, m config.Mapping, listByName map[string]*basecamp.Todolist, dates *DateConverter, opts RunOptions) GroupResult {
	detail := GroupResult{Group: m.Group, Tab: m.Tab}

	list, ok := listByName[strings.ToLower(m.Group)]
	if !ok {
		detail.Error = fmt.Sprintf("no todolist named %q", m.Group)
		return detail
	}

	todos, err := s.source.TodosForList(ctx, list.ID, basecamp.FetchOptions{
		ExcludeCompleted: opts.ExcludeCompleted,
		ExcludeArchived:  opts.ExcludeArchived,
	})
	if err != nil {
		detail.Error = fmt.Sprintf("fetch failed: %v", err)
		return detail
	}

	rows := make([][]string, 0, len(todos))
	for _, todo := range todos {
		rows = append(rows, RowFor(todo, dates))
	}
	if max := s.cfg.Sync.MaxRows; len(rows) > max {
		slog.Warn("row cap exceeded, truncating", "tab", m.Tab, "rows", len(rows), "max", max)
		rows = rows[:max]
	}

	if opts.DryRun {
		slog.Info("dry run, skipping write", "group", m.Group, "tab", m.Tab, "rows", len(rows))
		detail.Synced = len(rows)
		detail.OK = true
		return detail
	}

	spreadsheetID := s.cfg.Sheets.TodosSpreadsheetID
	clearRange := fmt.Sprintf("%s!A2:E%d", m.Tab, s.cfg.Sync.MaxRows+1)
	if err := s.store.ClearRange(ctx, spreadsheetID, clearRange); err != nil {
		detail.Error = fmt.Sprintf("clear failed: %v", err)
		return detail
	}

	if len(rows) > 0 {
		writeRange := fmt.Sprintf("%s!A2", m.Tab)
		if _, err := s.store.UpdateValues(ctx, spreadsheetID, writeRange, rows, "RAW"); err != nil {
			detail.Error = fmt.Sprintf("write failed: %v", err)
			return detail
		}
	}

	slog.Debug("group synced", "group", m.Group, "tab", m.Tab, "rows", len(rows))
	detail.Synced = len(rows)
	detail.OK = true
	return detail
}
