package sync

import "time"

// GroupResult records the outcome for one mapped collection.
type GroupResult struct {
	Group  string `json:"group"`
	Tab    string `json:"tab"`
	Synced int    `json:"synced"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// RunResult is the aggregate outcome of one sync run. It is immutable once
// returned and is never persisted; each run stands alone.
type RunResult struct {
	Timestamp      time.Time     `json:"timestamp"`
	DryRun         bool          `json:"dry_run,omitempty"`
	TotalGroups    int           `json:"total_groups"`
	Successful     int           `json:"successful_syncs"`
	Failed         int           `json:"failed_syncs"`
	Details        []GroupResult `json:"details"`
	CreatedTabs    []string      `json:"created_tabs,omitempty"`
	UnmappedGroups []string      `json:"unmapped_groups,omitempty"`
	DateStats      DateStats     `json:"date_conversion_stats"`
	Duration       time.Duration `json:"duration"`
}

// Success reports whether every mapped group synced cleanly.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}
