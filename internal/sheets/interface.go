package sheets

import "context"

// Reader is the read-only slice of the client used by the dashboard
// services and the range probe.
type Reader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}

// Writer is the mutating slice of the client used by the sync engine.
type Writer interface {
	ClearRange(ctx context.Context, spreadsheetID, rng string) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string, inputOption string) (int, error)
}

// TabManager manages tab existence for destination spreadsheets.
type TabManager interface {
	ListTabs(ctx context.Context, spreadsheetID string) ([]string, error)
	CreateTab(ctx context.Context, spreadsheetID, title string) error
	CreateTabWithHeaders(ctx context.Context, spreadsheetID, title string, headers []string) error
}

var (
	_ Reader     = (*Client)(nil)
	_ Writer     = (*Client)(nil)
	_ TabManager = (*Client)(nil)
)
