// Package dashboard provides the read-only views over the spreadsheets:
// team availability, weekly planning, and the synced todos. It locates the
// current week's data by probing candidate ranges, newest first.
package dashboard

import (
	"context"
	"time"

	"github.com/avasseur/boardsync/internal/calweek"
	"github.com/avasseur/boardsync/internal/config"
	"github.com/avasseur/boardsync/internal/sheets"
)

// Service answers dashboard queries. It never mutates the spreadsheets.
type Service struct {
	cfg    *config.Config
	reader sheets.Reader
	now    func() time.Time
}

// NewService wires a dashboard service over the given sheet reader.
func NewService(cfg *config.Config, reader sheets.Reader) *Service {
	return &Service{cfg: cfg, reader: reader, now: time.Now}
}

// WeekInfo describes the current ISO week for the dashboard header.
type WeekInfo struct {
	Year      int    `json:"year"`
	Week      int    `json:"week"`
	Weekday   int    `json:"weekday"`
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`
	Label     string `json:"label"`
}

// Week returns the current ISO week information.
func (s *Service) Week() WeekInfo {
	now := s.now()
	info := calweek.At(now)
	monday, sunday := calweek.Boundaries(now)
	return WeekInfo{
		Year:      info.Year,
		Week:      info.Week,
		Weekday:   info.Weekday,
		WeekStart: monday.Format("2006-01-02"),
		WeekEnd:   sunday.Format("2006-01-02"),
		Label:     calweek.Label(now),
	}
}

// Availability locates and parses the current availability board.
// It returns (nil, nil) when no candidate range holds data.
func (s *Service) Availability(ctx context.Context) (*Availability, error) {
	candidates := sheets.CandidateRanges(sheets.KindAvailability, s.now())
	result, err := sheets.Probe(ctx, s.reader, s.cfg.Sheets.AvailabilitySpreadsheetID, candidates)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return parseAvailability(result.Values, result.UsedRange, s.now()), nil
}

// Planning locates and parses the current planning board.
// It returns (nil, nil) when no candidate range holds data.
func (s *Service) Planning(ctx context.Context) (*Planning, error) {
	candidates := sheets.CandidateRanges(sheets.KindPlanning, s.now())
	result, err := sheets.Probe(ctx, s.reader, s.cfg.Sheets.PlanningSpreadsheetID, candidates)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return parsePlanning(result.Values, result.UsedRange, s.now()), nil
}
