package sheetsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"otpreport/internal/engine/otpstats"
	"otpreport/internal/platform/sheets"
)

// Header is the first row of every month tab. The date column is the key
// the daily sync upserts on.
var Header = []string{"Date", "Unverified", "Verified", "Total", "Unverified %"}

func Row(a otpstats.DailyAggregate) []interface{} {
	return []interface{}{a.Date, a.Unverified, a.Verified, a.Total, a.UnverifiedPct}
}

type Result struct {
	Tabs     []string
	Updated  int
	Appended int
}

func (r *Result) add(o Result) {
	r.Tabs = append(r.Tabs, o.Tabs...)
	r.Updated += o.Updated
	r.Appended += o.Appended
}

func (r Result) Rows() int {
	return r.Updated + r.Appended
}

type Service struct {
	events otpstats.EventStore
	sheet  sheets.Spreadsheet
}

func NewService(events otpstats.EventStore, sheet sheets.Spreadsheet) *Service {
	return &Service{events: events, sheet: sheet}
}

// Upsert writes stats into tab keeping at most one row per date: a date
// already present is overwritten in place, new dates are appended.
func (s *Service) Upsert(ctx context.Context, tab string, stats []otpstats.DailyAggregate) (Result, error) {
	res := Result{Tabs: []string{tab}}

	if _, err := s.sheet.EnsureTab(ctx, tab, Header); err != nil {
		return res, fmt.Errorf("ensure tab %s: %w", tab, err)
	}

	rows, err := s.sheet.ReadTab(ctx, tab)
	if err != nil {
		return res, err
	}

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if _, seen := index[row[0]]; !seen {
			index[row[0]] = i + 1
		}
	}

	var appends [][]interface{}
	for _, stat := range stats {
		if n, ok := index[stat.Date]; ok && n > 0 {
			if err := s.sheet.UpdateRow(ctx, tab, n, Row(stat)); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}
		if _, pending := index[stat.Date]; pending {
			continue
		}
		index[stat.Date] = 0
		appends = append(appends, Row(stat))
	}

	if err := s.sheet.AppendRows(ctx, tab, appends); err != nil {
		return res, err
	}
	res.Appended = len(appends)

	s.leftAlign(ctx, tab)
	return res, nil
}

func (s *Service) leftAlign(ctx context.Context, tab string) {
	if err := s.sheet.LeftAlign(ctx, tab, len(Header)); err != nil {
		log.Warn().Err(err).Str("tab", tab).Msg("failed to format tab")
	}
}

// DailyRange is the window a daily sync covers: yesterday and today.
func DailyRange(now time.Time) otpstats.DateRange {
	today := otpstats.StartOfDay(now)
	return otpstats.DateRange{Start: today.AddDate(0, 0, -1), End: today}
}

// BackfillCoverage is the span a backfill of rng actually writes. The last
// month is always written through its final day.
func BackfillCoverage(rng otpstats.DateRange) otpstats.DateRange {
	return otpstats.DateRange{
		Start: rng.Start,
		End:   otpstats.FirstOfNextMonth(rng.End).AddDate(0, 0, -1),
	}
}

// DailySync aggregates rng and upserts each date into the tab of its own
// month, so the 1st of a month still refreshes the last day of the previous
// one. The tab of rng.End is created even on a day without events.
func (s *Service) DailySync(ctx context.Context, rng otpstats.DateRange) (Result, error) {
	var res Result

	current := otpstats.MonthTab(rng.End)
	if _, err := s.sheet.EnsureTab(ctx, current, Header); err != nil {
		return res, fmt.Errorf("ensure tab %s: %w", current, err)
	}

	stats, err := s.events.Aggregate(ctx, rng)
	if err != nil {
		return res, err
	}

	found := make(map[string]bool, len(stats))
	for _, stat := range stats {
		found[stat.Date] = true
	}
	for d := rng.Start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		if date := d.Format(otpstats.DateLayout); !found[date] {
			log.Info().Str("date", date).Msg("no otp events found")
		}
	}

	var tabs []string
	byTab := make(map[string][]otpstats.DailyAggregate)
	for _, stat := range stats {
		tab, err := otpstats.MonthTabOfDate(stat.Date)
		if err != nil {
			return res, fmt.Errorf("aggregate date %q: %w", stat.Date, err)
		}
		if _, ok := byTab[tab]; !ok {
			tabs = append(tabs, tab)
		}
		byTab[tab] = append(byTab[tab], stat)
	}

	for _, tab := range tabs {
		r, err := s.Upsert(ctx, tab, byTab[tab])
		res.add(r)
		if err != nil {
			return res, err
		}
		log.Info().Str("tab", tab).Int("updated", r.Updated).Int("appended", r.Appended).Msg("daily stats synced")
	}
	return res, nil
}

// Backfill walks rng month by month and appends every day of each month to
// that month's tab. Each month is aggregated from the current position to
// the end of the month, even past rng.End.
//
// Backfill appends without looking at existing rows: running it twice over
// the same months duplicates them.
func (s *Service) Backfill(ctx context.Context, rng otpstats.DateRange) (Result, error) {
	var res Result

	for current := rng.Start; !current.After(rng.End); current = otpstats.FirstOfNextMonth(current) {
		tab := otpstats.MonthTab(current)
		month := otpstats.DateRange{
			Start: current,
			End:   otpstats.FirstOfNextMonth(current).AddDate(0, 0, -1),
		}

		stats, err := s.events.Aggregate(ctx, month)
		if err != nil {
			return res, err
		}
		if len(stats) == 0 {
			log.Info().Str("month", tab).Msg("no otp events found")
			continue
		}

		if _, err := s.sheet.EnsureTab(ctx, tab, Header); err != nil {
			return res, fmt.Errorf("ensure tab %s: %w", tab, err)
		}

		rows := make([][]interface{}, len(stats))
		for i, stat := range stats {
			rows[i] = Row(stat)
		}
		if err := s.sheet.AppendRows(ctx, tab, rows); err != nil {
			return res, err
		}
		s.leftAlign(ctx, tab)

		res.add(Result{Tabs: []string{tab}, Appended: len(rows)})
		log.Info().Str("month", tab).Int("rows", len(rows)).Msg("monthly stats appended")
	}
	return res, nil
}
