package airquality

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Service orchestrates the provider clients, the daily aggregator and the
// report formatter. Every query is independent and stateless, so one Service
// is safe for any number of concurrent callers (chat bot sessions, dashboard
// requests, CLI).
type Service struct {
	providers    []Provider
	store        SnapshotStore
	report       ReportConfig
	tz           *time.Location
	maxQueryDays int
}

// NewService creates a new Service. maxQueryDays bounds the historical span
// accepted by QueryHistorical.
func NewService(store SnapshotStore, providers []Provider, report ReportConfig, tz *time.Location, maxQueryDays int) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		providers:    providers,
		store:        store,
		report:       report,
		tz:           tz,
		maxQueryDays: maxQueryDays,
	}
}

// ReportConfig exposes the thresholds the service formats against.
func (s *Service) ReportConfig() ReportConfig {
	return s.report
}

// QueryHistorical runs the whole pipeline for one inclusive date range:
// validate, fetch from all historical providers, aggregate per day, format.
// The returned error is always a *QueryError carrying user-facing text;
// anything unexpected is recovered here rather than escaping to the caller.
func (s *Service) QueryHistorical(ctx context.Context, start, end time.Time) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("historical query panic: %v", r)
			err = &QueryError{Kind: ErrUnexpected, Message: fmt.Sprintf("查詢失敗: %v", r)}
			result = ""
		}
	}()

	table, err := s.QueryDaily(ctx, start, end)
	if err != nil {
		return "", err
	}

	start = dateOnly(start, s.tz)
	end = dateOnly(end, s.tz)
	return FormatDailyTable(table, start, end) + FormatStatistics(table, s.report), nil
}

// QueryDaily returns the aggregated table itself, for callers that render
// their own view (JSON API, CSV export) instead of the text report.
func (s *Service) QueryDaily(ctx context.Context, start, end time.Time) (table DailyTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("historical query panic: %v", r)
			err = &QueryError{Kind: ErrUnexpected, Message: fmt.Sprintf("查詢失敗: %v", r)}
			table = nil
		}
	}()

	start = dateOnly(start, s.tz)
	end = dateOnly(end, s.tz)

	if start.After(end) {
		return nil, invalidRange("開始日期不能晚於結束日期")
	}
	if int(end.Sub(start).Hours()/24) > s.maxQueryDays {
		return nil, invalidRange(fmt.Sprintf("查詢範圍不能超過 %d 天", s.maxQueryDays))
	}

	readings, failed, attempted := s.fetchAll(ctx, start, end)

	table = FilterRange(AggregateDaily(readings), start, end)
	if len(table) == 0 {
		if attempted > 0 && failed == attempted {
			return nil, &QueryError{
				Kind:    ErrProviderUnavailable,
				Message: "資料來源暫時無法使用，請稍後再試",
			}
		}
		return nil, noData(fmt.Sprintf("%s ~ %s 期間無資料",
			start.Format(DateLayout), end.Format(DateLayout)))
	}
	return table, nil
}

// fetchAll runs every historical provider concurrently. The providers share
// no state and neither depends on the other's result; a failed source is
// logged and degrades to its partial (possibly empty) contribution.
func (s *Service) fetchAll(ctx context.Context, start, end time.Time) (readings []Reading, failed, attempted int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, p := range s.providers {
		hp, ok := p.(HistoricalProvider)
		if !ok {
			continue
		}
		attempted++

		wg.Add(1)
		go func(hp HistoricalProvider) {
			defer wg.Done()

			rs, err := func() (rs []Reading, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("provider panic: %v", r)
					}
				}()
				return hp.FetchRange(ctx, start, end)
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Keep whatever the source managed before failing.
				log.Printf("provider %s range fetch failed: %v", hp.Name(), err)
				failed++
			}
			readings = append(readings, rs...)
		}(hp)
	}

	wg.Wait()
	return readings, failed, attempted
}

// RefreshSnapshot fetches current conditions from all providers, merges them
// into one snapshot and stores it. The two sources cover disjoint station
// sets, so merging is a plain union.
func (s *Service) RefreshSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings = make(map[string]CurrentReading)
	)

	for _, p := range s.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("provider %s current fetch panic: %v", p.Name(), r)
				}
			}()

			current, err := p.FetchCurrent(ctx)
			if err != nil {
				log.Printf("provider %s current fetch failed: %v", p.Name(), err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for station, r := range current {
				readings[station] = r
			}
		}(p)
	}

	wg.Wait()

	if len(readings) == 0 {
		return Snapshot{}, &QueryError{
			Kind:    ErrProviderUnavailable,
			Message: "無法取得資料，請稍後再試",
		}
	}

	snap := Snapshot{Taken: time.Now().In(s.tz), Readings: readings}
	if s.store != nil {
		s.store.SaveSnapshot(snap)
	}
	return snap, nil
}

// CurrentSnapshot returns the most recent stored snapshot, falling back to a
// live refresh when the store has none yet.
func (s *Service) CurrentSnapshot(ctx context.Context) (Snapshot, error) {
	if s.store != nil {
		if snap, err := s.store.GetLatest(); err == nil {
			return snap, nil
		}
	}
	return s.RefreshSnapshot(ctx)
}

// SnapshotRange delegates to the underlying store.
func (s *Service) SnapshotRange(from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(from, to)
}

// dateOnly truncates t to midnight of its calendar date in the given zone.
func dateOnly(t time.Time, tz *time.Location) time.Time {
	t = t.In(tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}
