package airquality

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu           sync.Mutex
	name         string
	readings     []Reading
	rangeErr     error
	rangePanic   bool
	rangeCalls   int
	current      map[string]CurrentReading
	currentErr   error
	currentCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchRange(ctx context.Context, start, end time.Time) ([]Reading, error) {
	f.mu.Lock()
	f.rangeCalls++
	f.mu.Unlock()
	if f.rangePanic {
		panic("boom")
	}
	return f.readings, f.rangeErr
}

func (f *fakeProvider) FetchCurrent(ctx context.Context) (map[string]CurrentReading, error) {
	f.mu.Lock()
	f.currentCalls++
	f.mu.Unlock()
	return f.current, f.currentErr
}

type fakeStore struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (s *fakeStore) SaveSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *fakeStore) GetLatest() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return Snapshot{}, errors.New("empty")
	}
	return s.snaps[len(s.snaps)-1], nil
}

func (s *fakeStore) GetRange(from, to time.Time) ([]Snapshot, error) {
	return nil, errors.New("not implemented")
}

func newTestService(t *testing.T, providers ...Provider) *Service {
	t.Helper()
	return NewService(&fakeStore{}, providers, DefaultReportConfig(), mustZone(t), 30)
}

func date(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, mustZone(t))
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T: %v", err, err)
	}
	return qe.Kind
}

func TestQueryRejectsReversedRangeWithoutFetching(t *testing.T) {
	fake := &fakeProvider{name: "fake"}
	svc := newTestService(t, fake)

	_, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 7), date(t, 2025, 10, 1))
	if kindOf(t, err) != ErrInvalidRange {
		t.Fatalf("expected InvalidRange, got %v", err)
	}
	if fake.rangeCalls != 0 {
		t.Errorf("provider was called %d times, want 0", fake.rangeCalls)
	}
}

func TestQueryRejectsOversizedRangeWithoutFetching(t *testing.T) {
	fake := &fakeProvider{name: "fake"}
	svc := newTestService(t, fake)

	_, err := svc.QueryHistorical(context.Background(), date(t, 2025, 9, 1), date(t, 2025, 10, 15))
	if kindOf(t, err) != ErrInvalidRange {
		t.Fatalf("expected InvalidRange, got %v", err)
	}
	if fake.rangeCalls != 0 {
		t.Errorf("provider was called %d times, want 0", fake.rangeCalls)
	}
}

func TestQueryEmptySourcesIsNoData(t *testing.T) {
	commercial := &fakeProvider{name: "weatherlink"}
	government := &fakeProvider{name: "moenv"}
	svc := newTestService(t, commercial, government)

	_, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 1), date(t, 2025, 10, 3))
	if kindOf(t, err) != ErrNoData {
		t.Fatalf("expected NoData, got %v", err)
	}
	if commercial.rangeCalls != 1 || government.rangeCalls != 1 {
		t.Errorf("providers called (%d, %d) times, want (1, 1)",
			commercial.rangeCalls, government.rangeCalls)
	}
}

func TestQueryAllSourcesFailedIsProviderUnavailable(t *testing.T) {
	commercial := &fakeProvider{name: "weatherlink", rangeErr: errors.New("conn refused")}
	government := &fakeProvider{name: "moenv", rangeErr: errors.New("timeout")}
	svc := newTestService(t, commercial, government)

	_, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 1), date(t, 2025, 10, 3))
	if kindOf(t, err) != ErrProviderUnavailable {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
}

func TestQueryPartialFailureDegrades(t *testing.T) {
	ts := time.Date(2025, 10, 1, 10, 0, 0, 0, mustZone(t))
	commercial := &fakeProvider{
		name: "weatherlink",
		readings: []Reading{
			{Station: "南區上", Time: ts, PM25: fp(20)},
		},
	}
	government := &fakeProvider{name: "moenv", rangeErr: errors.New("timeout")}
	svc := newTestService(t, commercial, government)

	msg, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 1), date(t, 2025, 10, 1))
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if !strings.Contains(msg, "南區上") {
		t.Errorf("missing surviving station in report:\n%s", msg)
	}
}

func TestQueryEndToEndDailyMean(t *testing.T) {
	tz := mustZone(t)
	day := time.Date(2025, 10, 1, 8, 0, 0, 0, tz)

	commercial := &fakeProvider{
		name: "weatherlink",
		readings: []Reading{
			{Station: "南區上", Time: day, PM25: fp(24.0)},
			{Station: "南區上", Time: day.Add(time.Hour), PM25: fp(26.0)},
		},
	}
	svc := newTestService(t, commercial)

	msg, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 1), date(t, 2025, 10, 1))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(msg, "114/10/1") {
		t.Errorf("missing ROC date:\n%s", msg)
	}
	if !strings.Contains(msg, " 25") {
		t.Errorf("missing rounded mean 25:\n%s", msg)
	}
	if !strings.Contains(msg, "統計摘要") {
		t.Errorf("missing statistics section:\n%s", msg)
	}
}

func TestQueryRecoversProviderPanic(t *testing.T) {
	commercial := &fakeProvider{name: "weatherlink", rangePanic: true}
	svc := newTestService(t, commercial)

	_, err := svc.QueryHistorical(context.Background(), date(t, 2025, 10, 1), date(t, 2025, 10, 1))
	if err == nil {
		t.Fatal("expected error from panicking provider")
	}
	// A single panicking source counts as a failed source.
	if k := kindOf(t, err); k != ErrProviderUnavailable && k != ErrNoData {
		t.Fatalf("unexpected kind %v", k)
	}
}

func TestRefreshSnapshotMergesAndStores(t *testing.T) {
	tz := mustZone(t)
	now := time.Now().In(tz)

	commercial := &fakeProvider{
		name: "weatherlink",
		current: map[string]CurrentReading{
			"南區上": {Station: "南區上", PM25: fp(18), Time: now},
		},
	}
	government := &fakeProvider{
		name: "moenv",
		current: map[string]CurrentReading{
			"仁武": {Station: "仁武", PM25: fp(22), PM10: fp(40), Time: now},
		},
	}

	st := &fakeStore{}
	svc := NewService(st, []Provider{commercial, government}, DefaultReportConfig(), tz, 30)

	snap, err := svc.RefreshSnapshot(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(snap.Readings) != 2 {
		t.Fatalf("merged %d stations, want 2", len(snap.Readings))
	}
	if len(st.snaps) != 1 {
		t.Fatalf("stored %d snapshots, want 1", len(st.snaps))
	}

	// Subsequent reads come from the store, not the providers.
	if _, err := svc.CurrentSnapshot(context.Background()); err != nil {
		t.Fatalf("current snapshot failed: %v", err)
	}
	if commercial.currentCalls != 1 {
		t.Errorf("provider called %d times, want 1 (store hit expected)", commercial.currentCalls)
	}
}

func TestRefreshSnapshotAllFailed(t *testing.T) {
	commercial := &fakeProvider{name: "weatherlink", currentErr: errors.New("down")}
	svc := newTestService(t, commercial)

	_, err := svc.RefreshSnapshot(context.Background())
	if kindOf(t, err) != ErrProviderUnavailable {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
}
