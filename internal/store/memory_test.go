package store

import (
	"testing"
	"time"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

func snapAt(taken time.Time) airquality.Snapshot {
	pm := 20.0
	return airquality.Snapshot{
		Taken: taken,
		Readings: map[string]airquality.CurrentReading{
			"仁武": {Station: "仁武", PM25: &pm, Time: taken},
		},
	}
}

func TestMemoryStoreLatest(t *testing.T) {
	s := NewMemoryStore(0, 0)

	if _, err := s.GetLatest(); err != ErrNotFound {
		t.Fatalf("empty store: got %v, want ErrNotFound", err)
	}

	now := time.Now()
	s.SaveSnapshot(snapAt(now.Add(-time.Minute)))
	s.SaveSnapshot(snapAt(now))

	latest, err := s.GetLatest()
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !latest.Taken.Equal(now) {
		t.Errorf("latest taken = %v, want %v", latest.Taken, now)
	}
}

func TestMemoryStoreCountRetention(t *testing.T) {
	s := NewMemoryStore(3, 0)

	now := time.Now()
	for i := 0; i < 5; i++ {
		s.SaveSnapshot(snapAt(now.Add(time.Duration(i) * time.Minute)))
	}

	all, err := s.GetRange(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("retained %d snapshots, want 3", len(all))
	}
	if !all[0].Taken.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("oldest retained = %v, want the third snapshot", all[0].Taken)
	}
}

func TestMemoryStoreRange(t *testing.T) {
	s := NewMemoryStore(0, 0)

	base := time.Now()
	for i := 0; i < 4; i++ {
		s.SaveSnapshot(snapAt(base.Add(time.Duration(i) * time.Hour)))
	}

	got, err := s.GetRange(base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(got))
	}

	if _, err := s.GetRange(base.Add(10*time.Hour), base.Add(11*time.Hour)); err != ErrNotFound {
		t.Errorf("out-of-range query: got %v, want ErrNotFound", err)
	}
}
