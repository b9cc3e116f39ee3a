package store

import (
	"errors"
	"sync"
	"time"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

var (
	// ErrNotFound is returned when no snapshot is available.
	ErrNotFound = errors.New("no snapshot available")
)

// MemoryStore is a concurrency-safe in-memory history of merged current
// snapshots. Historical query results are never stored here: every
// historical query re-fetches from source.
type MemoryStore struct {
	mu sync.RWMutex

	snapshots []airquality.Snapshot

	// retention configuration
	maxHistory int           // max number of snapshots
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveSnapshot appends a new snapshot and enforces retention.
func (s *MemoryStore) SaveSnapshot(snap airquality.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snap)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.snapshots) > s.maxHistory {
		over := len(s.snapshots) - s.maxHistory
		s.snapshots = s.snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.snapshots); i++ {
			if !s.snapshots[i].Taken.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(s.snapshots) {
			s.snapshots = s.snapshots[i:]
		}
	}
}

// GetLatest returns the most recent snapshot.
func (s *MemoryStore) GetLatest() (airquality.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return airquality.Snapshot{}, ErrNotFound
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// GetRange returns all snapshots taken between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]airquality.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []airquality.Snapshot
	for _, snap := range s.snapshots {
		if !snap.Taken.Before(from) && !snap.Taken.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
