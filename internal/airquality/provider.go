package airquality

import (
	"context"
	"time"
)

// Provider abstracts an air-quality data source (WeatherLink, MOENV).
// FetchCurrent returns the latest reading per canonical station; stations the
// source does not carry are simply absent from the map.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context) (map[string]CurrentReading, error)
}

// HistoricalProvider is implemented by providers that can serve a multi-day
// time series. start and end are inclusive calendar dates (midnight in the
// display zone). Partial results with a nil error are normal: individual
// failed days or pages are skipped, and an error is returned only when the
// source produced nothing at all because every request failed.
type HistoricalProvider interface {
	Provider
	FetchRange(ctx context.Context, start, end time.Time) ([]Reading, error)
}

// SnapshotStore is the contract the in-memory snapshot history (and any
// future persistent store) must satisfy.
type SnapshotStore interface {
	SaveSnapshot(snap Snapshot)
	GetLatest() (Snapshot, error)
	GetRange(from, to time.Time) ([]Snapshot, error)
}
