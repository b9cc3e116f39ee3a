package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

// Scheduler periodically refreshes the merged current-conditions snapshot so
// the live view is served from the store instead of hitting providers on
// every request.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *airquality.Service
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(interval, timeout time.Duration, service *airquality.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic refresh job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: refreshing current snapshot")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.service.RefreshSnapshot(ctx); err != nil {
			log.Printf("scheduler: snapshot refresh failed: %v", err)
			return
		}
		log.Println("scheduler: snapshot refreshed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
