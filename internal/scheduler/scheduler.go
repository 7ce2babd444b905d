package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/JuanD1P/AGRO-SABANA/internal/recommend"
)

// Scheduler periodically prewarms the climate cache for configured
// municipalities so the first ranking request of the day is fast.
type Scheduler struct {
	scheduler      *gocron.Scheduler
	service        *recommend.Service
	municipalities []string
	interval       time.Duration
}

// New creates a new Scheduler.
func New(municipalities []string, interval time.Duration, service *recommend.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:      s,
		service:        service,
		municipalities: municipalities,
		interval:       interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.municipalities) == 0 {
		log.Println("scheduler: no municipalities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running climate prewarm job")

		var wg sync.WaitGroup
		for _, muni := range s.municipalities {
			muni := muni
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := s.service.Prewarm(ctx, muni); err != nil {
					log.Printf("scheduler: prewarm failed for %s: %v", muni, err)
				}
			}()
		}
		wg.Wait()
		log.Println("scheduler: completed climate prewarm job")
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
