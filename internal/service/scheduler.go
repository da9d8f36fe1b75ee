// internal/service/scheduler.go
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler arms one batch run per calendar day at a random time inside a
// local-time window, re-arming itself after every run until stopped or the
// campaign completes.
type Scheduler struct {
	Batch  *BatchService
	Logger *zap.Logger

	Location  *time.Location
	StartHour int // inclusive
	EndHour   int // exclusive

	// Overridable in tests.
	now     func() time.Time
	randInt func(n int) int

	mu      sync.Mutex
	timer   *time.Timer
	next    time.Time
	stopped bool
}

// NewScheduler builds a scheduler over the [startHour, endHour) window.
func NewScheduler(batch *BatchService, loc *time.Location, startHour, endHour int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Batch:     batch,
		Logger:    logger,
		Location:  loc,
		StartHour: startHour,
		EndHour:   endHour,
		now:       time.Now,
		randInt:   rand.Intn,
	}
}

// ScheduleNext arms the next run. Re-entrant: any previously armed timer is
// cancelled first, so there is never more than one pending run.
func (s *Scheduler) ScheduleNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	next := s.nextFireTime()
	delay := next.Sub(s.now())

	if s.timer != nil {
		s.timer.Stop()
	}
	s.next = next
	s.timer = time.AfterFunc(delay, s.fire)

	s.Logger.Info("next batch scheduled",
		zap.Time("at", next),
		zap.Duration("in", delay.Round(time.Minute)))
}

// nextFireTime draws a random hour and minute inside the window; if that
// time of day already passed today, it targets tomorrow.
func (s *Scheduler) nextFireTime() time.Time {
	now := s.now().In(s.Location)
	hour := s.StartHour + s.randInt(s.EndHour-s.StartHour)
	minute := s.randInt(60)

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) fire() {
	report, err := s.Batch.RunBatch(context.Background(), RunOptions{})
	if err != nil {
		s.Logger.Error("scheduled batch failed", zap.Error(err))
	}
	if report != nil && report.Complete {
		s.Logger.Info("campaign complete, scheduler going idle")
		return
	}
	s.ScheduleNext()
}

// NextRun returns the time of the armed run, zero when none is armed.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Stop cancels the armed timer. An in-flight batch is not interrupted; it
// finishes its current user before the process drains.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.next = time.Time{}
}
