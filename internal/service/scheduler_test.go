package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestScheduler(clock time.Time, hour, minute int) *Scheduler {
	s := NewScheduler(nil, time.UTC, 9, 17, zap.NewNop())
	s.now = func() time.Time { return clock }
	draws := []int{hour - 9, minute}
	s.randInt = func(n int) int {
		v := draws[0]
		draws = draws[1:]
		return v
	}
	return s
}

func TestNextFireTimeWithinWindowToday(t *testing.T) {
	clock := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	s := newTestScheduler(clock, 14, 30)

	next := s.nextFireTime()
	assert.Equal(t, time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC), next)
}

func TestNextFireTimeRollsToTomorrow(t *testing.T) {
	// 16:45 now; a draw of 10:05 already passed today.
	clock := time.Date(2025, 6, 15, 16, 45, 0, 0, time.UTC)
	s := newTestScheduler(clock, 10, 5)

	next := s.nextFireTime()
	assert.Equal(t, time.Date(2025, 6, 16, 10, 5, 0, 0, time.UTC), next)
}

func TestNextFireTimeExactNowRollsOver(t *testing.T) {
	clock := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(clock, 12, 0)

	next := s.nextFireTime()
	assert.Equal(t, clock.AddDate(0, 0, 1), next)
}

func TestScheduleNextReplacesArmedTimer(t *testing.T) {
	s := NewScheduler(nil, time.UTC, 9, 17, zap.NewNop())

	s.ScheduleNext()
	first := s.NextRun()
	assert.False(t, first.IsZero())

	// Re-arming keeps a single pending run.
	s.ScheduleNext()
	second := s.NextRun()
	assert.False(t, second.IsZero())

	s.mu.Lock()
	assert.NotNil(t, s.timer)
	s.mu.Unlock()

	s.Stop()
}

func TestStopDisarmsAndBlocksRearm(t *testing.T) {
	s := NewScheduler(nil, time.UTC, 9, 17, zap.NewNop())
	s.ScheduleNext()
	s.Stop()

	assert.True(t, s.NextRun().IsZero())

	// ScheduleNext after Stop is a no-op.
	s.ScheduleNext()
	assert.True(t, s.NextRun().IsZero())
}

func TestNextFireTimeAlwaysInsideWindow(t *testing.T) {
	s := NewScheduler(nil, time.UTC, 9, 17, zap.NewNop())
	clock := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for i := 0; i < 200; i++ {
		next := s.nextFireTime()
		assert.GreaterOrEqual(t, next.Hour(), 9)
		assert.Less(t, next.Hour(), 17)
		assert.True(t, next.After(clock))
	}
}
