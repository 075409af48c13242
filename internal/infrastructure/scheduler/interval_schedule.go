package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DelayedIntervalSchedule runs at a fixed interval, but the first run waits
// only for the startup delay. Used so a freshly deployed worker scores all
// schools shortly after boot instead of a full interval later.
type DelayedIntervalSchedule struct {
	Interval time.Duration
	Delay    time.Duration

	fired bool
}

// NewDelayedIntervalSchedule creates a new DelayedIntervalSchedule.
func NewDelayedIntervalSchedule(interval, delay time.Duration) *DelayedIntervalSchedule {
	return &DelayedIntervalSchedule{
		Interval: interval,
		Delay:    delay,
	}
}

// Next returns the startup delay on the first call and the fixed interval
// afterwards. The scheduler calls Next once at registration and once per run,
// from a single goroutine.
func (s *DelayedIntervalSchedule) Next(t time.Time) time.Time {
	if !s.fired {
		s.fired = true
		return t.Add(s.Delay)
	}
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *DelayedIntervalSchedule) String() string {
	return fmt.Sprintf("@after %s then @every %s", s.Delay.String(), s.Interval.String())
}
