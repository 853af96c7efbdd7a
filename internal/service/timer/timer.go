// Package timer does the elapsed-time arithmetic for a room's session timer.
// It never fails and never blocks; all state lives in model.TimerState.
package timer

import (
	"time"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

type Timer struct{}

func New() *Timer {
	return &Timer{}
}

func (Timer) ElapsedSeconds(s *model.TimerState, now time.Time) int64 {
	if s == nil {
		return 0
	}
	elapsed := s.AccumulatedSeconds
	if s.Running && s.StartedAt != nil && now.After(*s.StartedAt) {
		elapsed += int64(now.Sub(*s.StartedAt) / time.Second)
	}
	return elapsed
}

// ResetAnchor sets the elapsed time to seconds, keeping the running flag.
func (t Timer) ResetAnchor(s *model.TimerState, seconds int64, now time.Time) *model.TimerState {
	if seconds < 0 {
		seconds = 0
	}
	out := &model.TimerState{AccumulatedSeconds: seconds}
	if s != nil && s.Running {
		out.Running = true
		out.StartedAt = &now
	}
	return out
}

func (t Timer) Start(s *model.TimerState, now time.Time) *model.TimerState {
	if s != nil && s.Running {
		return s
	}
	out := &model.TimerState{Running: true, StartedAt: &now}
	if s != nil {
		out.AccumulatedSeconds = s.AccumulatedSeconds
	}
	return out
}

func (t Timer) Pause(s *model.TimerState, now time.Time) *model.TimerState {
	if s == nil || !s.Running {
		return s
	}
	return &model.TimerState{AccumulatedSeconds: t.ElapsedSeconds(s, now)}
}
