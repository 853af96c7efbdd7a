package model

import "time"

type TimerState struct {
	Running            bool       `json:"running" cbor:"1,keyasint"`
	StartedAt          *time.Time `json:"startedAt,omitempty" cbor:"2,keyasint,omitempty"`
	AccumulatedSeconds int64      `json:"accumulatedSeconds" cbor:"3,keyasint"`
}

func (s TimerState) Clone() TimerState {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	return out
}
