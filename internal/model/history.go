package model

import "time"

type RoundType string

const (
	RoundReset           RoundType = "reset"
	RoundCompleteSession RoundType = "complete_session"
	RoundNextTicket      RoundType = "next_ticket"
)

type RoundVote struct {
	User           string          `json:"user" cbor:"1,keyasint"`
	Vote           string          `json:"vote,omitempty" cbor:"2,keyasint,omitempty"`
	StructuredVote *StructuredVote `json:"structuredVote,omitempty" cbor:"3,keyasint,omitempty"`
}

// RoundHistoryEntry is appended once and never mutated.
type RoundHistoryEntry struct {
	ID             string      `json:"id"`
	Type           RoundType   `json:"type"`
	Ticket         *Ticket     `json:"ticket,omitempty"`
	Votes          []RoundVote `json:"votes"`
	JudgeScore     *float64    `json:"judgeScore,omitempty"`
	ElapsedSeconds int64       `json:"elapsedSeconds"`
	EndedAt        time.Time   `json:"endedAt"`
}

func (e RoundHistoryEntry) Clone() RoundHistoryEntry {
	out := e
	if e.Ticket != nil {
		t := *e.Ticket
		out.Ticket = &t
	}
	if e.JudgeScore != nil {
		s := *e.JudgeScore
		out.JudgeScore = &s
	}
	out.Votes = make([]RoundVote, len(e.Votes))
	for i, v := range e.Votes {
		if v.StructuredVote != nil {
			sv := v.StructuredVote.Clone()
			v.StructuredVote = &sv
		}
		out.Votes[i] = v
	}
	return out
}

// RoundSnapshot is what the round-completion notifier receives.
type RoundSnapshot struct {
	RoomKey string            `json:"roomKey"`
	Round   RoundHistoryEntry `json:"round"`
}
