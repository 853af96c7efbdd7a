package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type RoomID string

func (id RoomID) BuildUUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))
}

// AnonymousID is the stable per-room identifier shown instead of a user name
// when votes are anonymous.
func (id RoomID) AnonymousID(user string) string {
	return uuid.NewSHA1(id.BuildUUID(), []byte(strings.ToLower(user))).String()
}

type RoomStatus = string

const (
	StatusActive    RoomStatus = "active"
	StatusCompleted RoomStatus = "completed"
)

type StructuredVote struct {
	CriteriaScores map[string]int `json:"criteriaScores" cbor:"1,keyasint"`
	DerivedValue   *string        `json:"derivedValue,omitempty" cbor:"2,keyasint,omitempty"`
}

func (v StructuredVote) Clone() StructuredVote {
	out := v
	if v.CriteriaScores != nil {
		out.CriteriaScores = make(map[string]int, len(v.CriteriaScores))
		for id, score := range v.CriteriaScores {
			out.CriteriaScores[id] = score
		}
	}
	if v.DerivedValue != nil {
		d := *v.DerivedValue
		out.DerivedValue = &d
	}
	return out
}

type JudgeMetadata struct {
	Algorithm       JudgeAlgorithm `json:"algorithm"`
	Confidence      Confidence     `json:"confidence"`
	NeedsDiscussion bool           `json:"needsDiscussion"`
	Reasoning       string         `json:"reasoning"`
}

type Room struct {
	Key             string                    `json:"key"`
	Users           []string                  `json:"users"`
	Spectators      []string                  `json:"spectators"`
	Votes           map[string]string         `json:"votes"`
	StructuredVotes map[string]StructuredVote `json:"structuredVotes"`
	ShowVotes       bool                      `json:"showVotes"`
	Moderator       string                    `json:"moderator"`
	ConnectedUsers  map[string]bool           `json:"connectedUsers"`
	Status          RoomStatus                `json:"status"`
	Settings        Settings                  `json:"settings"`
	JudgeScore      *float64                  `json:"judgeScore"`
	JudgeMetadata   *JudgeMetadata            `json:"judgeMetadata"`
	RoundHistory    []RoundHistoryEntry       `json:"roundHistory"`
	CurrentTicket   *Ticket                   `json:"currentTicket,omitempty"`
	TimerState      *TimerState               `json:"timerState,omitempty"`

	PasscodeHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewRoom(key string, moderator string, settings Settings, now time.Time) *Room {
	return &Room{
		Key:             key,
		Users:           []string{moderator},
		Spectators:      []string{},
		Votes:           map[string]string{},
		StructuredVotes: map[string]StructuredVote{},
		Moderator:       moderator,
		ConnectedUsers:  map[string]bool{moderator: false},
		Status:          StatusActive,
		Settings:        settings,
		ShowVotes:       settings.AlwaysRevealVotes,
		RoundHistory:    []RoundHistoryEntry{},
		CreatedAt:       now,
	}
}

// Clone returns a copy that shares no maps, slices or pointers with r.
func (r *Room) Clone() *Room {
	out := *r
	out.Users = append([]string{}, r.Users...)
	out.Spectators = append([]string{}, r.Spectators...)
	out.Votes = make(map[string]string, len(r.Votes))
	for u, v := range r.Votes {
		out.Votes[u] = v
	}
	out.StructuredVotes = make(map[string]StructuredVote, len(r.StructuredVotes))
	for u, v := range r.StructuredVotes {
		out.StructuredVotes[u] = v.Clone()
	}
	out.ConnectedUsers = make(map[string]bool, len(r.ConnectedUsers))
	for u, c := range r.ConnectedUsers {
		out.ConnectedUsers[u] = c
	}
	out.Settings = r.Settings.Clone()
	if r.JudgeScore != nil {
		s := *r.JudgeScore
		out.JudgeScore = &s
	}
	if r.JudgeMetadata != nil {
		m := *r.JudgeMetadata
		out.JudgeMetadata = &m
	}
	out.RoundHistory = make([]RoundHistoryEntry, len(r.RoundHistory))
	for i, entry := range r.RoundHistory {
		out.RoundHistory[i] = entry.Clone()
	}
	if r.CurrentTicket != nil {
		t := *r.CurrentTicket
		out.CurrentTicket = &t
	}
	if r.TimerState != nil {
		ts := r.TimerState.Clone()
		out.TimerState = &ts
	}
	out.PasscodeHash = append([]byte(nil), r.PasscodeHash...)
	return &out
}

// CanonicalName resolves name case-insensitively against users and
// spectators and returns the stored casing.
func (r *Room) CanonicalName(name string) (string, bool) {
	for _, u := range r.Users {
		if strings.EqualFold(u, name) {
			return u, true
		}
	}
	for _, s := range r.Spectators {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

func (r *Room) IsSpectator(user string) bool {
	for _, s := range r.Spectators {
		if s == user {
			return true
		}
	}
	return false
}

func (r *Room) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// EnsureMaps replaces nil maps so a room decoded from storage can be
// mutated directly.
func (r *Room) EnsureMaps() {
	if r.Users == nil {
		r.Users = []string{}
	}
	if r.Spectators == nil {
		r.Spectators = []string{}
	}
	if r.Votes == nil {
		r.Votes = map[string]string{}
	}
	if r.StructuredVotes == nil {
		r.StructuredVotes = map[string]StructuredVote{}
	}
	if r.ConnectedUsers == nil {
		r.ConnectedUsers = map[string]bool{}
	}
	if r.RoundHistory == nil {
		r.RoundHistory = []RoundHistoryEntry{}
	}
}

type VotingCompletion struct {
	Voted      int  `json:"voted"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	AllVoted   bool `json:"allVoted"`
}
