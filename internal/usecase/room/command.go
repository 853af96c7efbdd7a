package usecase_room

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

// Command is one inbound transition request. Every variant has exactly one
// handler in apply.
type Command interface {
	commandName() string
}

type SubmitVote struct {
	Value string
	// CriteriaScores is set for structured votes.
	CriteriaScores map[string]int
}

type ToggleShowVotes struct{}

type ResetVotes struct{}

type UpdateSettings struct {
	Patch model.SettingsPatch
}

type SelectTicket struct {
	TicketID string
}

type NextTicket struct{}

type CompleteSession struct{}

type ToggleSpectator struct {
	IsSpectator bool
}

type Ping struct{}

type StartTimer struct{}

type PauseTimer struct{}

type ResetTimer struct{}

// Internal commands, never decoded from the wire.
type (
	userConnected    struct{}
	userDisconnected struct{}
	userJoined       struct{}
	ticketChanged    struct{ ticket *model.Ticket }
)

func (SubmitVote) commandName() string       { return "vote" }
func (ToggleShowVotes) commandName() string  { return "showVotes" }
func (ResetVotes) commandName() string       { return "resetVotes" }
func (UpdateSettings) commandName() string   { return "updateSettings" }
func (SelectTicket) commandName() string     { return "selectTicket" }
func (NextTicket) commandName() string       { return "nextTicket" }
func (CompleteSession) commandName() string  { return "completeSession" }
func (ToggleSpectator) commandName() string  { return "toggleSpectator" }
func (Ping) commandName() string             { return "ping" }
func (StartTimer) commandName() string       { return "startTimer" }
func (PauseTimer) commandName() string       { return "pauseTimer" }
func (ResetTimer) commandName() string       { return "resetTimer" }
func (userConnected) commandName() string    { return "userConnected" }
func (userDisconnected) commandName() string { return "userDisconnected" }
func (userJoined) commandName() string       { return "userJoined" }
func (ticketChanged) commandName() string    { return "ticketChanged" }

type inboundMessage struct {
	Type        string               `json:"type"`
	Vote        json.RawMessage      `json:"vote"`
	Settings    *model.SettingsPatch `json:"settings"`
	TicketID    json.RawMessage      `json:"ticketId"`
	IsSpectator *bool                `json:"isSpectator"`
}

type structuredVotePayload struct {
	CriteriaScores map[string]int `json:"criteriaScores"`
}

// DecodeCommand parses one live-connection message.
func DecodeCommand(data []byte) (Command, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, validationf("malformed message")
	}

	switch msg.Type {
	case "vote":
		return decodeVote(msg.Vote)
	case "showVotes":
		return ToggleShowVotes{}, nil
	case "resetVotes":
		return ResetVotes{}, nil
	case "updateSettings":
		if msg.Settings == nil {
			return nil, validationf("settings are required")
		}
		return UpdateSettings{Patch: *msg.Settings}, nil
	case "selectTicket":
		id := rawScalar(msg.TicketID)
		if id == "" {
			return nil, validationf("ticketId is required")
		}
		return SelectTicket{TicketID: id}, nil
	case "nextTicket":
		return NextTicket{}, nil
	case "completeSession":
		return CompleteSession{}, nil
	case "toggleSpectator":
		if msg.IsSpectator == nil {
			return nil, validationf("isSpectator is required")
		}
		return ToggleSpectator{IsSpectator: *msg.IsSpectator}, nil
	case "ping":
		return Ping{}, nil
	case "startTimer":
		return StartTimer{}, nil
	case "pauseTimer":
		return PauseTimer{}, nil
	case "resetTimer":
		return ResetTimer{}, nil
	case "":
		return nil, validationf("message type is required")
	}
	return nil, validationf("unknown message type %q", msg.Type)
}

func decodeVote(raw json.RawMessage) (Command, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, validationf("vote is required")
	}
	if raw[0] == '{' {
		var p structuredVotePayload
		if err := json.Unmarshal(raw, &p); err != nil || p.CriteriaScores == nil {
			return nil, validationf("malformed structured vote")
		}
		return SubmitVote{CriteriaScores: p.CriteriaScores}, nil
	}
	v := rawScalar(raw)
	if v == "" {
		return nil, validationf("malformed vote")
	}
	return SubmitVote{Value: v}, nil
}

// rawScalar renders a JSON string or number as the string it denotes.
func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}
