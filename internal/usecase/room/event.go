package usecase_room

import (
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

const (
	EventInitialize             = "initialize"
	EventVote                   = "vote"
	EventShowVotes              = "showVotes"
	EventResetVotes             = "resetVotes"
	EventSettingsUpdated        = "settingsUpdated"
	EventJudgeScoreUpdated      = "judgeScoreUpdated"
	EventUserConnectionStatus   = "userConnectionStatus"
	EventUserJoined             = "userJoined"
	EventNewModerator           = "newModerator"
	EventRoomStatusUpdated      = "roomStatusUpdated"
	EventSpectatorStatusChanged = "spectatorStatusChanged"
	EventTicketUpdated          = "ticketUpdated"
	EventTimerUpdated           = "timerUpdated"
	EventError                  = "error"
)

// Event is one outbound message. All events carry a "type" field.
type Event interface {
	EventType() string
}

type header struct {
	Type string `json:"type"`
}

func (h header) EventType() string { return h.Type }

type InitializeEvent struct {
	header
	RoomData RoomSnapshot `json:"roomData"`
}

type VoteEvent struct {
	header
	User             string                 `json:"user"`
	Vote             *string                `json:"vote"`
	StructuredVote   *model.StructuredVote  `json:"structuredVote,omitempty"`
	VotingCompletion model.VotingCompletion `json:"votingCompletion"`
}

type ShowVotesEvent struct {
	header
	ShowVotes bool `json:"showVotes"`
}

type ResetVotesEvent struct {
	header
	VotingCompletion model.VotingCompletion    `json:"votingCompletion"`
	RoundHistory     []model.RoundHistoryEntry `json:"roundHistory"`
}

type SettingsUpdatedEvent struct {
	header
	Settings model.Settings `json:"settings"`
}

type JudgeScoreUpdatedEvent struct {
	header
	JudgeScore    *float64             `json:"judgeScore"`
	JudgeMetadata *model.JudgeMetadata `json:"judgeMetadata"`
}

type UserConnectionStatusEvent struct {
	header
	User        string `json:"user"`
	IsConnected bool   `json:"isConnected"`
}

type UserJoinedEvent struct {
	header
	User  string   `json:"user"`
	Users []string `json:"users"`
}

type NewModeratorEvent struct {
	header
	Moderator string `json:"moderator"`
}

type RoomStatusUpdatedEvent struct {
	header
	Status model.RoomStatus `json:"status"`
}

type SpectatorStatusChangedEvent struct {
	header
	User        string   `json:"user"`
	IsSpectator bool     `json:"isSpectator"`
	Users       []string `json:"users"`
	Spectators  []string `json:"spectators"`
}

type TicketUpdatedEvent struct {
	header
	Ticket *model.Ticket `json:"ticket"`
}

type TimerUpdatedEvent struct {
	header
	TimerState     *model.TimerState `json:"timerState"`
	ElapsedSeconds int64             `json:"elapsedSeconds"`
}

type ErrorEvent struct {
	header
	Error string `json:"error"`
}

func newErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{header: header{Type: EventError}, Error: msg}
}

// RoomSnapshot is the read model handed to clients on connect and over
// HTTP. Vote maps are keyed by anonymous ids when names are hidden.
type RoomSnapshot struct {
	*model.Room
	VotingCompletion model.VotingCompletion `json:"votingCompletion"`
	ElapsedSeconds   int64                  `json:"elapsedSeconds"`
	HasPasscode      bool                   `json:"hasPasscode"`
}
