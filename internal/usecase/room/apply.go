package usecase_room

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

type env struct {
	now   time.Time
	timer Timer
}

// effect is a collaborator call issued after the transition committed.
type effect interface {
	effectName() string
}

type (
	postRoundEffect      struct{ snapshot model.RoundSnapshot }
	logVotesEffect       struct {
		ticketID string
		votes    []model.RoundVote
	}
	advanceTicketEffect  struct{ outcome string }
	selectTicketEffect   struct{ ticketID string }
	completeTicketEffect struct{ ticketID, outcome string }
)

func (postRoundEffect) effectName() string      { return "postRound" }
func (logVotesEffect) effectName() string       { return "logVotes" }
func (advanceTicketEffect) effectName() string  { return "advanceTicket" }
func (selectTicketEffect) effectName() string   { return "selectTicket" }
func (completeTicketEffect) effectName() string { return "completeTicket" }

type outcome struct {
	events  []Event
	effects []effect
	dirty   bool
}

func (o *outcome) emit(events ...Event) {
	o.events = append(o.events, events...)
}

func (o *outcome) schedule(e effect) {
	o.effects = append(o.effects, e)
}

// apply runs one command against room. On error room is left untouched;
// every handler validates before it mutates.
func apply(room *model.Room, user string, cmd Command, e env) (*outcome, error) {
	out := &outcome{}

	var err error
	switch c := cmd.(type) {
	case SubmitVote:
		err = applyVote(room, user, c, e, out)
	case ToggleShowVotes:
		err = applyToggleShowVotes(room, user, out)
	case ResetVotes:
		err = applyResetVotes(room, user, e, out)
	case UpdateSettings:
		err = applyUpdateSettings(room, user, c, e, out)
	case SelectTicket:
		err = applySelectTicket(room, user, c, out)
	case NextTicket:
		err = applyNextTicket(room, user, e, out)
	case CompleteSession:
		err = applyCompleteSession(room, user, e, out)
	case ToggleSpectator:
		err = applyToggleSpectator(room, user, c, out)
	case StartTimer, PauseTimer, ResetTimer:
		err = applyTimer(room, user, c, e, out)
	case Ping:
	case userConnected:
		applyUserConnected(room, user, out)
	case userDisconnected:
		applyUserDisconnected(room, user, out)
	case userJoined:
		err = applyUserJoined(room, user, out)
	case ticketChanged:
		applyTicketChanged(room, c, out)
	default:
		err = validationf("unsupported command %q", cmd.commandName())
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func canAct(room *model.Room, user string, allowOthers bool) bool {
	return room.Moderator == user || allowOthers
}

func isUser(room *model.Room, user string) bool {
	for _, u := range room.Users {
		if u == user {
			return true
		}
	}
	return false
}

func without(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}

func hidesNames(room *model.Room) bool {
	return room.Settings.AnonymousVotes || room.Settings.HideParticipantNames
}

func displayName(room *model.Room, user string) string {
	if hidesNames(room) {
		return model.RoomID(room.Key).AnonymousID(user)
	}
	return user
}

func hasAnyVotes(room *model.Room) bool {
	return len(room.Votes) > 0 || len(room.StructuredVotes) > 0
}

func roundVotes(room *model.Room) []model.RoundVote {
	names := make([]string, 0, len(room.Votes)+len(room.StructuredVotes))
	seen := make(map[string]struct{}, cap(names))
	for u := range room.Votes {
		names = append(names, u)
		seen[u] = struct{}{}
	}
	for u := range room.StructuredVotes {
		if _, ok := seen[u]; !ok {
			names = append(names, u)
		}
	}
	sort.Strings(names)

	votes := make([]model.RoundVote, 0, len(names))
	for _, u := range names {
		rv := model.RoundVote{User: u, Vote: room.Votes[u]}
		if sv, ok := room.StructuredVotes[u]; ok {
			sv := sv
			rv.StructuredVote = &sv
		}
		votes = append(votes, rv)
	}
	return votes
}

func captureRound(room *model.Room, typ model.RoundType, e env, out *outcome) model.RoundHistoryEntry {
	entry := model.RoundHistoryEntry{
		ID:             uuid.NewString(),
		Type:           typ,
		Votes:          roundVotes(room),
		ElapsedSeconds: e.timer.ElapsedSeconds(room.TimerState, e.now),
		EndedAt:        e.now,
	}
	if room.CurrentTicket != nil {
		t := *room.CurrentTicket
		entry.Ticket = &t
	}
	if room.JudgeScore != nil {
		s := *room.JudgeScore
		entry.JudgeScore = &s
	}
	room.RoundHistory = append(room.RoundHistory, entry)
	out.schedule(postRoundEffect{snapshot: model.RoundSnapshot{RoomKey: room.Key, Round: entry}})
	return entry
}

// clearRound empties the vote state and announces it.
func clearRound(room *model.Room, out *outcome) {
	wasShown := room.ShowVotes

	room.Votes = map[string]string{}
	room.StructuredVotes = map[string]model.StructuredVote{}
	clearJudge(room)
	room.ShowVotes = room.Settings.AlwaysRevealVotes
	out.dirty = true

	out.emit(ResetVotesEvent{
		header:           header{Type: EventResetVotes},
		VotingCompletion: votingCompletion(room),
		RoundHistory:     historyView(room),
	})
	if room.ShowVotes != wasShown {
		out.emit(ShowVotesEvent{header: header{Type: EventShowVotes}, ShowVotes: room.ShowVotes})
	}
}

func resetRound(room *model.Room, e env, out *outcome) {
	if hasAnyVotes(room) {
		captureRound(room, model.RoundReset, e, out)
	}
	clearRound(room, out)
}

// historyView copies the round history with voters shown the way the
// room currently shows them.
func historyView(room *model.Room) []model.RoundHistoryEntry {
	out := make([]model.RoundHistoryEntry, len(room.RoundHistory))
	for i, entry := range room.RoundHistory {
		entry = entry.Clone()
		for j := range entry.Votes {
			entry.Votes[j].User = displayName(room, entry.Votes[j].User)
		}
		out[i] = entry
	}
	return out
}

// buildSnapshot returns a deep copy so callers may read it outside the actor.
func buildSnapshot(room *model.Room, e env) RoomSnapshot {
	view := room.Clone()
	view.PasscodeHash = nil
	view.RoundHistory = historyView(room)
	if hidesNames(room) {
		view.Votes = make(map[string]string, len(room.Votes))
		for u, v := range room.Votes {
			view.Votes[displayName(room, u)] = v
		}
		view.StructuredVotes = make(map[string]model.StructuredVote, len(room.StructuredVotes))
		for u, v := range room.StructuredVotes {
			view.StructuredVotes[displayName(room, u)] = v.Clone()
		}
	}
	return RoomSnapshot{
		Room:             view,
		VotingCompletion: votingCompletion(room),
		ElapsedSeconds:   e.timer.ElapsedSeconds(room.TimerState, e.now),
		HasPasscode:      len(room.PasscodeHash) > 0,
	}
}
