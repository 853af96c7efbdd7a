package usecase_room

import (
	"sort"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

func applyUserJoined(room *model.Room, user string, out *outcome) error {
	if _, ok := room.CanonicalName(user); ok {
		return nil
	}
	if room.IsCompleted() {
		return ErrTerminalState
	}
	room.Users = append(append([]string(nil), room.Users...), user)
	room.ConnectedUsers[user] = false
	out.dirty = true
	out.emit(UserJoinedEvent{
		header: header{Type: EventUserJoined},
		User:   user,
		Users:  append([]string(nil), room.Users...),
	})
	return nil
}

func applyUserConnected(room *model.Room, user string, out *outcome) {
	if room.ConnectedUsers[user] {
		return
	}
	room.ConnectedUsers[user] = true
	out.dirty = true
	out.emit(UserConnectionStatusEvent{header: header{Type: EventUserConnectionStatus}, User: user, IsConnected: true})
}

func applyUserDisconnected(room *model.Room, user string, out *outcome) {
	if room.ConnectedUsers[user] {
		room.ConnectedUsers[user] = false
		out.dirty = true
		out.emit(UserConnectionStatusEvent{header: header{Type: EventUserConnectionStatus}, User: user, IsConnected: false})
	}

	if !room.Settings.AutoHandoverModerator || room.Moderator != user {
		return
	}
	candidates := make([]string, 0, len(room.Users))
	for _, u := range room.Users {
		if u != user && room.ConnectedUsers[u] {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return
	}
	sort.Strings(candidates)
	room.Moderator = candidates[0]
	out.dirty = true
	out.emit(NewModeratorEvent{header: header{Type: EventNewModerator}, Moderator: room.Moderator})
}

func applyToggleSpectator(room *model.Room, user string, c ToggleSpectator, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if c.IsSpectator == room.IsSpectator(user) {
		return nil
	}

	if c.IsSpectator {
		if room.Moderator == user {
			return validationf("the moderator cannot become a spectator")
		}
		room.Users = without(room.Users, user)
		room.Spectators = append(append([]string(nil), room.Spectators...), user)
		delete(room.Votes, user)
		delete(room.StructuredVotes, user)
	} else {
		room.Spectators = without(room.Spectators, user)
		room.Users = append(append([]string(nil), room.Users...), user)
	}
	out.dirty = true
	out.emit(SpectatorStatusChangedEvent{
		header:      header{Type: EventSpectatorStatusChanged},
		User:        user,
		IsSpectator: c.IsSpectator,
		Users:       append([]string(nil), room.Users...),
		Spectators:  append([]string(nil), room.Spectators...),
	})

	// Leaving the voters can complete the round.
	if c.IsSpectator && !room.ShowVotes && room.Settings.EnableAutoReveal && hasAnyVotes(room) &&
		votingCompletion(room).AllVoted {
		revealVotes(room, out)
	}
	return nil
}

func applyTimer(room *model.Room, user string, cmd Command, e env, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !canAct(room, user, room.Settings.AllowOthersToManageQueue) {
		return ErrPermissionDenied
	}

	switch cmd.(type) {
	case StartTimer:
		room.TimerState = e.timer.Start(room.TimerState, e.now)
	case PauseTimer:
		room.TimerState = e.timer.Pause(room.TimerState, e.now)
	case ResetTimer:
		room.TimerState = e.timer.ResetAnchor(room.TimerState, 0, e.now)
	}
	out.dirty = true
	out.emit(TimerUpdatedEvent{
		header:         header{Type: EventTimerUpdated},
		TimerState:     room.TimerState,
		ElapsedSeconds: e.timer.ElapsedSeconds(room.TimerState, e.now),
	})
	return nil
}
