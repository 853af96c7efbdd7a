package usecase_room

import (
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

func applySelectTicket(room *model.Room, user string, c SelectTicket, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !canAct(room, user, room.Settings.AllowOthersToManageQueue) {
		return ErrPermissionDenied
	}
	out.schedule(selectTicketEffect{ticketID: c.TicketID})
	return nil
}

// applyNextTicket closes the current round and asks the queue for the next
// ticket. The queue answers later with ticketChanged.
func applyNextTicket(room *model.Room, user string, e env, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !canAct(room, user, room.Settings.AllowOthersToManageQueue) {
		return ErrPermissionDenied
	}

	result := judgeLabel(room)
	if t := room.CurrentTicket; t != nil && len(room.Votes) > 0 {
		out.schedule(logVotesEffect{ticketID: t.ID, votes: roundVotes(room)})
	}
	if hasAnyVotes(room) || room.CurrentTicket != nil {
		captureRound(room, model.RoundNextTicket, e, out)
	}
	clearRound(room, out)

	if room.TimerState != nil {
		room.TimerState = e.timer.ResetAnchor(room.TimerState, 0, e.now)
		out.emit(TimerUpdatedEvent{
			header:     header{Type: EventTimerUpdated},
			TimerState: room.TimerState,
		})
	}
	out.schedule(advanceTicketEffect{outcome: result})
	return nil
}

func applyTicketChanged(room *model.Room, c ticketChanged, out *outcome) {
	if room.IsCompleted() {
		return
	}
	room.CurrentTicket = c.ticket
	out.dirty = true
	out.emit(TicketUpdatedEvent{header: header{Type: EventTicketUpdated}, Ticket: c.ticket})
}
