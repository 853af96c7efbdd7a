package usecase_room

import (
	"errors"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

func applyUpdateSettings(room *model.Room, user string, c UpdateSettings, e env, out *outcome) error {
	if room.Moderator != user {
		return ErrPermissionDenied
	}
	next := c.Patch.Apply(room.Settings)
	if err := next.Validate(); err != nil {
		if errors.Is(err, model.ErrInvalidSettings) {
			return &ValidationError{Message: err.Error()}
		}
		return err
	}

	prev := room.Settings
	room.Settings = next
	out.dirty = true
	out.emit(SettingsUpdatedEvent{header: header{Type: EventSettingsUpdated}, Settings: next.Clone()})

	// A finished room keeps its final votes and score.
	if room.IsCompleted() {
		return nil
	}

	if !sameOptions(prev, next) && hasOrphanedVotes(room) {
		resetRound(room, e, out)
	}

	if prev.EnableStructuredVoting && !next.EnableStructuredVoting {
		room.StructuredVotes = map[string]model.StructuredVote{}
	}

	scored := false
	if !prev.AlwaysRevealVotes && next.AlwaysRevealVotes && !room.ShowVotes {
		revealVotes(room, out)
		scored = next.EnableJudge
	}

	if prev.EnableJudge != next.EnableJudge || prev.JudgeAlgorithm != next.JudgeAlgorithm {
		switch {
		case room.ShowVotes && next.EnableJudge:
			if !scored {
				scoreJudge(room, out)
			}
		default:
			clearJudge(room)
			out.emit(JudgeScoreUpdatedEvent{header: header{Type: EventJudgeScoreUpdated}})
		}
	}
	return nil
}

func sameOptions(a, b model.Settings) bool {
	av, bv := a.ValidOptions(), b.ValidOptions()
	if len(av) != len(bv) {
		return false
	}
	for k := range av {
		if _, ok := bv[k]; !ok {
			return false
		}
	}
	return true
}

func hasOrphanedVotes(room *model.Room) bool {
	valid := room.Settings.ValidOptions()
	for _, v := range room.Votes {
		if _, ok := valid[v]; !ok {
			return true
		}
	}
	return false
}
