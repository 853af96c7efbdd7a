package usecase_room

import (
	"math"
	"strconv"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/service/consensus"
)

func applyVote(room *model.Room, user string, c SubmitVote, e env, out *outcome) error {
	s := room.Settings
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !isUser(room, user) {
		return ErrPermissionDenied
	}
	if room.ShowVotes && !s.AllowVotingAfterReveal && !s.AlwaysRevealVotes {
		return validationf("votes are revealed; reset the round to vote again")
	}

	var (
		value *string
		sv    *model.StructuredVote
	)
	if c.CriteriaScores != nil {
		if !s.EnableStructuredVoting {
			return validationf("structured voting is disabled")
		}
		scores := make(map[string]int, len(c.CriteriaScores))
		for id, score := range c.CriteriaScores {
			crit, ok := s.Criterion(id)
			if !ok {
				return validationf("unknown criterion %q", id)
			}
			if score < crit.MinScore || score > crit.MaxScore {
				return validationf("score for %q must be between %d and %d", id, crit.MinScore, crit.MaxScore)
			}
			scores[id] = score
		}
		sv = &model.StructuredVote{CriteriaScores: scores}
		if structuredComplete(s, scores) {
			derived, err := deriveStructuredValue(s, scores)
			if err != nil {
				return err
			}
			sv.DerivedValue = &derived
			value = &derived
		}
	} else {
		v, ok := s.ResolveVote(c.Value)
		if !ok {
			return validationf("invalid vote %q", c.Value)
		}
		if s.EnableStructuredVoting && !s.IsMarker(v) {
			return validationf("structured voting is enabled; score every criterion instead")
		}
		value = &v
	}

	if sv != nil {
		room.StructuredVotes[user] = *sv
	} else {
		delete(room.StructuredVotes, user)
	}
	if value != nil {
		room.Votes[user] = *value
	} else {
		delete(room.Votes, user)
	}
	out.dirty = true

	completion := votingCompletion(room)
	out.emit(VoteEvent{
		header:           header{Type: EventVote},
		User:             displayName(room, user),
		Vote:             value,
		StructuredVote:   sv,
		VotingCompletion: completion,
	})

	switch {
	case room.ShowVotes:
		if s.EnableJudge {
			scoreJudge(room, out)
		}
	case s.EnableAutoReveal && completion.AllVoted:
		revealVotes(room, out)
	}
	return nil
}

func applyToggleShowVotes(room *model.Room, user string, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !canAct(room, user, room.Settings.AllowOthersToShowEstimates) {
		return ErrPermissionDenied
	}
	if room.ShowVotes {
		if room.Settings.AlwaysRevealVotes {
			return nil
		}
		room.ShowVotes = false
		out.dirty = true
		out.emit(ShowVotesEvent{header: header{Type: EventShowVotes}, ShowVotes: false})
		return nil
	}
	revealVotes(room, out)
	return nil
}

func applyResetVotes(room *model.Room, user string, e env, out *outcome) error {
	if room.IsCompleted() {
		return ErrTerminalState
	}
	if !canAct(room, user, room.Settings.AllowOthersToDeleteEstimates) {
		return ErrPermissionDenied
	}
	resetRound(room, e, out)
	return nil
}

func applyCompleteSession(room *model.Room, user string, e env, out *outcome) error {
	if room.IsCompleted() {
		return nil
	}
	if !canAct(room, user, room.Settings.AllowOthersToManageQueue) {
		return ErrPermissionDenied
	}

	if room.CurrentTicket != nil {
		t := *room.CurrentTicket
		t.Status = model.TicketCompleted
		t.Outcome = judgeLabel(room)
		room.CurrentTicket = &t
		if len(room.Votes) > 0 {
			out.schedule(logVotesEffect{ticketID: t.ID, votes: roundVotes(room)})
		}
		out.schedule(completeTicketEffect{ticketID: t.ID, outcome: t.Outcome})
	}
	captureRound(room, model.RoundCompleteSession, e, out)
	if room.TimerState != nil && room.TimerState.Running {
		room.TimerState = e.timer.Pause(room.TimerState, e.now)
	}
	room.Status = model.StatusCompleted
	out.dirty = true

	out.emit(
		InitializeEvent{header: header{Type: EventInitialize}, RoomData: buildSnapshot(room, e)},
		RoomStatusUpdatedEvent{header: header{Type: EventRoomStatusUpdated}, Status: room.Status},
	)
	return nil
}

func revealVotes(room *model.Room, out *outcome) {
	room.ShowVotes = true
	out.dirty = true
	out.emit(ShowVotesEvent{header: header{Type: EventShowVotes}, ShowVotes: true})
	if room.Settings.EnableJudge {
		scoreJudge(room, out)
	}
}

func scoreJudge(room *model.Room, out *outcome) {
	s := room.Settings
	in := consensus.Input{
		Algorithm:  s.JudgeAlgorithm,
		Options:    s.NumericOptions(),
		TotalVotes: len(room.Votes),
	}
	for _, v := range room.Votes {
		if s.IsMarker(v) {
			in.MarkerCount++
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			in.MarkerCount++
			continue
		}
		in.Votes = append(in.Votes, f)
	}

	res := consensus.Score(in)
	room.JudgeScore = res.Score
	room.JudgeMetadata = &model.JudgeMetadata{
		Algorithm:       s.JudgeAlgorithm,
		Confidence:      res.Confidence,
		NeedsDiscussion: res.NeedsDiscussion,
		Reasoning:       res.Reasoning,
	}
	out.dirty = true
	out.emit(JudgeScoreUpdatedEvent{
		header:        header{Type: EventJudgeScoreUpdated},
		JudgeScore:    room.JudgeScore,
		JudgeMetadata: room.JudgeMetadata,
	})
}

func clearJudge(room *model.Room) {
	room.JudgeScore = nil
	room.JudgeMetadata = nil
}

func judgeLabel(room *model.Room) string {
	if room.JudgeScore == nil {
		return ""
	}
	return room.Settings.OptionLabel(*room.JudgeScore)
}

func votingCompletion(room *model.Room) model.VotingCompletion {
	c := model.VotingCompletion{Total: len(room.Users)}
	for _, u := range room.Users {
		if hasCompleteVote(room, u) {
			c.Voted++
		}
	}
	if c.Total > 0 {
		c.Percentage = c.Voted * 100 / c.Total
		c.AllVoted = c.Voted == c.Total
	}
	return c
}

func hasCompleteVote(room *model.Room, user string) bool {
	v, voted := room.Votes[user]
	if !room.Settings.EnableStructuredVoting {
		return voted
	}
	if voted && room.Settings.IsMarker(v) {
		return true
	}
	sv, ok := room.StructuredVotes[user]
	return ok && structuredComplete(room.Settings, sv.CriteriaScores)
}

func structuredComplete(s model.Settings, scores map[string]int) bool {
	for _, c := range s.VotingCriteria {
		if _, ok := scores[c.ID]; !ok {
			return false
		}
	}
	return len(s.VotingCriteria) > 0
}

// deriveStructuredValue maps the weighted mean of normalised criterion
// scores onto the ascending numeric options.
func deriveStructuredValue(s model.Settings, scores map[string]int) (string, error) {
	numeric := s.NumericOptions()
	if len(numeric) == 0 {
		return "", validationf("structured voting needs numeric estimate options")
	}

	var totalWeight float64
	for _, c := range s.VotingCriteria {
		totalWeight += c.Weight
	}
	equal := totalWeight == 0

	var acc, weights float64
	for _, c := range s.VotingCriteria {
		w := c.Weight
		if equal {
			w = 1
		}
		norm := float64(scores[c.ID]-c.MinScore) / float64(c.MaxScore-c.MinScore)
		acc += w * norm
		weights += w
	}
	if weights == 0 {
		return s.OptionLabel(numeric[0]), nil
	}

	idx := int(math.Round(acc / weights * float64(len(numeric)-1)))
	return s.OptionLabel(numeric[idx]), nil
}
