// Package consensus proposes a single estimate from a set of numeric votes.
//
// Every algorithm produces a target value which is then snapped onto the
// ascending option scale, so a returned score is always one of the options.
package consensus

import (
	"fmt"
	"math"
	"sort"

	"github.com/nicholasgriffintn/sprintjam.co.uk-sub002/internal/model"
)

type Input struct {
	Votes       []float64
	Algorithm   model.JudgeAlgorithm
	Options     []float64 // ascending
	TotalVotes  int
	MarkerCount int
}

type Result struct {
	Score           *float64
	Confidence      model.Confidence
	NeedsDiscussion bool
	Reasoning       string
}

type rounding int

const (
	roundNearest rounding = iota
	roundUp
	roundDown
)

// strategy turns sorted votes into a target value on the vote scale.
type strategy interface {
	Target(sorted []float64) float64
	Rounding() rounding
	Describe() string
}

var strategies = map[model.JudgeAlgorithm]strategy{
	model.JudgeSmartConsensus:   smartConsensus{},
	model.JudgeSimpleAverage:    simpleAverage{},
	model.JudgeConservativeMode: conservativeMode{},
	model.JudgeOptimisticMode:   optimisticMode{},
}

func Score(in Input) Result {
	if len(in.Options) == 0 || in.TotalVotes == 0 {
		return Result{
			Confidence: model.ConfidenceLow,
			Reasoning:  "No votes to score",
		}
	}
	if len(in.Votes) == 0 {
		return Result{
			Confidence:      model.ConfidenceLow,
			NeedsDiscussion: true,
			Reasoning:       "Only non-scoring votes were cast",
		}
	}

	st, ok := strategies[in.Algorithm]
	if !ok {
		st = strategies[model.JudgeSmartConsensus]
	}

	sorted := append([]float64(nil), in.Votes...)
	sort.Float64s(sorted)

	target := st.Target(sorted)
	idx := snap(in.Options, target, st.Rounding())
	score := in.Options[idx]

	spread := nearest(in.Options, sorted[len(sorted)-1]) - nearest(in.Options, sorted[0])
	confidence := model.ConfidenceHigh
	switch {
	case spread > 2:
		confidence = model.ConfidenceLow
	case spread > 1:
		confidence = model.ConfidenceMedium
	}
	markersHeavy := in.MarkerCount > 0 && in.MarkerCount*2 >= in.TotalVotes
	if markersHeavy && confidence == model.ConfidenceHigh {
		confidence = model.ConfidenceMedium
	}

	reasoning := fmt.Sprintf("%s of %d numeric votes", st.Describe(), len(sorted))
	if spread > 2 {
		reasoning += fmt.Sprintf("; votes span %d steps on the scale", spread)
	}
	if in.MarkerCount > 0 {
		reasoning += fmt.Sprintf("; %d non-scoring votes ignored", in.MarkerCount)
	}

	return Result{
		Score:           &score,
		Confidence:      confidence,
		NeedsDiscussion: spread > 2 || markersHeavy,
		Reasoning:       reasoning,
	}
}

func snap(options []float64, target float64, mode rounding) int {
	switch mode {
	case roundUp:
		for i, o := range options {
			if o >= target {
				return i
			}
		}
		return len(options) - 1
	case roundDown:
		for i := len(options) - 1; i >= 0; i-- {
			if options[i] <= target {
				return i
			}
		}
		return 0
	default:
		return nearest(options, target)
	}
}

// nearest prefers the larger option on ties.
func nearest(options []float64, target float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, o := range options {
		d := math.Abs(o - target)
		if d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile uses linear interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
