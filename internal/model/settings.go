package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type JudgeAlgorithm string

const (
	JudgeSmartConsensus   JudgeAlgorithm = "smartConsensus"
	JudgeSimpleAverage    JudgeAlgorithm = "simpleAverage"
	JudgeConservativeMode JudgeAlgorithm = "conservativeMode"
	JudgeOptimisticMode   JudgeAlgorithm = "optimisticMode"
)

func (a JudgeAlgorithm) Valid() bool {
	switch a {
	case JudgeSmartConsensus, JudgeSimpleAverage, JudgeConservativeMode, JudgeOptimisticMode:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type VotingCriterion struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	MinScore    int     `json:"minScore" yaml:"minScore"`
	MaxScore    int     `json:"maxScore" yaml:"maxScore"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// ExtraVoteOption is a non-scoring marker such as "?" or a coffee break.
type ExtraVoteOption struct {
	ID      string   `json:"id" yaml:"id"`
	Label   string   `json:"label" yaml:"label"`
	Value   string   `json:"value" yaml:"value"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Enabled bool     `json:"enabled" yaml:"enabled"`
}

type Settings struct {
	EstimateOptions              []string          `json:"estimateOptions" yaml:"estimateOptions"`
	AllowOthersToShowEstimates   bool              `json:"allowOthersToShowEstimates" yaml:"allowOthersToShowEstimates"`
	AllowOthersToDeleteEstimates bool              `json:"allowOthersToDeleteEstimates" yaml:"allowOthersToDeleteEstimates"`
	AllowVotingAfterReveal       bool              `json:"allowVotingAfterReveal" yaml:"allowVotingAfterReveal"`
	AlwaysRevealVotes            bool              `json:"alwaysRevealVotes" yaml:"alwaysRevealVotes"`
	EnableAutoReveal             bool              `json:"enableAutoReveal" yaml:"enableAutoReveal"`
	AnonymousVotes               bool              `json:"anonymousVotes" yaml:"anonymousVotes"`
	HideParticipantNames         bool              `json:"hideParticipantNames" yaml:"hideParticipantNames"`
	EnableJudge                  bool              `json:"enableJudge" yaml:"enableJudge"`
	JudgeAlgorithm               JudgeAlgorithm    `json:"judgeAlgorithm" yaml:"judgeAlgorithm"`
	EnableStructuredVoting       bool              `json:"enableStructuredVoting" yaml:"enableStructuredVoting"`
	VotingCriteria               []VotingCriterion `json:"votingCriteria" yaml:"votingCriteria"`
	ExtraVoteOptions             []ExtraVoteOption `json:"extraVoteOptions" yaml:"extraVoteOptions"`
	AutoHandoverModerator        bool              `json:"autoHandoverModerator" yaml:"autoHandoverModerator"`
	AllowOthersToManageQueue     bool              `json:"allowOthersToManageQueue" yaml:"allowOthersToManageQueue"`
}

func DefaultSettings() Settings {
	return Settings{
		EstimateOptions: []string{"1", "2", "3", "5", "8", "13", "21"},
		EnableJudge:     true,
		JudgeAlgorithm:  JudgeSmartConsensus,
		VotingCriteria: []VotingCriterion{
			{ID: "complexity", Name: "Complexity", MinScore: 0, MaxScore: 4, Weight: 0.35},
			{ID: "confidence", Name: "Confidence", MinScore: 0, MaxScore: 4, Weight: 0.25},
			{ID: "volume", Name: "Volume", MinScore: 0, MaxScore: 4, Weight: 0.25},
			{ID: "unknowns", Name: "Unknowns", MinScore: 0, MaxScore: 2, Weight: 0.15},
		},
		ExtraVoteOptions: []ExtraVoteOption{
			{ID: "unsure", Label: "Unsure", Value: "?", Aliases: []string{"unsure"}, Enabled: true},
			{ID: "coffee", Label: "Coffee break", Value: "☕", Aliases: []string{"coffee", "break"}, Enabled: true},
		},
	}
}

var ErrInvalidSettings = errors.New("invalid settings")

func (s Settings) Validate() error {
	if len(s.EstimateOptions) == 0 {
		return fmt.Errorf("%w: estimateOptions must not be empty", ErrInvalidSettings)
	}
	seen := make(map[string]struct{}, len(s.EstimateOptions))
	for _, o := range s.EstimateOptions {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("%w: empty estimate option", ErrInvalidSettings)
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: duplicate estimate option %q", ErrInvalidSettings, o)
		}
		seen[o] = struct{}{}
	}
	if !s.JudgeAlgorithm.Valid() {
		return fmt.Errorf("%w: unknown judgeAlgorithm %q", ErrInvalidSettings, s.JudgeAlgorithm)
	}
	ids := make(map[string]struct{}, len(s.VotingCriteria))
	for _, c := range s.VotingCriteria {
		if c.ID == "" {
			return fmt.Errorf("%w: voting criterion without id", ErrInvalidSettings)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("%w: duplicate voting criterion %q", ErrInvalidSettings, c.ID)
		}
		ids[c.ID] = struct{}{}
		if c.MinScore >= c.MaxScore {
			return fmt.Errorf("%w: criterion %q needs minScore < maxScore", ErrInvalidSettings, c.ID)
		}
		if c.Weight < 0 {
			return fmt.Errorf("%w: criterion %q has negative weight", ErrInvalidSettings, c.ID)
		}
	}
	if s.EnableStructuredVoting && len(s.VotingCriteria) == 0 {
		return fmt.Errorf("%w: structured voting needs at least one criterion", ErrInvalidSettings)
	}
	for _, e := range s.ExtraVoteOptions {
		if e.Enabled && e.Value == "" {
			return fmt.Errorf("%w: extra vote option %q has no value", ErrInvalidSettings, e.ID)
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	out := s
	out.EstimateOptions = append([]string(nil), s.EstimateOptions...)
	out.VotingCriteria = append([]VotingCriterion(nil), s.VotingCriteria...)
	out.ExtraVoteOptions = make([]ExtraVoteOption, len(s.ExtraVoteOptions))
	for i, e := range s.ExtraVoteOptions {
		e.Aliases = append([]string(nil), e.Aliases...)
		out.ExtraVoteOptions[i] = e
	}
	return out
}

func (s Settings) IsMarker(value string) bool {
	for _, e := range s.ExtraVoteOptions {
		if e.Enabled && e.Value == value {
			return true
		}
	}
	return false
}

// ValidOptions is the set of values a stored vote may hold.
func (s Settings) ValidOptions() map[string]struct{} {
	out := make(map[string]struct{}, len(s.EstimateOptions)+len(s.ExtraVoteOptions))
	for _, o := range s.EstimateOptions {
		out[o] = struct{}{}
	}
	for _, e := range s.ExtraVoteOptions {
		if e.Enabled {
			out[e.Value] = struct{}{}
		}
	}
	return out
}

// ResolveVote maps a submitted value onto a stored vote value. Estimate
// options match exactly; marker values and aliases match case-insensitively.
func (s Settings) ResolveVote(value string) (string, bool) {
	for _, o := range s.EstimateOptions {
		if o == value {
			return o, true
		}
	}
	for _, e := range s.ExtraVoteOptions {
		if !e.Enabled {
			continue
		}
		if e.Value == value || strings.EqualFold(e.Value, value) {
			return e.Value, true
		}
		for _, a := range e.Aliases {
			if strings.EqualFold(a, value) {
				return e.Value, true
			}
		}
	}
	return "", false
}

// NumericOptions returns the estimate options that parse as numbers,
// ascending.
func (s Settings) NumericOptions() []float64 {
	out := make([]float64, 0, len(s.EstimateOptions))
	for _, o := range s.EstimateOptions {
		if v, err := strconv.ParseFloat(o, 64); err == nil {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func (s Settings) Criterion(id string) (VotingCriterion, bool) {
	for _, c := range s.VotingCriteria {
		if c.ID == id {
			return c, true
		}
	}
	return VotingCriterion{}, false
}

// OptionLabel renders a numeric score the way it appears in
// estimateOptions, falling back to the shortest float form.
func (s Settings) OptionLabel(v float64) string {
	for _, o := range s.EstimateOptions {
		if f, err := strconv.ParseFloat(o, 64); err == nil && f == v {
			return o
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SettingsPatch carries a partial settings update. Nil fields are left
// untouched.
type SettingsPatch struct {
	EstimateOptions              *[]string          `json:"estimateOptions,omitempty"`
	AllowOthersToShowEstimates   *bool              `json:"allowOthersToShowEstimates,omitempty"`
	AllowOthersToDeleteEstimates *bool              `json:"allowOthersToDeleteEstimates,omitempty"`
	AllowVotingAfterReveal       *bool              `json:"allowVotingAfterReveal,omitempty"`
	AlwaysRevealVotes            *bool              `json:"alwaysRevealVotes,omitempty"`
	EnableAutoReveal             *bool              `json:"enableAutoReveal,omitempty"`
	AnonymousVotes               *bool              `json:"anonymousVotes,omitempty"`
	HideParticipantNames         *bool              `json:"hideParticipantNames,omitempty"`
	EnableJudge                  *bool              `json:"enableJudge,omitempty"`
	JudgeAlgorithm               *JudgeAlgorithm    `json:"judgeAlgorithm,omitempty"`
	EnableStructuredVoting       *bool              `json:"enableStructuredVoting,omitempty"`
	VotingCriteria               *[]VotingCriterion `json:"votingCriteria,omitempty"`
	ExtraVoteOptions             *[]ExtraVoteOption `json:"extraVoteOptions,omitempty"`
	AutoHandoverModerator        *bool              `json:"autoHandoverModerator,omitempty"`
	AllowOthersToManageQueue     *bool              `json:"allowOthersToManageQueue,omitempty"`
}

// Apply merges p over s and returns a fresh Settings value.
func (p SettingsPatch) Apply(s Settings) Settings {
	out := s.Clone()
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	if p.EstimateOptions != nil {
		out.EstimateOptions = append([]string(nil), (*p.EstimateOptions)...)
	}
	setBool(&out.AllowOthersToShowEstimates, p.AllowOthersToShowEstimates)
	setBool(&out.AllowOthersToDeleteEstimates, p.AllowOthersToDeleteEstimates)
	setBool(&out.AllowVotingAfterReveal, p.AllowVotingAfterReveal)
	setBool(&out.AlwaysRevealVotes, p.AlwaysRevealVotes)
	setBool(&out.EnableAutoReveal, p.EnableAutoReveal)
	setBool(&out.AnonymousVotes, p.AnonymousVotes)
	setBool(&out.HideParticipantNames, p.HideParticipantNames)
	setBool(&out.EnableJudge, p.EnableJudge)
	if p.JudgeAlgorithm != nil {
		out.JudgeAlgorithm = *p.JudgeAlgorithm
	}
	setBool(&out.EnableStructuredVoting, p.EnableStructuredVoting)
	if p.VotingCriteria != nil {
		out.VotingCriteria = append([]VotingCriterion(nil), (*p.VotingCriteria)...)
	}
	if p.ExtraVoteOptions != nil {
		out.ExtraVoteOptions = Settings{ExtraVoteOptions: *p.ExtraVoteOptions}.Clone().ExtraVoteOptions
	}
	setBool(&out.AutoHandoverModerator, p.AutoHandoverModerator)
	setBool(&out.AllowOthersToManageQueue, p.AllowOthersToManageQueue)
	return out
}
