package games

import (
	"context"
	"fmt"

	"github.com/yoockh/yootherapy/internal/models"
)

type pattern struct {
	Seq         []string
	Answer      string
	Distractors []string
	Name        string
}

var patternsEasy = []pattern{
	{[]string{"🔴", "🔵", "🔴", "🔵"}, "🔴", []string{"🟢", "🟡"}, "alternating colors"},
	{[]string{"⭐", "⭐", "⭐"}, "⭐", []string{"🔵", "❤️"}, "repeating stars"},
	{[]string{"🍎", "🍎", "🍌"}, "🍎", []string{"🍇", "🍊"}, "fruit pattern"},
	{[]string{"🐕", "🐱", "🐕", "🐱"}, "🐕", []string{"🐟", "🐦"}, "animal alternating"},
	{[]string{"🟢", "🟢", "🟢"}, "🟢", []string{"🔴", "🔵"}, "same color"},
	{[]string{"🌙", "☀️", "🌙", "☀️"}, "🌙", []string{"⭐", "☁️"}, "day-night pattern"},
	{[]string{"❤️", "💙", "❤️", "💙"}, "❤️", []string{"💚", "💛"}, "heart pattern"},
	{[]string{"🚗", "🚌", "🚗", "🚌"}, "🚗", []string{"🚂", "✈️"}, "vehicle pattern"},
}

var patternsMedium = []pattern{
	{[]string{"🔴", "🔵", "🟢", "🔴", "🔵"}, "🟢", []string{"🟡", "🟣", "⚪"}, "3-color cycle"},
	{[]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣"}, "5️⃣", []string{"6️⃣", "3️⃣", "1️⃣"}, "counting up"},
	{[]string{"⬆️", "➡️", "⬇️", "⬅️"}, "⬆️", []string{"↗️", "↘️", "↙️"}, "direction cycle"},
	{[]string{"🌑", "🌓", "🌕", "🌗"}, "🌑", []string{"⭐", "☀️", "☁️"}, "moon phases"},
	{[]string{"🍎", "🍌", "🍇", "🍎", "🍌"}, "🍇", []string{"🍊", "🍒", "🍐"}, "fruit cycle 3"},
	{[]string{"😀", "😢", "😀", "😢"}, "😀", []string{"😡", "😱", "😴"}, "emotion pattern"},
}

var patternsHard = []pattern{
	{[]string{"🔴", "🔴", "🔵", "🔴", "🔴", "🔵", "🔴", "🔴"}, "🔵", []string{"🔴", "🟢", "🟡", "🟣"}, "AAB pattern"},
	{[]string{"⭐", "⭐", "🌙", "⭐", "⭐", "🌙", "🌙"}, "⭐", []string{"🌙", "☀️", "💫", "🌟"}, "growing pattern"},
	{[]string{"1️⃣", "3️⃣", "5️⃣", "7️⃣"}, "9️⃣", []string{"8️⃣", "6️⃣", "0️⃣", "2️⃣"}, "odd numbers"},
	{[]string{"🟢", "🟢", "🔵", "🔵", "🟢", "🟢", "🔵"}, "🔵", []string{"🟢", "🔴", "🟡", "🟣"}, "AABB repeat"},
	{[]string{"🐕", "🐱", "🐟", "🐕", "🐱", "🐟", "🐕"}, "🐱", []string{"🐟", "🐦", "🐰", "🐻"}, "3-animal cycle"},
}

// ProblemSolving is pattern completion: choose what comes next.
type ProblemSolving struct {
	stats TrialStats
}

func NewProblemSolving(stats TrialStats) *ProblemSolving { return &ProblemSolving{stats: stats} }

func (*ProblemSolving) Code() string      { return "problem_solving" }
func (*ProblemSolving) TrialType() string { return "problem_solving" }
func (*ProblemSolving) Name() string      { return "Problem Solving" }

var problemLadder = ladder{top: 0.80, minTop: 3, mid: 0.55}

func (g *ProblemSolving) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	return ladderLevel(ctx, g.stats, problemLadder, sessionID)
}

func (g *ProblemSolving) BuildTrial(_ context.Context, level int, _ string) (TrialSpec, error) {
	pool := patternsEasy
	switch {
	case level >= 3:
		pool = patternsHard
	case level == 2:
		pool = patternsMedium
	}
	p := pick(pool)

	seq := append(append([]string{}, p.Seq...), "❓")
	opts := []models.Option{{ID: p.Answer, Label: p.Answer}}
	for _, d := range p.Distractors {
		opts = append(opts, models.Option{ID: d, Label: d})
	}
	shuffle(opts)

	spec := TrialSpec{
		Level:       level,
		Target:      p.Answer,
		Options:     opts,
		TimeLimitMS: max(8000, 15000-level*2000),
		Reason:      fmt.Sprintf("Level %d problem solving, %s", level, p.Name),
		Extra: map[string]any{
			"level":        level,
			"pattern_name": p.Name,
			"sequence":     seq,
			"game_mode":    "pattern_completion",
		},
	}
	switch {
	case level <= 1:
		spec.Prompt = "Look at the pattern. What comes next?"
		spec.Highlight = p.Answer
		spec.Hint = "The pattern is: " + p.Name
	case level == 2:
		spec.Prompt = "What comes next in the pattern?"
		spec.Hint = "Hint: " + p.Name
	default:
		spec.Prompt = "Complete the pattern!"
	}
	return spec, nil
}

func (g *ProblemSolving) Evaluate(_ context.Context, in EvalInput) (EvalResult, error) {
	clicked := in.Submit.Choice()
	hit := clicked == in.Target
	success := hit && !in.Submit.TimedOut
	rt := in.Submit.ResponseTimeMS

	res := EvalResult{Success: success}
	switch {
	case success:
		res.Score = 10
		switch {
		case rt < 3000:
			res.Feedback = "🧠 Brilliant! You cracked the pattern fast!"
		case rt < 6000:
			res.Feedback = "🌟 Great thinking! You found the pattern!"
		default:
			res.Feedback = "✅ Correct! Nice problem solving!"
		}
		res.Recommendation, res.Reason = "Increase pattern complexity.", "Child completed pattern correctly."
	case in.Submit.TimedOut:
		if hit {
			res.Score = 3
		}
		res.Feedback = "⏰ Time's up! Look at the pattern carefully."
		res.Recommendation, res.Reason = "Simplify pattern or increase time limit.", "Child needed more time to analyze."
	default:
		res.Feedback = "🤔 Not quite. Let's try another pattern!"
		res.Recommendation, res.Reason = "Use simpler patterns or add visual hints.", "Child selected wrong pattern continuation."
	}

	res.Telemetry = telemetryFor(g, in, clicked, success)
	res.Telemetry.Recommendation, res.Telemetry.Reason = res.Recommendation, res.Reason
	return res, nil
}
