package games

import (
	"context"
	"fmt"

	"github.com/yoockh/yootherapy/internal/models"
)

type catalogItem struct {
	ID       string
	Label    string
	Category string
}

var matchingEasy = []catalogItem{
	{"apple", "🍎 Apple", "fruit"},
	{"banana", "🍌 Banana", "fruit"},
	{"car", "🚗 Car", "vehicle"},
	{"dog", "🐕 Dog", "animal"},
	{"cat", "🐱 Cat", "animal"},
	{"star", "⭐ Star", "shape"},
	{"heart", "❤️ Heart", "shape"},
	{"sun", "☀️ Sun", "nature"},
	{"moon", "🌙 Moon", "nature"},
	{"fish", "🐟 Fish", "animal"},
	{"bird", "🐦 Bird", "animal"},
	{"tree", "🌳 Tree", "nature"},
}

var matchingMedium = append(append([]catalogItem{}, matchingEasy...),
	catalogItem{"grape", "🍇 Grape", "fruit"},
	catalogItem{"orange", "🍊 Orange", "fruit"},
	catalogItem{"bus", "🚌 Bus", "vehicle"},
	catalogItem{"truck", "🚛 Truck", "vehicle"},
	catalogItem{"rabbit", "🐰 Rabbit", "animal"},
	catalogItem{"bear", "🐻 Bear", "animal"},
	catalogItem{"circle", "🔵 Circle", "shape"},
	catalogItem{"triangle", "🔺 Triangle", "shape"},
)

var matchingHard = append(append([]catalogItem{}, matchingMedium...),
	catalogItem{"cherry", "🍒 Cherry", "fruit"},
	catalogItem{"pear", "🍐 Pear", "fruit"},
	catalogItem{"ambulance", "🚑 Ambulance", "vehicle"},
	catalogItem{"helicopter", "🚁 Helicopter", "vehicle"},
	catalogItem{"penguin", "🐧 Penguin", "animal"},
	catalogItem{"dolphin", "🐬 Dolphin", "animal"},
	catalogItem{"diamond", "💎 Diamond", "shape"},
	catalogItem{"square", "🟦 Square", "shape"},
)

// Matching is visual discrimination: pick the item named in the prompt.
type Matching struct {
	stats TrialStats
}

func NewMatching(stats TrialStats) *Matching { return &Matching{stats: stats} }

func (*Matching) Code() string      { return "matching" }
func (*Matching) TrialType() string { return "matching" }
func (*Matching) Name() string      { return "Shape Matching" }

var matchingLadder = ladder{top: 0.85, minTop: 3, mid: 0.65}

func (g *Matching) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	return ladderLevel(ctx, g.stats, matchingLadder, sessionID)
}

func (g *Matching) BuildTrial(_ context.Context, level int, _ string) (TrialSpec, error) {
	pool, nOpts := matchingEasy, 3
	switch {
	case level >= 3:
		pool, nOpts = matchingHard, 5
	case level == 2:
		pool, nOpts = matchingMedium, 4
	}

	target := pick(pool)
	distractors := make([]catalogItem, 0, len(pool)-1)
	for _, it := range pool {
		if it.ID != target.ID {
			distractors = append(distractors, it)
		}
	}
	items := append([]catalogItem{target}, sample(distractors, nOpts-1)...)
	shuffle(items)

	spec := TrialSpec{
		Level:       level,
		Target:      target.ID,
		Options:     optionsOf(items),
		TimeLimitMS: max(6000, 12000-level*2000),
		Reason:      fmt.Sprintf("Level %d matching trial", level),
		Extra:       map[string]any{"level": level, "category": target.Category},
	}
	switch {
	case level <= 1:
		spec.Prompt = fmt.Sprintf("Find the %s! Can you match it?", target.Label)
		spec.Highlight = target.ID
		spec.Hint = "Look for the " + target.Label
	case level == 2:
		spec.Prompt = fmt.Sprintf("Find the %s!", target.Label)
		spec.Hint = fmt.Sprintf("Which one is the %s?", target.Label)
	default:
		spec.Prompt = fmt.Sprintf("Can you find the %s?", target.Label)
	}
	return spec, nil
}

func (g *Matching) Evaluate(_ context.Context, in EvalInput) (EvalResult, error) {
	clicked := in.Submit.Choice()
	hit := clicked == in.Target
	success := hit && !in.Submit.TimedOut
	rt := in.Submit.ResponseTimeMS

	res := EvalResult{Success: success}
	switch {
	case success:
		res.Score = 10
		switch {
		case rt < 2000:
			res.Feedback = "⚡ Lightning fast! Amazing match!"
		case rt < 4000:
			res.Feedback = "🌟 Great job matching!"
		default:
			res.Feedback = "✅ Correct match! Well done!"
		}
		res.Recommendation = "Continue with current difficulty or increase."
		res.Reason = "Child matched correctly."
	case in.Submit.TimedOut:
		if hit {
			res.Score = 3
		}
		res.Feedback = "⏰ Time's up! Let's try again."
		res.Recommendation = "Increase time limit or add visual prompt."
		res.Reason = "Child did not respond in time."
	default:
		res.Feedback = "Almost! Let's try the next one."
		res.Recommendation = "Reduce distractors or highlight correct answer."
		res.Reason = "Incorrect match, may need more support."
	}

	res.Telemetry = telemetryFor(g, in, clicked, success)
	res.Telemetry.Recommendation, res.Telemetry.Reason = res.Recommendation, res.Reason
	return res, nil
}

func optionsOf(items []catalogItem) []models.Option {
	out := make([]models.Option, 0, len(items))
	for _, it := range items {
		out = append(out, models.Option{ID: it.ID, Label: it.Label})
	}
	return out
}
