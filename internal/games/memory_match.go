package games

import (
	"context"
	"fmt"

	"github.com/yoockh/yootherapy/internal/utils"
)

var (
	memoryEasy   = []string{"🍎", "🐕", "⭐", "🚗", "🌈", "🐱", "🌻", "🐟"}
	memoryMedium = append(append([]string{}, memoryEasy...), "🎈", "🦋", "🍕", "🎸", "🐢", "🌙", "🍇", "🚀")
	memoryHard   = append(append([]string{}, memoryMedium...), "🦁", "🎯", "🧩", "🎨", "🦄", "🍉", "🔔", "🏀")
)

const memoryGridCols = 4

type memoryCard struct {
	ID     string `json:"id"`
	Emoji  string `json:"emoji"`
	PairID string `json:"pair_id"`
}

// MemoryMatch is a card-flip board; the client plays the whole board and
// submits pairs found and moves used.
type MemoryMatch struct {
	stats TrialStats
}

func NewMemoryMatch(stats TrialStats) *MemoryMatch { return &MemoryMatch{stats: stats} }

func (*MemoryMatch) Code() string      { return "memory_match" }
func (*MemoryMatch) TrialType() string { return "memory_match" }
func (*MemoryMatch) Name() string      { return "Memory Match" }

var memoryLadder = ladder{top: 0.85, minTop: 2, mid: 0.65}

func (g *MemoryMatch) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	return ladderLevel(ctx, g.stats, memoryLadder, sessionID)
}

func (g *MemoryMatch) BuildTrial(_ context.Context, level int, _ string) (TrialSpec, error) {
	pool, pairs := memoryEasy, 4
	switch {
	case level >= 3:
		pool, pairs = memoryHard, 8
	case level == 2:
		pool, pairs = memoryMedium, 6
	}

	cards := make([]memoryCard, 0, pairs*2)
	for i, e := range sample(pool, pairs) {
		pair := fmt.Sprintf("p%d", i)
		cards = append(cards,
			memoryCard{ID: fmt.Sprintf("c%da", i), Emoji: e, PairID: pair},
			memoryCard{ID: fmt.Sprintf("c%db", i), Emoji: e, PairID: pair},
		)
	}
	shuffle(cards)

	pairMap := make(map[string]string, len(cards))
	for _, c := range cards {
		pairMap[c.ID] = c.PairID
	}

	spec := TrialSpec{
		Level:       level,
		Target:      fmt.Sprintf("%d_pairs", pairs),
		TimeLimitMS: pairs * 15000,
		Reason:      fmt.Sprintf("Level %d memory match with %d pairs", level, pairs),
		Extra: map[string]any{
			"level":     level,
			"game_type": "memory_match",
			"num_pairs": pairs,
			"grid_cols": memoryGridCols,
			"grid_rows": len(cards) / memoryGridCols,
			"cards":     cards,
			"pair_map":  pairMap,
		},
	}
	switch {
	case level <= 1:
		spec.Prompt = fmt.Sprintf("Find %d matching pairs! Flip two cards at a time.", pairs)
		spec.Hint = "Start with corners, they're easier to remember!"
	case level == 2:
		spec.Prompt = fmt.Sprintf("Match all %d pairs! Remember where each card is.", pairs)
		spec.Hint = "Try to remember each card position."
	default:
		spec.Prompt = fmt.Sprintf("Match all %d pairs! How few moves can you use?", pairs)
	}
	return spec, nil
}

func (g *MemoryMatch) Evaluate(_ context.Context, in EvalInput) (EvalResult, error) {
	var m MemoryResult
	if in.Submit.Memory != nil {
		m = *in.Submit.Memory
	} else {
		m = ParseMemoryResult(in.Submit.Clicked)
	}
	total := m.TotalPairs
	if total <= 0 {
		total = 1
	}
	timedOut := in.Submit.TimedOut

	completion := float64(m.PairsFound) / float64(total)
	success := completion >= 1.0 && !timedOut
	efficiency := 0.0
	if m.Moves > 0 {
		efficiency = float64(total) / float64(m.Moves)
	}

	res := EvalResult{Success: success}
	switch {
	case success && efficiency >= 0.8:
		res.Score = 15
	case success && efficiency >= 0.5:
		res.Score = 12
	case success:
		res.Score = 10
	case completion >= 0.5:
		res.Score = 5
	case !timedOut:
		res.Score = 2
	}

	switch {
	case success && efficiency >= 0.8:
		res.Feedback = "🧠 Amazing memory! You found all pairs with very few moves!"
	case success:
		res.Feedback = "🌟 Great job! You found all the matching pairs!"
	case timedOut && completion >= 0.5:
		res.Feedback = fmt.Sprintf("⏰ Time's up! You found %d/%d pairs. Almost there!", m.PairsFound, total)
	case timedOut:
		res.Feedback = fmt.Sprintf("⏰ Time's up! You found %d/%d pairs. Keep practicing!", m.PairsFound, total)
	default:
		res.Feedback = fmt.Sprintf("You found %d/%d pairs. Let's try again!", m.PairsFound, total)
	}

	switch {
	case success && efficiency >= 0.7:
		res.Recommendation, res.Reason = "Increase difficulty, add more pairs.", "Child has excellent visual memory."
	case success:
		res.Recommendation, res.Reason = "Maintain current level, child is progressing.", "Child completed the board but needed extra moves."
	case timedOut:
		res.Recommendation, res.Reason = "Reduce pairs or increase time.", "Child ran out of time."
	default:
		res.Recommendation, res.Reason = "Use fewer pairs or provide hints.", "Child struggled with current difficulty."
	}

	clicked := fmt.Sprintf("pairs:%d,moves:%d,total:%d", m.PairsFound, m.Moves, total)
	res.Telemetry = telemetryFor(g, in, clicked, success)
	res.Telemetry.Recommendation, res.Telemetry.Reason = res.Recommendation, res.Reason
	res.Telemetry.Extra = map[string]any{
		"pairs_found": m.PairsFound,
		"total_pairs": total,
		"moves":       m.Moves,
		"efficiency":  utils.Round(efficiency, 2),
	}
	res.Details = res.Telemetry.Extra
	return res, nil
}
