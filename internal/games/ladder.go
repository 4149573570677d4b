package games

import (
	"context"
	"math/rand/v2"
)

// ladder maps session accuracy to a level 1..3.
type ladder struct {
	top    float64
	minTop int
	mid    float64
}

func (l ladder) level(total, correct int) int {
	if total == 0 {
		return 1
	}
	acc := float64(correct) / float64(total)
	switch {
	case acc >= l.top && total >= l.minTop:
		return 3
	case acc >= l.mid:
		return 2
	default:
		return 1
	}
}

func ladderLevel(ctx context.Context, stats TrialStats, l ladder, sessionID string) (int, error) {
	if sessionID == "" || stats == nil {
		return 1, nil
	}
	total, correct, err := stats.CompletedStats(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return l.level(total, correct), nil
}

// sample returns n distinct elements of pool in random order.
func sample[T any](pool []T, n int) []T {
	n = min(n, len(pool))
	out := make([]T, 0, n)
	for _, i := range rand.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func shuffle[T any](s []T) {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

func pick[T any](pool []T) T {
	return pool[rand.IntN(len(pool))]
}
