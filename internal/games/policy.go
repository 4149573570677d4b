package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yootherapy/internal/cache"
	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
)

const (
	emaAlpha      = 0.35
	DefaultWindow = 8
	MaxWindow     = 64

	timeLimitL1 = 12000
	timeLimitL2 = 10000
	timeLimitL3 = 8000
)

const (
	DistractorEasy   = "easy"
	DistractorMedium = "medium"
	DistractorHard   = "hard"
)

// PolicyState is the joint attention difficulty state derived from recent telemetry.
type PolicyState struct {
	Level           int     `json:"level"`
	EMAAccuracy     float64 `json:"ema_acc"`
	EMAResponseTime float64 `json:"ema_rt"`
	StreakCorrect   int     `json:"streak_correct"`
	StreakWrong     int     `json:"streak_wrong"`
	TimeLimitMS     int     `json:"time_limit_ms"`
	DistractorMode  string  `json:"distractor_mode"`
}

func initialState() PolicyState {
	return PolicyState{Level: 1, TimeLimitMS: timeLimitL1, DistractorMode: DistractorEasy}
}

// FoldState replays outcomes ordered oldest to newest.
func FoldState(outcomes []models.TrialTelemetry) PolicyState {
	if len(outcomes) == 0 {
		return initialState()
	}

	var acc, rt float64
	var streakCorrect, streakWrong int
	for _, o := range outcomes {
		hit := 0.0
		if o.Success {
			hit = 1.0
		}
		acc = emaAlpha*hit + (1-emaAlpha)*acc
		rt = emaAlpha*float64(max(o.ResponseTimeMS, 0)) + (1-emaAlpha)*rt

		if o.Success {
			streakCorrect++
			streakWrong = 0
		} else {
			streakWrong++
			streakCorrect = 0
		}
	}

	level := 1
	if acc >= 0.78 && (rt <= 3200 || rt == 0) && streakCorrect >= 2 {
		level = 2
	}
	if acc >= 0.88 && (rt <= 2500 || rt == 0) && streakCorrect >= 3 {
		level = 3
	}

	var mode string
	switch level {
	case 1:
		mode = DistractorEasy
		if acc >= 0.65 {
			mode = DistractorMedium
		}
	case 2:
		mode = DistractorMedium
		if acc >= 0.85 {
			mode = DistractorHard
		}
	default:
		mode = DistractorHard
	}

	base := timeLimitL1
	switch level {
	case 2:
		base = timeLimitL2
	case 3:
		base = timeLimitL3
	}
	limit := base
	switch {
	case rt > 4500:
		limit = min(base+2000, 15000)
	case rt > 0 && rt < 2000 && acc > 0.8:
		limit = max(base-1000, 5000)
	}

	return PolicyState{
		Level:           level,
		EMAAccuracy:     utils.Round(acc, 3),
		EMAResponseTime: utils.Round(rt, 1),
		StreakCorrect:   streakCorrect,
		StreakWrong:     streakWrong,
		TimeLimitMS:     limit,
		DistractorMode:  mode,
	}
}

// Policy computes PolicyState for a session from the last Window outcomes,
// optionally memoised in a cache keyed by the newest outcome id.
type Policy struct {
	history History
	window  int
	cache   cache.Cache
	ttl     time.Duration
	log     *logrus.Logger
}

type PolicyOption func(*Policy)

func WithPolicyCache(c cache.Cache, ttl time.Duration) PolicyOption {
	return func(p *Policy) {
		p.cache = c
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func WithPolicyLogger(log *logrus.Logger) PolicyOption {
	return func(p *Policy) { p.log = log }
}

func NewPolicy(history History, window int, opts ...PolicyOption) *Policy {
	if window <= 0 {
		window = DefaultWindow
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	p := &Policy{history: history, window: window, ttl: 10 * time.Minute}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Policy) Window() int { return p.window }

func (p *Policy) State(ctx context.Context, sessionID string) (PolicyState, error) {
	if sessionID == "" {
		return initialState(), nil
	}

	var key string
	if p.cache != nil {
		lastID, err := p.history.LatestOutcomeID(ctx, sessionID)
		switch {
		case errors.Is(err, utils.ErrNotFound):
			return initialState(), nil
		case err != nil:
			return PolicyState{}, err
		}
		key = fmt.Sprintf("policy:ja:%s:%s", sessionID, lastID)

		var cached PolicyState
		hit, err := p.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			p.warn(err, sessionID, "policy cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	recent, err := p.history.RecentOutcomes(ctx, sessionID, p.window)
	if err != nil {
		return PolicyState{}, err
	}
	// newest first from the store
	outcomes := make([]models.TrialTelemetry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if o := recent[i].Outcome; o != nil {
			outcomes = append(outcomes, *o)
		}
	}
	st := FoldState(outcomes)

	if key != "" {
		if err := p.cache.SetJSON(ctx, key, st, p.ttl); err != nil {
			p.warn(err, sessionID, "policy cache write failed")
		}
	}
	return st, nil
}

func (p *Policy) warn(err error, sessionID, msg string) {
	if p.log == nil {
		return
	}
	p.log.WithFields(logrus.Fields{"session_id": sessionID, "error": err.Error()}).Warn(msg)
}
