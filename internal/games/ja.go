package games

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
)

var (
	jaStimuliEasy   = []string{"car", "ball", "cat", "cup", "apple", "book", "fish", "hat"}
	jaStimuliMedium = []string{"dog", "pen", "chair", "shoe", "fork", "spoon", "door", "ring"}
	jaStimuliHard   = []string{"cap", "bat", "rat", "mat", "mug", "cook", "hook", "pack"}
)

// JointAttention is the "look where I point" game driven by the EMA policy.
type JointAttention struct {
	policy  *Policy
	history History
}

func NewJointAttention(policy *Policy, history History) *JointAttention {
	return &JointAttention{policy: policy, history: history}
}

func (*JointAttention) Code() string      { return "ja" }
func (*JointAttention) TrialType() string { return "joint_attention" }
func (*JointAttention) Name() string      { return "Look Where I Point" }

func (g *JointAttention) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	st, err := g.policy.State(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return st.Level, nil
}

func jaPool(mode string) []string {
	switch mode {
	case DistractorEasy:
		return jaStimuliEasy
	case DistractorHard:
		return append(append([]string{}, jaStimuliHard...), jaStimuliMedium...)
	default:
		return append(append([]string{}, jaStimuliMedium...), jaStimuliEasy...)
	}
}

func jaOption(id string) models.Option {
	return models.Option{
		ID:    id,
		Label: strings.ToUpper(id[:1]) + id[1:],
		Image: "ja/" + id + ".png",
	}
}

func (g *JointAttention) BuildTrial(ctx context.Context, level int, sessionID string) (TrialSpec, error) {
	mode := DistractorEasy
	limit := timeLimitL1
	if sessionID != "" {
		st, err := g.policy.State(ctx, sessionID)
		if err != nil {
			return TrialSpec{}, err
		}
		mode, limit, level = st.DistractorMode, st.TimeLimitMS, st.Level
	}
	level = utils.ClampInt(level, 1, 3)

	ids := sample(jaPool(mode), 4)
	target, err := g.pickTarget(ctx, ids, sessionID)
	if err != nil {
		return TrialSpec{}, err
	}

	spec := TrialSpec{
		Level:       level,
		Target:      target,
		TimeLimitMS: limit,
		Reason:      "mode=" + mode,
		Extra:       map[string]any{"distractor_mode": mode, "level": level},
	}
	for _, id := range ids {
		spec.Options = append(spec.Options, jaOption(id))
	}

	switch level {
	case 1:
		spec.Prompt = "Look at the " + target
		spec.Highlight = target
		spec.Hint = "Use highlight + speech + text (errorless learning)."
	case 2:
		spec.Prompt = "Look at the " + target
		spec.Hint = "Fade prompt: speech + text only."
	default:
		spec.Prompt = "Look where I point"
		spec.Hint = "Minimal cue (maintenance)."
	}
	return spec, nil
}

// pickTarget avoids repeating the previous trial's target when it can.
func (g *JointAttention) pickTarget(ctx context.Context, ids []string, sessionID string) (string, error) {
	var last string
	if sessionID != "" && g.history != nil {
		o, err := g.history.LastStarted(ctx, sessionID)
		switch {
		case errors.Is(err, utils.ErrNotFound):
		case err != nil:
			return "", err
		case o.Started != nil:
			last = o.Started.Target
		}
	}

	candidates := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != last {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		candidates = ids
	}
	return pick(candidates), nil
}

func (g *JointAttention) Evaluate(ctx context.Context, in EvalInput) (EvalResult, error) {
	clicked := strings.ToLower(strings.TrimSpace(in.Submit.Choice()))
	target := strings.ToLower(strings.TrimSpace(in.Target))
	success := !in.Submit.TimedOut && clicked != "" && clicked == target

	res := EvalResult{Success: success, Feedback: "Try again"}
	switch {
	case success:
		res.Score = 10
		res.Feedback = "Correct!"
	case in.Submit.TimedOut:
		res.Feedback = "Timed out"
	}

	tel := telemetryFor(g, in, clicked, success)
	tel.Target = target

	if in.SessionID == "" {
		res.Recommendation, res.Reason = "Continue", "No session context"
	} else {
		// state before this trial's telemetry is written
		st, err := g.policy.State(ctx, in.SessionID)
		if err != nil {
			return EvalResult{}, err
		}
		res.Recommendation, res.Reason = jaRecommend(st, in.Level, in.Submit.TimedOut)
		tel.DistractorMode = st.DistractorMode
	}

	tel.Recommendation, tel.Reason = res.Recommendation, res.Reason
	res.Telemetry = tel
	return res, nil
}

func jaRecommend(st PolicyState, level int, timedOut bool) (string, string) {
	if timedOut || st.StreakWrong >= 2 || st.EMAAccuracy < 0.55 {
		return "Recommendation: Increase prompting (Level 1), reduce distractor difficulty, slow pacing.",
			fmt.Sprintf("ema_acc=%v, streak_wrong=%d, ema_rt=%v", st.EMAAccuracy, st.StreakWrong, st.EMAResponseTime)
	}
	if st.EMAAccuracy >= 0.8 && st.EMAResponseTime <= 3200 && st.StreakCorrect >= 2 && level < 3 {
		return "Recommendation: Fade prompt (move toward Level 2/3) and use harder distractors.",
			fmt.Sprintf("ema_acc=%v, streak_correct=%d, ema_rt=%v", st.EMAAccuracy, st.StreakCorrect, st.EMAResponseTime)
	}
	return "Recommendation: Maintain current level and continue trials.",
		fmt.Sprintf("ema_acc=%v, ema_rt=%v, level=%d", st.EMAAccuracy, st.EMAResponseTime, st.Level)
}
