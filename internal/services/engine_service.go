package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yootherapy/internal/games"
	"github.com/yoockh/yootherapy/internal/models"
	mongorepo "github.com/yoockh/yootherapy/internal/repositories/mongo"
	"github.com/yoockh/yootherapy/internal/repositories/postgres"
	"github.com/yoockh/yootherapy/internal/utils"
)

const (
	DefaultTrialsPlanned = 10
	MaxTrialsPlanned     = 100
	DefaultTimeLimitMS   = 10000

	DetailSessionCompleted = "Session already completed"
	DetailNoPlannedTrials  = "No more planned trials"
)

type StartSessionInput struct {
	ChildID         string                 `json:"child_id"`
	TrialsPlanned   int                    `json:"trials_planned"`
	SupervisionMode models.SupervisionMode `json:"supervision_mode"`
	Title           string                 `json:"title"`
	TimeLimitMS     int                    `json:"time_limit_ms"`
}

type StartSessionResult struct {
	SessionID     string `json:"session_id"`
	TrialsPlanned int    `json:"trials_planned"`
	TimeLimitMS   int    `json:"time_limit_ms"`
}

// TrialView is a running trial as shown to the client.
type TrialView struct {
	ID          string          `json:"id"`
	TrialID     string          `json:"trial_id"`
	Game        string          `json:"game"`
	TrialType   string          `json:"trial_type"`
	Level       int             `json:"level"`
	Prompt      string          `json:"prompt"`
	Highlight   string          `json:"highlight,omitempty"`
	Options     []models.Option `json:"options"`
	Target      string          `json:"target"`
	TimeLimitMS int             `json:"time_limit_ms"`
	Hint        string          `json:"ai_hint,omitempty"`
	Reason      string          `json:"ai_reason,omitempty"`
	Extra       map[string]any  `json:"extra"`
}

// NextTrialResult holds either a started trial or a terminal Detail
// (session completed, nothing left to run).
type NextTrialResult struct {
	Detail string
	Trial  *TrialView
}

type SubmitResult struct {
	TrialID          string          `json:"trial_id"`
	Success          bool            `json:"success"`
	Score            int             `json:"score"`
	Feedback         string          `json:"feedback"`
	Recommendation   string          `json:"ai_recommendation"`
	Reason           string          `json:"ai_reason"`
	SessionCompleted bool            `json:"session_completed"`
	Summary          *SessionSummary `json:"summary"`
	Details          map[string]any  `json:"details,omitempty"`
}

type SessionSummary struct {
	SessionID         string               `json:"session_id"`
	Game              string               `json:"game"`
	Status            models.SessionStatus `json:"status"`
	TotalTrials       int                  `json:"total_trials"`
	CompletedTrials   int                  `json:"completed_trials"`
	Correct           int                  `json:"correct"`
	Accuracy          float64              `json:"accuracy"`
	AvgResponseTimeMS *int                 `json:"avg_response_time_ms"`
	CurrentLevel      int                  `json:"current_level"`
	Suggestion        string               `json:"suggestion"`
}

type EngineService interface {
	StartSession(ctx context.Context, game string, caller models.Caller, in StartSessionInput) (*StartSessionResult, error)
	NextTrial(ctx context.Context, game string, caller models.Caller, sessionID string) (*NextTrialResult, error)
	SubmitTrial(ctx context.Context, game string, caller models.Caller, trialID string, sub games.Submission) (*SubmitResult, error)
	Summary(ctx context.Context, game string, caller models.Caller, sessionID string) (*SessionSummary, error)
}

type engineService struct {
	registry     *games.Registry
	gate         *AccessGate
	sessions     postgres.SessionRepository
	trials       postgres.TrialRepository
	observations mongorepo.ObservationRepository
	log          *logrus.Logger
	now          func() time.Time
}

func NewEngineService(
	registry *games.Registry,
	gate *AccessGate,
	sessions postgres.SessionRepository,
	trials postgres.TrialRepository,
	observations mongorepo.ObservationRepository,
	log *logrus.Logger,
) EngineService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &engineService{
		registry:     registry,
		gate:         gate,
		sessions:     sessions,
		trials:       trials,
		observations: observations,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *engineService) StartSession(ctx context.Context, game string, caller models.Caller, in StartSessionInput) (*StartSessionResult, error) {
	const op = "EngineService.StartSession"

	plugin, err := s.registry.Get(game)
	if err != nil {
		return nil, err
	}

	if in.TrialsPlanned == 0 {
		in.TrialsPlanned = DefaultTrialsPlanned
	}
	if in.TrialsPlanned < 1 || in.TrialsPlanned > MaxTrialsPlanned {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("trials_planned must be between 1 and %d", MaxTrialsPlanned), nil)
	}
	if in.SupervisionMode == "" {
		in.SupervisionMode = models.SupervisionTherapist
	}
	if !in.SupervisionMode.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "supervision_mode must be therapist, caregiver or mixed", nil)
	}
	if in.TimeLimitMS == 0 {
		in.TimeLimitMS = DefaultTimeLimitMS
	}
	if in.TimeLimitMS < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "time_limit_ms must be positive", nil)
	}

	child, err := s.gate.Child(ctx, caller, in.ChildID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = plugin.Name()
	}

	now := s.now()
	session := &models.TherapySession{
		ID:              uuid.NewString(),
		ChildID:         child.ID,
		TherapistID:     caller.ID,
		CreatedBy:       caller.ID,
		SupervisionMode: in.SupervisionMode,
		Status:          models.SessionInProgress,
		Title:           title,
		StartedAt:       &now,
		CreatedAt:       now,
	}
	trials := make([]models.SessionTrial, in.TrialsPlanned)
	for i := range trials {
		trials[i] = models.SessionTrial{
			ID:             uuid.NewString(),
			SessionID:      session.ID,
			Seq:            i + 1,
			TrialType:      plugin.TrialType(),
			TargetBehavior: "select_target_object",
			Status:         models.TrialPlanned,
			CreatedAt:      now,
		}
	}

	if err := s.sessions.Create(ctx, session, trials); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"game":       plugin.Code(),
		"child_id":   child.ID,
		"trials":     in.TrialsPlanned,
	}).Info("therapy session started")

	return &StartSessionResult{
		SessionID:     session.ID,
		TrialsPlanned: in.TrialsPlanned,
		TimeLimitMS:   in.TimeLimitMS,
	}, nil
}

// ownedSession loads a session the caller owns (or any, when privileged).
func (s *engineService) ownedSession(ctx context.Context, op string, caller models.Caller, sessionID string) (*models.TherapySession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if !caller.CanAccess(session.TherapistID) {
		return nil, utils.E(utils.CodeForbidden, op, "Not your session", nil)
	}
	return session, nil
}

func (s *engineService) NextTrial(ctx context.Context, game string, caller models.Caller, sessionID string) (*NextTrialResult, error) {
	const op = "EngineService.NextTrial"

	plugin, err := s.registry.Get(game)
	if err != nil {
		return nil, err
	}
	session, err := s.ownedSession(ctx, op, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return &NextTrialResult{Detail: DetailSessionCompleted}, nil
	}

	trial, err := s.trials.NextPlanned(ctx, session.ID)
	if errors.Is(err, utils.ErrNotFound) {
		return &NextTrialResult{Detail: DetailNoPlannedTrials}, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load planned trial", err)
	}
	if trial.TrialType != plugin.TrialType() {
		return nil, wrongGame(op, plugin)
	}

	level, err := plugin.ComputeLevel(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to compute level", err)
	}
	spec, err := plugin.BuildTrial(ctx, level, session.ID)
	if err != nil {
		return nil, passThrough(op, "failed to build trial", err)
	}
	if spec.Level > 0 {
		level = spec.Level
	}
	if spec.TimeLimitMS <= 0 {
		spec.TimeLimitMS = DefaultTimeLimitMS
	}
	if spec.Extra == nil {
		spec.Extra = map[string]any{}
	}

	if err := s.trials.MarkRunning(ctx, trial.ID, spec.Prompt, s.now()); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "trial was started concurrently, retry", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to start trial", err)
	}

	obs := &models.Observation{
		SessionID:   session.ID,
		TrialID:     trial.ID,
		TherapistID: caller.ID,
		Kind:        models.KindTrialStarted,
		Started: &models.TrialStarted{
			Game:        plugin.Code(),
			TrialType:   plugin.TrialType(),
			Level:       level,
			Target:      spec.Target,
			Options:     spec.Options,
			TimeLimitMS: spec.TimeLimitMS,
			Highlight:   spec.Highlight,
			Hint:        spec.Hint,
			Reason:      spec.Reason,
			Extra:       spec.Extra,
		},
	}
	if err := s.observations.Append(ctx, obs); err != nil {
		// Without a trial_started record the trial can never be submitted.
		if rerr := s.trials.MarkPlanned(ctx, trial.ID); rerr != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": session.ID,
				"trial_id":   trial.ID,
			}).WithError(rerr).Error("failed to return trial to planned")
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to record trial start", err)
	}

	return &NextTrialResult{Trial: &TrialView{
		ID:          trial.ID,
		TrialID:     trial.ID,
		Game:        plugin.Code(),
		TrialType:   plugin.TrialType(),
		Level:       level,
		Prompt:      spec.Prompt,
		Highlight:   spec.Highlight,
		Options:     spec.Options,
		Target:      spec.Target,
		TimeLimitMS: spec.TimeLimitMS,
		Hint:        spec.Hint,
		Reason:      spec.Reason,
		Extra:       spec.Extra,
	}}, nil
}

func (s *engineService) SubmitTrial(ctx context.Context, game string, caller models.Caller, trialID string, sub games.Submission) (*SubmitResult, error) {
	const op = "EngineService.SubmitTrial"

	plugin, err := s.registry.Get(game)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(trialID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "trial_id is required", nil)
	}

	trial, err := s.trials.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Trial not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial", err)
	}
	session, err := s.sessions.Get(ctx, trial.SessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if !caller.CanAccess(session.TherapistID) {
		return nil, utils.E(utils.CodeForbidden, op, "Not your trial", nil)
	}
	if trial.TrialType != plugin.TrialType() {
		return nil, wrongGame(op, plugin)
	}
	if trial.Status != models.TrialRunning {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("Trial not in running state (current=%s)", trial.Status), nil)
	}

	started, err := s.observations.LatestStartedForTrial(ctx, trial.ID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial start", err)
	}
	if started == nil || started.Started == nil || started.Started.Target == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Missing trial_started state (target not found)", nil)
	}
	level := started.Started.Level
	if level <= 0 {
		level = 1
	}

	res, err := plugin.Evaluate(ctx, games.EvalInput{
		Target:    started.Started.Target,
		Submit:    sub,
		Level:     level,
		SessionID: session.ID,
		TrialID:   trial.ID,
	})
	if err != nil {
		return nil, passThrough(op, "failed to evaluate trial", err)
	}

	success := res.Success
	if err := s.trials.Complete(ctx, trial.ID, models.TrialRunning, &success, res.Score, s.now()); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "trial was already submitted", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to complete trial", err)
	}

	log := s.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"trial_id":   trial.ID,
		"game":       plugin.Code(),
		"success":    success,
	})

	if res.OnCommit != nil {
		if err := res.OnCommit(ctx); err != nil {
			log.WithError(err).Warn("post-commit hook failed")
		}
	}

	telemetry := res.Telemetry
	if err := s.observations.Append(ctx, &models.Observation{
		SessionID:   session.ID,
		TrialID:     trial.ID,
		TherapistID: caller.ID,
		Kind:        models.KindTrialTelemetry,
		Outcome:     &telemetry,
	}); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to record trial telemetry", err)
	}

	out := &SubmitResult{
		TrialID:        trial.ID,
		Success:        success,
		Score:          res.Score,
		Feedback:       res.Feedback,
		Recommendation: res.Recommendation,
		Reason:         res.Reason,
		Details:        res.Details,
	}

	remaining, err := s.trials.CountUnfinished(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count remaining trials", err)
	}
	if remaining == 0 {
		if _, err := s.sessions.Complete(ctx, session.ID, s.now()); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to complete session", err)
		}
		log.Info("therapy session completed")

		summary, err := s.Summary(ctx, game, caller, session.ID)
		if err != nil {
			return nil, err
		}
		out.SessionCompleted = true
		out.Summary = summary
	}
	return out, nil
}

func (s *engineService) Summary(ctx context.Context, game string, caller models.Caller, sessionID string) (*SessionSummary, error) {
	const op = "EngineService.Summary"

	plugin, err := s.registry.Get(game)
	if err != nil {
		return nil, err
	}
	session, err := s.ownedSession(ctx, op, caller, sessionID)
	if err != nil {
		return nil, err
	}

	counts, err := s.trials.Counts(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count trials", err)
	}
	var accuracy float64
	if counts.Completed > 0 {
		accuracy = float64(counts.Correct) / float64(counts.Completed)
	}

	outcomes, err := s.observations.Outcomes(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load telemetry", err)
	}
	var avgRT *int
	sum, n := 0, 0
	for _, o := range outcomes {
		if o.Outcome != nil {
			sum += o.Outcome.ResponseTimeMS
			n++
		}
	}
	if n > 0 {
		avg := sum / n
		avgRT = &avg
	}

	level, err := plugin.ComputeLevel(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to compute level", err)
	}

	return &SessionSummary{
		SessionID:         session.ID,
		Game:              plugin.Code(),
		Status:            session.Status,
		TotalTrials:       counts.Total,
		CompletedTrials:   counts.Completed,
		Correct:           counts.Correct,
		Accuracy:          utils.Round(accuracy, 3),
		AvgResponseTimeMS: avgRT,
		CurrentLevel:      level,
		Suggestion:        suggestion(counts.Completed, accuracy, avgRT),
	}, nil
}

func suggestion(completed int, accuracy float64, avgRT *int) string {
	switch {
	case completed == 0:
		return ""
	case accuracy >= 0.8 && (avgRT == nil || *avgRT <= 3200):
		return "Suggestion: Fade prompts next session (L2/L3) and increase distractor difficulty."
	case accuracy < 0.5:
		return "Suggestion: Return to Level 1, reduce distractors, and slow pacing."
	default:
		return "Suggestion: Maintain current level and continue practice."
	}
}

// passThrough keeps coded plugin errors and wraps anything else as internal.
func passThrough(op, msg string, err error) error {
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return err
	}
	return utils.E(utils.CodeInternal, op, msg, err)
}

func wrongGame(op string, plugin games.Plugin) error {
	return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("Trial does not belong to game %s", plugin.Code()), nil)
}
