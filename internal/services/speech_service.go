package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/repositories/postgres"
	"github.com/yoockh/yootherapy/internal/speech"
	"github.com/yoockh/yootherapy/internal/storage"
	"github.com/yoockh/yootherapy/internal/utils"
)

const maxAutoTranscriptRunes = 500

// Analyzer runs the speech pipeline over a local audio file.
type Analyzer interface {
	Process(ctx context.Context, audioPath string, opts speech.Options) *speech.Result
}

// AnalysisDispatcher hands a queued analysis to background execution.
type AnalysisDispatcher interface {
	Dispatch(ctx context.Context, analysisID string) error
}

// StatusNotifier is told about every analysis status transition.
type StatusNotifier interface {
	Notify(ctx context.Context, analysisID string, status models.AnalysisStatus, message string)
}

type SpeechStartInput struct {
	ChildID         string                 `json:"child_id"`
	ActivityID      string                 `json:"activity_id"`
	TrialsPlanned   int                    `json:"trials_planned"`
	SupervisionMode models.SupervisionMode `json:"supervision_mode"`
	PromptLevel     int                    `json:"prompt_level"`
}

type SpeechTrialPlan struct {
	TrialID     string             `json:"trial_id"`
	TrialNumber int                `json:"trial_number"`
	Prompt      string             `json:"prompt"`
	TargetText  string             `json:"target_text"`
	Status      models.TrialStatus `json:"status"`
}

type SpeechStartResult struct {
	SessionID     string                 `json:"session_id"`
	Activity      *models.SpeechActivity `json:"activity"`
	TrialsPlanned int                    `json:"trials_planned"`
	Trials        []SpeechTrialPlan      `json:"trials"`
	PromptLevel   int                    `json:"prompt_level"`
}

type AudioUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	DurationMS  *int
}

type UploadResult struct {
	Recording        *models.SpeechRecording `json:"recording"`
	AnalysisID       string                  `json:"analysis_id"`
	ProcessingStatus models.AnalysisStatus   `json:"processing_status"`
	Message          string                  `json:"message"`
}

type AnalysisView struct {
	Analysis *models.SpeechAnalysis  `json:"analysis"`
	Meta     *models.SpeechTrialMeta `json:"meta"`
}

type TherapistScore string

const (
	ScoreSuccess TherapistScore = "success"
	ScoreFail    TherapistScore = "fail"
	ScorePartial TherapistScore = "partial"
)

type ScoreInput struct {
	Score              TherapistScore `json:"score"`
	Notes              string         `json:"notes"`
	OverrideTranscript string         `json:"override_transcript"`
}

type ScoreResult struct {
	TrialID         string         `json:"trial_id"`
	Score           TherapistScore `json:"score"`
	Success         *bool          `json:"success"`
	SessionComplete bool           `json:"session_complete"`
	RemainingTrials int            `json:"remaining_trials"`
}

type SpeechTrialSummary struct {
	TrialID         string                 `json:"trial_id"`
	Status          models.TrialStatus     `json:"status"`
	Success         *bool                  `json:"success"`
	Score           int                    `json:"score"`
	Prompt          string                 `json:"prompt"`
	TargetText      string                 `json:"target_text"`
	Transcript      string                 `json:"transcript"`
	TherapistScore  string                 `json:"therapist_score"`
	PromptLevel     int                    `json:"prompt_level"`
	AnalysisStatus  *models.AnalysisStatus `json:"analysis_status"`
	FeedbackSummary string                 `json:"feedback_summary"`
}

type SpeechSessionSummary struct {
	SessionID      string               `json:"session_id"`
	Title          string               `json:"title"`
	Status         models.SessionStatus `json:"status"`
	TotalCompleted int                  `json:"total_completed"`
	Correct        int                  `json:"correct"`
	Partial        int                  `json:"partial"`
	Failed         int                  `json:"failed"`
	Accuracy       float64              `json:"accuracy"`
	StartedAt      *time.Time           `json:"started_at"`
	EndedAt        *time.Time           `json:"ended_at"`
	Trials         []SpeechTrialSummary `json:"trials"`
}

type SpeechService interface {
	StartSession(ctx context.Context, caller models.Caller, in SpeechStartInput) (*SpeechStartResult, error)
	UploadAudio(ctx context.Context, caller models.Caller, trialID string, up AudioUpload) (*UploadResult, error)
	RunAnalysis(ctx context.Context, analysisID string) error
	LatestAnalysis(ctx context.Context, caller models.Caller, trialID string) (*AnalysisView, error)
	GetAnalysis(ctx context.Context, caller models.Caller, analysisID string) (*models.SpeechAnalysis, error)
	ScoreTrial(ctx context.Context, caller models.Caller, trialID string, in ScoreInput) (*ScoreResult, error)
	SessionSummary(ctx context.Context, caller models.Caller, sessionID string) (*SpeechSessionSummary, error)
	UpsertMeta(ctx context.Context, caller models.Caller, trialID string, in MetaInput) (*models.SpeechTrialMeta, error)
	ChildProgress(ctx context.Context, caller models.Caller, childID string) (*SpeechProgress, error)

	ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.SpeechActivity, error)
	GetActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error)
	CreateActivity(ctx context.Context, caller models.Caller, in ActivityInput) (*models.SpeechActivity, error)
	UpdateActivity(ctx context.Context, activityID string, in ActivityInput) (*models.SpeechActivity, error)
	DeactivateActivity(ctx context.Context, activityID string) error
}

type SpeechDeps struct {
	Gate       *AccessGate
	Sessions   postgres.SessionRepository
	Trials     postgres.TrialRepository
	Speech     postgres.SpeechRepository
	Store      storage.Store
	Analyzer   Analyzer
	Dispatcher AnalysisDispatcher // nil runs analyses on a detached goroutine
	Notifier   StatusNotifier
	TmpDir     string
	Log        *logrus.Logger
}

type speechService struct {
	SpeechDeps
	now  func() time.Time
	intn func(int) int

	// detached is the context handed to goroutine-dispatched analyses.
	detached context.Context
}

func NewSpeechService(d SpeechDeps) SpeechService {
	if d.Store == nil {
		d.Store = storage.Unavailable{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &speechService{
		SpeechDeps: d,
		now:        func() time.Time { return time.Now().UTC() },
		detached:   context.Background(),
	}
}

func (s *speechService) StartSession(ctx context.Context, caller models.Caller, in SpeechStartInput) (*SpeechStartResult, error) {
	const op = "SpeechService.StartSession"

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
	if in.PromptLevel < 0 || in.PromptLevel > 3 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "prompt_level must be between 0 and 3", nil)
	}
	if strings.TrimSpace(in.ActivityID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "activity_id is required", nil)
	}

	child, err := s.Gate.Child(ctx, caller, in.ChildID)
	if err != nil {
		return nil, err
	}
	activity, err := s.Speech.GetActiveActivity(ctx, in.ActivityID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Activity not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load activity", err)
	}

	now := s.now()
	session := &models.TherapySession{
		ID:              uuid.NewString(),
		ChildID:         child.ID,
		TherapistID:     caller.ID,
		CreatedBy:       caller.ID,
		SupervisionMode: in.SupervisionMode,
		Status:          models.SessionInProgress,
		Title:           "Speech: " + activity.Name,
		StartedAt:       &now,
		CreatedAt:       now,
	}

	picker := newPromptPicker(activity, s.intn)
	trials := make([]models.SessionTrial, in.TrialsPlanned)
	metas := make([]models.SpeechTrialMeta, in.TrialsPlanned)
	plans := make([]SpeechTrialPlan, in.TrialsPlanned)
	for i := range trials {
		prompt, target := picker.next()
		if target == "" {
			target = activity.ExpectedText
		}
		trials[i] = models.SessionTrial{
			ID:             uuid.NewString(),
			SessionID:      session.ID,
			Seq:            i + 1,
			TrialType:      models.TrialTypeSpeechTherapy,
			TargetBehavior: target,
			Prompt:         prompt,
			Status:         models.TrialPlanned,
			CreatedAt:      now,
		}
		activityID := activity.ID
		metas[i] = models.SpeechTrialMeta{
			ID:            uuid.NewString(),
			TrialID:       trials[i].ID,
			ActivityID:    &activityID,
			TargetText:    target,
			Category:      activity.Category,
			Language:      activity.Language,
			Difficulty:    activity.DifficultyLevel,
			PromptLevel:   in.PromptLevel,
			AttemptNumber: i + 1,
			CreatedAt:     now,
		}
		plans[i] = SpeechTrialPlan{
			TrialID:     trials[i].ID,
			TrialNumber: i + 1,
			Prompt:      prompt,
			TargetText:  target,
			Status:      models.TrialPlanned,
		}
	}

	if err := s.Sessions.Create(ctx, session, trials); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	if err := s.Speech.CreateMeta(ctx, metas); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create trial meta", err)
	}

	s.Log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"activity_id": activity.ID,
		"child_id":    child.ID,
		"trials":      in.TrialsPlanned,
	}).Info("speech session started")

	return &SpeechStartResult{
		SessionID:     session.ID,
		Activity:      activity,
		TrialsPlanned: in.TrialsPlanned,
		Trials:        plans,
		PromptLevel:   in.PromptLevel,
	}, nil
}

// speechTrial is trialForRead plus the speech trial type check.
func (s *speechService) speechTrial(ctx context.Context, op string, caller models.Caller, trialID string) (*models.SessionTrial, *models.TherapySession, error) {
	trial, session, err := s.trialForRead(ctx, op, caller, trialID)
	if err != nil {
		return nil, nil, err
	}
	if !models.IsSpeechTrialType(strings.ToLower(trial.TrialType)) {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "This trial is not a speech trial", nil)
	}
	return trial, session, nil
}

func (s *speechService) UploadAudio(ctx context.Context, caller models.Caller, trialID string, up AudioUpload) (*UploadResult, error) {
	const op = "SpeechService.UploadAudio"

	trial, _, err := s.speechTrial(ctx, op, caller, trialID)
	if err != nil {
		return nil, err
	}
	if up.Body == nil || up.Size <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file is required", nil)
	}

	now := s.now()
	if trial.Status == models.TrialPlanned {
		err := s.Trials.MarkRunning(ctx, trial.ID, trial.Prompt, now)
		if err != nil && !errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeInternal, op, "failed to start trial", err)
		}
	}

	key := fmt.Sprintf("speech/%s/%s-%s%s", now.Format("2006/01/02"), trial.ID, uuid.NewString(), strings.ToLower(filepath.Ext(up.Filename)))
	size, err := s.Store.Put(ctx, key, up.ContentType, up.Body)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return nil, utils.E(utils.CodeUnavailable, op, "audio storage is not configured", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to store audio", err)
	}

	rec := &models.SpeechRecording{
		ID:          uuid.NewString(),
		TrialID:     trial.ID,
		UploadedBy:  caller.ID,
		UploadedAt:  now,
		ContentType: up.ContentType,
		SizeBytes:   size,
		DurationMS:  up.DurationMS,
		StorageKey:  key,
	}
	if prev, err := s.Speech.GetRecording(ctx, trial.ID); err == nil {
		rec.ID = prev.ID
	}
	if err := s.Speech.UpsertRecording(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save recording", err)
	}

	recID := rec.ID
	analysis := &models.SpeechAnalysis{
		ID:          uuid.NewString(),
		TrialID:     trial.ID,
		RecordingID: &recID,
		Status:      models.AnalysisQueued,
		CreatedAt:   now,
	}
	if err := s.Speech.CreateAnalysis(ctx, analysis); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to queue analysis", err)
	}
	s.notify(ctx, analysis.ID, models.AnalysisQueued, "")
	s.dispatch(ctx, analysis.ID)

	return &UploadResult{
		Recording:        rec,
		AnalysisID:       analysis.ID,
		ProcessingStatus: analysis.Status,
		Message:          "Audio uploaded. Analysis is processing in the background.",
	}, nil
}

func (s *speechService) dispatch(ctx context.Context, analysisID string) {
	log := s.Log.WithField("analysis_id", analysisID)
	if s.Dispatcher != nil {
		err := s.Dispatcher.Dispatch(ctx, analysisID)
		if err == nil {
			return
		}
		log.WithError(err).Warn("analysis dispatch failed, running detached")
	}
	go func() {
		if err := s.RunAnalysis(s.detached, analysisID); err != nil {
			log.WithError(err).Warn("speech analysis did not complete")
		}
	}()
}

func (s *speechService) notify(ctx context.Context, analysisID string, st models.AnalysisStatus, msg string) {
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, analysisID, st, msg)
	}
}

// RunAnalysis moves a queued analysis to running and then to done or failed.
// Pipeline panics are recorded as failures with their message.
func (s *speechService) RunAnalysis(ctx context.Context, analysisID string) (err error) {
	const op = "SpeechService.RunAnalysis"

	a, err := s.Speech.GetAnalysis(ctx, analysisID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "analysis not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load analysis", err)
	}
	if err := s.Speech.TransitionAnalysis(ctx, a.ID, models.AnalysisQueued, map[string]any{
		"processing_status": models.AnalysisRunning,
	}); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return utils.E(utils.CodeConflict, op, "analysis is not queued", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to start analysis", err)
	}
	s.notify(ctx, a.ID, models.AnalysisRunning, "")

	log := s.Log.WithFields(logrus.Fields{"analysis_id": a.ID, "trial_id": a.TrialID})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = s.fail(ctx, a.ID, fmt.Sprint(r))
			log.WithField("panic", r).Error("speech analysis panicked")
		}
	}()

	if runErr := s.analyze(ctx, a, log); runErr != nil {
		log.WithError(runErr).Error("speech analysis failed")
		if ferr := s.fail(ctx, a.ID, runErr.Error()); ferr != nil {
			return ferr
		}
		return runErr
	}

	log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("speech analysis completed")
	return nil
}

func (s *speechService) analyze(ctx context.Context, a *models.SpeechAnalysis, log *logrus.Entry) error {
	rec, err := s.Speech.GetRecording(ctx, a.TrialID)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	opts := speech.Options{Language: "en"}
	meta, err := s.Speech.GetMeta(ctx, a.TrialID)
	switch {
	case err == nil:
		opts = speech.Options{ExpectedText: meta.TargetText, Language: meta.Language, Category: meta.Category}
		if opts.Language == "" {
			opts.Language = "en"
		}
	case errors.Is(err, utils.ErrNotFound):
		meta = nil
	default:
		return fmt.Errorf("load trial meta: %w", err)
	}

	path, cleanup, err := storage.Fetch(ctx, s.Store, rec.StorageKey, s.TmpDir)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	defer cleanup()

	if s.Analyzer == nil {
		return errors.New("speech analyzer not configured")
	}
	res := s.Analyzer.Process(ctx, path, opts)

	fields := map[string]any{
		"processing_status": models.AnalysisDone,
		"transcript_text":   res.TranscriptText,
		"transcript_json":   jsonColumn(res.Transcript),
		"vad_json":          jsonColumn(res.VAD),
		"features_json":     jsonColumn(res.Features),
		"target_score_json": jsonColumn(res.TargetScore),
		"feedback_json":     jsonColumn(res.Feedback),
		"model_versions":    jsonColumn(res.ModelVersions),
		"completed_at":      s.now(),
	}
	if err := s.Speech.TransitionAnalysis(ctx, a.ID, models.AnalysisRunning, fields); err != nil {
		return fmt.Errorf("store analysis result: %w", err)
	}
	s.notify(ctx, a.ID, models.AnalysisDone, res.Feedback.Summary)

	if meta != nil && meta.TherapistTranscript == "" && res.TranscriptText != "" {
		if err := s.Speech.UpdateMeta(ctx, a.TrialID, map[string]any{
			"therapist_transcript": truncateRunes(res.TranscriptText, maxAutoTranscriptRunes),
		}); err != nil {
			log.WithError(err).Warn("failed to store auto transcript")
		}
	}
	if d := res.Features.DurationMS; d > 0 {
		if err := s.Speech.SetRecordingDuration(ctx, rec.ID, d, res.SampleRate); err != nil {
			log.WithError(err).Warn("failed to store recording duration")
		}
	}
	return nil
}

func (s *speechService) fail(ctx context.Context, analysisID, msg string) error {
	const op = "SpeechService.fail"

	err := s.Speech.TransitionAnalysis(ctx, analysisID, models.AnalysisRunning, map[string]any{
		"processing_status": models.AnalysisFailed,
		"error_message":     msg,
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to record analysis failure", err)
	}
	s.notify(ctx, analysisID, models.AnalysisFailed, msg)
	return nil
}

func jsonColumn(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (s *speechService) LatestAnalysis(ctx context.Context, caller models.Caller, trialID string) (*AnalysisView, error) {
	const op = "SpeechService.LatestAnalysis"

	trial, _, err := s.trialForRead(ctx, op, caller, trialID)
	if err != nil {
		return nil, err
	}
	a, err := s.Speech.LatestAnalysis(ctx, trial.ID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "No analysis found for this trial", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load analysis", err)
	}
	view := &AnalysisView{Analysis: a}
	if meta, err := s.Speech.GetMeta(ctx, trial.ID); err == nil {
		view.Meta = meta
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial meta", err)
	}
	return view, nil
}

// trialForRead loads a trial and its session and checks the caller may see it.
func (s *speechService) trialForRead(ctx context.Context, op string, caller models.Caller, trialID string) (*models.SessionTrial, *models.TherapySession, error) {
	if strings.TrimSpace(trialID) == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "trial_id is required", nil)
	}
	trial, err := s.Trials.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, utils.E(utils.CodeNotFound, op, "Trial not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load trial", err)
	}
	session, err := s.Sessions.Get(ctx, trial.SessionID)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if err := s.Gate.Session(ctx, caller, session); err != nil {
		return nil, nil, err
	}
	return trial, session, nil
}

func (s *speechService) GetAnalysis(ctx context.Context, caller models.Caller, analysisID string) (*models.SpeechAnalysis, error) {
	const op = "SpeechService.GetAnalysis"

	if strings.TrimSpace(analysisID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "analysis_id is required", nil)
	}
	a, err := s.Speech.GetAnalysis(ctx, analysisID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Analysis not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load analysis", err)
	}
	if _, _, err := s.trialForRead(ctx, op, caller, a.TrialID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *speechService) ScoreTrial(ctx context.Context, caller models.Caller, trialID string, in ScoreInput) (*ScoreResult, error) {
	const op = "SpeechService.ScoreTrial"

	var success *bool
	var points int
	switch in.Score {
	case ScoreSuccess:
		success, points = boolPtr(true), 10
	case ScoreFail:
		success, points = boolPtr(false), 0
	case ScorePartial:
		success, points = nil, 5
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "score must be success, fail or partial", nil)
	}

	trial, session, err := s.speechTrial(ctx, op, caller, trialID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Session already completed", nil)
	}

	now := s.now()
	if err := s.Trials.Complete(ctx, trial.ID, trial.Status, success, points, now); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "trial changed while scoring, retry", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to score trial", err)
	}

	fields := map[string]any{
		"therapist_score": string(in.Score),
		"therapist_notes": in.Notes,
	}
	if in.OverrideTranscript != "" {
		fields["therapist_transcript"] = in.OverrideTranscript
	}
	if _, err := s.Speech.GetMeta(ctx, trial.ID); errors.Is(err, utils.ErrNotFound) {
		meta := models.SpeechTrialMeta{
			ID:                  uuid.NewString(),
			TrialID:             trial.ID,
			TherapistScore:      string(in.Score),
			TherapistNotes:      in.Notes,
			TherapistTranscript: in.OverrideTranscript,
			CreatedAt:           now,
		}
		if err := s.Speech.CreateMeta(ctx, []models.SpeechTrialMeta{meta}); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to save therapist score", err)
		}
	} else if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial meta", err)
	} else if err := s.Speech.UpdateMeta(ctx, trial.ID, fields); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save therapist score", err)
	}

	remaining, err := s.Trials.CountUnfinished(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count remaining trials", err)
	}
	if remaining == 0 {
		if _, err := s.Sessions.Complete(ctx, session.ID, now); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to complete session", err)
		}
	}

	return &ScoreResult{
		TrialID:         trial.ID,
		Score:           in.Score,
		Success:         success,
		SessionComplete: remaining == 0,
		RemainingTrials: remaining,
	}, nil
}

func boolPtr(b bool) *bool { return &b }

func (s *speechService) SessionSummary(ctx context.Context, caller models.Caller, sessionID string) (*SpeechSessionSummary, error) {
	const op = "SpeechService.SessionSummary"

	if strings.TrimSpace(sessionID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if err := s.Gate.Session(ctx, caller, session); err != nil {
		return nil, err
	}

	all, err := s.Trials.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list trials", err)
	}

	out := &SpeechSessionSummary{
		SessionID: session.ID,
		Title:     session.Title,
		Status:    session.Status,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		Trials:    []SpeechTrialSummary{},
	}
	for _, t := range all {
		if !models.IsSpeechTrialType(strings.ToLower(t.TrialType)) {
			continue
		}
		if t.Status == models.TrialCompleted {
			out.TotalCompleted++
			switch {
			case t.Success == nil:
				out.Partial++
			case *t.Success:
				out.Correct++
			}
		}

		row := SpeechTrialSummary{
			TrialID: t.ID,
			Status:  t.Status,
			Success: t.Success,
			Score:   t.Score,
			Prompt:  t.Prompt,
		}
		if meta, err := s.Speech.GetMeta(ctx, t.ID); err == nil {
			row.TargetText = meta.TargetText
			row.Transcript = meta.TherapistTranscript
			row.TherapistScore = meta.TherapistScore
			row.PromptLevel = meta.PromptLevel
		} else if !errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInternal, op, "failed to load trial meta", err)
		}
		if a, err := s.Speech.LatestAnalysis(ctx, t.ID); err == nil {
			st := a.Status
			row.AnalysisStatus = &st
			row.FeedbackSummary = feedbackSummary(a.Feedback)
		} else if !errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInternal, op, "failed to load analysis", err)
		}
		out.Trials = append(out.Trials, row)
	}

	out.Failed = out.TotalCompleted - out.Correct - out.Partial
	if out.TotalCompleted > 0 {
		out.Accuracy = utils.Round(float64(out.Correct)/float64(out.TotalCompleted), 3)
	}
	return out, nil
}

func feedbackSummary(raw datatypes.JSON) string {
	if len(raw) == 0 {
		return ""
	}
	var fb struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &fb); err != nil {
		return ""
	}
	return fb.Summary
}
