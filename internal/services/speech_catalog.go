package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
)

const (
	progressTopCategories  = 10
	progressRecentSessions = 5
)

// ActivityInput is the body of an activity create or patch. Nil fields keep
// their current value on patch and take the default on create.
type ActivityInput struct {
	Name            *string         `json:"name"`
	Category        *string         `json:"category"`
	Description     *string         `json:"description"`
	PromptType      *string         `json:"prompt_type"`
	PromptPayload   json.RawMessage `json:"prompt_payload"`
	ExpectedText    *string         `json:"expected_text"`
	Language        *string         `json:"language"`
	DifficultyLevel *int            `json:"difficulty_level"`
	IsActive        *bool           `json:"is_active"`
}

// MetaInput patches a speech trial's annotation. Nil fields are left alone.
type MetaInput struct {
	ActivityID          *string         `json:"activity_id"`
	TargetText          *string         `json:"target_text"`
	Category            *string         `json:"category"`
	Language            *string         `json:"language"`
	Difficulty          *int            `json:"difficulty"`
	PromptLevel         *int            `json:"prompt_level"`
	LatencyMS           *int            `json:"latency_ms"`
	TherapistTranscript *string         `json:"therapist_transcript"`
	TherapistScore      *TherapistScore `json:"therapist_score"`
	TherapistNotes      *string         `json:"therapist_notes"`
}

type RecentSpeechSession struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Status    models.SessionStatus `json:"status"`
	StartedAt *time.Time           `json:"started_at"`
	CreatedAt time.Time            `json:"created_at"`
}

type SpeechProgress struct {
	ChildID                 string                   `json:"child_id"`
	TotalCompleted          int                      `json:"total_completed_speech_trials"`
	AvgScore                float64                  `json:"avg_score"`
	SuccessRate             float64                  `json:"success_rate"`
	TopCategories           []models.CategoryStat    `json:"top_categories"`
	PromptLevelDistribution []models.PromptLevelStat `json:"prompt_level_distribution"`
	RecentSessions          []RecentSpeechSession    `json:"recent_sessions"`
}

func (s *speechService) ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.SpeechActivity, error) {
	const op = "SpeechService.ListActivities"

	if f.DifficultyLevel < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "difficulty_level must be positive", nil)
	}
	rows, err := s.Speech.ListActivities(ctx, f)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list activities", err)
	}
	if rows == nil {
		rows = []models.SpeechActivity{}
	}
	return rows, nil
}

func (s *speechService) GetActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error) {
	const op = "SpeechService.GetActivity"

	a, err := s.Speech.GetActivity(ctx, activityID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Activity not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load activity", err)
	}
	return a, nil
}

func (s *speechService) CreateActivity(ctx context.Context, caller models.Caller, in ActivityInput) (*models.SpeechActivity, error) {
	const op = "SpeechService.CreateActivity"

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "name is required", nil)
	}
	if in.Category == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "category is required", nil)
	}
	fields, err := activityFields(op, in)
	if err != nil {
		return nil, err
	}

	a := &models.SpeechActivity{
		ID:              uuid.NewString(),
		PromptType:      "text",
		PromptPayload:   datatypes.JSON(`{}`),
		Language:        "en",
		DifficultyLevel: 1,
		IsActive:        true,
		CreatedAt:       s.now(),
	}
	applyActivityFields(a, fields)

	if err := s.Speech.CreateActivity(ctx, a); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create activity", err)
	}
	s.Log.WithFields(logrus.Fields{
		"activity_id": a.ID,
		"category":    a.Category,
		"created_by":  caller.ID,
	}).Info("speech activity created")
	return a, nil
}

func (s *speechService) UpdateActivity(ctx context.Context, activityID string, in ActivityInput) (*models.SpeechActivity, error) {
	const op = "SpeechService.UpdateActivity"

	fields, err := activityFields(op, in)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.Speech.UpdateActivity(ctx, activityID, fields); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, utils.E(utils.CodeNotFound, op, "Activity not found", err)
			}
			return nil, utils.E(utils.CodeInternal, op, "failed to update activity", err)
		}
	}
	return s.GetActivity(ctx, activityID)
}

// DeactivateActivity hides an activity from the catalog. Sessions already
// started from it keep their trial meta.
func (s *speechService) DeactivateActivity(ctx context.Context, activityID string) error {
	const op = "SpeechService.DeactivateActivity"

	err := s.Speech.UpdateActivity(ctx, activityID, map[string]any{"is_active": false})
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeNotFound, op, "Activity not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to deactivate activity", err)
	}
	return nil
}

// activityFields validates the set fields of in and keys them by column.
func activityFields(op string, in ActivityInput) (map[string]any, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || utf8.RuneCountInString(name) > 200 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "name must be 1 to 200 characters", nil)
		}
		fields["name"] = name
	}
	if in.Category != nil {
		if !models.IsActivityCategory(*in.Category) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "unknown category "+*in.Category, nil)
		}
		fields["category"] = *in.Category
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.PromptType != nil {
		if !models.IsPromptType(*in.PromptType) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "prompt_type must be text, image, audio or text_image", nil)
		}
		fields["prompt_type"] = *in.PromptType
	}
	if len(in.PromptPayload) > 0 && string(in.PromptPayload) != "null" {
		var obj map[string]any
		if err := json.Unmarshal(in.PromptPayload, &obj); err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "prompt_payload must be a JSON object", err)
		}
		fields["prompt_payload"] = datatypes.JSON(in.PromptPayload)
	}
	if in.ExpectedText != nil {
		if utf8.RuneCountInString(*in.ExpectedText) > 500 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "expected_text must be at most 500 characters", nil)
		}
		fields["expected_text"] = *in.ExpectedText
	}
	if in.Language != nil {
		lang := strings.TrimSpace(*in.Language)
		if lang == "" || len(lang) > 10 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "language must be 1 to 10 characters", nil)
		}
		fields["language"] = lang
	}
	if in.DifficultyLevel != nil {
		if *in.DifficultyLevel < 1 || *in.DifficultyLevel > 5 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "difficulty_level must be between 1 and 5", nil)
		}
		fields["difficulty_level"] = *in.DifficultyLevel
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	return fields, nil
}

func applyActivityFields(a *models.SpeechActivity, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			a.Name = v.(string)
		case "category":
			a.Category = v.(string)
		case "description":
			a.Description = v.(string)
		case "prompt_type":
			a.PromptType = v.(string)
		case "prompt_payload":
			a.PromptPayload = v.(datatypes.JSON)
		case "expected_text":
			a.ExpectedText = v.(string)
		case "language":
			a.Language = v.(string)
		case "difficulty_level":
			a.DifficultyLevel = v.(int)
		case "is_active":
			a.IsActive = v.(bool)
		}
	}
}

// UpsertMeta creates or patches the annotation of a speech trial. Meta is
// frozen once the session is completed, like the trial itself.
func (s *speechService) UpsertMeta(ctx context.Context, caller models.Caller, trialID string, in MetaInput) (*models.SpeechTrialMeta, error) {
	const op = "SpeechService.UpsertMeta"

	trial, session, err := s.speechTrial(ctx, op, caller, trialID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Session already completed", nil)
	}

	fields, err := s.metaFields(ctx, op, in)
	if err != nil {
		return nil, err
	}

	_, err = s.Speech.GetMeta(ctx, trial.ID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		meta := models.SpeechTrialMeta{
			ID:            uuid.NewString(),
			TrialID:       trial.ID,
			Language:      "en",
			Difficulty:    1,
			AttemptNumber: trial.Seq,
			CreatedAt:     s.now(),
		}
		applyMetaFields(&meta, fields)
		if err := s.Speech.CreateMeta(ctx, []models.SpeechTrialMeta{meta}); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to create trial meta", err)
		}
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial meta", err)
	case len(fields) > 0:
		if err := s.Speech.UpdateMeta(ctx, trial.ID, fields); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to update trial meta", err)
		}
	}

	meta, err := s.Speech.GetMeta(ctx, trial.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load trial meta", err)
	}
	return meta, nil
}

func (s *speechService) metaFields(ctx context.Context, op string, in MetaInput) (map[string]any, error) {
	fields := map[string]any{}
	if in.ActivityID != nil {
		if _, err := s.Speech.GetActivity(ctx, *in.ActivityID); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, utils.E(utils.CodeNotFound, op, "Activity not found", err)
			}
			return nil, utils.E(utils.CodeInternal, op, "failed to load activity", err)
		}
		id := *in.ActivityID
		fields["activity_id"] = &id
	}
	if in.TargetText != nil {
		fields["target_text"] = *in.TargetText
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.Language != nil {
		fields["language"] = *in.Language
	}
	if in.Difficulty != nil {
		if *in.Difficulty < 1 || *in.Difficulty > 10 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "difficulty must be between 1 and 10", nil)
		}
		fields["difficulty"] = *in.Difficulty
	}
	if in.PromptLevel != nil {
		if *in.PromptLevel < 0 || *in.PromptLevel > 3 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "prompt_level must be between 0 and 3", nil)
		}
		fields["prompt_level"] = *in.PromptLevel
	}
	if in.LatencyMS != nil {
		if *in.LatencyMS < 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "latency_ms must be non-negative", nil)
		}
		ms := *in.LatencyMS
		fields["latency_ms"] = &ms
	}
	if in.TherapistTranscript != nil {
		fields["therapist_transcript"] = *in.TherapistTranscript
	}
	if in.TherapistScore != nil {
		switch *in.TherapistScore {
		case "", ScoreSuccess, ScoreFail, ScorePartial:
		default:
			return nil, utils.E(utils.CodeInvalidArgument, op, "therapist_score must be success, fail, partial or empty", nil)
		}
		fields["therapist_score"] = string(*in.TherapistScore)
	}
	if in.TherapistNotes != nil {
		fields["therapist_notes"] = *in.TherapistNotes
	}
	return fields, nil
}

func applyMetaFields(m *models.SpeechTrialMeta, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "activity_id":
			m.ActivityID = v.(*string)
		case "target_text":
			m.TargetText = v.(string)
		case "category":
			m.Category = v.(string)
		case "language":
			m.Language = v.(string)
		case "difficulty":
			m.Difficulty = v.(int)
		case "prompt_level":
			m.PromptLevel = v.(int)
		case "latency_ms":
			m.LatencyMS = v.(*int)
		case "therapist_transcript":
			m.TherapistTranscript = v.(string)
		case "therapist_score":
			m.TherapistScore = v.(string)
		case "therapist_notes":
			m.TherapistNotes = v.(string)
		}
	}
}

// ChildProgress aggregates a child's completed speech trials across sessions.
func (s *speechService) ChildProgress(ctx context.Context, caller models.Caller, childID string) (*SpeechProgress, error) {
	const op = "SpeechService.ChildProgress"

	child, err := s.Gate.Child(ctx, caller, childID)
	if err != nil {
		return nil, err
	}

	stats, err := s.Speech.ChildTrialStats(ctx, child.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to aggregate speech trials", err)
	}
	categories, err := s.Speech.ChildCategoryStats(ctx, child.ID, progressTopCategories)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to aggregate categories", err)
	}
	levels, err := s.Speech.ChildPromptLevels(ctx, child.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to aggregate prompt levels", err)
	}
	sessions, err := s.Speech.RecentSpeechSessions(ctx, child.ID, progressRecentSessions)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load recent sessions", err)
	}

	out := &SpeechProgress{
		ChildID:                 child.ID,
		TotalCompleted:          stats.Completed,
		TopCategories:           categories,
		PromptLevelDistribution: levels,
		RecentSessions:          make([]RecentSpeechSession, 0, len(sessions)),
	}
	if stats.AvgScore != nil {
		out.AvgScore = utils.Round(*stats.AvgScore, 2)
	}
	if stats.Completed > 0 {
		out.SuccessRate = utils.Round(float64(stats.Successes)/float64(stats.Completed), 4)
	}
	for i := range out.TopCategories {
		out.TopCategories[i].AvgScore = utils.Round(out.TopCategories[i].AvgScore, 2)
	}
	if out.TopCategories == nil {
		out.TopCategories = []models.CategoryStat{}
	}
	if out.PromptLevelDistribution == nil {
		out.PromptLevelDistribution = []models.PromptLevelStat{}
	}
	for _, sess := range sessions {
		out.RecentSessions = append(out.RecentSessions, RecentSpeechSession{
			ID:        sess.ID,
			Title:     sess.Title,
			Status:    sess.Status,
			StartedAt: sess.StartedAt,
			CreatedAt: sess.CreatedAt,
		})
	}
	return out, nil
}
