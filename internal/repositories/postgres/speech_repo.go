package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SpeechRepository interface {
	GetActiveActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error)
	GetActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error)
	ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.SpeechActivity, error)
	CreateActivity(ctx context.Context, a *models.SpeechActivity) error
	UpdateActivity(ctx context.Context, activityID string, fields map[string]any) error

	GetMeta(ctx context.Context, trialID string) (*models.SpeechTrialMeta, error)
	CreateMeta(ctx context.Context, metas []models.SpeechTrialMeta) error
	UpdateMeta(ctx context.Context, trialID string, fields map[string]any) error

	UpsertRecording(ctx context.Context, rec *models.SpeechRecording) error
	GetRecording(ctx context.Context, trialID string) (*models.SpeechRecording, error)
	SetRecordingDuration(ctx context.Context, recordingID string, durationMS, sampleRate int) error

	CreateAnalysis(ctx context.Context, a *models.SpeechAnalysis) error
	GetAnalysis(ctx context.Context, analysisID string) (*models.SpeechAnalysis, error)
	LatestAnalysis(ctx context.Context, trialID string) (*models.SpeechAnalysis, error)
	// TransitionAnalysis applies fields only while the analysis is in from.
	TransitionAnalysis(ctx context.Context, analysisID string, from models.AnalysisStatus, fields map[string]any) error

	// Child progress. Only completed speech trials are counted.
	ChildTrialStats(ctx context.Context, childID string) (models.SpeechTrialStats, error)
	ChildCategoryStats(ctx context.Context, childID string, limit int) ([]models.CategoryStat, error)
	ChildPromptLevels(ctx context.Context, childID string) ([]models.PromptLevelStat, error)
	RecentSpeechSessions(ctx context.Context, childID string, limit int) ([]models.TherapySession, error)
}

type speechRepo struct {
	db *gorm.DB
}

func NewSpeechRepo(db *gorm.DB) SpeechRepository {
	return &speechRepo{db: db}
}

func (r *speechRepo) GetActiveActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error) {
	var a models.SpeechActivity
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active", activityID).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}

func (r *speechRepo) GetActivity(ctx context.Context, activityID string) (*models.SpeechActivity, error) {
	var a models.SpeechActivity
	err := r.db.WithContext(ctx).Where("id = ?", activityID).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}

func (r *speechRepo) ListActivities(ctx context.Context, f models.ActivityFilter) ([]models.SpeechActivity, error) {
	q := r.db.WithContext(ctx).Where("is_active")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Language != "" {
		q = q.Where("language = ?", f.Language)
	}
	if f.DifficultyLevel > 0 {
		q = q.Where("difficulty_level = ?", f.DifficultyLevel)
	}
	var rows []models.SpeechActivity
	err := q.Order("category ASC, difficulty_level ASC, name ASC").Find(&rows).Error
	return rows, err
}

func (r *speechRepo) CreateActivity(ctx context.Context, a *models.SpeechActivity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *speechRepo) UpdateActivity(ctx context.Context, activityID string, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.SpeechActivity{}).
		Where("id = ?", activityID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *speechRepo) GetMeta(ctx context.Context, trialID string) (*models.SpeechTrialMeta, error) {
	var m models.SpeechTrialMeta
	err := r.db.WithContext(ctx).Where("trial_id = ?", trialID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &m, err
}

func (r *speechRepo) CreateMeta(ctx context.Context, metas []models.SpeechTrialMeta) error {
	if len(metas) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&metas).Error
}

func (r *speechRepo) UpdateMeta(ctx context.Context, trialID string, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SpeechTrialMeta{}).
		Where("trial_id = ?", trialID).
		Updates(fields).Error
}

func (r *speechRepo) UpsertRecording(ctx context.Context, rec *models.SpeechRecording) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trial_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"uploaded_by", "uploaded_at", "content_type", "size_bytes", "storage_key", "duration_ms", "sample_rate"}),
		}).
		Create(rec).Error
}

func (r *speechRepo) GetRecording(ctx context.Context, trialID string) (*models.SpeechRecording, error) {
	var rec models.SpeechRecording
	err := r.db.WithContext(ctx).Where("trial_id = ?", trialID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &rec, err
}

func (r *speechRepo) SetRecordingDuration(ctx context.Context, recordingID string, durationMS, sampleRate int) error {
	return r.db.WithContext(ctx).
		Model(&models.SpeechRecording{}).
		Where("id = ?", recordingID).
		Updates(map[string]any{"duration_ms": durationMS, "sample_rate": sampleRate}).Error
}

func (r *speechRepo) CreateAnalysis(ctx context.Context, a *models.SpeechAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *speechRepo) GetAnalysis(ctx context.Context, analysisID string) (*models.SpeechAnalysis, error) {
	var a models.SpeechAnalysis
	err := r.db.WithContext(ctx).Where("id = ?", analysisID).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}

func (r *speechRepo) LatestAnalysis(ctx context.Context, trialID string) (*models.SpeechAnalysis, error) {
	var a models.SpeechAnalysis
	err := r.db.WithContext(ctx).
		Where("trial_id = ?", trialID).
		Order("created_at DESC").
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &a, err
}

func (r *speechRepo) TransitionAnalysis(ctx context.Context, analysisID string, from models.AnalysisStatus, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.SpeechAnalysis{}).
		Where("id = ? AND processing_status = ?", analysisID, from).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ErrConflict
	}
	return nil
}

// childSpeechTrials scopes to a child's completed speech trials, aliased t.
func (r *speechRepo) childSpeechTrials(ctx context.Context, childID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("session_trials AS t").
		Joins("JOIN therapy_sessions s ON s.id = t.session_id").
		Where("s.child_id = ? AND t.status = ? AND t.trial_type IN ?", childID, models.TrialCompleted, models.SpeechTrialTypes)
}

func (r *speechRepo) ChildTrialStats(ctx context.Context, childID string) (models.SpeechTrialStats, error) {
	var row models.SpeechTrialStats
	err := r.childSpeechTrials(ctx, childID).
		Select(`COUNT(*) AS completed,
			COUNT(*) FILTER (WHERE t.success IS TRUE) AS successes,
			AVG(t.score) AS avg_score`).
		Scan(&row).Error
	return row, err
}

func (r *speechRepo) ChildCategoryStats(ctx context.Context, childID string, limit int) ([]models.CategoryStat, error) {
	var rows []models.CategoryStat
	err := r.childSpeechTrials(ctx, childID).
		Joins("JOIN speech_trial_meta m ON m.trial_id = t.id").
		Select("m.category AS category, COUNT(*) AS n, COALESCE(AVG(t.score), 0) AS avg_score").
		Group("m.category").
		Order("n DESC, category ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *speechRepo) ChildPromptLevels(ctx context.Context, childID string) ([]models.PromptLevelStat, error) {
	var rows []models.PromptLevelStat
	err := r.childSpeechTrials(ctx, childID).
		Joins("JOIN speech_trial_meta m ON m.trial_id = t.id").
		Select("m.prompt_level AS prompt_level, COUNT(*) AS n").
		Group("m.prompt_level").
		Order("m.prompt_level ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *speechRepo) RecentSpeechSessions(ctx context.Context, childID string, limit int) ([]models.TherapySession, error) {
	var rows []models.TherapySession
	err := r.db.WithContext(ctx).
		Where("child_id = ? AND title LIKE ?", childID, "Speech:%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
