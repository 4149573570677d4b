package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"gorm.io/gorm"
)

type TrialRepository interface {
	Get(ctx context.Context, trialID string) (*models.SessionTrial, error)
	// NextPlanned returns the oldest planned trial by Seq.
	NextPlanned(ctx context.Context, sessionID string) (*models.SessionTrial, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionTrial, error)

	// MarkRunning, MarkPlanned and Complete are compare-and-swap transitions;
	// they return utils.ErrConflict when the row is no longer in the expected state.
	MarkRunning(ctx context.Context, trialID, prompt string, startedAt time.Time) error
	// MarkPlanned moves a running trial back to planned and clears started_at.
	MarkPlanned(ctx context.Context, trialID string) error
	Complete(ctx context.Context, trialID string, from models.TrialStatus, success *bool, score int, endedAt time.Time) error

	CountUnfinished(ctx context.Context, sessionID string) (int, error)
	Counts(ctx context.Context, sessionID string) (models.TrialCounts, error)
	CompletedStats(ctx context.Context, sessionID string) (total, correct int, err error)
}

type trialRepo struct {
	db *gorm.DB
}

func NewTrialRepo(db *gorm.DB) TrialRepository {
	return &trialRepo{db: db}
}

func (r *trialRepo) Get(ctx context.Context, trialID string) (*models.SessionTrial, error) {
	var t models.SessionTrial
	err := r.db.WithContext(ctx).Where("id = ?", trialID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &t, err
}

func (r *trialRepo) NextPlanned(ctx context.Context, sessionID string) (*models.SessionTrial, error) {
	var t models.SessionTrial
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, models.TrialPlanned).
		Order("seq ASC").
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &t, err
}

func (r *trialRepo) ListBySession(ctx context.Context, sessionID string) ([]models.SessionTrial, error) {
	var rows []models.SessionTrial
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}

func (r *trialRepo) MarkRunning(ctx context.Context, trialID, prompt string, startedAt time.Time) error {
	updates := map[string]any{
		"status":     models.TrialRunning,
		"started_at": startedAt.UTC(),
	}
	if prompt != "" {
		updates["prompt"] = prompt
	}
	res := r.db.WithContext(ctx).
		Model(&models.SessionTrial{}).
		Where("id = ? AND status = ?", trialID, models.TrialPlanned).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ErrConflict
	}
	return nil
}

func (r *trialRepo) MarkPlanned(ctx context.Context, trialID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.SessionTrial{}).
		Where("id = ? AND status = ?", trialID, models.TrialRunning).
		Updates(map[string]any{
			"status":     models.TrialPlanned,
			"started_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ErrConflict
	}
	return nil
}

func (r *trialRepo) Complete(ctx context.Context, trialID string, from models.TrialStatus, success *bool, score int, endedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.SessionTrial{}).
		Where("id = ? AND status = ?", trialID, from).
		Updates(map[string]any{
			"status":   models.TrialCompleted,
			"success":  success,
			"score":    score,
			"ended_at": endedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return utils.ErrConflict
	}
	return nil
}

func (r *trialRepo) CountUnfinished(ctx context.Context, sessionID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.SessionTrial{}).
		Where("session_id = ? AND status <> ?", sessionID, models.TrialCompleted).
		Count(&n).Error
	return int(n), err
}

func (r *trialRepo) Counts(ctx context.Context, sessionID string) (models.TrialCounts, error) {
	var row struct {
		Total     int
		Completed int
		Correct   int
		Partial   int
	}
	err := r.db.WithContext(ctx).
		Model(&models.SessionTrial{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = ?) AS completed,
			COUNT(*) FILTER (WHERE status = ? AND success IS TRUE) AS correct,
			COUNT(*) FILTER (WHERE status = ? AND success IS NULL) AS partial`,
			models.TrialCompleted, models.TrialCompleted, models.TrialCompleted).
		Where("session_id = ?", sessionID).
		Scan(&row).Error
	return models.TrialCounts(row), err
}

func (r *trialRepo) CompletedStats(ctx context.Context, sessionID string) (int, int, error) {
	c, err := r.Counts(ctx, sessionID)
	return c.Completed, c.Correct, err
}
