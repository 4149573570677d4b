package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"gorm.io/gorm"
)

type SessionRepository interface {
	// Create inserts the session and its planned trials atomically.
	Create(ctx context.Context, s *models.TherapySession, trials []models.SessionTrial) error
	Get(ctx context.Context, sessionID string) (*models.TherapySession, error)
	// Complete moves the session to completed; false when it already was.
	Complete(ctx context.Context, sessionID string, endedAt time.Time) (bool, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.TherapySession, trials []models.SessionTrial) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		if len(trials) == 0 {
			return nil
		}
		return tx.Create(&trials).Error
	})
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.TherapySession, error) {
	var s models.TherapySession
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) Complete(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TherapySession{}).
		Where("id = ? AND status <> ?", sessionID, models.SessionCompleted).
		Updates(map[string]any{
			"status":   models.SessionCompleted,
			"ended_at": endedAt.UTC(),
		})
	return res.RowsAffected == 1, res.Error
}
