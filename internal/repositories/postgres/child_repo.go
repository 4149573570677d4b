package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"gorm.io/gorm"
)

type ChildRepository interface {
	// GetActive returns a child profile that is not soft-deleted.
	GetActive(ctx context.Context, childID string) (*models.ChildProfile, error)
	IsAssigned(ctx context.Context, therapistID, childID string) (bool, error)
	ActiveConsentTypes(ctx context.Context, childID string) ([]string, error)
}

type childRepo struct {
	db *gorm.DB
}

func NewChildRepo(db *gorm.DB) ChildRepository {
	return &childRepo{db: db}
}

func (r *childRepo) GetActive(ctx context.Context, childID string) (*models.ChildProfile, error) {
	var c models.ChildProfile
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", childID).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *childRepo) IsAssigned(ctx context.Context, therapistID, childID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.TherapistAssignment{}).
		Where("therapist_id = ? AND child_id = ?", therapistID, childID).
		Count(&n).Error
	return n > 0, err
}

func (r *childRepo) ActiveConsentTypes(ctx context.Context, childID string) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).
		Model(&models.Consent{}).
		Where("child_id = ? AND revoked_at IS NULL", childID).
		Distinct().
		Pluck("consent_type", &types).Error
	return types, err
}
