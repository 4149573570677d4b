package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"gorm.io/gorm"
)

type ScenarioRepository interface {
	RandomActive(ctx context.Context) (*models.ScenarioImage, error)
	Get(ctx context.Context, scenarioID string) (*models.ScenarioImage, error)
	SaveResponse(ctx context.Context, resp *models.SceneDescriptionResponse) error
	// ScoresForSession returns LLM scores of responses attached to the session's trials.
	ScoresForSession(ctx context.Context, sessionID string) ([]int, error)
}

type scenarioRepo struct {
	db *gorm.DB
}

func NewScenarioRepo(db *gorm.DB) ScenarioRepository {
	return &scenarioRepo{db: db}
}

func (r *scenarioRepo) RandomActive(ctx context.Context) (*models.ScenarioImage, error) {
	var s models.ScenarioImage
	err := r.db.WithContext(ctx).
		Where("is_active").
		Order("random()").
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *scenarioRepo) Get(ctx context.Context, scenarioID string) (*models.ScenarioImage, error) {
	var s models.ScenarioImage
	err := r.db.WithContext(ctx).Where("id = ?", scenarioID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *scenarioRepo) SaveResponse(ctx context.Context, resp *models.SceneDescriptionResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *scenarioRepo) ScoresForSession(ctx context.Context, sessionID string) ([]int, error) {
	var scores []int
	err := r.db.WithContext(ctx).
		Model(&models.SceneDescriptionResponse{}).
		Joins("JOIN session_trials t ON t.id = scene_description_responses.trial_id").
		Where("t.session_id = ?", sessionID).
		Order("scene_description_responses.created_at ASC").
		Pluck("scene_description_responses.llm_score", &scores).Error
	return scores, err
}
