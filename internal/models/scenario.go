package models

import (
	"time"

	"github.com/lib/pq"
)

type ScenarioImage struct {
	ID                  string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title               string         `gorm:"column:title;type:text" json:"title"`
	ImageKey            string         `gorm:"column:image_key;type:text" json:"image_key"`
	ImageMIME           string         `gorm:"column:image_mime;type:text" json:"image_mime"`
	ExpectedDescription string         `gorm:"column:expected_description;type:text" json:"expected_description"`
	KeyElements         pq.StringArray `gorm:"column:key_elements;type:text[]" json:"key_elements"`
	IsActive            bool           `gorm:"column:is_active;index" json:"is_active"`
	CreatedAt           time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (ScenarioImage) TableName() string { return "scenario_images" }

type SceneDescriptionResponse struct {
	ID                string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrialID           string         `gorm:"column:trial_id;type:uuid;index" json:"trial_id"`
	ScenarioID        string         `gorm:"column:scenario_id;type:uuid;index" json:"scenario_id"`
	ChildResponse     string         `gorm:"column:child_response;type:text" json:"child_response"`
	LLMFeedback       string         `gorm:"column:llm_feedback;type:text" json:"llm_feedback"`
	LLMScore          int            `gorm:"column:llm_score" json:"llm_score"`
	KeyElementsFound  pq.StringArray `gorm:"column:key_elements_found;type:text[]" json:"key_elements_found"`
	ClarityScore      int            `gorm:"column:clarity_score" json:"clarity_score"`
	CompletenessScore int            `gorm:"column:completeness_score" json:"completeness_score"`
	CreatedAt         time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (SceneDescriptionResponse) TableName() string { return "scene_description_responses" }
