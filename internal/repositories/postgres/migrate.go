package postgres

import (
	"github.com/yoockh/yootherapy/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates every relational table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ChildProfile{},
		&models.TherapistAssignment{},
		&models.Consent{},
		&models.TherapySession{},
		&models.SessionTrial{},
		&models.SpeechActivity{},
		&models.SpeechTrialMeta{},
		&models.SpeechRecording{},
		&models.SpeechAnalysis{},
		&models.ScenarioImage{},
		&models.SceneDescriptionResponse{},
	)
}
