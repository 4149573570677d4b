package models

import (
	"time"

	"gorm.io/datatypes"
)

// Speech trials are ordinary SessionTrials with one of these types.
const (
	TrialTypeSpeechTherapy = "speech_therapy"
	TrialTypeSpeech        = "speech"
	TrialTypeSpeechPrompt  = "speech_prompt"
)

// SpeechTrialTypes lists every trial type counted as speech work.
var SpeechTrialTypes = []string{TrialTypeSpeechPrompt, TrialTypeSpeech, TrialTypeSpeechTherapy}

func IsSpeechTrialType(t string) bool {
	switch t {
	case TrialTypeSpeechTherapy, TrialTypeSpeech, TrialTypeSpeechPrompt:
		return true
	}
	return false
}

type SpeechActivity struct {
	ID              string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string         `gorm:"column:name;type:text" json:"name"`
	Category        string         `gorm:"column:category;type:text;index" json:"category"`
	Description     string         `gorm:"column:description;type:text" json:"description"`
	PromptType      string         `gorm:"column:prompt_type;type:text" json:"prompt_type"` // text|image|audio|text_image
	PromptPayload   datatypes.JSON `gorm:"column:prompt_payload;type:jsonb" json:"prompt_payload"`
	ExpectedText    string         `gorm:"column:expected_text;type:text" json:"expected_text"`
	Language        string         `gorm:"column:language;type:text" json:"language"`
	DifficultyLevel int            `gorm:"column:difficulty_level" json:"difficulty_level"`
	IsActive        bool           `gorm:"column:is_active;index" json:"is_active"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (SpeechActivity) TableName() string { return "speech_activities" }

const (
	ActivityRepetition     = "repetition"
	ActivityPictureNaming  = "picture_naming"
	ActivityQuestions      = "questions"
	ActivityStoryRetell    = "story_retell"
	ActivityCategoryNaming = "category_naming"
)

func IsActivityCategory(c string) bool {
	switch c {
	case ActivityRepetition, ActivityPictureNaming, ActivityQuestions, ActivityStoryRetell, ActivityCategoryNaming:
		return true
	}
	return false
}

func IsPromptType(t string) bool {
	switch t {
	case "text", "image", "audio", "text_image":
		return true
	}
	return false
}

// ActivityFilter narrows the active catalog. Zero fields match everything.
type ActivityFilter struct {
	Category        string
	Language        string
	DifficultyLevel int
}

// SpeechTrialStats aggregates a child's completed speech trials.
type SpeechTrialStats struct {
	Completed int
	Successes int
	AvgScore  *float64
}

type CategoryStat struct {
	Category string  `json:"category"`
	N        int     `json:"n"`
	AvgScore float64 `json:"avg_score"`
}

type PromptLevelStat struct {
	PromptLevel int `json:"prompt_level"`
	N           int `json:"n"`
}

type SpeechTrialMeta struct {
	ID                  string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrialID             string    `gorm:"column:trial_id;type:uuid;uniqueIndex" json:"trial_id"`
	ActivityID          *string   `gorm:"column:activity_id;type:uuid;index" json:"activity_id,omitempty"`
	TargetText          string    `gorm:"column:target_text;type:text" json:"target_text"`
	Category            string    `gorm:"column:category;type:text" json:"category"`
	Language            string    `gorm:"column:language;type:text" json:"language"`
	Difficulty          int       `gorm:"column:difficulty" json:"difficulty"`
	PromptLevel         int       `gorm:"column:prompt_level" json:"prompt_level"` // 0 full model .. 3 independent
	AttemptNumber       int       `gorm:"column:attempt_number" json:"attempt_number"`
	LatencyMS           *int      `gorm:"column:latency_ms" json:"latency_ms,omitempty"`
	TherapistTranscript string    `gorm:"column:therapist_transcript;type:text" json:"therapist_transcript"`
	TherapistScore      string    `gorm:"column:therapist_score;type:text" json:"therapist_score"`
	TherapistNotes      string    `gorm:"column:therapist_notes;type:text" json:"therapist_notes"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (SpeechTrialMeta) TableName() string { return "speech_trial_meta" }

type SpeechRecording struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrialID     string    `gorm:"column:trial_id;type:uuid;uniqueIndex" json:"trial_id"`
	UploadedBy  string    `gorm:"column:uploaded_by;type:uuid" json:"uploaded_by"`
	UploadedAt  time.Time `gorm:"column:uploaded_at;type:timestamptz;index" json:"uploaded_at"`
	ContentType string    `gorm:"column:content_type;type:text" json:"content_type"`
	SizeBytes   int64     `gorm:"column:size_bytes" json:"size_bytes"`
	DurationMS  *int      `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	SampleRate  *int      `gorm:"column:sample_rate" json:"sample_rate,omitempty"`
	StorageKey  string    `gorm:"column:storage_key;type:text" json:"storage_key"`
}

func (SpeechRecording) TableName() string { return "speech_recordings" }

type AnalysisStatus string

const (
	AnalysisQueued  AnalysisStatus = "queued"
	AnalysisRunning AnalysisStatus = "running"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisDone || s == AnalysisFailed
}

type SpeechAnalysis struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrialID        string         `gorm:"column:trial_id;type:uuid;index:idx_analysis_trial_created,priority:1" json:"trial_id"`
	RecordingID    *string        `gorm:"column:recording_id;type:uuid" json:"recording_id,omitempty"`
	Status         AnalysisStatus `gorm:"column:processing_status;type:text;index" json:"processing_status"`
	ErrorMessage   string         `gorm:"column:error_message;type:text" json:"error_message"`
	TranscriptText string         `gorm:"column:transcript_text;type:text" json:"transcript_text"`
	Transcript     datatypes.JSON `gorm:"column:transcript_json;type:jsonb" json:"transcript_json"`
	VAD            datatypes.JSON `gorm:"column:vad_json;type:jsonb" json:"vad_json"`
	Features       datatypes.JSON `gorm:"column:features_json;type:jsonb" json:"features_json"`
	TargetScore    datatypes.JSON `gorm:"column:target_score_json;type:jsonb" json:"target_score_json"`
	Feedback       datatypes.JSON `gorm:"column:feedback_json;type:jsonb" json:"feedback_json"`
	ModelVersions  datatypes.JSON `gorm:"column:model_versions;type:jsonb" json:"model_versions"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz;index:idx_analysis_trial_created,priority:2" json:"created_at"`
	CompletedAt    *time.Time     `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
}

func (SpeechAnalysis) TableName() string { return "speech_analyses" }
