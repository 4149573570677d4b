package models

import "time"

type SessionStatus string

const (
	SessionDraft      SessionStatus = "draft"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

type SupervisionMode string

const (
	SupervisionTherapist SupervisionMode = "therapist"
	SupervisionCaregiver SupervisionMode = "caregiver"
	SupervisionMixed     SupervisionMode = "mixed"
)

func (m SupervisionMode) Valid() bool {
	switch m {
	case SupervisionTherapist, SupervisionCaregiver, SupervisionMixed:
		return true
	}
	return false
}

type TherapySession struct {
	ID              string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChildID         string          `gorm:"column:child_id;type:uuid;index" json:"child_id"`
	TherapistID     string          `gorm:"column:therapist_id;type:uuid;index" json:"therapist_id"`
	CreatedBy       string          `gorm:"column:created_by;type:uuid" json:"created_by"`
	SupervisionMode SupervisionMode `gorm:"column:supervision_mode;type:text" json:"supervision_mode"`
	Status          SessionStatus   `gorm:"column:status;type:text;index" json:"status"`
	Title           string          `gorm:"column:title;type:text" json:"title"`
	StartedAt       *time.Time      `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	EndedAt         *time.Time      `gorm:"column:ended_at;type:timestamptz" json:"ended_at,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TherapySession) TableName() string { return "therapy_sessions" }

type TrialStatus string

const (
	TrialPlanned   TrialStatus = "planned"
	TrialRunning   TrialStatus = "running"
	TrialCompleted TrialStatus = "completed"
	TrialSkipped   TrialStatus = "skipped"
)

// SessionTrial is one stimulus/response unit. Seq orders trials inside a
// session and is the FIFO key for NextTrial.
type SessionTrial struct {
	ID             string      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID      string      `gorm:"column:session_id;type:uuid;index:idx_trial_session_seq,priority:1" json:"session_id"`
	Seq            int         `gorm:"column:seq;index:idx_trial_session_seq,priority:2" json:"seq"`
	TrialType      string      `gorm:"column:trial_type;type:text" json:"trial_type"`
	TargetBehavior string      `gorm:"column:target_behavior;type:text" json:"target_behavior"`
	Prompt         string      `gorm:"column:prompt;type:text" json:"prompt"`
	Status         TrialStatus `gorm:"column:status;type:text;index" json:"status"`
	Success        *bool       `gorm:"column:success" json:"success"`
	Score          int         `gorm:"column:score" json:"score"`
	StartedAt      *time.Time  `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	EndedAt        *time.Time  `gorm:"column:ended_at;type:timestamptz" json:"ended_at,omitempty"`
	CreatedAt      time.Time   `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (SessionTrial) TableName() string { return "session_trials" }

// TrialCounts aggregates trial rows of one session.
type TrialCounts struct {
	Total     int
	Completed int
	Correct   int
	Partial   int // completed with unknown success
}
