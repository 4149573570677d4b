package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ObservationKind string

const (
	KindTrialStarted   ObservationKind = "trial_started"
	KindTrialTelemetry ObservationKind = "trial_telemetry"
	KindNote           ObservationKind = "note"
)

// Observation is an append-only telemetry record. Exactly one payload is set,
// matching Kind; free-form notes only carry Tags.
type Observation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID   string             `bson:"session_id" json:"session_id"`
	TrialID     string             `bson:"trial_id,omitempty" json:"trial_id,omitempty"`
	TherapistID string             `bson:"therapist_id" json:"therapist_id"`
	Kind        ObservationKind    `bson:"kind" json:"kind"`

	Started *TrialStarted   `bson:"started,omitempty" json:"started,omitempty"`
	Outcome *TrialTelemetry `bson:"outcome,omitempty" json:"outcome,omitempty"`

	Tags   map[string]any `bson:"tags,omitempty" json:"tags,omitempty"`
	Rating *int           `bson:"rating,omitempty" json:"rating,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Option struct {
	ID    string `bson:"id" json:"id"`
	Label string `bson:"label" json:"label"`
	Image string `bson:"image,omitempty" json:"image,omitempty"`
}

// TrialStarted is what was shown to the child; its Target is the only
// source of truth for evaluation.
type TrialStarted struct {
	Game        string         `bson:"game" json:"game"`
	TrialType   string         `bson:"trial_type" json:"trial_type"`
	Level       int            `bson:"level" json:"level"`
	Target      string         `bson:"target" json:"target"`
	Options     []Option       `bson:"options" json:"options"`
	TimeLimitMS int            `bson:"time_limit_ms" json:"time_limit_ms"`
	Highlight   string         `bson:"highlight,omitempty" json:"highlight,omitempty"`
	Hint        string         `bson:"hint,omitempty" json:"hint,omitempty"`
	Reason      string         `bson:"reason,omitempty" json:"reason,omitempty"`
	Extra       map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// TrialTelemetry is the outcome of one submission; adaptive policies fold it.
type TrialTelemetry struct {
	Game           string         `bson:"game" json:"game"`
	TrialType      string         `bson:"trial_type" json:"trial_type"`
	Level          int            `bson:"level" json:"level"`
	Target         string         `bson:"target" json:"target"`
	Clicked        string         `bson:"clicked" json:"clicked"`
	Success        bool           `bson:"success" json:"success"`
	ResponseTimeMS int            `bson:"response_time_ms" json:"response_time_ms"`
	TimedOut       bool           `bson:"timed_out" json:"timed_out"`
	Recommendation string         `bson:"recommendation,omitempty" json:"recommendation,omitempty"`
	Reason         string         `bson:"reason,omitempty" json:"reason,omitempty"`
	DistractorMode string         `bson:"distractor_mode,omitempty" json:"distractor_mode,omitempty"`
	Extra          map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}
