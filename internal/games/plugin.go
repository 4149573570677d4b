// Package games holds the adaptive game plugins and the registry the trial
// engine dispatches to.
package games

import (
	"context"
	"strconv"
	"strings"

	"github.com/yoockh/yootherapy/internal/models"
)

// Plugin is the capability contract every game implements.
//
// ComputeLevel must only read history. BuildTrial accepts an empty session
// id and then returns an easy default trial. Evaluate never writes; side
// effects that must follow the trial commit go into EvalResult.OnCommit.
type Plugin interface {
	Code() string
	TrialType() string
	Name() string
	ComputeLevel(ctx context.Context, sessionID string) (int, error)
	BuildTrial(ctx context.Context, level int, sessionID string) (TrialSpec, error)
	Evaluate(ctx context.Context, in EvalInput) (EvalResult, error)
}

type TrialSpec struct {
	Level       int             `json:"level"`
	Prompt      string          `json:"prompt"`
	Options     []models.Option `json:"options"`
	Target      string          `json:"target"`
	Highlight   string          `json:"highlight,omitempty"`
	Hint        string          `json:"ai_hint,omitempty"`
	Reason      string          `json:"ai_reason,omitempty"`
	TimeLimitMS int             `json:"time_limit_ms"`
	Extra       map[string]any  `json:"extra,omitempty"`
}

type MemoryResult struct {
	PairsFound int `json:"pairs_found"`
	Moves      int `json:"moves"`
	TotalPairs int `json:"total_pairs"`
}

type SceneResponse struct {
	ScenarioID    string `json:"scenario_id"`
	ChildResponse string `json:"child_response"`
}

// Submission is what the client sends for a running trial. Memory and Scene
// are per-game payloads; other games only read the common fields.
type Submission struct {
	Clicked        string         `json:"clicked"`
	ClickedID      string         `json:"clicked_id"`
	ResponseTimeMS int            `json:"response_time_ms"`
	TimedOut       bool           `json:"timed_out"`
	Memory         *MemoryResult  `json:"memory,omitempty"`
	Scene          *SceneResponse `json:"scene,omitempty"`
}

// Choice is the clicked id, preferring ClickedID.
func (s Submission) Choice() string {
	if s.ClickedID != "" {
		return s.ClickedID
	}
	return s.Clicked
}

// ParseMemoryResult reads the legacy "pairs:3,moves:8,total:4" form.
// Unknown keys and malformed numbers are ignored.
func ParseMemoryResult(raw string) MemoryResult {
	var m MemoryResult
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(k) {
		case "pairs":
			m.PairsFound = n
		case "moves":
			m.Moves = n
		case "total":
			m.TotalPairs = n
		}
	}
	return m
}

type EvalInput struct {
	Target    string
	Submit    Submission
	Level     int
	SessionID string // empty without session context
	TrialID   string
}

type EvalResult struct {
	Success        bool
	Score          int
	Feedback       string
	Recommendation string
	Reason         string
	Telemetry      models.TrialTelemetry
	Details        map[string]any

	// OnCommit runs after the trial row reached completed.
	OnCommit func(ctx context.Context) error
}

// History is the read side of the telemetry store used by adaptive policies.
type History interface {
	RecentOutcomes(ctx context.Context, sessionID string, limit int) ([]models.Observation, error)
	LastStarted(ctx context.Context, sessionID string) (*models.Observation, error)
	LatestOutcomeID(ctx context.Context, sessionID string) (string, error)
}

// TrialStats counts completed trials of a session and how many succeeded.
type TrialStats interface {
	CompletedStats(ctx context.Context, sessionID string) (total, correct int, err error)
}

func telemetryFor(p Plugin, in EvalInput, clicked string, success bool) models.TrialTelemetry {
	return models.TrialTelemetry{
		Game:           p.Code(),
		TrialType:      p.TrialType(),
		Level:          in.Level,
		Target:         in.Target,
		Clicked:        clicked,
		Success:        success,
		ResponseTimeMS: max(in.Submit.ResponseTimeMS, 0),
		TimedOut:       in.Submit.TimedOut,
	}
}
