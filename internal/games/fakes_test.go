package games

import (
	"context"
	"sync"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/providers/llm"
	"github.com/yoockh/yootherapy/internal/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeHistory keeps observations in insertion order.
type fakeHistory struct {
	mu          sync.Mutex
	obs         []models.Observation
	recentCalls int
}

func (h *fakeHistory) addOutcome(sessionID string, success bool, rt int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs = append(h.obs, models.Observation{
		ID:        primitive.NewObjectID(),
		SessionID: sessionID,
		Kind:      models.KindTrialTelemetry,
		Outcome:   &models.TrialTelemetry{Success: success, ResponseTimeMS: rt},
	})
}

func (h *fakeHistory) addStarted(sessionID, target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.obs = append(h.obs, models.Observation{
		ID:        primitive.NewObjectID(),
		SessionID: sessionID,
		Kind:      models.KindTrialStarted,
		Started:   &models.TrialStarted{Target: target},
	})
}

func (h *fakeHistory) RecentOutcomes(_ context.Context, sessionID string, limit int) ([]models.Observation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recentCalls++
	var out []models.Observation
	for i := len(h.obs) - 1; i >= 0 && len(out) < limit; i-- {
		if o := h.obs[i]; o.SessionID == sessionID && o.Kind == models.KindTrialTelemetry {
			out = append(out, o)
		}
	}
	return out, nil
}

func (h *fakeHistory) latest(sessionID string, kind models.ObservationKind) (*models.Observation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.obs) - 1; i >= 0; i-- {
		if o := h.obs[i]; o.SessionID == sessionID && o.Kind == kind {
			return &o, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (h *fakeHistory) LastStarted(_ context.Context, sessionID string) (*models.Observation, error) {
	return h.latest(sessionID, models.KindTrialStarted)
}

func (h *fakeHistory) LatestOutcomeID(_ context.Context, sessionID string) (string, error) {
	o, err := h.latest(sessionID, models.KindTrialTelemetry)
	if err != nil {
		return "", err
	}
	return o.ID.Hex(), nil
}

type fakeStats struct{ total, correct int }

func (s fakeStats) CompletedStats(context.Context, string) (int, int, error) {
	return s.total, s.correct, nil
}

type fakeScenes struct {
	scenarios map[string]*models.ScenarioImage
	saved     []models.SceneDescriptionResponse
	scores    []int
}

func (s *fakeScenes) RandomActive(context.Context) (*models.ScenarioImage, error) {
	for _, sc := range s.scenarios {
		if sc.IsActive {
			return sc, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (s *fakeScenes) Get(_ context.Context, id string) (*models.ScenarioImage, error) {
	if sc, ok := s.scenarios[id]; ok {
		return sc, nil
	}
	return nil, utils.ErrNotFound
}

func (s *fakeScenes) SaveResponse(_ context.Context, r *models.SceneDescriptionResponse) error {
	s.saved = append(s.saved, *r)
	return nil
}

func (s *fakeScenes) ScoresForSession(context.Context, string) ([]int, error) {
	return s.scores, nil
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
	atts    int
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, atts ...llm.Attachment) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.atts += len(atts)
	return f.answer, f.err
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }
