package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/datatypes"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
)

// memDB backs every fake repository so services see one consistent store.
type memDB struct {
	mu sync.Mutex

	children   map[string]*models.ChildProfile
	assigned   map[[2]string]bool
	consents   map[string][]string
	sessions   map[string]*models.TherapySession
	trials     map[string]*models.SessionTrial
	activities map[string]*models.SpeechActivity
	metas      map[string]*models.SpeechTrialMeta
	recordings map[string]*models.SpeechRecording
	analyses   []*models.SpeechAnalysis
	obs        []models.Observation
}

func newMemDB() *memDB {
	return &memDB{
		children:   map[string]*models.ChildProfile{},
		assigned:   map[[2]string]bool{},
		consents:   map[string][]string{},
		sessions:   map[string]*models.TherapySession{},
		trials:     map[string]*models.SessionTrial{},
		activities: map[string]*models.SpeechActivity{},
		metas:      map[string]*models.SpeechTrialMeta{},
		recordings: map[string]*models.SpeechRecording{},
	}
}

func (db *memDB) addChild(id string, therapists ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.children[id] = &models.ChildProfile{ID: id, DisplayName: "child " + id}
	for _, t := range therapists {
		db.assigned[[2]string{t, id}] = true
	}
}

func (db *memDB) trial(id string) models.SessionTrial {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.trials[id]
}

func (db *memDB) sessionTrials(sessionID string) []models.SessionTrial {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.SessionTrial
	for _, t := range db.trials {
		if t.SessionID == sessionID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (db *memDB) observations(kind models.ObservationKind) []models.Observation {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Observation
	for _, o := range db.obs {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func (db *memDB) observationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.obs)
}

type fakeChildren struct{ *memDB }

func (f fakeChildren) GetActive(_ context.Context, id string) (*models.ChildProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.children[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeChildren) IsAssigned(_ context.Context, therapistID, childID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assigned[[2]string{therapistID, childID}], nil
}

func (f fakeChildren) ActiveConsentTypes(_ context.Context, childID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consents[childID], nil
}

type fakeSessions struct{ *memDB }

func (f fakeSessions) Create(_ context.Context, s *models.TherapySession, trials []models.SessionTrial) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	for i := range trials {
		t := trials[i]
		f.trials[t.ID] = &t
	}
	return nil
}

func (f fakeSessions) Get(_ context.Context, id string) (*models.TherapySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f fakeSessions) Complete(_ context.Context, id string, endedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return false, utils.ErrNotFound
	}
	if s.Status == models.SessionCompleted {
		return false, nil
	}
	s.Status = models.SessionCompleted
	s.EndedAt = &endedAt
	return true, nil
}

type fakeTrials struct{ *memDB }

func (f fakeTrials) Get(_ context.Context, id string) (*models.SessionTrial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trials[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f fakeTrials) NextPlanned(_ context.Context, sessionID string) (*models.SessionTrial, error) {
	for _, t := range f.sessionTrials(sessionID) {
		if t.Status == models.TrialPlanned {
			return &t, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeTrials) ListBySession(_ context.Context, sessionID string) ([]models.SessionTrial, error) {
	return f.sessionTrials(sessionID), nil
}

func (f fakeTrials) MarkRunning(_ context.Context, id, prompt string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trials[id]
	if !ok || t.Status != models.TrialPlanned {
		return utils.ErrConflict
	}
	t.Status = models.TrialRunning
	t.StartedAt = &startedAt
	if prompt != "" {
		t.Prompt = prompt
	}
	return nil
}

func (f fakeTrials) MarkPlanned(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trials[id]
	if !ok || t.Status != models.TrialRunning {
		return utils.ErrConflict
	}
	t.Status = models.TrialPlanned
	t.StartedAt = nil
	return nil
}

func (f fakeTrials) Complete(_ context.Context, id string, from models.TrialStatus, success *bool, score int, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trials[id]
	if !ok || t.Status != from {
		return utils.ErrConflict
	}
	t.Status = models.TrialCompleted
	t.Success = success
	t.Score = score
	t.EndedAt = &endedAt
	return nil
}

func (f fakeTrials) CountUnfinished(_ context.Context, sessionID string) (int, error) {
	n := 0
	for _, t := range f.sessionTrials(sessionID) {
		if t.Status != models.TrialCompleted {
			n++
		}
	}
	return n, nil
}

func (f fakeTrials) Counts(_ context.Context, sessionID string) (models.TrialCounts, error) {
	var c models.TrialCounts
	for _, t := range f.sessionTrials(sessionID) {
		c.Total++
		if t.Status != models.TrialCompleted {
			continue
		}
		c.Completed++
		switch {
		case t.Success == nil:
			c.Partial++
		case *t.Success:
			c.Correct++
		}
	}
	return c, nil
}

func (f fakeTrials) CompletedStats(ctx context.Context, sessionID string) (int, int, error) {
	c, err := f.Counts(ctx, sessionID)
	return c.Completed, c.Correct, err
}

type fakeObservations struct{ *memDB }

func (f fakeObservations) Append(_ context.Context, o *models.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = primitive.NewObjectID()
	o.CreatedAt = time.Now().UTC()
	f.obs = append(f.obs, *o)
	return nil
}

// flakyObservations fails the first failStarts trial_started appends.
type flakyObservations struct {
	fakeObservations
	failStarts int
}

func (f *flakyObservations) Append(ctx context.Context, o *models.Observation) error {
	f.mu.Lock()
	fail := o.Kind == models.KindTrialStarted && f.failStarts > 0
	if fail {
		f.failStarts--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("mongo: connection reset")
	}
	return f.fakeObservations.Append(ctx, o)
}

func (f fakeObservations) latest(match func(models.Observation) bool) (*models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.obs) - 1; i >= 0; i-- {
		if o := f.obs[i]; match(o) {
			return &o, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeObservations) LatestStartedForTrial(_ context.Context, trialID string) (*models.Observation, error) {
	return f.latest(func(o models.Observation) bool {
		return o.TrialID == trialID && o.Kind == models.KindTrialStarted
	})
}

func (f fakeObservations) LastStarted(_ context.Context, sessionID string) (*models.Observation, error) {
	return f.latest(func(o models.Observation) bool {
		return o.SessionID == sessionID && o.Kind == models.KindTrialStarted
	})
}

func (f fakeObservations) RecentOutcomes(_ context.Context, sessionID string, limit int) ([]models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Observation
	for i := len(f.obs) - 1; i >= 0 && len(out) < limit; i-- {
		if o := f.obs[i]; o.SessionID == sessionID && o.Kind == models.KindTrialTelemetry {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f fakeObservations) LatestOutcomeID(_ context.Context, sessionID string) (string, error) {
	o, err := f.latest(func(o models.Observation) bool {
		return o.SessionID == sessionID && o.Kind == models.KindTrialTelemetry
	})
	if err != nil {
		return "", err
	}
	return o.ID.Hex(), nil
}

func (f fakeObservations) Outcomes(_ context.Context, sessionID string) ([]models.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Observation
	for _, o := range f.obs {
		if o.SessionID == sessionID && o.Kind == models.KindTrialTelemetry {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeSpeech struct{ *memDB }

func (f fakeSpeech) GetActiveActivity(_ context.Context, id string) (*models.SpeechActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok || !a.IsActive {
		return nil, utils.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f fakeSpeech) GetActivity(_ context.Context, id string) (*models.SpeechActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f fakeSpeech) ListActivities(_ context.Context, flt models.ActivityFilter) ([]models.SpeechActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SpeechActivity
	for _, a := range f.activities {
		switch {
		case !a.IsActive,
			flt.Category != "" && a.Category != flt.Category,
			flt.Language != "" && a.Language != flt.Language,
			flt.DifficultyLevel > 0 && a.DifficultyLevel != flt.DifficultyLevel:
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeSpeech) CreateActivity(_ context.Context, a *models.SpeechActivity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.activities[a.ID] = &cp
	return nil
}

func (f fakeSpeech) UpdateActivity(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok {
		return utils.ErrNotFound
	}
	applyActivityFields(a, fields)
	return nil
}

// completedSpeechTrials returns the child's completed speech trials; callers hold mu.
func (f fakeSpeech) completedSpeechTrials(childID string) []*models.SessionTrial {
	var out []*models.SessionTrial
	for _, t := range f.trials {
		s, ok := f.sessions[t.SessionID]
		if !ok || s.ChildID != childID || t.Status != models.TrialCompleted || !models.IsSpeechTrialType(t.TrialType) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (f fakeSpeech) ChildTrialStats(_ context.Context, childID string) (models.SpeechTrialStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st models.SpeechTrialStats
	sum := 0
	for _, t := range f.completedSpeechTrials(childID) {
		st.Completed++
		sum += t.Score
		if t.Success != nil && *t.Success {
			st.Successes++
		}
	}
	if st.Completed > 0 {
		avg := float64(sum) / float64(st.Completed)
		st.AvgScore = &avg
	}
	return st, nil
}

func (f fakeSpeech) ChildCategoryStats(_ context.Context, childID string, limit int) ([]models.CategoryStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := map[string]int{}
	counts := map[string]int{}
	for _, t := range f.completedSpeechTrials(childID) {
		m, ok := f.metas[t.ID]
		if !ok {
			continue
		}
		counts[m.Category]++
		sums[m.Category] += t.Score
	}
	var out []models.CategoryStat
	for c, n := range counts {
		out = append(out, models.CategoryStat{Category: c, N: n, AvgScore: float64(sums[c]) / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeSpeech) ChildPromptLevels(_ context.Context, childID string) ([]models.PromptLevelStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[int]int{}
	for _, t := range f.completedSpeechTrials(childID) {
		if m, ok := f.metas[t.ID]; ok {
			counts[m.PromptLevel]++
		}
	}
	var out []models.PromptLevelStat
	for lvl, n := range counts {
		out = append(out, models.PromptLevelStat{PromptLevel: lvl, N: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromptLevel < out[j].PromptLevel })
	return out, nil
}

func (f fakeSpeech) RecentSpeechSessions(_ context.Context, childID string, limit int) ([]models.TherapySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TherapySession
	for _, s := range f.sessions {
		if s.ChildID == childID && strings.HasPrefix(s.Title, "Speech:") {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeSpeech) GetMeta(_ context.Context, trialID string) (*models.SpeechTrialMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metas[trialID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f fakeSpeech) CreateMeta(_ context.Context, metas []models.SpeechTrialMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range metas {
		m := metas[i]
		f.metas[m.TrialID] = &m
	}
	return nil
}

func (f fakeSpeech) UpdateMeta(_ context.Context, trialID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metas[trialID]
	if !ok {
		return utils.ErrNotFound
	}
	applyMetaFields(m, fields)
	return nil
}

func (f fakeSpeech) UpsertRecording(_ context.Context, rec *models.SpeechRecording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.recordings[rec.TrialID] = &cp
	return nil
}

func (f fakeSpeech) GetRecording(_ context.Context, trialID string) (*models.SpeechRecording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recordings[trialID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeSpeech) SetRecordingDuration(_ context.Context, id string, durationMS, sampleRate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recordings {
		if r.ID == id {
			r.DurationMS = &durationMS
			r.SampleRate = &sampleRate
			return nil
		}
	}
	return utils.ErrNotFound
}

func (f fakeSpeech) CreateAnalysis(_ context.Context, a *models.SpeechAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.analyses = append(f.analyses, &cp)
	return nil
}

func (f fakeSpeech) GetAnalysis(_ context.Context, id string) (*models.SpeechAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.analyses {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeSpeech) LatestAnalysis(_ context.Context, trialID string) (*models.SpeechAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.analyses) - 1; i >= 0; i-- {
		if a := f.analyses[i]; a.TrialID == trialID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f fakeSpeech) TransitionAnalysis(_ context.Context, id string, from models.AnalysisStatus, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.analyses {
		if a.ID != id {
			continue
		}
		if a.Status != from {
			return utils.ErrConflict
		}
		applyAnalysisFields(a, fields)
		return nil
	}
	return utils.ErrNotFound
}

func applyAnalysisFields(a *models.SpeechAnalysis, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "processing_status":
			a.Status = v.(models.AnalysisStatus)
		case "error_message":
			a.ErrorMessage = v.(string)
		case "transcript_text":
			a.TranscriptText = v.(string)
		case "feedback_json":
			a.Feedback = v.(datatypes.JSON)
		case "features_json":
			a.Features = v.(datatypes.JSON)
		case "target_score_json":
			a.TargetScore = v.(datatypes.JSON)
		case "completed_at":
			t := v.(time.Time)
			a.CompletedAt = &t
		}
	}
}
