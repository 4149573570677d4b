package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/providers/llm"
	"github.com/yoockh/yootherapy/internal/utils"
)

const (
	scenePlaceholder   = "placeholder"
	sceneTargetPrefix  = "scenario_"
	scenePassScore     = 60
	maxSceneImageBytes = 10 << 20
)

type SceneStore interface {
	RandomActive(ctx context.Context) (*models.ScenarioImage, error)
	Get(ctx context.Context, scenarioID string) (*models.ScenarioImage, error)
	SaveResponse(ctx context.Context, resp *models.SceneDescriptionResponse) error
	ScoresForSession(ctx context.Context, sessionID string) ([]int, error)
}

// ImageSource opens stored scenario images by key.
type ImageSource interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SceneDescription shows a picture, takes the child's free-text description
// and has a multimodal model grade it.
type SceneDescription struct {
	store  SceneStore
	stats  TrialStats
	images ImageSource
	model  llm.Provider
	log    *logrus.Logger
}

func NewSceneDescription(store SceneStore, stats TrialStats, images ImageSource, model llm.Provider, log *logrus.Logger) *SceneDescription {
	if model == nil {
		model = llm.Unavailable{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SceneDescription{store: store, stats: stats, images: images, model: model, log: log}
}

func (*SceneDescription) Code() string      { return "scene_description" }
func (*SceneDescription) TrialType() string { return "scene_description" }
func (*SceneDescription) Name() string      { return "Scene Description" }

func (g *SceneDescription) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 1, nil
	}
	total, _, err := g.stats.CompletedStats(ctx, sessionID)
	if err != nil || total == 0 {
		return 1, err
	}
	scores, err := g.store.ScoresForSession(ctx, sessionID)
	if err != nil || len(scores) == 0 {
		return 1, err
	}

	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	switch {
	case avg >= 80 && total >= 2:
		return 3, nil
	case avg >= 60:
		return 2, nil
	default:
		return 1, nil
	}
}

func (g *SceneDescription) BuildTrial(ctx context.Context, level int, _ string) (TrialSpec, error) {
	sc, err := g.store.RandomActive(ctx)
	if errors.Is(err, utils.ErrNotFound) {
		return TrialSpec{
			Level:       level,
			Target:      scenePlaceholder,
			Prompt:      "Please describe what you see in the image.",
			Hint:        "Take your time and describe as much as you can see.",
			TimeLimitMS: 60000,
			Extra:       map[string]any{"scenario_id": nil},
		}, nil
	}
	if err != nil {
		return TrialSpec{}, err
	}

	return TrialSpec{
		Level:       level,
		Target:      sceneTargetPrefix + sc.ID,
		Prompt:      "Look at this picture. Can you tell me what you see?",
		Hint:        "Describe the main things: colors, objects, people, actions.",
		TimeLimitMS: 60000,
		Extra: map[string]any{
			"scenario_id": sc.ID,
			"image_key":   sc.ImageKey,
			"title":       sc.Title,
		},
	}, nil
}

// sceneAssessment is the normalised model verdict.
type sceneAssessment struct {
	LLMScore            int      `json:"llm_score"`
	Feedback            string   `json:"feedback"`
	ClarityScore        int      `json:"clarity_score"`
	CompletenessScore   int      `json:"completeness_score"`
	KeyElementsFound    []string `json:"key_elements_found"`
	Strengths           string   `json:"strengths"`
	AreasForImprovement string   `json:"areas_for_improvement"`
	Error               string   `json:"error,omitempty"`
}

func (g *SceneDescription) Evaluate(ctx context.Context, in EvalInput) (EvalResult, error) {
	var scenarioID, response string
	if in.Submit.Scene != nil {
		scenarioID = strings.TrimSpace(in.Submit.Scene.ScenarioID)
		response = strings.TrimSpace(in.Submit.Scene.ChildResponse)
	} else {
		response = strings.TrimSpace(in.Submit.Clicked)
	}
	if scenarioID == "" && strings.HasPrefix(in.Target, sceneTargetPrefix) {
		scenarioID = strings.TrimPrefix(in.Target, sceneTargetPrefix)
	}

	if scenarioID == "" || response == "" {
		return g.rejected(in, response, "Please provide a description."), nil
	}
	sc, err := g.store.Get(ctx, scenarioID)
	if errors.Is(err, utils.ErrNotFound) {
		return g.rejected(in, response, "Scenario not found."), nil
	}
	if err != nil {
		return EvalResult{}, err
	}

	a := g.assess(ctx, sc, response)
	success := a.LLMScore >= scenePassScore
	feedback := a.Feedback
	if a.Error != "" {
		feedback = fmt.Sprintf("%s [Note: %s]", feedback, a.Error)
	}

	res := EvalResult{
		Success:  success,
		Score:    a.LLMScore / 10,
		Feedback: feedback,
		Details: map[string]any{
			"llm_score":             a.LLMScore,
			"clarity_score":         a.ClarityScore,
			"completeness_score":    a.CompletenessScore,
			"key_elements_found":    a.KeyElementsFound,
			"strengths":             a.Strengths,
			"areas_for_improvement": a.AreasForImprovement,
		},
	}
	res.Telemetry = telemetryFor(g, in, response, success)
	res.Telemetry.Extra = map[string]any{
		"scenario_id":        sc.ID,
		"llm_score":          a.LLMScore,
		"clarity_score":      a.ClarityScore,
		"completeness_score": a.CompletenessScore,
	}

	trialID := in.TrialID
	res.OnCommit = func(ctx context.Context) error {
		if trialID == "" {
			return nil
		}
		return g.store.SaveResponse(ctx, &models.SceneDescriptionResponse{
			ID:                uuid.NewString(),
			TrialID:           trialID,
			ScenarioID:        sc.ID,
			ChildResponse:     response,
			LLMFeedback:       a.Feedback,
			LLMScore:          a.LLMScore,
			KeyElementsFound:  a.KeyElementsFound,
			ClarityScore:      a.ClarityScore,
			CompletenessScore: a.CompletenessScore,
			CreatedAt:         time.Now().UTC(),
		})
	}
	return res, nil
}

func (g *SceneDescription) rejected(in EvalInput, response, feedback string) EvalResult {
	res := EvalResult{
		Feedback: feedback,
		Details: map[string]any{
			"llm_score":          0,
			"clarity_score":      0,
			"completeness_score": 0,
			"key_elements_found": []string{},
		},
	}
	res.Telemetry = telemetryFor(g, in, response, false)
	return res
}

func (g *SceneDescription) assess(ctx context.Context, sc *models.ScenarioImage, response string) sceneAssessment {
	var atts []llm.Attachment
	if img, mime := g.loadImage(ctx, sc); len(img) > 0 {
		atts = append(atts, llm.Attachment{MIMEType: mime, Data: img})
	}

	raw, err := g.model.Generate(ctx, scenePrompt(sc, response), atts...)
	if errors.Is(err, llm.ErrUnavailable) {
		return fallbackAssessment("LLM evaluation not available (model not configured).", "LLM not configured")
	}
	if err != nil {
		g.log.WithFields(logrus.Fields{"scenario_id": sc.ID, "error": err.Error()}).Error("scene evaluation failed")
		return fallbackAssessment("Evaluation error: "+err.Error(), err.Error())
	}
	g.log.WithFields(logrus.Fields{"scenario_id": sc.ID, "model": g.model.Name()}).Debug("scene evaluation received")
	return parseAssessment(raw)
}

func (g *SceneDescription) loadImage(ctx context.Context, sc *models.ScenarioImage) ([]byte, string) {
	if g.images == nil || sc.ImageKey == "" {
		return nil, ""
	}
	rc, err := g.images.Open(ctx, sc.ImageKey)
	if err != nil {
		g.log.WithFields(logrus.Fields{"key": sc.ImageKey, "error": err.Error()}).Warn("scenario image unavailable")
		return nil, ""
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, maxSceneImageBytes))
	if err != nil {
		return nil, ""
	}
	mime := sc.ImageMIME
	if mime == "" {
		mime = guessImageMIME(sc.ImageKey)
	}
	return b, mime
}

func guessImageMIME(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	default:
		return "image/jpeg"
	}
}

func scenePrompt(sc *models.ScenarioImage, response string) string {
	elements := "any relevant details"
	if len(sc.KeyElements) > 0 {
		elements = strings.Join(sc.KeyElements, ", ")
	}
	return fmt.Sprintf(`You are an autism therapy evaluation assistant.

Task:
A child described the image they saw. Evaluate their description in a supportive way.

Expected key elements to include (if present in the image):
%s

Expected reference description (therapist reference):
%s

Child's response:
%q

Return STRICT JSON ONLY (no markdown, no extra text). Use this exact structure:
{
  "clarity_score": <integer 0-10>,
  "completeness_score": <integer 0-10>,
  "overall_score": <integer 0-100>,
  "key_elements_found": [<strings from the expected key elements that the child mentioned>],
  "feedback": "<encouraging, constructive feedback addressed to the child>",
  "strengths": "<what the child did well>",
  "areas_for_improvement": "<gentle suggestions to improve next time>"
}

Rules:
- Be encouraging and supportive for autistic children.
- If image details are unclear, focus on the child's language quality and partial matches.
- Keep feedback short and child-friendly.`, elements, sc.ExpectedDescription, response)
}

type rawSceneVerdict struct {
	ClarityScore        *float64 `json:"clarity_score"`
	CompletenessScore   *float64 `json:"completeness_score"`
	OverallScore        *float64 `json:"overall_score"`
	KeyElementsFound    []string `json:"key_elements_found"`
	Feedback            *string  `json:"feedback"`
	Strengths           string   `json:"strengths"`
	AreasForImprovement string   `json:"areas_for_improvement"`
}

// parseAssessment accepts strict JSON, JSON embedded in prose, or plain
// text which is kept as feedback with neutral scores.
func parseAssessment(raw string) sceneAssessment {
	raw = strings.TrimSpace(raw)
	var v rawSceneVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start || json.Unmarshal([]byte(raw[start:end+1]), &v) != nil {
			return fallbackAssessment(raw, "")
		}
	}

	intOr := func(p *float64, def int) int {
		if p == nil {
			return def
		}
		return int(*p)
	}
	a := sceneAssessment{
		LLMScore:            utils.ClampInt(intOr(v.OverallScore, 50), 0, 100),
		Feedback:            "Feedback provided.",
		ClarityScore:        utils.ClampInt(intOr(v.ClarityScore, 5), 0, 10),
		CompletenessScore:   utils.ClampInt(intOr(v.CompletenessScore, 5), 0, 10),
		KeyElementsFound:    v.KeyElementsFound,
		Strengths:           v.Strengths,
		AreasForImprovement: v.AreasForImprovement,
	}
	if v.Feedback != nil {
		a.Feedback = *v.Feedback
	}
	if a.KeyElementsFound == nil {
		a.KeyElementsFound = []string{}
	}
	return a
}

func fallbackAssessment(feedback, errMsg string) sceneAssessment {
	return sceneAssessment{
		LLMScore:          50,
		Feedback:          feedback,
		ClarityScore:      5,
		CompletenessScore: 5,
		KeyElementsFound:  []string{},
		Error:             errMsg,
	}
}
