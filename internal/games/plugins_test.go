package games

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/providers/llm"
)

func TestLadderLevel(t *testing.T) {
	tests := []struct {
		name           string
		l              ladder
		total, correct int
		want           int
	}{
		{"no trials", matchingLadder, 0, 0, 1},
		{"matching top needs three trials", matchingLadder, 2, 2, 2},
		{"matching top", matchingLadder, 3, 3, 3},
		{"matching mid", matchingLadder, 3, 2, 2},
		{"matching low", matchingLadder, 4, 2, 1},
		{"memory top after two", memoryLadder, 2, 2, 3},
		{"discovery mid", discoveryLadder, 5, 3, 2},
		{"problem mid at 0.55", problemLadder, 20, 11, 2},
		{"problem low", problemLadder, 10, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.level(tt.total, tt.correct); got != tt.want {
				t.Fatalf("level(%d, %d) = %d, want %d", tt.total, tt.correct, got, tt.want)
			}
		})
	}
}

func TestBuildTrialWithoutSession(t *testing.T) {
	ctx := context.Background()
	plugins := []Plugin{
		NewJointAttention(NewPolicy(&fakeHistory{}, 8), nil),
		NewMatching(nil),
		NewMemoryMatch(nil),
		NewObjectDiscovery(nil),
		NewProblemSolving(nil),
	}
	for _, p := range plugins {
		t.Run(p.Code(), func(t *testing.T) {
			level, err := p.ComputeLevel(ctx, "")
			if err != nil || level != 1 {
				t.Fatalf("ComputeLevel = %d, %v", level, err)
			}
			spec, err := p.BuildTrial(ctx, level, "")
			if err != nil {
				t.Fatalf("BuildTrial: %v", err)
			}
			if spec.Target == "" || spec.Prompt == "" || spec.TimeLimitMS <= 0 {
				t.Fatalf("incomplete spec: %+v", spec)
			}
			for _, id := range strings.Split(spec.Target, ",") {
				if len(spec.Options) > 0 && !hasOption(spec.Options, id) {
					t.Fatalf("target %q not among options %+v", id, spec.Options)
				}
			}
		})
	}
}

func hasOption(opts []models.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

func TestJointAttentionPromptHierarchy(t *testing.T) {
	ja := NewJointAttention(NewPolicy(&fakeHistory{}, 8), nil)
	ctx := context.Background()

	l1, _ := ja.BuildTrial(ctx, 1, "")
	if l1.Highlight != l1.Target || l1.Prompt != "Look at the "+l1.Target || len(l1.Options) != 4 {
		t.Fatalf("level 1 spec = %+v", l1)
	}
	if l1.Reason != "mode=easy" || l1.TimeLimitMS != 12000 {
		t.Fatalf("level 1 reason/time = %q/%d", l1.Reason, l1.TimeLimitMS)
	}

	l2, _ := ja.BuildTrial(ctx, 2, "")
	if l2.Highlight != "" || l2.Hint != "Fade prompt: speech + text only." {
		t.Fatalf("level 2 spec = %+v", l2)
	}

	l3, _ := ja.BuildTrial(ctx, 3, "")
	if l3.Prompt != "Look where I point" || l3.Highlight != "" {
		t.Fatalf("level 3 spec = %+v", l3)
	}
}

func TestJointAttentionAvoidsPreviousTarget(t *testing.T) {
	h := &fakeHistory{}
	h.addStarted("s1", "car")
	ja := NewJointAttention(NewPolicy(h, 8), h)

	for i := 0; i < 50; i++ {
		spec, err := ja.BuildTrial(context.Background(), 1, "s1")
		if err != nil {
			t.Fatal(err)
		}
		if spec.Target == "car" {
			t.Fatalf("iteration %d repeated previous target", i)
		}
	}
}

func TestJointAttentionEvaluate(t *testing.T) {
	ctx := context.Background()
	h := &fakeHistory{}
	ja := NewJointAttention(NewPolicy(h, 8), h)

	tests := []struct {
		name     string
		in       EvalInput
		success  bool
		score    int
		feedback string
		rec      string
	}{
		{
			name:     "case-insensitive match",
			in:       EvalInput{Target: "Car", Submit: Submission{ClickedID: " CAR ", ResponseTimeMS: 900}, Level: 1},
			success:  true,
			score:    10,
			feedback: "Correct!",
			rec:      "Continue",
		},
		{
			name:     "timed out",
			in:       EvalInput{Target: "car", Submit: Submission{Clicked: "car", TimedOut: true}, Level: 1, SessionID: "s1"},
			feedback: "Timed out",
			rec:      "Recommendation: Increase prompting (Level 1), reduce distractor difficulty, slow pacing.",
		},
		{
			name:     "wrong pick",
			in:       EvalInput{Target: "car", Submit: Submission{Clicked: "cat"}, Level: 1},
			feedback: "Try again",
			rec:      "Continue",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ja.Evaluate(ctx, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if res.Success != tt.success || res.Score != tt.score || res.Feedback != tt.feedback || res.Recommendation != tt.rec {
				t.Fatalf("got %+v", res)
			}
			if res.Telemetry.Success != tt.success || res.Telemetry.Game != "ja" {
				t.Fatalf("telemetry = %+v", res.Telemetry)
			}
		})
	}
}

func TestJointAttentionRecommendsFading(t *testing.T) {
	h := &fakeHistory{}
	for i := 0; i < 4; i++ {
		h.addOutcome("s1", true, 1000)
	}
	ja := NewJointAttention(NewPolicy(h, 8), h)

	res, err := ja.Evaluate(context.Background(), EvalInput{Target: "cup", Submit: Submission{Clicked: "cup"}, Level: 2, SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Recommendation, "Recommendation: Fade prompt") {
		t.Fatalf("recommendation = %q", res.Recommendation)
	}
	if res.Telemetry.DistractorMode != "medium" {
		t.Fatalf("distractor mode = %q", res.Telemetry.DistractorMode)
	}
}

func TestMatchingEvaluate(t *testing.T) {
	g := NewMatching(nil)
	tests := []struct {
		name     string
		sub      Submission
		success  bool
		score    int
		feedback string
	}{
		{"fast", Submission{Clicked: "apple", ResponseTimeMS: 1500}, true, 10, "⚡ Lightning fast! Amazing match!"},
		{"slow", Submission{Clicked: "apple", ResponseTimeMS: 5000}, true, 10, "✅ Correct match! Well done!"},
		{"right but late", Submission{Clicked: "apple", TimedOut: true}, false, 3, "⏰ Time's up! Let's try again."},
		{"wrong", Submission{Clicked: "car"}, false, 0, "Almost! Let's try the next one."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := g.Evaluate(context.Background(), EvalInput{Target: "apple", Submit: tt.sub, Level: 1})
			if res.Success != tt.success || res.Score != tt.score || res.Feedback != tt.feedback {
				t.Fatalf("got success=%v score=%d feedback=%q", res.Success, res.Score, res.Feedback)
			}
		})
	}
}

func TestMemoryMatchEvaluate(t *testing.T) {
	g := NewMemoryMatch(nil)
	tests := []struct {
		name    string
		sub     Submission
		success bool
		score   int
	}{
		{"structured perfect", Submission{Memory: &MemoryResult{PairsFound: 4, Moves: 4, TotalPairs: 4}}, true, 15},
		{"legacy string efficient", Submission{Clicked: "pairs:4,moves:7,total:4"}, true, 12},
		{"many moves", Submission{Clicked: "pairs:4,moves:20,total:4"}, true, 10},
		{"half done", Submission{Clicked: "pairs:2,moves:9,total:4"}, false, 5},
		{"little done", Submission{Clicked: "pairs:1,moves:9,total:4"}, false, 2},
		{"little done timed out", Submission{Clicked: "pairs:1,moves:9,total:4", TimedOut: true}, false, 0},
		{"complete but timed out", Submission{Clicked: "pairs:4,moves:4,total:4", TimedOut: true}, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := g.Evaluate(context.Background(), EvalInput{Target: "4_pairs", Submit: tt.sub, Level: 1})
			if res.Success != tt.success || res.Score != tt.score {
				t.Fatalf("got success=%v score=%d (%s)", res.Success, res.Score, res.Feedback)
			}
		})
	}
}

func TestParseMemoryResult(t *testing.T) {
	got := ParseMemoryResult("pairs:3, moves: 8 ,total:4,junk,bad:x")
	if got != (MemoryResult{PairsFound: 3, Moves: 8, TotalPairs: 4}) {
		t.Fatalf("ParseMemoryResult = %+v", got)
	}
}

func TestMemoryMatchBoard(t *testing.T) {
	spec, _ := NewMemoryMatch(nil).BuildTrial(context.Background(), 2, "")
	if spec.Target != "6_pairs" || spec.TimeLimitMS != 90000 {
		t.Fatalf("spec = %+v", spec)
	}
	cards := spec.Extra["cards"].([]memoryCard)
	if len(cards) != 12 {
		t.Fatalf("cards = %d", len(cards))
	}
	perEmoji := map[string]int{}
	for _, c := range cards {
		perEmoji[c.Emoji]++
	}
	for e, n := range perEmoji {
		if n != 2 {
			t.Fatalf("emoji %s appears %d times", e, n)
		}
	}
}

func TestObjectDiscoveryEvaluate(t *testing.T) {
	g := NewObjectDiscovery(nil)
	tests := []struct {
		name    string
		clicked string
		timeout bool
		success bool
		score   int
	}{
		{"all correct any order", "cat,dog", false, true, 10},
		{"one of two", "dog", false, false, 5},
		{"one right one wrong", "dog,car", false, false, 0},
		{"extra wrong pick", "dog,cat,car", false, false, 5},
		{"timed out", "dog,cat", true, false, 0},
		{"nothing", "", false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := g.Evaluate(context.Background(), EvalInput{
				Target: "dog,cat",
				Submit: Submission{Clicked: tt.clicked, TimedOut: tt.timeout},
				Level:  1,
			})
			if res.Success != tt.success || res.Score != tt.score {
				t.Fatalf("got success=%v score=%d", res.Success, res.Score)
			}
		})
	}
}

func TestProblemSolvingEvaluate(t *testing.T) {
	g := NewProblemSolving(nil)
	res, _ := g.Evaluate(context.Background(), EvalInput{Target: "🔴", Submit: Submission{Clicked: "🔴", ResponseTimeMS: 4000}, Level: 1})
	if !res.Success || res.Score != 10 || res.Feedback != "🌟 Great thinking! You found the pattern!" {
		t.Fatalf("got %+v", res)
	}
	res, _ = g.Evaluate(context.Background(), EvalInput{Target: "🔴", Submit: Submission{Clicked: "🟢"}, Level: 1})
	if res.Success || res.Score != 0 {
		t.Fatalf("got %+v", res)
	}
}

func newSceneFixture(model llm.Provider) (*SceneDescription, *fakeScenes) {
	scenes := &fakeScenes{scenarios: map[string]*models.ScenarioImage{
		"sc1": {ID: "sc1", Title: "Park", ExpectedDescription: "Kids playing in a park", KeyElements: []string{"kids", "ball"}, IsActive: true},
	}}
	return NewSceneDescription(scenes, fakeStats{}, nil, model, nil), scenes
}

func TestSceneDescriptionEvaluate(t *testing.T) {
	model := &fakeLLM{answer: "Sure! {\"clarity_score\": 12, \"completeness_score\": 7, \"overall_score\": 72, \"key_elements_found\": [\"kids\"], \"feedback\": \"Nice!\"}"}
	g, scenes := newSceneFixture(model)

	res, err := g.Evaluate(context.Background(), EvalInput{
		Target:  "scenario_sc1",
		Submit:  Submission{Scene: &SceneResponse{ChildResponse: "kids are playing"}, ResponseTimeMS: 20000},
		Level:   1,
		TrialID: "t1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Score != 7 || res.Feedback != "Nice!" {
		t.Fatalf("got %+v", res)
	}
	if res.Details["clarity_score"] != 10 {
		t.Fatalf("clarity not clamped: %v", res.Details["clarity_score"])
	}
	if !strings.Contains(model.prompts[0], "kids, ball") {
		t.Fatal("prompt should list key elements")
	}
	if len(scenes.saved) != 0 {
		t.Fatal("response must not be saved before commit")
	}
	if err := res.OnCommit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(scenes.saved) != 1 || scenes.saved[0].LLMScore != 72 || scenes.saved[0].TrialID != "t1" {
		t.Fatalf("saved = %+v", scenes.saved)
	}
	if res.Telemetry.ResponseTimeMS != 20000 {
		t.Fatalf("telemetry rt = %d", res.Telemetry.ResponseTimeMS)
	}
}

func TestSceneDescriptionDegrades(t *testing.T) {
	ctx := context.Background()

	g, _ := newSceneFixture(llm.Unavailable{})
	res, _ := g.Evaluate(ctx, EvalInput{Target: "scenario_sc1", Submit: Submission{Clicked: "a dog"}})
	if res.Success || res.Score != 5 || !strings.Contains(res.Feedback, "[Note: LLM not configured]") {
		t.Fatalf("unavailable: %+v", res)
	}

	g, _ = newSceneFixture(&fakeLLM{err: errors.New("quota exceeded")})
	res, _ = g.Evaluate(ctx, EvalInput{Target: "scenario_sc1", Submit: Submission{Clicked: "a dog"}})
	if res.Score != 5 || !strings.Contains(res.Feedback, "quota exceeded") {
		t.Fatalf("error: %+v", res)
	}

	res, _ = g.Evaluate(ctx, EvalInput{Target: "scenario_sc1", Submit: Submission{Clicked: "  "}})
	if res.Success || res.Feedback != "Please provide a description." || res.OnCommit != nil {
		t.Fatalf("empty: %+v", res)
	}

	res, _ = g.Evaluate(ctx, EvalInput{Target: "scenario_missing", Submit: Submission{Clicked: "x"}})
	if res.Feedback != "Scenario not found." {
		t.Fatalf("missing: %+v", res)
	}
}

func TestParseAssessmentPlainText(t *testing.T) {
	a := parseAssessment("great effort")
	if a.LLMScore != 50 || a.Feedback != "great effort" || a.Error != "" {
		t.Fatalf("got %+v", a)
	}
}

func TestSceneDescriptionComputeLevel(t *testing.T) {
	scenes := &fakeScenes{scores: []int{90, 85}}
	g := NewSceneDescription(scenes, fakeStats{total: 2}, nil, nil, nil)
	if lvl, _ := g.ComputeLevel(context.Background(), "s1"); lvl != 3 {
		t.Fatalf("level = %d", lvl)
	}
	scenes.scores = []int{65}
	g = NewSceneDescription(scenes, fakeStats{total: 1}, nil, nil, nil)
	if lvl, _ := g.ComputeLevel(context.Background(), "s1"); lvl != 2 {
		t.Fatalf("level = %d", lvl)
	}
}

func TestSceneDescriptionPlaceholder(t *testing.T) {
	g := NewSceneDescription(&fakeScenes{}, fakeStats{}, nil, nil, nil)
	spec, err := g.BuildTrial(context.Background(), 1, "")
	if err != nil || spec.Target != "placeholder" {
		t.Fatalf("spec = %+v, %v", spec, err)
	}
}
