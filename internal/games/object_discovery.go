package games

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/yoockh/yootherapy/internal/utils"
)

type discoveryCategory struct {
	Key   string
	Label string
	Items []catalogItem
}

var discoveryCategories = []discoveryCategory{
	{"animals", "🐾 Animals", []catalogItem{
		{"dog", "🐕 Dog", ""}, {"cat", "🐱 Cat", ""}, {"fish", "🐟 Fish", ""}, {"bird", "🐦 Bird", ""},
		{"rabbit", "🐰 Rabbit", ""}, {"bear", "🐻 Bear", ""}, {"penguin", "🐧 Penguin", ""}, {"dolphin", "🐬 Dolphin", ""},
	}},
	{"fruits", "🍎 Fruits", []catalogItem{
		{"apple", "🍎 Apple", ""}, {"banana", "🍌 Banana", ""}, {"grape", "🍇 Grape", ""}, {"orange", "🍊 Orange", ""},
		{"cherry", "🍒 Cherry", ""}, {"pear", "🍐 Pear", ""}, {"watermelon", "🍉 Watermelon", ""}, {"strawberry", "🍓 Strawberry", ""},
	}},
	{"vehicles", "🚗 Vehicles", []catalogItem{
		{"car", "🚗 Car", ""}, {"bus", "🚌 Bus", ""}, {"truck", "🚛 Truck", ""}, {"airplane", "✈️ Airplane", ""},
		{"boat", "🚤 Boat", ""}, {"bicycle", "🚲 Bicycle", ""}, {"train", "🚂 Train", ""}, {"helicopter", "🚁 Helicopter", ""},
	}},
	{"shapes", "🔷 Shapes", []catalogItem{
		{"circle", "🔵 Circle", ""}, {"square", "🟦 Square", ""}, {"triangle", "🔺 Triangle", ""},
		{"star", "⭐ Star", ""}, {"heart", "❤️ Heart", ""}, {"diamond", "💎 Diamond", ""},
	}},
	{"food", "🍕 Food", []catalogItem{
		{"pizza", "🍕 Pizza", ""}, {"cake", "🎂 Cake", ""}, {"cookie", "🍪 Cookie", ""},
		{"bread", "🍞 Bread", ""}, {"icecream", "🍨 Ice Cream", ""}, {"candy", "🍬 Candy", ""},
	}},
	{"nature", "🌿 Nature", []catalogItem{
		{"tree", "🌳 Tree", ""}, {"flower", "🌸 Flower", ""}, {"sun", "☀️ Sun", ""},
		{"moon", "🌙 Moon", ""}, {"cloud", "☁️ Cloud", ""}, {"rainbow", "🌈 Rainbow", ""},
	}},
}

// ObjectDiscovery asks the child to select every item of one category
// among distractors from other categories.
type ObjectDiscovery struct {
	stats TrialStats
}

func NewObjectDiscovery(stats TrialStats) *ObjectDiscovery { return &ObjectDiscovery{stats: stats} }

func (*ObjectDiscovery) Code() string      { return "object_discovery" }
func (*ObjectDiscovery) TrialType() string { return "object_discovery" }
func (*ObjectDiscovery) Name() string      { return "Object Discovery" }

var discoveryLadder = ladder{top: 0.80, minTop: 3, mid: 0.60}

func (g *ObjectDiscovery) ComputeLevel(ctx context.Context, sessionID string) (int, error) {
	return ladderLevel(ctx, g.stats, discoveryLadder, sessionID)
}

func (g *ObjectDiscovery) BuildTrial(_ context.Context, level int, _ string) (TrialSpec, error) {
	nCorrect, nDistractorCats := 2, 1
	switch {
	case level >= 3:
		nCorrect, nDistractorCats = 3, 3
	case level == 2:
		nCorrect, nDistractorCats = 3, 2
	}

	ti := rand.IntN(len(discoveryCategories))
	cat := discoveryCategories[ti]
	correct := sample(cat.Items, nCorrect)

	others := make([]discoveryCategory, 0, len(discoveryCategories)-1)
	for i, c := range discoveryCategories {
		if i != ti {
			others = append(others, c)
		}
	}
	all := append([]catalogItem{}, correct...)
	for _, c := range sample(others, nDistractorCats) {
		all = append(all, sample(c.Items, 2)...)
	}
	shuffle(all)

	ids := make([]string, 0, len(correct))
	for _, it := range correct {
		ids = append(ids, it.ID)
	}

	spec := TrialSpec{
		Level:       level,
		Target:      strings.Join(ids, ","),
		Options:     optionsOf(all),
		TimeLimitMS: max(8000, 15000-level*2000),
		Reason:      fmt.Sprintf("Level %d object discovery, category: %s", level, cat.Key),
		Extra: map[string]any{
			"level":          level,
			"category":       cat.Key,
			"category_label": cat.Label,
			"correct_count":  len(ids),
			"game_mode":      "category_select",
		},
	}
	switch {
	case level <= 1:
		spec.Prompt = fmt.Sprintf("Find all the %s! Tap each one you see.", cat.Label)
		spec.Highlight = ids[0]
		spec.Hint = "Look for things that are " + cat.Key
	case level == 2:
		spec.Prompt = fmt.Sprintf("Can you find all the %s?", cat.Label)
		spec.Hint = fmt.Sprintf("How many %s can you spot?", cat.Key)
	default:
		spec.Prompt = fmt.Sprintf("Select all the %s!", cat.Label)
	}
	return spec, nil
}

func (g *ObjectDiscovery) Evaluate(_ context.Context, in EvalInput) (EvalResult, error) {
	clicked := in.Submit.Choice()
	targets := idSet(in.Target)
	picked := idSet(clicked)

	var correct, wrong, missed []string
	for _, id := range orderedIDs(clicked) {
		if targets[id] {
			correct = append(correct, id)
		} else {
			wrong = append(wrong, id)
		}
	}
	for _, id := range orderedIDs(in.Target) {
		if !picked[id] {
			missed = append(missed, id)
		}
	}

	res := EvalResult{}
	if !in.Submit.TimedOut {
		res.Success = len(correct) >= len(targets) && len(wrong) == 0
		if res.Success {
			res.Score = 10
		} else {
			ratio := float64(max(0, len(correct)-len(wrong))) / float64(max(1, len(targets)))
			res.Score = utils.ClampInt(int(math.RoundToEven(ratio*10)), 0, 10)
		}
	}

	switch {
	case res.Success:
		res.Feedback = "🌟 Perfect! You found them all!"
		res.Recommendation, res.Reason = "Increase category complexity or add more distractors.", "Child correctly identified all items."
	case in.Submit.TimedOut:
		res.Feedback = "⏰ Time's up! Let's try again."
		res.Recommendation, res.Reason = "Increase time limit or reduce number of items.", "Child needed more time."
	default:
		if res.Score >= 5 {
			res.Feedback = "👍 Good try! You found some of them."
		} else {
			res.Feedback = "Let's look more carefully next time!"
		}
		res.Recommendation = "Reduce distractors or highlight category label."
		res.Reason = fmt.Sprintf("Child selected %d items, %d correct.", len(picked), len(correct))
	}

	res.Telemetry = telemetryFor(g, in, clicked, res.Success)
	res.Telemetry.Recommendation, res.Telemetry.Reason = res.Recommendation, res.Reason
	res.Telemetry.Extra = map[string]any{
		"correct_picks": correct,
		"wrong_picks":   wrong,
		"missed":        missed,
	}
	res.Details = res.Telemetry.Extra
	return res, nil
}

// orderedIDs splits a comma list, dropping blanks and duplicates.
func orderedIDs(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func idSet(raw string) map[string]bool {
	set := map[string]bool{}
	for _, id := range orderedIDs(raw) {
		set[id] = true
	}
	return set
}
