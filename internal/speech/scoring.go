package speech

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/yoockh/yootherapy/internal/utils"
)

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ScoreTarget aligns a transcript with the expected text. It returns nil when
// there is nothing to compare against.
func ScoreTarget(transcript, expected string) *TargetScore {
	if expected == "" {
		return nil
	}
	got := normalizeText(transcript)
	want := normalizeText(expected)
	gotWords := strings.Fields(got)
	wantWords := strings.Fields(want)

	wantSet := make(map[string]struct{}, len(wantWords))
	for _, w := range wantWords {
		wantSet[w] = struct{}{}
	}

	found := []string{}
	extra := []string{}
	foundSet := map[string]struct{}{}
	seen := map[string]struct{}{}
	for _, w := range gotWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := wantSet[w]; ok {
			found = append(found, w)
			foundSet[w] = struct{}{}
		} else {
			extra = append(extra, w)
		}
	}

	missing := []string{}
	listed := map[string]struct{}{}
	for _, w := range wantWords {
		if _, ok := foundSet[w]; ok {
			continue
		}
		if _, dup := listed[w]; dup {
			continue
		}
		listed[w] = struct{}{}
		missing = append(missing, w)
	}

	keyword := 1.0
	if len(wantSet) > 0 {
		keyword = float64(len(found)) / float64(len(wantSet))
	}

	return &TargetScore{
		KeywordMatch:    utils.Round(keyword, 3),
		TextSimilarity:  utils.Round(similarity(got, want), 3),
		WERProxy:        utils.Round(wordErrorRate(wantWords, gotWords), 3),
		ExactMatch:      got == want,
		ExpectedWords:   nonNil(wantWords),
		TranscriptWords: nonNil(gotWords),
		FoundKeywords:   found,
		MissingKeywords: missing,
		ExtraWords:      extra,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// similarity is the difflib matching-blocks ratio over characters.
func similarity(a, b string) float64 {
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// wordErrorRate is word-level edit distance over the reference length.
func wordErrorRate(ref, hyp []string) float64 {
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	prev := make([]int, len(hyp)+1)
	cur := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ref); i++ {
		cur[0] = i
		for j := 1; j <= len(hyp); j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return float64(prev[len(hyp)]) / float64(len(ref))
}
