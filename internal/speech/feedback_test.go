package speech

import (
	"strings"
	"testing"
)

func types(fb Feedback) []string {
	out := make([]string, 0, len(fb.Suggestions))
	for _, s := range fb.Suggestions {
		out = append(out, s.Type)
	}
	return out
}

func TestGenerateFeedback(t *testing.T) {
	fluent := Features{WordCount: 3, SpeechRateWPM: 120, PauseRatio: 0.2, ResponseLatencyMS: 400}

	tests := []struct {
		name       string
		features   Features
		transcript string
		score      *TargetScore
		category   string
		severity   string
		types      []string
		summary    string
	}{
		{
			name:     "no speech",
			severity: SeverityConcern,
			types:    []string{"no_speech"},
			summary:  "No speech detected",
		},
		{
			name:       "clean match",
			features:   fluent,
			transcript: "big red ball",
			score:      &TargetScore{KeywordMatch: 1, TextSimilarity: 1},
			severity:   SeverityInfo,
			types:      []string{"target_match"},
			summary:    "3 words detected. 120 wpm. 100% target match",
		},
		{
			name:       "short answer to question",
			features:   Features{WordCount: 1, SpeechRateWPM: 90},
			transcript: "dog",
			category:   "wh_questions",
			severity:   SeverityWarning,
			types:      []string{"short_response"},
			summary:    "1 words detected. 90 wpm",
		},
		{
			name:       "slow hesitant low match",
			features:   Features{WordCount: 2, SpeechRateWPM: 40.7, PauseRatio: 0.65, ResponseLatencyMS: 6200},
			transcript: "the cat",
			score:      &TargetScore{KeywordMatch: 0.25, TextSimilarity: 0.3, MissingKeywords: []string{"dog", "runs", "fast"}},
			category:   "sentence_repetition",
			severity:   SeverityConcern,
			types:      []string{"high_pause_ratio", "slow_speech_rate", "long_latency", "low_match", "poor_repetition"},
			summary:    "2 words detected. 40 wpm. 25% target match",
		},
		{
			name:       "partial repetition category alias",
			features:   fluent,
			transcript: "red ball",
			score:      &TargetScore{KeywordMatch: 0.667, TextSimilarity: 0.7, MissingKeywords: []string{"big"}},
			category:   "repetition",
			severity:   SeverityWarning,
			types:      []string{"partial_match", "partial_repetition"},
			summary:    "3 words detected. 120 wpm. 66% target match",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateFeedback(tt.features, tt.transcript, tt.score, tt.category)
			if got.Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", got.Severity, tt.severity)
			}
			if strings.Join(types(got), ",") != strings.Join(tt.types, ",") {
				t.Errorf("types = %v, want %v", types(got), tt.types)
			}
			if got.Summary != tt.summary {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.summary)
			}
		})
	}
}

func TestGenerateFeedbackMessages(t *testing.T) {
	f := Features{WordCount: 2, SpeechRateWPM: 120, ResponseLatencyMS: 6250}
	score := &TargetScore{
		KeywordMatch:    0.5,
		MissingKeywords: []string{"a", "b", "c", "d", "e", "f"},
	}
	got := GenerateFeedback(f, "x y", score, "")

	byType := map[string]Suggestion{}
	for _, s := range got.Suggestions {
		byType[s.Type] = s
	}
	if m := byType["long_latency"].Message; !strings.HasPrefix(m, "Response latency was 6.2s.") {
		t.Errorf("latency message = %q", m)
	}
	if m := byType["partial_match"].Message; m != "Keyword match: 50%. Missing: a, b, c, d, e" {
		t.Errorf("partial message = %q", m)
	}
}
