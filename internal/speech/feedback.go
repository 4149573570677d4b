package speech

import (
	"fmt"
	"strings"
)

var (
	questionCategories = map[string]bool{
		"wh_questions":     true,
		"yes_no_questions": true,
		"questions":        true,
	}
	repetitionCategories = map[string]bool{
		"word_repetition":     true,
		"phrase_repetition":   true,
		"sentence_repetition": true,
		"repetition":          true,
	}
)

// GenerateFeedback applies the therapist rule set to one analysis. score is
// nil when the attempt had no expected text.
func GenerateFeedback(f Features, transcript string, score *TargetScore, category string) Feedback {
	severity := SeverityInfo
	warn := func() {
		if severity == SeverityInfo {
			severity = SeverityWarning
		}
	}
	var out []Suggestion
	add := func(typ, msg, action string) {
		out = append(out, Suggestion{Type: typ, Message: msg, Action: action})
	}

	if strings.TrimSpace(transcript) == "" || f.WordCount == 0 {
		add("no_speech",
			"No speech detected. Consider modeling the response for the child and using a full verbal prompt (Level 0).",
			"Increase support to Level 0 (full model). Say the target word/phrase, then ask the child to repeat.")
		return Feedback{Suggestions: out, Severity: SeverityConcern, Summary: "No speech detected"}
	}

	if questionCategories[category] && f.WordCount < 3 {
		add("short_response",
			fmt.Sprintf("Response was only %d word(s). Encourage longer answers.", f.WordCount),
			"Model a sentence starter. For example: 'It is a ___' or 'The ___ is ___'.")
		warn()
	}

	if f.PauseRatio > 0.6 {
		add("high_pause_ratio",
			fmt.Sprintf("Speech had %d%% silence between words. Child may need extra processing time.", pct(f.PauseRatio)),
			"Try shorter prompts, allow extra wait time, or provide a visual cue alongside the verbal prompt.")
		warn()
	}

	if f.SpeechRateWPM > 0 && f.SpeechRateWPM < 60 {
		add("slow_speech_rate",
			fmt.Sprintf("Speech rate is approximately %d words/minute (typical: 100-150 wpm).", int(f.SpeechRateWPM)),
			"This is normal for practice. If persistent, consider speech pacing exercises.")
	}

	if f.ResponseLatencyMS > 5000 {
		add("long_latency",
			fmt.Sprintf("Response latency was %.1fs. Child needed extra time to begin speaking.", float64(f.ResponseLatencyMS)/1000),
			"Ensure prompt is understood. Try adding a gesture or visual cue before the verbal prompt.")
	}

	if score != nil {
		missing := strings.Join(score.MissingKeywords[:min(5, len(score.MissingKeywords))], ", ")
		switch km := score.KeywordMatch; {
		case km == 1.0:
			add("target_match",
				"All target words were produced correctly! ✅",
				"Consider increasing difficulty or reducing prompt level.")
		case km >= 0.5:
			add("partial_match",
				fmt.Sprintf("Keyword match: %d%%. Missing: %s", pct(km), missing),
				"Repeat the activity with partial support (Level 1-2). Emphasize the missing words.")
			warn()
		default:
			add("low_match",
				fmt.Sprintf("Only %d%% of target words produced. Missing: %s", pct(km), missing),
				"Increase support (Level 0-1). Model the full response, then have the child repeat with you.")
			severity = SeverityConcern
		}

		if repetitionCategories[category] {
			switch sim := score.TextSimilarity; {
			case sim >= 0.85:
				add("good_repetition",
					fmt.Sprintf("Good repetition! Similarity: %d%%.", pct(sim)),
					"Ready to try the next difficulty level or reduce prompt support.")
			case sim >= 0.5:
				add("partial_repetition",
					fmt.Sprintf("Partial repetition (%d%% match).", pct(sim)),
					"Try breaking the phrase into smaller chunks. Repeat each word separately, then combine.")
			default:
				add("poor_repetition",
					fmt.Sprintf("Low repetition accuracy (%d%%).", pct(sim)),
					"Simplify the target. Use a shorter word or add visual support.")
			}
		}
	}

	parts := []string{fmt.Sprintf("%d words detected", f.WordCount)}
	if f.SpeechRateWPM > 0 {
		parts = append(parts, fmt.Sprintf("%d wpm", int(f.SpeechRateWPM)))
	}
	if score != nil {
		parts = append(parts, fmt.Sprintf("%d%% target match", pct(score.KeywordMatch)))
	}

	if out == nil {
		out = []Suggestion{}
	}
	return Feedback{Suggestions: out, Severity: severity, Summary: strings.Join(parts, ". ")}
}

// pct truncates a 0..1 ratio to a whole percentage.
func pct(v float64) int { return int(v * 100) }
