// Package speech turns a recorded child utterance into transcript, timing,
// prosody, target alignment and therapist feedback.
package speech

import "github.com/yoockh/yootherapy/internal/providers/stt"

type Options struct {
	ExpectedText string
	Language     string
	Category     string
}

type VADSegment struct {
	StartMS  int  `json:"start_ms"`
	EndMS    int  `json:"end_ms"`
	IsSpeech bool `json:"is_speech"`
}

type VADResult struct {
	Segments     []VADSegment `json:"segments"`
	SpeechTimeMS int          `json:"speech_time_ms"`
	PauseCount   int          `json:"pause_count"`
	PauseTotalMS int          `json:"pause_total_ms"`
	PauseRatio   float64      `json:"pause_ratio"`
	Model        string       `json:"model"`
}

type TranscriptInfo struct {
	Segments   []stt.Segment `json:"segments"`
	Language   string        `json:"language"`
	Confidence float64       `json:"confidence,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type Features struct {
	DurationMS         int     `json:"duration_ms"`
	SpeechTimeMS       int     `json:"speech_time_ms"`
	PauseCount         int     `json:"pause_count"`
	PauseTotalMS       int     `json:"pause_total_ms"`
	PauseRatio         float64 `json:"pause_ratio"`
	WordCount          int     `json:"word_count"`
	SpeechRateWPM      float64 `json:"estimated_speech_rate_wpm"`
	EnergyMean         float64 `json:"energy_mean"`
	EnergyVar          float64 `json:"energy_var"`
	EnergyRMS          float64 `json:"energy_rms"`
	PitchProxyZCR      float64 `json:"pitch_proxy_zcr"`
	PitchEstimateHz    float64 `json:"pitch_estimate_hz"`
	ResponseLatencyMS  int     `json:"response_latency_ms"`
	SpeechContinuity   float64 `json:"speech_continuity"`
	AvgPauseDurationMS int     `json:"avg_pause_duration_ms"`
}

type TargetScore struct {
	KeywordMatch    float64  `json:"keyword_match"`
	TextSimilarity  float64  `json:"text_similarity"`
	WERProxy        float64  `json:"wer_proxy"`
	ExactMatch      bool     `json:"exact_match"`
	ExpectedWords   []string `json:"expected_words"`
	TranscriptWords []string `json:"transcript_words"`
	FoundKeywords   []string `json:"found_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	ExtraWords      []string `json:"extra_words"`
}

const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityConcern = "concern"
)

type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

type Feedback struct {
	Suggestions []Suggestion `json:"suggestions"`
	Severity    string       `json:"severity"`
	Summary     string       `json:"summary"`
}

// Result is everything one pipeline run produces. TargetScore is nil when
// no expected text was given.
type Result struct {
	TranscriptText string            `json:"transcript_text"`
	Transcript     TranscriptInfo    `json:"transcript_json"`
	VAD            VADResult         `json:"vad_json"`
	Features       Features          `json:"features_json"`
	TargetScore    *TargetScore      `json:"target_score_json"`
	Feedback       Feedback          `json:"feedback_json"`
	ModelVersions  map[string]string `json:"model_versions"`
	SampleRate     int               `json:"sample_rate"`
}
