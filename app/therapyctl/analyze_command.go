package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/yootherapy/config"
	"github.com/yoockh/yootherapy/internal/providers/stt"
	"github.com/yoockh/yootherapy/internal/providers/vad"
	"github.com/yoockh/yootherapy/internal/speech"
)

func newAnalyzeCommand(ctx *cliContext) *cobra.Command {
	var (
		expected string
		language string
		category string
		ffmpeg   string
		backend  string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run the speech pipeline on a local audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}

			settings, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if backend != "" {
				settings.ASRBackend = strings.ToLower(backend)
			}
			if ffmpeg != "" {
				settings.FFmpegPath = ffmpeg
			}
			if language != "" {
				settings.ASRLanguage = language
			}

			log := ctx.logger(cmd)
			asr, err := openASR(cmd, settings, log)
			if err != nil {
				return err
			}
			defer asr.Close()

			opts := []speech.PipelineOption{
				speech.WithNormalizer(speech.NewNormalizer(settings.FFmpegPath)),
				speech.WithDefaultLanguage(settings.ASRLanguage),
			}
			if settings.VADHTTPURL != "" {
				opts = append(opts, speech.WithVAD(vad.NewHTTPVAD(settings.VADHTTPURL, settings.ASRTimeout)))
			}
			res := speech.NewPipeline(asr, log, opts...).Process(cmd.Context(), path, speech.Options{
				ExpectedText: expected,
				Language:     language,
				Category:     category,
			})

			if !ctx.wantTable(cmd) {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&expected, "expected", "", "Expected text to score the transcript against")
	cmd.Flags().StringVar(&language, "language", "", "Transcription language (default ASR_DEFAULT_LANGUAGE)")
	cmd.Flags().StringVar(&category, "category", "", "Activity category, e.g. articulation")
	cmd.Flags().StringVar(&ffmpeg, "ffmpeg", "", "ffmpeg binary (default FFMPEG_BINARY)")
	cmd.Flags().StringVar(&backend, "asr", "", "ASR backend: google, http or none (default ASR_BACKEND)")

	return cmd
}

func openASR(cmd *cobra.Command, s config.Settings, log *logrus.Logger) (stt.Provider, error) {
	switch s.ASRBackend {
	case "google":
		g, err := stt.NewGoogleSpeech(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("google speech: %w", err)
		}
		return g, nil
	case "http":
		if s.ASRHTTPURL == "" {
			return nil, fmt.Errorf("ASR_HTTP_URL is required for --asr http")
		}
		return stt.NewHTTPASR(s.ASRHTTPURL, s.ASRTimeout), nil
	case "none":
		log.Warn("no ASR backend, transcript will be empty")
		return stt.Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown ASR backend %q", s.ASRBackend)
	}
}

func renderResult(res *speech.Result) string {
	f := res.Features
	rows := [][]string{
		{"transcript", res.TranscriptText},
		{"language", res.Transcript.Language},
		{"duration_ms", strconv.Itoa(f.DurationMS)},
		{"speech_time_ms", strconv.Itoa(f.SpeechTimeMS)},
		{"pauses", fmt.Sprintf("%d (%d ms)", f.PauseCount, f.PauseTotalMS)},
		{"pause_ratio", formatFloat(f.PauseRatio)},
		{"words", strconv.Itoa(f.WordCount)},
		{"rate_wpm", formatFloat(f.SpeechRateWPM)},
		{"pitch_hz", formatFloat(f.PitchEstimateHz)},
		{"vad", res.VAD.Model},
		{"asr", res.ModelVersions["asr"]},
	}
	if res.Transcript.Error != "" {
		rows = append(rows, []string{"asr_error", res.Transcript.Error})
	}
	if ts := res.TargetScore; ts != nil {
		rows = append(rows,
			[]string{"keyword_match", formatFloat(ts.KeywordMatch)},
			[]string{"similarity", formatFloat(ts.TextSimilarity)},
			[]string{"missing", strings.Join(ts.MissingKeywords, ", ")},
		)
	}
	rows = append(rows,
		[]string{"severity", res.Feedback.Severity},
		[]string{"summary", res.Feedback.Summary},
	)

	out := renderTable([]string{"Field", "Value"}, rows, nil)
	if len(res.Feedback.Suggestions) == 0 {
		return out
	}
	sugg := make([][]string, 0, len(res.Feedback.Suggestions))
	for _, s := range res.Feedback.Suggestions {
		sugg = append(sugg, []string{s.Type, s.Message, s.Action})
	}
	return out + "\n" + renderTable([]string{"Type", "Message", "Action"}, sugg, nil)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
