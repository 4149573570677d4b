package speech

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/yootherapy/internal/providers/stt"
)

// Pipeline runs normalize, decode, VAD and ASR, then derives features,
// target alignment and feedback. VAD and ASR run concurrently.
type Pipeline struct {
	norm *Normalizer
	vad  VADBackend
	asr  stt.Provider
	lang string
	log  *logrus.Logger
}

type PipelineOption func(*Pipeline)

// WithVAD sets an external VAD; the energy detector stays as fallback.
func WithVAD(v VADBackend) PipelineOption {
	return func(p *Pipeline) {
		if v != nil {
			p.vad = v
		}
	}
}

func WithNormalizer(n *Normalizer) PipelineOption {
	return func(p *Pipeline) {
		if n != nil {
			p.norm = n
		}
	}
}

// WithDefaultLanguage sets the ASR language used when a request has none.
func WithDefaultLanguage(lang string) PipelineOption {
	return func(p *Pipeline) {
		if lang != "" {
			p.lang = lang
		}
	}
}

func NewPipeline(asr stt.Provider, log *logrus.Logger, opts ...PipelineOption) *Pipeline {
	if asr == nil {
		asr = stt.Unavailable{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pipeline{
		norm: NewNormalizer(""),
		vad:  EnergyVAD{},
		asr:  asr,
		lang: "en",
		log:  log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process never fails: each degraded stage leaves a trace in the result
// (empty transcript with an error note, energy VAD model, zero features).
func (p *Pipeline) Process(ctx context.Context, audioPath string, opts Options) *Result {
	entry := p.log.WithFields(logrus.Fields{"path": audioPath, "category": opts.Category})

	wavPath, cleanup, err := p.norm.Normalize(ctx, audioPath)
	defer cleanup()
	if err != nil {
		entry.WithError(err).Warn("audio normalization failed, using fallback input")
	}

	dec, err := Decode(wavPath)
	if err != nil {
		entry.WithError(err).Warn("wav decode failed, continuing without samples")
		dec = Decoded{SampleRate: TargetSampleRate}
	}
	entry.WithFields(logrus.Fields{
		"samples":     len(dec.Samples),
		"sample_rate": dec.SampleRate,
		"duration_ms": dec.DurationMS,
	}).Info("speech pipeline decoded audio")

	var (
		vad VADResult
		tr  *stt.Transcript
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vad = p.detect(gctx, dec, entry)
		return nil
	})
	g.Go(func() error {
		tr = p.transcribe(gctx, wavPath, opts.Language, entry)
		return nil
	})
	_ = g.Wait()

	res := &Result{
		TranscriptText: tr.Text,
		Transcript: TranscriptInfo{
			Segments:   tr.Segments,
			Language:   tr.Language,
			Confidence: tr.Confidence,
			Error:      tr.Error,
		},
		VAD:           vad,
		ModelVersions: map[string]string{"asr": tr.Model, "vad": vad.Model},
		SampleRate:    dec.SampleRate,
	}
	if res.Transcript.Segments == nil {
		res.Transcript.Segments = []stt.Segment{}
	}

	res.Features = ComputeFeatures(dec.Samples, dec.SampleRate, dec.DurationMS, vad, tr)
	res.TargetScore = ScoreTarget(res.TranscriptText, opts.ExpectedText)
	res.Feedback = GenerateFeedback(res.Features, res.TranscriptText, res.TargetScore, opts.Category)
	return res
}

func (p *Pipeline) detect(ctx context.Context, dec Decoded, entry *logrus.Entry) VADResult {
	if _, energy := p.vad.(EnergyVAD); !energy {
		res, err := p.vad.Detect(ctx, dec.Samples, dec.SampleRate, dec.DurationMS)
		if err == nil {
			return res
		}
		entry.WithError(err).WithField("vad", p.vad.Name()).Warn("vad backend failed, falling back to energy detector")
	}
	return energyVAD(dec.Samples, dec.SampleRate, dec.DurationMS)
}

func (p *Pipeline) transcribe(ctx context.Context, wavPath, language string, entry *logrus.Entry) *stt.Transcript {
	if language == "" {
		language = p.lang
	}
	fail := func(msg string) *stt.Transcript {
		return &stt.Transcript{Language: language, Model: "none", Error: msg}
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		entry.WithError(err).Warn("read normalized audio for asr")
		return fail(err.Error())
	}
	tr, err := p.asr.Transcribe(ctx, data, language)
	if err != nil {
		if errors.Is(err, stt.ErrUnavailable) {
			return fail("No ASR engine configured. Set ASR_BACKEND to google or http.")
		}
		entry.WithError(err).WithField("asr", p.asr.Name()).Warn("asr failed")
		return fail(err.Error())
	}
	if tr.Language == "" {
		tr.Language = language
	}
	if tr.Model == "" {
		tr.Model = p.asr.Name()
	}
	return tr
}
