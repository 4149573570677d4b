package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }
func (g *GoogleSpeech) Name() string { return "google-speech-v1" }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	language = NormalizeLanguage(language)

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, err
	}

	out := &Transcript{Language: language, Model: g.Name()}
	var texts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		// alternatives are ordered by likelihood
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		confSum += float64(alt.Confidence)

		seg := Segment{Text: text}
		if words := alt.Words; len(words) > 0 {
			seg.Start = words[0].GetStartTime().AsDuration().Seconds()
			seg.End = words[len(words)-1].GetEndTime().AsDuration().Seconds()
		} else {
			seg.End = r.GetResultEndTime().AsDuration().Seconds()
		}
		out.Segments = append(out.Segments, seg)
	}

	out.Text = strings.Join(texts, " ")
	if len(texts) > 0 {
		out.Confidence = confSum / float64(len(texts))
	}
	return out, nil
}
