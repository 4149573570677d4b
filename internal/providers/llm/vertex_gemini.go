package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	model     *vertexgenai.GenerativeModel
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.ResponseMIMEType = "application/json"
	return &VertexGemini{client: c, model: m, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }
func (v *VertexGemini) Name() string { return v.modelName }

func (v *VertexGemini) Generate(ctx context.Context, prompt string, attachments ...Attachment) (string, error) {
	parts := make([]vertexgenai.Part, 0, len(attachments)+1)
	for _, a := range attachments {
		if len(a.Data) == 0 || a.MIMEType == "" {
			continue
		}
		parts = append(parts, vertexgenai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}
	parts = append(parts, vertexgenai.Text(prompt))

	var sb strings.Builder
	it := v.model.GenerateContentStream(ctx, parts...)
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					sb.WriteString(string(t))
				}
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
