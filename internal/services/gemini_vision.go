package services

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiVision implements VisionClient on the Gemini API with inline image
// blobs.
type GeminiVision struct {
	client *genai.Client
	model  string
}

func NewGeminiVision(ctx context.Context, apiKey, model string) (*GeminiVision, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiVision{client: client, model: model}, nil
}

func (g *GeminiVision) Complete(ctx context.Context, images []LabeledImage, prompt string) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read frame %s: %w", img.Path, err)
		}
		parts = append(parts,
			genai.NewPartFromText(img.Label),
			genai.NewPartFromBytes(data, "image/jpeg"),
		)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
