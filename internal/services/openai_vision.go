package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIVision implements VisionClient on the chat-completions API with
// inline base64 image parts.
type OpenAIVision struct {
	client *openai.Client
	model  string
}

func NewOpenAIVision(apiKey, model string) *OpenAIVision {
	return &OpenAIVision{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAIVision) Complete(ctx context.Context, images []LabeledImage, prompt string) (string, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, img := range images {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read frame %s: %w", img.Path, err)
		}
		parts = append(parts,
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: img.Label,
			},
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
					Detail: openai.ImageURLDetailLow,
				},
			},
		)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens: 3000,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
