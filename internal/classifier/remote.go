package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Remote asks an OpenAI-compatible chat completion endpoint to pick one of a
// fixed set of categories.
type Remote struct {
	client     *openai.Client
	model      string
	categories []string
	schema     json.RawMessage
}

// NewRemote returns a Remote classifier restricted to categories.
func NewRemote(apiKey, baseURL, model string, categories []string) *Remote {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Remote{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		categories: categories,
		schema:     categorySchema(categories),
	}
}

func categorySchema(categories []string) json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"category": map[string]any{
				"type": "string",
				"enum": categories,
			},
		},
		"required":             []string{"category"},
		"additionalProperties": false,
	}
	data, _ := json.Marshal(schema)
	return data
}

func (r *Remote) systemPrompt() string {
	return "You categorize personal expenses. Given the name of a purchase, answer with the single best matching category from this list: " +
		strings.Join(r.categories, ", ") + "."
}

// Predict implements Classifier.
func (r *Remote) Predict(ctx context.Context, name string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: r.systemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: name,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "expense_category",
				Schema: r.schema,
				Strict: true,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from AI")
	}

	var answer struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &answer); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}

	if !slices.Contains(r.categories, answer.Category) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, answer.Category)
	}
	return answer.Category, nil
}
