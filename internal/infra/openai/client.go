package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates replies using the OpenAI chat completion API
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new generation client
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate produces reply text for a prompt. requesterID is forwarded
// as the end-user identifier for abuse attribution.
func (c *Client) Generate(ctx context.Context, prompt, requesterID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   100,
		Temperature: 0.7,
		N:           1,
		User:        requesterID,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
