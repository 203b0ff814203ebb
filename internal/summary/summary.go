// Package summary produces a short post-call writeup of the conversation
// transcript. Results are logged for operators, never persisted.
package summary

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/marcus-sw/call-agent/internal/prompts"
)

// Client summarizes call transcripts with a chat-completion model.
type Client struct {
	client openai.Client
	model  string
}

// New creates a summarizer using the given model.
func New(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Summarize returns a one-paragraph summary of the transcript.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompts.DefaultSummary),
			openai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
