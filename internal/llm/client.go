// Package llm wraps an OpenAI-compatible chat completion endpoint for query
// rewriting and answer generation. A local Ollama server works by setting the
// base URL.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotaeru/internal/models"
)

const answerSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. If the context does not contain the answer, say so."

// Client talks to a chat completion API.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New builds a client. baseURL may be empty for the OpenAI default; apiKey
// may be a placeholder for local servers that ignore it.
func New(apiKey, baseURL, model string, maxTokens int, temperature float32) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate sends a single-turn chat completion and returns the text.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Answer generates an answer to query grounded in the retrieved chunks.
func (c *Client) Answer(ctx context.Context, query string, chunks []models.RetrievedChunk) (string, error) {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, chunk.Content)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", query)
	return c.Generate(ctx, answerSystemPrompt, b.String())
}
