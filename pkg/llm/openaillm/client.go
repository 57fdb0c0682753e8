// Package openaillm adapts github.com/openai/openai-go to llm.Client,
// following the same narrow-interface-plus-Options shape as
// pkg/llm/anthropicllm so the orchestrator's fallback classifier can swap
// providers without caring which SDK backs it.
package openaillm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sre-agent-platform/sre-agent/pkg/llm"
)

// ChatService is the subset of the OpenAI SDK used by Client. It is
// satisfied by *openai.ChatCompletionService (client.Chat.Completions).
type ChatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the adapter.
type Options struct {
	// DefaultModel is the OpenAI model identifier used for every
	// classification call.
	DefaultModel string

	// MaxTokens caps the completion length.
	MaxTokens int
}

// Client implements llm.Client on top of OpenAI chat completions.
type Client struct {
	chat      ChatService
	model     string
	maxTokens int
}

// New builds an OpenAI-backed classifier.
func New(chat ChatService, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openaillm: chat service is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openaillm: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 32
	}
	return &Client{chat: chat, model: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client,
// reading OPENAI_API_KEY from the environment.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openaillm: api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

var _ llm.Client = (*Client)(nil)

// Classify asks the model to pick one of req.Categories for req.Query.
func (c *Client) Classify(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Categories) == 0 {
		return llm.Response{}, llm.ErrNoCategories
	}
	if req.Query == "" {
		return llm.Response{}, llm.ErrEmptyQuery
	}

	prompt := llm.BuildPrompt(req)
	completion, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("openaillm: chat.completions.new: %w", err)
	}
	if len(completion.Choices) == 0 {
		return llm.Response{}, errors.New("openaillm: completion returned no choices")
	}

	text := completion.Choices[0].Message.Content
	return llm.Response{
		Category: llm.MatchCategory(text, req.Categories),
		RawText:  text,
	}, nil
}
