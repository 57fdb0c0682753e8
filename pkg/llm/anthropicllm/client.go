// Package anthropicllm adapts github.com/anthropics/anthropic-sdk-go to
// llm.Client, grounded on the teacher's features/model/anthropic adapter:
// a narrow interface over the SDK's message service so tests can inject a
// fake, and an Options struct carrying the default model identifier.
package anthropicllm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sre-agent-platform/sre-agent/pkg/llm"
)

// MessagesClient is the subset of the Anthropic SDK used by Client. It is
// satisfied by *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter.
type Options struct {
	// DefaultModel is the Claude model identifier used for every
	// classification call.
	DefaultModel string

	// MaxTokens caps the completion length. Classification responses are a
	// single category name, so this defaults to a small value.
	MaxTokens int
}

// Client implements llm.Client on top of Anthropic Claude Messages.
type Client struct {
	msg       MessagesClient
	model     string
	maxTokens int
}

// New builds an Anthropic-backed classifier.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropicllm: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropicllm: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 32
	}
	return &Client{msg: msg, model: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client,
// reading ANTHROPIC_API_KEY and related defaults from the environment.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicllm: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
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
	msg, err := c.msg.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropicllm: messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return llm.Response{
		Category: llm.MatchCategory(text, req.Categories),
		RawText:  text,
	}, nil
}
