// Package bedrockllm adapts AWS Bedrock's Converse API to llm.Client,
// grounded on the teacher's features/model/bedrock adapter: a narrow
// RuntimeClient interface over *bedrockruntime.Client's Converse method so
// tests can inject a fake runtime.
package bedrockllm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/sre-agent-platform/sre-agent/pkg/llm"
)

// RuntimeClient is the subset of the AWS Bedrock runtime client used by
// Client. It is satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter.
type Options struct {
	// Runtime provides access to the Bedrock runtime. Required.
	Runtime RuntimeClient

	// DefaultModel is the Bedrock model identifier used for every
	// classification call.
	DefaultModel string

	// MaxTokens caps the completion length.
	MaxTokens int
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime   RuntimeClient
	model     string
	maxTokens int32
}

// New builds a Bedrock-backed classifier.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrockllm: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrockllm: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 32
	}
	return &Client{runtime: opts.Runtime, model: opts.DefaultModel, maxTokens: int32(maxTokens)}, nil
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
	out, err := c.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: &c.model,
		Messages: []brtypes.Message{
			{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{MaxTokens: &c.maxTokens},
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrockllm: converse: %w", err)
	}

	output, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, errors.New("bedrockllm: converse returned no message output")
	}

	var text string
	for _, block := range output.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += textBlock.Value
		}
	}

	return llm.Response{
		Category: llm.MatchCategory(text, req.Categories),
		RawText:  text,
	}, nil
}
