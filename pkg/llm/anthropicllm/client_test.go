package anthropicllm_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/llm"
	"github.com/sre-agent-platform/sre-agent/pkg/llm/anthropicllm"
)

type fakeMessages struct {
	text string
	err  error
}

func (f *fakeMessages) New(_ context.Context, _ sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: f.text}},
	}, nil
}

func TestClassifyMatchesCategoryFromResponseText(t *testing.T) {
	fake := &fakeMessages{text: "This is clearly a cost optimization request."}
	client, err := anthropicllm.New(fake, anthropicllm.Options{DefaultModel: "claude-test"})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), llm.Request{
		Query:      "why is my bill so high",
		Categories: []string{"health", "cost", "performance"},
	})

	require.NoError(t, err)
	assert.Equal(t, "cost", resp.Category)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := anthropicllm.New(&fakeMessages{}, anthropicllm.Options{})
	assert.Error(t, err)
}

func TestClassifyRejectsEmptyCategories(t *testing.T) {
	client, err := anthropicllm.New(&fakeMessages{text: "x"}, anthropicllm.Options{DefaultModel: "claude-test"})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), llm.Request{Query: "hello"})
	assert.ErrorIs(t, err, llm.ErrNoCategories)
}
