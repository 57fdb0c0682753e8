package bedrockllm_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/llm"
	"github.com/sre-agent-platform/sre-agent/pkg/llm/bedrockllm"
)

type fakeRuntime struct {
	text string
	err  error
}

func (f *fakeRuntime) Converse(_ context.Context, _ *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: f.text}},
			},
		},
	}, nil
}

func TestClassifyMatchesCategoryFromResponseText(t *testing.T) {
	fake := &fakeRuntime{text: "This sounds like a security compliance concern."}
	client, err := bedrockllm.New(bedrockllm.Options{Runtime: fake, DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	resp, err := client.Classify(context.Background(), llm.Request{
		Query:      "are we meeting PCI requirements",
		Categories: []string{"health", "security", "cost"},
	})

	require.NoError(t, err)
	assert.Equal(t, "security", resp.Category)
}

func TestNewRejectsMissingRuntime(t *testing.T) {
	_, err := bedrockllm.New(bedrockllm.Options{DefaultModel: "anthropic.claude-test"})
	assert.Error(t, err)
}

func TestClassifyPropagatesRuntimeError(t *testing.T) {
	client, err := bedrockllm.New(bedrockllm.Options{Runtime: &fakeRuntime{err: assert.AnError}, DefaultModel: "m"})
	require.NoError(t, err)

	_, err = client.Classify(context.Background(), llm.Request{
		Query:      "q",
		Categories: []string{"health"},
	})
	assert.Error(t, err)
}
