package pulse_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/stream/pulse"
	"github.com/sre-agent-platform/sre-agent/pkg/stream/pulse/pulseclient"
)

type fakeStream struct {
	addFn func(ctx context.Context, event string, payload []byte) (string, error)
}

func (f *fakeStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return f.addFn(ctx, event, payload)
}
func (f *fakeStream) Destroy(context.Context) error { return nil }

type fakeClient struct {
	streamFn func(name string) (pulseclient.Stream, error)
}

func (f *fakeClient) Stream(name string) (pulseclient.Stream, error) { return f.streamFn(name) }
func (f *fakeClient) Close(context.Context) error                    { return nil }

func TestSendPublishesEnvelope(t *testing.T) {
	str := &fakeStream{addFn: func(_ context.Context, event string, payload []byte) (string, error) {
		assert.Equal(t, "progress", event)
		var env pulse.Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		assert.Equal(t, "health-monitoring-ab12cd34", env.AgentID)
		assert.Equal(t, "started", env.Payload["status"])
		return "1-0", nil
	}}
	cli := &fakeClient{streamFn: func(name string) (pulseclient.Stream, error) {
		assert.Equal(t, "agent/health-monitoring", name)
		return str, nil
	}}

	sink, err := pulse.NewSink(pulse.Options{Client: cli})
	require.NoError(t, err)

	err = sink.Send(context.Background(), agent.StreamEvent{
		Type:      "progress",
		AgentID:   "health-monitoring-ab12cd34",
		AgentType: "health-monitoring",
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"status": "started"},
	})
	require.NoError(t, err)
}

func TestCustomStreamID(t *testing.T) {
	cli := &fakeClient{streamFn: func(name string) (pulseclient.Stream, error) {
		assert.Equal(t, "custom/incident-response", name)
		return &fakeStream{addFn: func(context.Context, string, []byte) (string, error) { return "1-0", nil }}, nil
	}}

	sink, err := pulse.NewSink(pulse.Options{
		Client: cli,
		StreamID: func(e agent.StreamEvent) (string, error) {
			return "custom/" + e.AgentType, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), agent.StreamEvent{AgentType: "incident-response"}))
}

func TestSendRequiresAgentType(t *testing.T) {
	cli := &fakeClient{streamFn: func(string) (pulseclient.Stream, error) { return nil, nil }}
	sink, err := pulse.NewSink(pulse.Options{Client: cli})
	require.NoError(t, err)

	err = sink.Send(context.Background(), agent.StreamEvent{})
	assert.EqualError(t, err, "pulse: stream event missing agent type")
}

func TestStreamCreationError(t *testing.T) {
	cli := &fakeClient{streamFn: func(string) (pulseclient.Stream, error) { return nil, errors.New("boom") }}
	sink, err := pulse.NewSink(pulse.Options{Client: cli})
	require.NoError(t, err)

	err = sink.Send(context.Background(), agent.StreamEvent{AgentType: "cost-optimization"})
	assert.EqualError(t, err, "boom")
}

func TestCallbackLogsPublishFailureInsteadOfPanicking(t *testing.T) {
	cli := &fakeClient{streamFn: func(string) (pulseclient.Stream, error) { return nil, errors.New("unreachable") }}
	sink, err := pulse.NewSink(pulse.Options{Client: cli})
	require.NoError(t, err)

	cb := sink.Callback(context.Background())
	assert.NotPanics(t, func() {
		cb(agent.StreamEvent{AgentType: "slo-management"})
	})
}

func TestNewSinkRequiresClient(t *testing.T) {
	_, err := pulse.NewSink(pulse.Options{})
	assert.Error(t, err)
}
