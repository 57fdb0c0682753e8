// Package pulse fans BaseAgent streaming events out to a durable
// goa.design/pulse stream, an alternative to the in-process StreamCallback
// for multi-replica deployments where the caller awaiting progress updates
// is not the same process handling the request. Grounded on the teacher's
// features/stream/pulse/sink.go: an envelope type, a stream-id derivation
// function, and a Sink that marshals and publishes.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/stream/pulse/pulseclient"
)

// Envelope wraps a BaseAgent StreamEvent for transmission over a Pulse
// stream.
type Envelope struct {
	Type      string         `json:"type"`
	AgentID   string         `json:"agent_id"`
	AgentType string         `json:"agent_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Options configures the Sink.
type Options struct {
	// Client publishes to Pulse streams. Required.
	Client pulseclient.Client
	// StreamID derives the target stream name from an event. Defaults to
	// "agent/<AgentType>".
	StreamID func(agent.StreamEvent) (string, error)
	Logger   telemetry.Logger
}

// Sink publishes agent.StreamEvent values into Pulse streams.
type Sink struct {
	client   pulseclient.Client
	streamID func(agent.StreamEvent) (string, error)
	logger   telemetry.Logger
}

// NewSink constructs a Pulse-backed stream sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse: client is required")
	}
	s := &Sink{
		client:   opts.Client,
		streamID: opts.StreamID,
		logger:   opts.Logger,
	}
	if s.streamID == nil {
		s.streamID = defaultStreamID
	}
	if s.logger == nil {
		s.logger = telemetry.NoopLogger{}
	}
	return s, nil
}

// Send publishes event to its derived Pulse stream.
func (s *Sink) Send(ctx context.Context, event agent.StreamEvent) error {
	streamID, err := s.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	env := Envelope{
		Type:      event.Type,
		AgentID:   event.AgentID,
		AgentType: event.AgentType,
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = handle.Add(ctx, env.Type, data)
	return err
}

// Callback adapts Send to agent.StreamCallback, which has no error return or
// context parameter: publish failures are logged rather than propagated,
// just as BaseAgent recovers and logs a panic raised by any callback.
func (s *Sink) Callback(ctx context.Context) agent.StreamCallback {
	return func(event agent.StreamEvent) {
		if err := s.Send(ctx, event); err != nil {
			s.logger.Error(ctx, "pulse sink publish failed", "agent_id", event.AgentID, "error", err)
		}
	}
}

// Close releases resources owned by the sink's underlying client.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func defaultStreamID(event agent.StreamEvent) (string, error) {
	if event.AgentType == "" {
		return "", errors.New("pulse: stream event missing agent type")
	}
	return fmt.Sprintf("agent/%s", event.AgentType), nil
}
