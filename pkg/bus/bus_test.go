package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/internal/agenterr"
	"github.com/sre-agent-platform/sre-agent/pkg/bus"
)

func TestSendRequestTimeout(t *testing.T) {
	b := bus.New()
	b.Subscribe("b") // subscribed but never responds

	start := time.Now()
	_, err := b.SendRequest(context.Background(), "a", "b", "ping", map[string]any{}, 50*time.Millisecond)
	elapsed := time.Since(start)

	var agentErr *agenterr.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, agenterr.Timeout, agentErr.Kind)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)

	assert.Zero(t, b.Stats().PendingResponses, "pending-response table must be cleaned up after timeout")
}

func TestSendRequestSuccess(t *testing.T) {
	b := bus.New()
	q := b.Subscribe("b")

	go func() {
		msg, ok := q.Receive(context.Background(), time.Second)
		if !ok {
			return
		}
		b.SendResponse(context.Background(), "b", msg.CorrelationID, map[string]any{"pong": true})
	}()

	resp, err := b.SendRequest(context.Background(), "a", "b", "ping", map[string]any{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, true, resp["pong"])
}

func TestSendRequestUnknownAgent(t *testing.T) {
	b := bus.New()
	_, err := b.SendRequest(context.Background(), "a", "ghost", "ping", map[string]any{}, time.Second)
	var agentErr *agenterr.Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, agenterr.NotFound, agentErr.Kind)
}

func TestPerDestinationOrderingPreserved(t *testing.T) {
	b := bus.New()
	q := b.Subscribe("b")

	for i := 0; i < 5; i++ {
		_, err := b.SendMessage("a", "b", "tick", map[string]any{"i": i})
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		msg, ok := q.Receive(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, i, msg.Payload["i"])
	}
}

func TestPublishEventFansOutToAllQueues(t *testing.T) {
	b := bus.New()
	q1 := b.Subscribe("a")
	q2 := b.Subscribe("b")

	b.PublishEvent(context.Background(), "workflow.started", "orchestrator", map[string]any{"workflow_id": "w1"})

	for _, q := range []bus.Queue{q1, q2} {
		msg, ok := q.Receive(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, "workflow.started", msg.MessageType)
	}
}

func TestSendResponseWithNoPendingIsIgnored(t *testing.T) {
	b := bus.New()
	b.SendResponse(context.Background(), "b", "no-such-correlation", map[string]any{})
	// no panic, no stuck state
	assert.Zero(t, b.Stats().PendingResponses)
}
