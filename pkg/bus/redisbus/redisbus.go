// Package redisbus is a distributed variant of pkg/bus's pending-response
// table: it lets SendRequest issued on one orchestrator replica be resolved
// by SendResponse published from another, for deployments running multiple
// replicas behind one front end. pkg/bus remains the default, in-process
// implementation spec §4.3/§8 is written against; this is an optional
// adjunct, not a drop-in replacement, since bus.Bus's pending-response table
// is unexported.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "sre-agent:bus:response:"

// PendingTable resolves correlation ids to responses across processes via
// Redis Pub/Sub.
type PendingTable struct {
	client *redis.Client
}

// New constructs a PendingTable backed by client.
func New(client *redis.Client) *PendingTable {
	return &PendingTable{client: client}
}

// Await subscribes to correlationID's channel and blocks until a payload is
// published, ctx is canceled, or timeout elapses.
func (t *PendingTable) Await(ctx context.Context, correlationID string, timeout time.Duration) (map[string]any, error) {
	sub := t.client.Subscribe(ctx, channelPrefix+correlationID)
	defer func() { _ = sub.Close() }()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := sub.ReceiveMessage(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("redisbus: await %s: %w", correlationID, err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		return nil, fmt.Errorf("redisbus: decode response for %s: %w", correlationID, err)
	}
	return payload, nil
}

// Resolve publishes payload to correlationID's channel, waking any replica's
// Await call for that correlation id.
func (t *PendingTable) Resolve(ctx context.Context, correlationID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redisbus: encode response for %s: %w", correlationID, err)
	}
	return t.client.Publish(ctx, channelPrefix+correlationID, data).Err()
}
