// Package pulseclient provides a thin, testable wrapper around
// goa.design/pulse streams, grounded on the teacher's
// features/stream/pulse/clients/pulse adapter: callers build a Redis
// connection, pass it to New, and get back a narrow interface exposing only
// the stream operations pkg/stream/pulse needs.
package pulseclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// Options configures the Pulse client.
type Options struct {
	// Redis is the Redis connection used to back Pulse streams. Required.
	Redis *redis.Client
	// StreamMaxLen bounds the number of entries kept per stream. Zero uses
	// Pulse defaults.
	StreamMaxLen int
	// OperationTimeout bounds individual Add operations. Zero means no
	// timeout.
	OperationTimeout time.Duration
}

// Client exposes the subset of Pulse APIs the stream sink requires.
type Client interface {
	// Stream returns a handle to the named Pulse stream, creating it if
	// needed.
	Stream(name string) (Stream, error)
	// Close releases resources owned by the client.
	Close(ctx context.Context) error
}

// Stream exposes the operations needed to publish agent streaming events.
type Stream interface {
	// Add publishes an event with the given name and payload, returning the
	// Redis-assigned entry ID.
	Add(ctx context.Context, event string, payload []byte) (string, error)
	// Destroy deletes the entire stream and all its messages from Redis.
	Destroy(ctx context.Context) error
}

type client struct {
	redis   *redis.Client
	maxLen  int
	timeout time.Duration
}

// New constructs a Pulse client backed by the provided Redis connection.
func New(opts Options) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulseclient: redis connection is required")
	}
	return &client{redis: opts.Redis, maxLen: opts.StreamMaxLen, timeout: opts.OperationTimeout}, nil
}

func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulseclient: stream name is required")
	}
	var opts []streamopts.Stream
	if c.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(c.maxLen))
	}
	str, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulseclient: create stream: %w", err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

func (c *client) Close(ctx context.Context) error { return nil }

type handle struct {
	stream  *streaming.Stream
	timeout time.Duration
}

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if event == "" {
		return "", errors.New("pulseclient: event name is required")
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("pulseclient: add: %w", err)
	}
	return id, nil
}

func (h *handle) Destroy(ctx context.Context) error {
	return h.stream.Destroy(ctx)
}
