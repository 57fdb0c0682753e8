// Package bus implements the in-process message bus (C3): pub/sub event
// fan-out, addressed request/response with correlation ids, and per-agent
// FIFO queues with bounded history.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sre-agent-platform/sre-agent/internal/agenterr"
	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
)

// Message is the unit of communication on the bus. ToAgent is empty for
// broadcast events.
type Message struct {
	MessageID     string
	MessageType   string
	FromAgent     string
	ToAgent       string
	CorrelationID string
	Payload       map[string]any
	Timestamp     time.Time
}

// Queue is the per-agent inbox returned by Subscribe.
type Queue interface {
	// Receive blocks until a message is available or timeout elapses (zero
	// means block forever). It returns (Message{}, false) on timeout or when
	// ctx is done.
	Receive(ctx context.Context, timeout time.Duration) (Message, bool)
}

// Stats reports bus occupancy for diagnostics.
type Stats struct {
	SubscribedAgents    int
	PendingResponses    int
	MessageHistorySize  int
	QueueDepths         map[string]int
}

type agentQueue struct {
	mu      sync.Mutex
	notify  chan struct{}
	pending []Message
}

func newAgentQueue() *agentQueue {
	return &agentQueue{notify: make(chan struct{}, 1)}
}

func (q *agentQueue) push(m Message) {
	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *agentQueue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Message{}, false
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	return m, true
}

func (q *agentQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *agentQueue) Receive(ctx context.Context, timeout time.Duration) (Message, bool) {
	if m, ok := q.pop(); ok {
		return m, true
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		select {
		case <-q.notify:
			if m, ok := q.pop(); ok {
				return m, true
			}
		case <-deadline:
			return Message{}, false
		case <-ctx.Done():
			return Message{}, false
		}
	}
}

// Bus is the in-process message bus. The zero value is not usable;
// construct with New.
type Bus struct {
	mu               sync.RWMutex
	queues           map[string]*agentQueue
	pendingResponses map[string]chan map[string]any
	history          []Message
	maxHistory       int
	logger           telemetry.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxHistory overrides the default ring-buffer size of 1000 messages.
func WithMaxHistory(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxHistory = n
		}
	}
}

// WithLogger injects a Logger for diagnostics (e.g. response-with-no-pending
// warnings).
func WithLogger(l telemetry.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New constructs a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		queues:           make(map[string]*agentQueue),
		pendingResponses: make(map[string]chan map[string]any),
		maxHistory:       1000,
		logger:           telemetry.NoopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers agentID and returns its queue, creating it on first
// call. Repeated calls for the same agentID are idempotent and return the
// same queue.
func (b *Bus) Subscribe(agentID string) Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[agentID]
	if !ok {
		q = newAgentQueue()
		b.queues[agentID] = q
	}
	return q
}

// Unsubscribe drops agentID's queue. Any SendRequest already awaiting a
// response from agentID remains resolvable only by its own timeout; this
// call does not cancel in-flight correlation ids.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	delete(b.queues, agentID)
	b.mu.Unlock()
}

// PublishEvent fans the event out to every currently subscribed agent's
// queue. It never fails the sender: per-agent queues are unbounded.
func (b *Bus) PublishEvent(ctx context.Context, eventType, fromAgent string, payload map[string]any) string {
	msg := Message{
		MessageID:   uuid.NewString(),
		MessageType: eventType,
		FromAgent:   fromAgent,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
	b.recordHistory(msg)

	b.mu.RLock()
	targets := make([]*agentQueue, 0, len(b.queues))
	for _, q := range b.queues {
		targets = append(targets, q)
	}
	b.mu.RUnlock()

	for _, q := range targets {
		q.push(msg)
	}
	_ = ctx
	return msg.MessageID
}

// SendMessage is fire-and-forget point-to-point delivery. It returns
// NotFound if toAgent is not subscribed.
func (b *Bus) SendMessage(fromAgent, toAgent, messageType string, payload map[string]any) (string, error) {
	b.mu.RLock()
	q, ok := b.queues[toAgent]
	b.mu.RUnlock()
	if !ok {
		return "", agenterr.New(agenterr.NotFound, fmt.Sprintf("agent %s not subscribed to message bus", toAgent))
	}
	msg := Message{
		MessageID:   uuid.NewString(),
		MessageType: messageType,
		FromAgent:   fromAgent,
		ToAgent:     toAgent,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
	b.recordHistory(msg)
	q.push(msg)
	return msg.MessageID, nil
}

// SendRequest allocates a correlation id, enqueues a request.<requestType>
// message to toAgent, and blocks until a matching SendResponse arrives or
// timeout elapses. For a subscribed toAgent, exactly one of (payload,
// Timeout error) is returned, never both and never neither (spec §8
// invariant 5); an unsubscribed toAgent yields a NotFound error instead.
func (b *Bus) SendRequest(ctx context.Context, fromAgent, toAgent, requestType string, payload map[string]any, timeout time.Duration) (map[string]any, error) {
	b.mu.RLock()
	q, ok := b.queues[toAgent]
	b.mu.RUnlock()
	if !ok {
		return nil, agenterr.New(agenterr.NotFound, fmt.Sprintf("agent %s not subscribed to message bus", toAgent))
	}

	correlationID := uuid.NewString()
	respCh := make(chan map[string]any, 1)
	b.mu.Lock()
	b.pendingResponses[correlationID] = respCh
	b.mu.Unlock()

	msg := Message{
		MessageID:     uuid.NewString(),
		MessageType:   "request." + requestType,
		FromAgent:     fromAgent,
		ToAgent:       toAgent,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}
	b.recordHistory(msg)
	q.push(msg)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-timer.C:
		b.mu.Lock()
		delete(b.pendingResponses, correlationID)
		b.mu.Unlock()
		return nil, agenterr.New(agenterr.Timeout, fmt.Sprintf("request %s to %s timed out after %s", requestType, toAgent, timeout))
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pendingResponses, correlationID)
		b.mu.Unlock()
		return nil, agenterr.Wrap(agenterr.Timeout, "request canceled", ctx.Err())
	}
}

// SendResponse resolves the pending SendRequest future for correlationID. A
// response with no matching pending request is logged and ignored.
func (b *Bus) SendResponse(ctx context.Context, fromAgent, correlationID string, payload map[string]any) {
	b.mu.Lock()
	ch, ok := b.pendingResponses[correlationID]
	if ok {
		delete(b.pendingResponses, correlationID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn(ctx, "no pending request for correlation id", "correlation_id", correlationID, "from_agent", fromAgent)
		return
	}
	select {
	case ch <- payload:
	default:
	}
}

func (b *Bus) recordHistory(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, m)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
}

// History returns up to limit most-recent messages, optionally filtered by
// agentID (source or destination) and/or messageType.
func (b *Bus) History(agentID, messageType string, limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var filtered []Message
	for _, m := range b.history {
		if agentID != "" && m.FromAgent != agentID && m.ToAgent != agentID {
			continue
		}
		if messageType != "" && m.MessageType != messageType {
			continue
		}
		filtered = append(filtered, m)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// Stats reports current occupancy.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	depths := make(map[string]int, len(b.queues))
	for id, q := range b.queues {
		depths[id] = q.depth()
	}
	return Stats{
		SubscribedAgents:   len(b.queues),
		PendingResponses:   len(b.pendingResponses),
		MessageHistorySize: len(b.history),
		QueueDepths:        depths,
	}
}
