// Package agent implements the base agent lifecycle (C5): initialize,
// cleanup, and HandleRequest with retries, an overall deadline, metrics, and
// streaming events. Concrete agents embed *BaseAgent and supply an Executor.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sre-agent-platform/sre-agent/internal/agenterr"
	"github.com/sre-agent-platform/sre-agent/internal/telemetry"
	"github.com/sre-agent-platform/sre-agent/pkg/registry"
)

// Request is the input to Execute. Parameters carries the tool/action
// arguments; RequestID is assigned by HandleRequest if empty.
type Request struct {
	RequestID  string
	Tool       string
	Parameters map[string]any
	WorkflowID string
}

// Result is what a concrete Executor returns on success. It is opaque to
// BaseAgent, which wraps it in the {status, agent_id, ...} envelope.
type Result = map[string]any

// Response is HandleRequest's return value: the user-visible envelope
// described in spec §7 ("every agent result surfaces as one of {success,
// pending_approval, needs_user_input, not_found, skipped, error}").
type Response struct {
	Status        string
	AgentID       string
	AgentType     string
	RequestID     string
	ExecutionTime time.Duration
	Result        Result
	Error         string
	ErrorType     agenterr.Kind
	Suggestions   []string
}

// Metrics mirrors registry.AgentMetrics plus the derived average the spec
// requires BaseAgent to maintain.
type Metrics struct {
	RequestsHandled     int64
	RequestsSucceeded   int64
	RequestsFailed      int64
	TotalExecutionTime  time.Duration
	AvgExecutionTime    time.Duration
}

// Executor is the abstract operation a concrete agent supplies. Returning an
// error triggers HandleRequest's retry loop; a panic is recovered, ends the
// retry loop without further attempts, and is reported as an ExecutionError.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// StreamEvent is delivered synchronously to a StreamCallback from the
// request-handling goroutine. Payload always carries agent_id, agent_type,
// and timestamp (spec §6).
type StreamEvent struct {
	Type      string
	AgentID   string
	AgentType string
	Timestamp time.Time
	Payload   map[string]any
}

// StreamCallback receives streaming events. It must not block; if it does,
// HandleRequest blocks with it since the call is synchronous by contract.
type StreamCallback func(event StreamEvent)

// BaseAgent is the shared lifecycle every concrete agent embeds.
type BaseAgent struct {
	agentType  string
	agentID    string
	maxRetries int
	timeout    time.Duration

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu          sync.Mutex
	initialized bool

	metricsMu sync.Mutex
	m         Metrics

	streamMu sync.RWMutex
	stream   StreamCallback

	executor Executor

	initImpl    func(ctx context.Context) error
	cleanupImpl func(ctx context.Context) error
}

// Option configures a BaseAgent.
type Option func(*BaseAgent)

// WithAgentID overrides the generated "<type>-<8 hex>" id.
func WithAgentID(id string) Option { return func(a *BaseAgent) { a.agentID = id } }

// WithMaxRetries overrides the default of 3 attempts.
func WithMaxRetries(n int) Option {
	return func(a *BaseAgent) {
		if n > 0 {
			a.maxRetries = n
		}
	}
}

// WithTimeout overrides the default 300s overall deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *BaseAgent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger injects a Logger.
func WithLogger(l telemetry.Logger) Option { return func(a *BaseAgent) { a.logger = l } }

// WithMetrics injects a Metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(a *BaseAgent) { a.metrics = m } }

// WithTracer injects a Tracer.
func WithTracer(t telemetry.Tracer) Option { return func(a *BaseAgent) { a.tracer = t } }

// WithInitializeImpl supplies agent-specific initialization logic, invoked
// once from Initialize.
func WithInitializeImpl(fn func(ctx context.Context) error) Option {
	return func(a *BaseAgent) { a.initImpl = fn }
}

// WithCleanupImpl supplies agent-specific cleanup logic, invoked once from
// Cleanup.
func WithCleanupImpl(fn func(ctx context.Context) error) Option {
	return func(a *BaseAgent) { a.cleanupImpl = fn }
}

// New constructs a BaseAgent of the given type with executor as its
// Execute implementation.
func New(agentType string, executor Executor, opts ...Option) *BaseAgent {
	a := &BaseAgent{
		agentType:  agentType,
		maxRetries: 3,
		timeout:    300 * time.Second,
		logger:     telemetry.NoopLogger{},
		metrics:    telemetry.NoopMetrics{},
		tracer:     telemetry.NoopTracer{},
		executor:   executor,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.agentID == "" {
		a.agentID = fmt.Sprintf("%s-%s", agentType, uuid.NewString()[:8])
	}
	return a
}

// AgentID returns the agent's stable identifier.
func (a *BaseAgent) AgentID() string { return a.agentID }

// AgentType returns the agent's declared type.
func (a *BaseAgent) AgentType() string { return a.agentType }

// IsInitialized reports whether Initialize has completed successfully.
func (a *BaseAgent) IsInitialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Initialize runs the agent-specific InitializeImpl once. A second call is
// a no-op returning true.
func (a *BaseAgent) Initialize(ctx context.Context) bool {
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		a.logger.Warn(ctx, "agent already initialized", "agent_id", a.agentID)
		return true
	}
	a.mu.Unlock()

	start := time.Now()
	var err error
	if a.initImpl != nil {
		err = a.initImpl(ctx)
	}
	if err != nil {
		a.logger.Error(ctx, "agent initialization failed", "agent_id", a.agentID, "elapsed", time.Since(start), "error", err)
		return false
	}

	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()
	a.logger.Info(ctx, "agent initialized", "agent_id", a.agentID, "elapsed", time.Since(start))
	return true
}

// Cleanup runs CleanupImpl once, if the agent is initialized, and marks it
// uninitialized. Errors are logged, never propagated (registry.Unregister
// must be able to proceed unconditionally).
func (a *BaseAgent) Cleanup(ctx context.Context) {
	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	var err error
	if a.cleanupImpl != nil {
		err = a.cleanupImpl(ctx)
	}
	if err != nil {
		a.logger.Error(ctx, "agent cleanup failed", "agent_id", a.agentID, "error", err)
		return
	}

	a.mu.Lock()
	a.initialized = false
	a.mu.Unlock()
	a.logger.Info(ctx, "agent cleaned up", "agent_id", a.agentID)
}

// SetStreamCallback installs fn to receive streaming events from subsequent
// HandleRequest calls.
func (a *BaseAgent) SetStreamCallback(fn StreamCallback) {
	a.streamMu.Lock()
	defer a.streamMu.Unlock()
	a.stream = fn
}

func (a *BaseAgent) emit(eventType string, payload map[string]any) {
	a.streamMu.RLock()
	cb := a.stream
	a.streamMu.RUnlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(context.Background(), "stream callback panicked", "agent_id", a.agentID, "panic", r)
		}
	}()
	cb(StreamEvent{
		Type:      eventType,
		AgentID:   a.agentID,
		AgentType: a.agentType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// HandleRequest runs req through Execute with retries under an overall
// deadline, updates metrics, emits streaming events, and converts any
// failure into a structured Response rather than propagating it (spec §4.5,
// §7).
func (a *BaseAgent) HandleRequest(ctx context.Context, req Request) Response {
	if !a.IsInitialized() {
		return Response{
			Status:    "error",
			AgentID:   a.agentID,
			AgentType: a.agentType,
			Error:     fmt.Sprintf("agent %s not initialized", a.agentID),
			ErrorType: agenterr.NotInitialized,
		}
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()[:8]
	}
	start := time.Now()

	ctx, span := a.tracer.Start(ctx, "agent.handle_request")
	defer span.End()

	a.logger.Info(ctx, "handling request", "agent_id", a.agentID, "request_id", req.RequestID)
	a.emit("progress", map[string]any{
		"request_id": req.RequestID,
		"status":     "started",
		"message":    fmt.Sprintf("%s agent processing request", a.agentType),
	})

	deadline, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := a.executeWithRetry(deadline, req)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- r
	}()

	select {
	case result := <-resultCh:
		elapsed := time.Since(start)
		a.recordSuccess(elapsed)
		a.logger.Info(ctx, "request completed", "agent_id", a.agentID, "request_id", req.RequestID, "elapsed", elapsed)
		a.emit("result", map[string]any{
			"request_id":     req.RequestID,
			"status":         "completed",
			"execution_time": elapsed.Seconds(),
			"result":         result,
		})
		return Response{
			Status:        "success",
			AgentID:       a.agentID,
			AgentType:     a.agentType,
			RequestID:     req.RequestID,
			ExecutionTime: elapsed,
			Result:        result,
		}

	case <-deadline.Done():
		elapsed := time.Since(start)
		a.recordFailure()
		msg := fmt.Sprintf("request %s timed out after %s", req.RequestID, a.timeout)
		a.logger.Error(ctx, msg, "agent_id", a.agentID)
		a.emit("error", map[string]any{
			"request_id":     req.RequestID,
			"status":         "timeout",
			"message":        msg,
			"execution_time": elapsed.Seconds(),
		})
		return Response{
			Status:        "error",
			AgentID:       a.agentID,
			AgentType:     a.agentType,
			RequestID:     req.RequestID,
			ExecutionTime: elapsed,
			Error:         msg,
			ErrorType:     agenterr.Timeout,
		}

	case err := <-errCh:
		elapsed := time.Since(start)
		a.recordFailure()
		msg := fmt.Sprintf("request %s failed: %v", req.RequestID, err)
		a.logger.Error(ctx, msg, "agent_id", a.agentID)
		a.emit("error", map[string]any{
			"request_id":     req.RequestID,
			"status":         "failed",
			"message":        msg,
			"execution_time": elapsed.Seconds(),
		})
		return Response{
			Status:        "error",
			AgentID:       a.agentID,
			AgentType:     a.agentType,
			RequestID:     req.RequestID,
			ExecutionTime: elapsed,
			Error:         err.Error(),
			ErrorType:     agenterr.ExecutionError,
		}
	}
}

// executeWithRetry attempts Execute up to maxRetries times, sleeping
// 2^(attempt-1) seconds between attempts, honoring ctx's deadline: if the
// remaining budget is less than the next backoff, it fails immediately
// rather than sleeping past the deadline (spec §5).
func (a *BaseAgent) executeWithRetry(ctx context.Context, req Request) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in execute: %v", r)
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		result, lastErr = a.executor.Execute(ctx, req)
		if lastErr == nil {
			return result, nil
		}

		if attempt < a.maxRetries {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
				break
			}
			a.logger.Warn(ctx, "attempt failed, retrying", "agent_id", a.agentID, "attempt", attempt, "max_retries", a.maxRetries, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, agenterr.Wrap(agenterr.ExecutionError, fmt.Sprintf("failed after %d attempts", a.maxRetries), lastErr)
}

func (a *BaseAgent) recordSuccess(elapsed time.Duration) {
	a.metricsMu.Lock()
	defer a.metricsMu.Unlock()
	a.m.RequestsHandled++
	a.m.RequestsSucceeded++
	a.m.TotalExecutionTime += elapsed
	a.m.AvgExecutionTime = a.m.TotalExecutionTime / time.Duration(a.m.RequestsHandled)

	a.metrics.IncCounter("agent.requests_handled", 1, "agent_type", a.agentType)
	a.metrics.IncCounter("agent.requests_succeeded", 1, "agent_type", a.agentType)
	a.metrics.RecordTimer("agent.execution_time", elapsed, "agent_type", a.agentType)
}

func (a *BaseAgent) recordFailure() {
	a.metricsMu.Lock()
	defer a.metricsMu.Unlock()
	a.m.RequestsHandled++
	a.m.RequestsFailed++

	a.metrics.IncCounter("agent.requests_handled", 1, "agent_type", a.agentType)
	a.metrics.IncCounter("agent.requests_failed", 1, "agent_type", a.agentType)
}

// Metrics returns a snapshot of the agent's metrics (identity:
// RequestsHandled == RequestsSucceeded + RequestsFailed, spec §8 invariant 6).
func (a *BaseAgent) Metrics() Metrics {
	a.metricsMu.Lock()
	defer a.metricsMu.Unlock()
	return a.m
}

// HealthMetrics adapts Metrics to registry.AgentMetrics so *BaseAgent
// satisfies registry.Agent without the registry package importing this one.
func (a *BaseAgent) HealthMetrics() registry.AgentMetrics {
	m := a.Metrics()
	return registry.AgentMetrics{
		RequestsHandled:   m.RequestsHandled,
		RequestsSucceeded: m.RequestsSucceeded,
		RequestsFailed:    m.RequestsFailed,
	}
}

// Status is the summary GetStatus returns.
type Status struct {
	AgentID     string
	AgentType   string
	Initialized bool
	Healthy     bool
	Metrics     Metrics
}

// Status returns a point-in-time summary of the agent.
func (a *BaseAgent) Status() Status {
	m := a.Metrics()
	initialized := a.IsInitialized()
	return Status{
		AgentID:     a.agentID,
		AgentType:   a.agentType,
		Initialized: initialized,
		Healthy:     initialized && m.RequestsFailed < 10,
		Metrics:     m,
	}
}
