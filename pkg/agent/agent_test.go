package agent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/internal/agenterr"
	"github.com/sre-agent-platform/sre-agent/pkg/agent"
)

func newInitialized(t *testing.T, exec agent.Executor, opts ...agent.Option) *agent.BaseAgent {
	t.Helper()
	a := agent.New("test", exec, opts...)
	require.True(t, a.Initialize(context.Background()))
	return a
}

func TestHandleRequestSuccess(t *testing.T) {
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		return agent.Result{"ok": 1}, nil
	}))

	resp := a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, agent.Result{"ok": 1}, resp.Result)

	m := a.Metrics()
	assert.Equal(t, int64(1), m.RequestsSucceeded)
	assert.Equal(t, int64(0), m.RequestsFailed)
	assert.Equal(t, m.RequestsHandled, m.RequestsSucceeded+m.RequestsFailed)
}

func TestHandleRequestNotInitialized(t *testing.T) {
	a := agent.New("test", agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		return agent.Result{}, nil
	}))

	resp := a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, agenterr.NotInitialized, resp.ErrorType)
}

func TestRetryThenSuccess(t *testing.T) {
	attempts := 0
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return agent.Result{"ok": 1}, nil
	}), agent.WithMaxRetries(3), agent.WithTimeout(10*time.Second))

	start := time.Now()
	resp := a.HandleRequest(context.Background(), agent.Request{})
	elapsed := time.Since(start)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, agent.Result{"ok": 1}, resp.Result)
	assert.Equal(t, int64(1), a.Metrics().RequestsSucceeded)
	assert.Equal(t, int64(0), a.Metrics().RequestsFailed)
	assert.GreaterOrEqual(t, elapsed, time.Second, "expected ~1s backoff between attempt 1 and 2")
}

func TestRetriesExhaustedReturnsExecutionError(t *testing.T) {
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		return nil, errors.New("always fails")
	}), agent.WithMaxRetries(2), agent.WithTimeout(10*time.Second))

	resp := a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, agenterr.ExecutionError, resp.ErrorType)
	assert.Equal(t, int64(1), a.Metrics().RequestsFailed)
}

func TestHandleRequestTimeout(t *testing.T) {
	a := newInitialized(t, agent.ExecutorFunc(func(ctx context.Context, _ agent.Request) (agent.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), agent.WithTimeout(50*time.Millisecond), agent.WithMaxRetries(1))

	resp := a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, agenterr.Timeout, resp.ErrorType)
}

func TestStreamCallbackReceivesLifecycleEvents(t *testing.T) {
	var events []string
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		return agent.Result{}, nil
	}))
	a.SetStreamCallback(func(e agent.StreamEvent) {
		events = append(events, e.Type)
	})

	a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, []string{"progress", "result"}, events)
}

func TestStreamCallbackPanicIsSwallowed(t *testing.T) {
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		return agent.Result{}, nil
	}))
	a.SetStreamCallback(func(agent.StreamEvent) { panic("boom") })

	resp := a.HandleRequest(context.Background(), agent.Request{})
	assert.Equal(t, "success", resp.Status, "a panicking stream callback must not fail the request")
}

func TestMetricsIdentity(t *testing.T) {
	calls := 0
	a := newInitialized(t, agent.ExecutorFunc(func(context.Context, agent.Request) (agent.Result, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("fail")
		}
		return agent.Result{}, nil
	}), agent.WithMaxRetries(1))

	for i := 0; i < 4; i++ {
		a.HandleRequest(context.Background(), agent.Request{})
	}

	m := a.Metrics()
	assert.Equal(t, m.RequestsHandled, m.RequestsSucceeded+m.RequestsFailed)
}
