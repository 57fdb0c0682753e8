package toolproxy_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/agent"
	"github.com/sre-agent-platform/sre-agent/pkg/cache"
	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy"
)

type fakeTransport struct {
	calls    int
	response toolproxy.CallResponse
	err      error
}

func (f *fakeTransport) CallTool(context.Context, toolproxy.CallRequest) (toolproxy.CallResponse, error) {
	f.calls++
	return f.response, f.err
}

func newProxy(t *testing.T, ft *fakeTransport, c *cache.Cache) *toolproxy.Agent {
	t.Helper()
	a := toolproxy.New(ft, c, nil)
	require.True(t, a.Initialize(context.Background()))
	return a
}

func TestExecuteCallsTransportAndCachesResult(t *testing.T) {
	ft := &fakeTransport{response: toolproxy.CallResponse{
		Result:     json.RawMessage(`"ok"`),
		Structured: json.RawMessage(`{"status":"healthy"}`),
	}}
	c := cache.New()
	a := newProxy(t, ft, c)

	resp := a.HandleRequest(context.Background(), agent.Request{
		Tool:       "check_container_app_health",
		Parameters: map[string]any{"container_app_name": "svc", "resource_group": "rg"},
	})

	require.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, ft.calls)
	assert.Equal(t, true, resp.Result["success"])
	assert.Equal(t, map[string]any{"status": "healthy"}, resp.Result["parsed"])

	resp2 := a.HandleRequest(context.Background(), agent.Request{
		Tool:       "check_container_app_health",
		Parameters: map[string]any{"container_app_name": "svc", "resource_group": "rg"},
	})
	require.Equal(t, "success", resp2.Status)
	assert.Equal(t, 1, ft.calls, "second call with identical args must be served from cache")
	assert.Equal(t, true, resp2.Result["cached"])
}

func TestExecuteMissingToolNameFails(t *testing.T) {
	ft := &fakeTransport{}
	a := newProxy(t, ft, nil)

	resp := a.HandleRequest(context.Background(), agent.Request{Parameters: map[string]any{}})
	assert.Equal(t, "error", resp.Status)
	assert.Zero(t, ft.calls)
}

func TestExecutePropagatesTransportError(t *testing.T) {
	ft := &fakeTransport{err: errors.New("boom")}
	a := toolproxy.New(ft, nil, []agent.Option{agent.WithMaxRetries(1)})
	require.True(t, a.Initialize(context.Background()))

	resp := a.HandleRequest(context.Background(), agent.Request{Tool: "restart_service", Parameters: map[string]any{}})
	assert.Equal(t, "error", resp.Status)
}
