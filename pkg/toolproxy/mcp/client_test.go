package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy"
	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy/mcp"
)

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      uint64          `json:"id"`
	Params  json.RawMessage `json:"params"`
}

func newTestServer(t *testing.T, onToolsCall func(params json.RawMessage) (any, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Method {
		case "initialize":
			writeRPCResult(w, req.ID, map[string]any{"protocolVersion": "2024-11-05"})
		case "tools/call":
			result, err := onToolsCall(req.Params)
			if err != nil {
				writeRPCError(w, req.ID, -32000, err.Error())
				return
			}
			writeRPCResult(w, req.ID, result)
		default:
			writeRPCError(w, req.ID, -32601, "method not found")
		}
	}))
}

func writeRPCResult(w http.ResponseWriter, id uint64, result any) {
	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func writeRPCError(w http.ResponseWriter, id uint64, code int, message string) {
	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": id,
		"error": map[string]any{"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func TestCallToolDecodesJSONTextContent(t *testing.T) {
	srv := newTestServer(t, func(json.RawMessage) (any, error) {
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"healthy":true}`}},
		}, nil
	})
	defer srv.Close()

	c, err := mcp.New(context.Background(), mcp.Options{Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := c.CallTool(context.Background(), toolproxy.CallRequest{Tool: "check_health", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"healthy":true}`, string(resp.Result))
	assert.JSONEq(t, `{"healthy":true}`, string(resp.Structured))
}

func TestCallToolSurfacesRPCError(t *testing.T) {
	srv := newTestServer(t, func(json.RawMessage) (any, error) {
		return nil, assert.AnError
	})
	defer srv.Close()

	c, err := mcp.New(context.Background(), mcp.Options{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.CallTool(context.Background(), toolproxy.CallRequest{Tool: "restart_service", Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestNewFailsWithoutEndpoint(t *testing.T) {
	_, err := mcp.New(context.Background(), mcp.Options{})
	assert.Error(t, err)
}
