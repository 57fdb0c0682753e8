// Package mcp implements toolproxy.Transport over the Model Context
// Protocol's JSON-RPC-over-HTTP wire format: a tools/call request per tool
// invocation, preceded by a one-time initialize handshake.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sre-agent-platform/sre-agent/pkg/toolproxy"
)

// DefaultProtocolVersion is the MCP protocol version negotiated when none is
// configured.
const DefaultProtocolVersion = "2024-11-05"

// Options configures a Client.
type Options struct {
	Endpoint        string
	HTTPClient      *http.Client
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
	InitTimeout     time.Duration
}

// Client implements toolproxy.Transport over JSON-RPC HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// New constructs a Client and performs the MCP initialize handshake.
func New(ctx context.Context, opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		return nil, errors.New("mcp: endpoint is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{endpoint: endpoint, http: httpClient}

	initCtx := ctx
	if opts.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, opts.InitTimeout)
		defer cancel()
	}
	protocol := opts.ProtocolVersion
	if protocol == "" {
		protocol = DefaultProtocolVersion
	}
	clientName := opts.ClientName
	if clientName == "" {
		clientName = "sre-agent"
	}
	clientVersion := opts.ClientVersion
	if clientVersion == "" {
		clientVersion = "dev"
	}
	payload := map[string]any{
		"protocolVersion": protocol,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	}
	if err := c.call(initCtx, "initialize", payload, nil); err != nil {
		return nil, fmt.Errorf("mcp: initialize failed: %w", err)
	}
	return c, nil
}

// CallTool invokes tools/call and normalizes the response into a
// toolproxy.CallResponse.
func (c *Client) CallTool(ctx context.Context, req toolproxy.CallRequest) (toolproxy.CallResponse, error) {
	params := map[string]any{
		"name":      req.Tool,
		"arguments": req.Payload,
	}
	var result toolsCallResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return toolproxy.CallResponse{}, err
	}
	return normalizeToolResult(result)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mcp: rpc status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		return json.Unmarshal(rpcResp.Result, result)
	}
	return nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type     string  `json:"type"`
	Text     *string `json:"text"`
	MimeType *string `json:"mimeType"`
}

func normalizeToolResult(result toolsCallResult) (toolproxy.CallResponse, error) {
	if len(result.Content) == 0 {
		return toolproxy.CallResponse{}, errors.New("mcp: empty response")
	}
	item := result.Content[0]
	if item.Text == nil {
		return toolproxy.CallResponse{}, errors.New("mcp: tool returned no text content")
	}

	textBytes := []byte(*item.Text)
	var payload json.RawMessage
	if json.Valid(textBytes) {
		payload = append(json.RawMessage(nil), textBytes...)
	} else {
		marshaled, err := json.Marshal(*item.Text)
		if err != nil {
			return toolproxy.CallResponse{}, err
		}
		payload = marshaled
	}

	var structured json.RawMessage
	if json.Valid(payload) {
		structured = append(json.RawMessage(nil), payload...)
	}
	return toolproxy.CallResponse{Result: payload, Structured: structured}, nil
}
