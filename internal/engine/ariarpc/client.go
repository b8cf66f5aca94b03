package ariarpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"towline/internal/config"
	"towline/internal/engine"
	"towline/internal/faults"
)

const defaultHTTPTimeout = 10 * time.Second

// Client speaks aria2's JSON-RPC 2.0 dialect over HTTP. The secret token, if
// configured, is injected as the first positional parameter of every call
// the way aria2 expects.
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	nextID     atomic.Int64
}

// Option customizes the RPC client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an engine client from configuration.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.Engine.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Engine.RequestTimeout) * time.Second
	}
	client := &Client{
		endpoint:   strings.TrimSpace(cfg.Engine.RPCURL),
		secret:     cfg.Engine.RPCSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ engine.Engine = (*Client)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// transferInfo is the subset of aria2's tellStatus payload towline reads.
// aria2 serializes all numeric fields as decimal strings.
type transferInfo struct {
	GID             string `json:"gid"`
	Status          string `json:"status"`
	CompletedLength string `json:"completedLength"`
	TotalLength     string `json:"totalLength"`
	ErrorMessage    string `json:"errorMessage"`
}

var statusFields = []string{"gid", "status", "completedLength", "totalLength", "errorMessage"}

// Submit registers the locator with the engine, directing output to the
// destination path's directory and filename.
func (c *Client) Submit(ctx context.Context, locator, destination string) (engine.Handle, error) {
	options := map[string]string{
		"dir": filepath.Dir(destination),
		"out": filepath.Base(destination),
	}
	var gid string
	if err := c.call(ctx, "aria2.addUri", []any{[]string{locator}, options}, &gid); err != nil {
		return "", err
	}
	return engine.Handle(gid), nil
}

// Pause suspends a transfer, keeping partial data on disk.
func (c *Client) Pause(ctx context.Context, handle engine.Handle) error {
	var gid string
	return c.call(ctx, "aria2.pause", []any{string(handle)}, &gid)
}

// Resume restarts a paused transfer.
func (c *Client) Resume(ctx context.Context, handle engine.Handle) error {
	var gid string
	return c.call(ctx, "aria2.unpause", []any{string(handle)}, &gid)
}

// Cancel removes a transfer from the engine. A handle the engine already
// forgot is treated as success so cancellation stays idempotent.
func (c *Client) Cancel(ctx context.Context, handle engine.Handle) error {
	var gid string
	err := c.call(ctx, "aria2.remove", []any{string(handle)}, &gid)
	if err == nil || errors.Is(err, engine.ErrUnknownHandle) {
		return nil
	}
	return err
}

// Status fetches a transfer snapshot.
func (c *Client) Status(ctx context.Context, handle engine.Handle) (engine.Status, error) {
	var info transferInfo
	if err := c.call(ctx, "aria2.tellStatus", []any{string(handle), statusFields}, &info); err != nil {
		return engine.Status{}, err
	}
	return mapStatus(info), nil
}

// ListActive returns the handles of transfers the engine is moving bytes for.
func (c *Client) ListActive(ctx context.Context) ([]engine.Handle, error) {
	var infos []transferInfo
	if err := c.call(ctx, "aria2.tellActive", []any{statusFields}, &infos); err != nil {
		return nil, err
	}
	handles := make([]engine.Handle, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, engine.Handle(info.GID))
	}
	return handles, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if c.secret != "" {
		params = append([]any{"token:" + c.secret}, params...)
	}
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      strconv.FormatInt(c.nextID.Add(1), 10),
		Method:  method,
		Params:  params,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "decode response", err)
	}
	if rpcResp.Error != nil {
		if isNotFoundMessage(rpcResp.Error.Message) {
			return fmt.Errorf("%w: %s", engine.ErrUnknownHandle, rpcResp.Error.Message)
		}
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method,
			fmt.Sprintf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message), nil)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return faults.Wrap(faults.ErrEngineUnavailable, "ariarpc", method, "decode result", err)
	}
	return nil
}

func isNotFoundMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), "not found")
}

func mapStatus(info transferInfo) engine.Status {
	status := engine.Status{
		Transferred: parseLength(info.CompletedLength),
		Total:       parseLength(info.TotalLength),
	}
	switch info.Status {
	case "active":
		status.State = engine.StateActive
	case "waiting":
		status.State = engine.StateQueued
	case "paused":
		status.State = engine.StatePaused
	case "complete":
		status.State = engine.StateComplete
	case "removed":
		status.State = engine.StateError
		status.Reason = "removed by engine"
	default:
		status.State = engine.StateError
		status.Reason = info.ErrorMessage
		if status.Reason == "" {
			status.Reason = "engine reported status " + info.Status
		}
	}
	return status
}

func parseLength(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
