// internal/common/mcp/client.go
// Package mcp runs an MCP-style knowledge tool as a child process and speaks
// JSON-RPC 2.0 with it over stdin/stdout.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"context-chat/internal/common/metrics"
)

var (
	ErrToolStart       = errors.New("TOOL_START_FAILED")
	ErrToolUnavailable = errors.New("TOOL_UNAVAILABLE")
	ErrToolCall        = errors.New("TOOL_CALL_FAILED")
)

const protocolVersion = "2024-11-05"

// Config holds the tool process settings. Env entries are appended to the
// inherited environment, matching the env block of an MCP server declaration.
type Config struct {
	Command        string
	Args           []string
	Env            []string
	StartupTimeout time.Duration
	CallTimeout    time.Duration
	MaxRetries     int
}

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client owns one tool process for its lifetime. Start and Stop bracket a
// session; CallTool is safe for sequential use between them.
type Client struct {
	config *Config
	logger Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *rpcResponse
	dead    chan struct{}

	stopOnce sync.Once
}

func NewClient(config *Config, log Logger) *Client {
	return &Client{
		config:  config,
		logger:  log,
		pending: make(map[int64]chan *rpcResponse),
		dead:    make(chan struct{}),
	}
}

// Start launches the tool process and performs the initialize handshake.
// A failure here is fatal for the session; the caller must not retry CallTool.
func (c *Client) Start(ctx context.Context) error {
	cmd := exec.Command(c.config.Command, c.config.Args...)
	if len(c.config.Env) > 0 {
		cmd.Env = append(os.Environ(), c.config.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrToolStart, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrToolStart, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrToolStart, err)
	}

	c.cmd = cmd
	c.stdin = stdin

	go c.readLoop(stdout)

	initCtx, cancel := context.WithTimeout(ctx, c.config.StartupTimeout)
	defer cancel()

	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "context-chat",
			"version": "1.0.0",
		},
	}
	if _, err := c.call(initCtx, "initialize", params); err != nil {
		c.Stop()
		return fmt.Errorf("%w: initialize: %v", ErrToolStart, err)
	}

	if err := c.notify("notifications/initialized", nil); err != nil {
		c.Stop()
		return fmt.Errorf("%w: initialized notification: %v", ErrToolStart, err)
	}

	c.logger.Info("tool process started", map[string]interface{}{
		"command": c.config.Command,
		"pid":     cmd.Process.Pid,
	})
	return nil
}

// Stop terminates the tool process. Safe to call more than once and on
// partially started clients.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		if c.stdin != nil {
			_ = c.stdin.Close()
		}
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}

		done := make(chan struct{})
		go func() {
			_ = c.cmd.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			_ = c.cmd.Process.Kill()
			<-done
		}

		c.logger.Info("tool process stopped", nil)
	})
}

// toolCallResult mirrors the MCP tools/call result shape.
type toolCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// CallTool invokes a named tool and returns its raw text payload unparsed.
// The call is retried with exponential backoff on transport failures; an
// exhausted retry budget maps to ErrToolUnavailable.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	params := map[string]interface{}{
		"name":      name,
		"arguments": arguments,
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ToolCallRetries.Inc()
			c.logger.Warn("retrying tool call", map[string]interface{}{
				"tool":    name,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrToolUnavailable, ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
		result, err := c.call(callCtx, "tools/call", params)
		cancel()
		if err == nil {
			return parseToolResult(result)
		}

		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// The tool answered with a protocol-level error; retrying the
			// same request will not change the outcome.
			return "", fmt.Errorf("%w: %v", ErrToolCall, rpcErr)
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", ErrToolUnavailable, lastErr)
}

func parseToolResult(raw json.RawMessage) (string, error) {
	var result toolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: decode result: %v", ErrToolCall, err)
	}
	if result.IsError {
		return "", fmt.Errorf("%w: tool reported an error", ErrToolCall)
	}

	var parts []string
	for _, content := range result.Content {
		if content.Type == "text" {
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	select {
	case <-c.dead:
		c.mu.Unlock()
		return nil, fmt.Errorf("tool process exited")
	default:
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("tool process closed the connection")
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-c.dead:
		return nil, fmt.Errorf("tool process exited")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string, params interface{}) error {
	return c.write(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) write(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.stdin.Write(append(data, '\n'))
	return err
}

// readLoop pumps responses off stdout and routes them by request id.
// Notifications and unsolicited messages are dropped.
func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Debug("skipping non-JSON output line", map[string]interface{}{
				"line": string(line),
			})
			continue
		}
		if resp.ID == nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}

	c.mu.Lock()
	close(c.dead)
	c.mu.Unlock()
}
