// internal/common/mcp/client_test.go
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("DEBUG: %s %v", msg, fields)
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

// helperClient builds a Client whose tool process is this test binary
// re-executed as a fake MCP server (see TestHelperProcess).
func helperClient(t *testing.T, mode string) *Client {
	config := &Config{
		Command:        os.Args[0],
		Args:           []string{"-test.run=TestHelperProcess$"},
		Env:            []string{"GO_WANT_HELPER_PROCESS=1", "FAKE_MCP_MODE=" + mode},
		StartupTimeout: 5 * time.Second,
		CallTimeout:    500 * time.Millisecond,
		MaxRetries:     1,
	}
	return NewClient(config, NewTestLogger(t))
}

func TestClient_CallTool_Success(t *testing.T) {
	client := helperClient(t, "ok")
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	text, err := client.CallTool(context.Background(), "search", map[string]interface{}{
		"query": "go concurrency",
	})

	assert.NoError(t, err)
	assert.Contains(t, text, "Go Concurrency Patterns")
}

func TestClient_CallTool_EmptyResult(t *testing.T) {
	client := helperClient(t, "empty")
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	text, err := client.CallTool(context.Background(), "search", map[string]interface{}{
		"query": "anything",
	})

	// An empty list is a valid transport-level response; interpretation is
	// the retriever's job.
	assert.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestClient_CallTool_RPCError(t *testing.T) {
	client := helperClient(t, "error")
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	_, err := client.CallTool(context.Background(), "search", map[string]interface{}{
		"query": "anything",
	})

	assert.ErrorIs(t, err, ErrToolCall)
}

func TestClient_CallTool_SilentToolTimesOut(t *testing.T) {
	client := helperClient(t, "silent")
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	start := time.Now()
	_, err := client.CallTool(context.Background(), "search", map[string]interface{}{
		"query": "anything",
	})

	assert.ErrorIs(t, err, ErrToolUnavailable)
	// One original attempt plus one retry, both bounded by CallTimeout.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_Start_BadCommand(t *testing.T) {
	config := &Config{
		Command:        "/nonexistent/definitely-not-a-binary",
		StartupTimeout: time.Second,
		CallTimeout:    time.Second,
	}
	client := NewClient(config, NewTestLogger(t))

	err := client.Start(context.Background())

	assert.ErrorIs(t, err, ErrToolStart)
}

func TestClient_Stop_Idempotent(t *testing.T) {
	client := helperClient(t, "ok")
	require.NoError(t, client.Start(context.Background()))

	client.Stop()
	client.Stop()
}

func TestClient_CallTool_AfterProcessExit(t *testing.T) {
	client := helperClient(t, "ok")
	require.NoError(t, client.Start(context.Background()))
	client.Stop()

	_, err := client.CallTool(context.Background(), "search", map[string]interface{}{
		"query": "anything",
	})

	assert.ErrorIs(t, err, ErrToolUnavailable)
}

// TestHelperProcess is not a real test. It acts as a fake MCP server when the
// test binary is re-executed by helperClient.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	mode := os.Getenv("FAKE_MCP_MODE")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	out := bufio.NewWriter(os.Stdout)

	reply := func(id int64, result interface{}) {
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result}
		data, _ := json.Marshal(resp)
		fmt.Fprintf(out, "%s\n", data)
		out.Flush()
	}
	replyError := func(id int64, code int, msg string) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      id,
			"error":   map[string]interface{}{"code": code, "message": msg},
		}
		data, _ := json.Marshal(resp)
		fmt.Fprintf(out, "%s\n", data)
		out.Flush()
	}

	for scanner.Scan() {
		var req struct {
			ID     *int64 `json:"id"`
			Method string `json:"method"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if req.ID == nil {
			continue // notification
		}

		switch req.Method {
		case "initialize":
			reply(*req.ID, map[string]interface{}{
				"protocolVersion": protocolVersion,
				"serverInfo":      map[string]string{"name": "fake-mcp", "version": "0.0.1"},
			})
		case "tools/call":
			switch mode {
			case "ok":
				docs := `[{"title":"Go Concurrency Patterns","content":"Share memory by communicating.","source":"blog.golang.org","relevanceScore":0.92}]`
				reply(*req.ID, map[string]interface{}{
					"content": []map[string]string{{"type": "text", "text": docs}},
				})
			case "empty":
				reply(*req.ID, map[string]interface{}{
					"content": []map[string]string{{"type": "text", "text": "[]"}},
				})
			case "error":
				replyError(*req.ID, -32000, "tool exploded")
			case "silent":
				// never answer tools/call
			}
		}
	}
	os.Exit(0)
}
