// internal/common/config/loader_test.go
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "npx", cfg.MCP.Command)
	assert.Equal(t, []string{"-y", "@upstash/context7-mcp@latest"}, cfg.MCP.Args)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, "data/history.json", cfg.History.Path)
	assert.Equal(t, 1000, cfg.History.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.OpenAI.Model = "gpt-4o"
	cfg.History.MaxEntries = 50
	applyDefaults(cfg)

	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 50, cfg.History.MaxEntries)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid file backend",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "missing api key",
			mutate:  func(cfg *Config) { cfg.OpenAI.APIKey = "" },
			wantErr: "openai.api_key",
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.History.Backend = "dynamo" },
			wantErr: "history.backend",
		},
		{
			name:    "redis backend needs address",
			mutate:  func(cfg *Config) { cfg.History.Backend = "redis" },
			wantErr: "history.redis.address",
		},
		{
			name: "postgres backend needs host",
			mutate: func(cfg *Config) {
				cfg.History.Backend = "postgres"
				cfg.History.Postgres.Database = "db"
				cfg.History.Postgres.User = "u"
			},
			wantErr: "history.postgres.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			cfg.OpenAI.APIKey = "sk-test"
			tt.mutate(cfg)

			err := validateConfig(cfg)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration(30000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestLoadMCPServerFile_MaterializesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.MCP.ConfigPath = path

	require.NoError(t, loadMCPServerFile(cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file mcpServerFile
	require.NoError(t, json.Unmarshal(data, &file))
	require.Contains(t, file.MCPServers, "context7")
	assert.Equal(t, "npx", file.MCPServers["context7"].Command)
}

func TestLoadMCPServerFile_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	existing := `{"mcpServers":{"custom":{"command":"/usr/local/bin/my-tool","args":["--stdio"],"env":{"API_TOKEN":"tok-123"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.MCP.ConfigPath = path

	require.NoError(t, loadMCPServerFile(cfg))

	assert.Equal(t, "/usr/local/bin/my-tool", cfg.MCP.Command)
	assert.Equal(t, []string{"--stdio"}, cfg.MCP.Args)
	assert.Equal(t, map[string]string{"API_TOKEN": "tok-123"}, cfg.MCP.Env)
}

func TestLoadMCPServerFile_RejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.MCP.ConfigPath = path

	assert.Error(t, loadMCPServerFile(cfg))
}
