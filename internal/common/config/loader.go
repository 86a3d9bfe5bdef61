// internal/common/config/loader.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like OPENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := loadMCPServerFile(&cfg); err != nil {
		return nil, fmt.Errorf("mcp server config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := loadMCPServerFile(&cfg); err != nil {
		return nil, fmt.Errorf("mcp server config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (for running from different directories)
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.OpenAI.APIKey == "" {
		if val := os.Getenv("OPENAI_API_KEY"); val != "" {
			cfg.OpenAI.APIKey = val
		}
	}
	if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
		cfg.OpenAI.BaseURL = val
	}
	if val := os.Getenv("OPENAI_MODEL"); val != "" {
		cfg.OpenAI.Model = val
	}
	if val := os.Getenv("HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
	if cfg.History.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.History.Redis.Password = val
		}
	}
	if cfg.History.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.History.Postgres.Password = val
		}
	}
}

// mcpServerFile mirrors the on-disk MCP server declaration. The file is
// materialized with defaults on first run and read back on later runs, so
// users can point the client at a different tool process without rebuilding.
type mcpServerFile struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func loadMCPServerFile(cfg *Config) error {
	path := cfg.MCP.ConfigPath
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return writeDefaultMCPServerFile(cfg, path)
	}
	if err != nil {
		return err
	}

	var file mcpServerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, server := range file.MCPServers {
		if server.Command != "" {
			cfg.MCP.Command = server.Command
			cfg.MCP.Args = server.Args
			if len(server.Env) > 0 {
				cfg.MCP.Env = server.Env
			}
		}
		break
	}
	return nil
}

func writeDefaultMCPServerFile(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file := mcpServerFile{
		MCPServers: map[string]mcpServerEntry{
			"context7": {Command: cfg.MCP.Command, Args: cfg.MCP.Args, Env: cfg.MCP.Env},
		},
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "context-chat"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Model defaults
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = 60000
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 1024
	}

	// Tool process defaults
	if cfg.MCP.Command == "" {
		cfg.MCP.Command = "npx"
		cfg.MCP.Args = []string{"-y", "@upstash/context7-mcp@latest"}
	}
	if cfg.MCP.ToolName == "" {
		cfg.MCP.ToolName = "search"
	}
	if cfg.MCP.StartupTimeout == 0 {
		cfg.MCP.StartupTimeout = 15000
	}
	if cfg.MCP.CallTimeout == 0 {
		cfg.MCP.CallTimeout = 30000
	}
	if cfg.MCP.MaxRetries == 0 {
		cfg.MCP.MaxRetries = 2
	}
	if cfg.MCP.ConfigPath == "" {
		cfg.MCP.ConfigPath = "configs/mcp.json"
	}

	// Stage timeout defaults
	if cfg.Pipeline.FormulateTimeout == 0 {
		cfg.Pipeline.FormulateTimeout = 30000
	}
	if cfg.Pipeline.SynthesizeTimeout == 0 {
		cfg.Pipeline.SynthesizeTimeout = 60000
	}

	// History defaults
	if cfg.History.Backend == "" {
		cfg.History.Backend = "file"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/history.json"
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 1000
	}
	if cfg.History.Postgres.SSLMode == "" {
		cfg.History.Postgres.SSLMode = "disable"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9102"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY)")
	}
	if cfg.MCP.Command == "" {
		return fmt.Errorf("mcp.command is required")
	}

	switch cfg.History.Backend {
	case "file":
		if cfg.History.Path == "" {
			return fmt.Errorf("history.path is required for the file backend")
		}
	case "redis":
		if cfg.History.Redis.Address == "" {
			return fmt.Errorf("history.redis.address is required for the redis backend")
		}
	case "postgres":
		if cfg.History.Postgres.Host == "" {
			return fmt.Errorf("history.postgres.host is required for the postgres backend")
		}
		if cfg.History.Postgres.Database == "" {
			return fmt.Errorf("history.postgres.database is required for the postgres backend")
		}
		if cfg.History.Postgres.User == "" {
			return fmt.Errorf("history.postgres.user is required for the postgres backend")
		}
	default:
		return fmt.Errorf("history.backend must be one of file, redis, postgres")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
