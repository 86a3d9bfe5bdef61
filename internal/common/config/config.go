// internal/common/config/config.go
package config

// Config is the full application configuration. Timeouts are expressed in
// milliseconds and converted with GetDuration at the call sites.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type MCPConfig struct {
	Command        string            `mapstructure:"command"`
	Args           []string          `mapstructure:"args"`
	Env            map[string]string `mapstructure:"env"`
	ToolName       string            `mapstructure:"tool_name"`
	StartupTimeout int               `mapstructure:"startup_timeout"`
	CallTimeout    int               `mapstructure:"call_timeout"`
	MaxRetries     int               `mapstructure:"max_retries"`
	ConfigPath     string            `mapstructure:"config_path"`
}

type PipelineConfig struct {
	FormulateTimeout  int `mapstructure:"formulate_timeout"`
	SynthesizeTimeout int `mapstructure:"synthesize_timeout"`
}

type HistoryConfig struct {
	Backend    string         `mapstructure:"backend"`
	Path       string         `mapstructure:"path"`
	MaxEntries int            `mapstructure:"max_entries"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
