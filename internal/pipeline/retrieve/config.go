// internal/pipeline/retrieve/config.go
package retrieve

type Config struct {
	ToolName string
	// MaxQueryAttempts is fixed at one query per user turn. The field exists
	// so a bounded reformulate-and-retry loop can be configured later without
	// changing the handler surface.
	MaxQueryAttempts int
}

func LoadConfig() *Config {
	return &Config{
		ToolName:         "search",
		MaxQueryAttempts: 1,
	}
}
