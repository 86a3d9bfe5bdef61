// internal/history/store.go
// Package history persists completed conversation exchanges. Writes are
// best-effort from the pipeline's point of view; a failed Append is reported
// to the caller and never interrupts a run.
package history

import (
	"context"
	"fmt"

	"context-chat/internal/common/config"
	"context-chat/internal/models"
)

// Store is the conversation history capability. Clear with no arguments
// drops everything; with conversation IDs it drops only those conversations.
type Store interface {
	Append(ctx context.Context, record models.ConversationRecord) error
	List(ctx context.Context) ([]models.ConversationRecord, error)
	Clear(ctx context.Context, conversationID ...string) error
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// New builds the store selected by the history configuration.
func New(cfg *config.HistoryConfig, log Logger) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.Path, cfg.MaxEntries, log), nil
	case "redis":
		return NewRedisStore(&cfg.Redis, cfg.MaxEntries, log), nil
	case "postgres":
		return OpenPostgresStore(&cfg.Postgres, cfg.MaxEntries, log)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
