// internal/history/postgres.go
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"context-chat/internal/common/config"
	"context-chat/internal/models"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS conversation_history (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	message TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps history in a single table, capped at maxEntries rows.
type PostgresStore struct {
	db         *sql.DB
	maxEntries int
	logger     Logger
}

// OpenPostgresStore connects to Postgres and ensures the schema exists.
func OpenPostgresStore(cfg *config.PostgresConfig, maxEntries int, log Logger) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(db, maxEntries, log)
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection; the caller owns its lifetime.
func NewPostgresStore(db *sql.DB, maxEntries int, log Logger) *PostgresStore {
	return &PostgresStore{
		db:         db,
		maxEntries: maxEntries,
		logger:     log,
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, record models.ConversationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_history (conversation_id, message, answer, created_at) VALUES ($1, $2, $3, $4)`,
		record.ConversationID, record.Message, record.Answer, record.Timestamp)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM conversation_history WHERE id NOT IN (SELECT id FROM conversation_history ORDER BY id DESC LIMIT $1)`,
			s.maxEntries)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, message, answer, created_at FROM conversation_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []models.ConversationRecord
	for rows.Next() {
		var record models.ConversationRecord
		if err := rows.Scan(&record.ConversationID, &record.Message, &record.Answer, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Clear(ctx context.Context, conversationID ...string) error {
	if len(conversationID) == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_history`); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_history WHERE conversation_id = ANY($1)`,
		pq.Array(conversationID))
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
