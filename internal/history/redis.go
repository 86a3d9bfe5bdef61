// internal/history/redis.go
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"context-chat/internal/common/config"
	"context-chat/internal/models"
)

const redisHistoryKey = "context-chat:history"

// RedisStore keeps history as a Redis list, trimmed to the newest maxEntries.
type RedisStore struct {
	client     *redis.Client
	key        string
	maxEntries int
	logger     Logger
}

func NewRedisStore(cfg *config.RedisConfig, maxEntries int, log Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisStoreWithClient(client, maxEntries, log)
}

func newRedisStoreWithClient(client *redis.Client, maxEntries int, log Logger) *RedisStore {
	return &RedisStore{
		client:     client,
		key:        redisHistoryKey,
		maxEntries: maxEntries,
		logger:     log,
	}
}

func (s *RedisStore) Append(ctx context.Context, record models.ConversationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	if s.maxEntries > 0 {
		pipe.LTrim(ctx, s.key, int64(-s.maxEntries), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.ConversationRecord, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	records := make([]models.ConversationRecord, 0, len(raw))
	for _, item := range raw {
		var record models.ConversationRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			s.logger.Warn("skipping undecodable history entry", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationID ...string) error {
	if len(conversationID) == 0 {
		if err := s.client.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		return nil
	}

	// The list holds opaque JSON entries, so a scoped clear rewrites the
	// list without the dropped conversations.
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(conversationID))
	for _, id := range conversationID {
		drop[id] = true
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	for _, record := range records {
		if drop[record.ConversationID] {
			continue
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		pipe.RPush(ctx, s.key, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
