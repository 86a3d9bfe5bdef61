// internal/history/file.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"context-chat/internal/models"
)

// FileStore keeps history as one JSON array on disk, capped at maxEntries.
// A mutex serializes writes; reads share it so List never sees a torn file.
type FileStore struct {
	path       string
	maxEntries int
	logger     Logger

	mu sync.Mutex
}

func NewFileStore(path string, maxEntries int, log Logger) *FileStore {
	return &FileStore{
		path:       path,
		maxEntries: maxEntries,
		logger:     log,
	}
}

func (s *FileStore) Append(ctx context.Context, record models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	records = append(records, record)
	if s.maxEntries > 0 && len(records) > s.maxEntries {
		records = records[len(records)-s.maxEntries:]
	}

	return s.save(records)
}

func (s *FileStore) List(ctx context.Context) ([]models.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Clear(ctx context.Context, conversationID ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(conversationID) == 0 {
		return s.save([]models.ConversationRecord{})
	}

	records, err := s.load()
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(conversationID))
	for _, id := range conversationID {
		drop[id] = true
	}
	kept := records[:0]
	for _, record := range records {
		if !drop[record.ConversationID] {
			kept = append(kept, record)
		}
	}
	return s.save(kept)
}

func (s *FileStore) load() ([]models.ConversationRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []models.ConversationRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var records []models.ConversationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse history file: %w", err)
	}
	return records, nil
}

// save writes through a temp file and renames it into place so a crash
// mid-write cannot corrupt the history.
func (s *FileStore) save(records []models.ConversationRecord) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
