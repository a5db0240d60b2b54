// /internal/storage/storage_messages.go
package storage

import (
	"encoding/json"
	"fmt"

	"discordllmbot/internal/mind"
)

// durableHistoryLimit caps what one channel keeps on disk. Larger than any
// sane in-memory window so a restart can reseed the full window.
const durableHistoryLimit = 200

func historyKey(guildID, channelID string) string {
	return "history:" + guildID + ":" + channelID
}

// AppendMessage durably appends one message to a channel's history,
// trimming the stored slice to durableHistoryLimit oldest-first.
func (s *Storage) AppendMessage(guildID, channelID string, entry mind.ContextEntry) error {
	key := historyKey(guildID, channelID)
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	entries, err := s.loadHistory(key)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > durableHistoryLimit {
		entries = entries[len(entries)-durableHistoryLimit:]
	}
	s.ds.Add(key, entries)
	return nil
}

// LoadRecentMessages returns the last limit durable entries, oldest first.
func (s *Storage) LoadRecentMessages(guildID, channelID string, limit int) ([]mind.ContextEntry, error) {
	key := historyKey(guildID, channelID)
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	entries, err := s.loadHistory(key)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (s *Storage) loadHistory(key string) ([]mind.ContextEntry, error) {
	data, exists := s.ds.Get(key)
	if !exists {
		return nil, nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling history: %w", err)
	}
	var entries []mind.ContextEntry
	if err := json.Unmarshal(jsonData, &entries); err != nil {
		return nil, fmt.Errorf("error unmarshalling history: %w", err)
	}
	return entries, nil
}
