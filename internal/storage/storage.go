// /internal/storage/storage.go
package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"discordllmbot/datastore"
	"discordllmbot/internal/config"
	"discordllmbot/internal/mind"
)

// Storage is the typed per-guild record layer over the datastore. One
// record per guild id, plus one history record per (guild, channel).
// Every record mutation is a whole-record read-modify-write, so each
// datastore key gets its own lock; two writers on the same guild
// serialize instead of the second erasing the first's field.
type Storage struct {
	ds  *datastore.DataStore
	cfg *config.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Record is everything stored under a guild id.
type Record struct {
	GuildName     string                       `json:"guild_name,omitempty"`
	Relationships map[string]mind.Relationship `json:"relationships"`
	ReplyPolicy   *ReplyPolicyRecord           `json:"reply_policy,omitempty"`
	Persona       *mind.Persona                `json:"persona,omitempty"`
	Memory        *MemoryRecord                `json:"memory,omitempty"`
}

// ReplyPolicyRecord is the stored per-guild reply behavior. Mode is kept
// as a string so the JSON stays hand-editable; unknown strings fall back
// to mention-only on read.
type ReplyPolicyRecord struct {
	Mode             string   `json:"mode"`
	RequireMention   bool     `json:"require_mention"`
	ReplyProbability float64  `json:"reply_probability"`
	IgnoreUsers      []string `json:"ignore_users,omitempty"`
	IgnoreChannels   []string `json:"ignore_channels,omitempty"`
	IgnoreKeywords   []string `json:"ignore_keywords,omitempty"`
	AllowChannels    []string `json:"allow_channels,omitempty"`
	DenyChannels     []string `json:"deny_channels,omitempty"`
	MinDelayMs       int      `json:"min_delay_ms"`
	MaxDelayMs       int      `json:"max_delay_ms"`
}

// MemoryRecord is the stored per-guild memory sizing.
type MemoryRecord struct {
	MaxMessages int `json:"max_messages"`
}

func New(filePath string, cfg *config.Config) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds, cfg: cfg, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// keyLock returns the mutex guarding one datastore key (guild record or
// channel history).
func (s *Storage) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.locks[key]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// getOrCreateGuildRecord returns the guild record, materializing a fresh
// one when absent. The datastore hands back generic JSON, so the record
// round-trips through json to regain its shape. Callers hold the guild's
// key lock.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{
			Relationships: map[string]mind.Relationship{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if record.Relationships == nil {
		record.Relationships = map[string]mind.Relationship{}
	}

	return &record, nil
}

// SaveGuild records the guild's display name (used in prompts after restart).
func (s *Storage) SaveGuild(guildID, name string) error {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	if record.GuildName == name {
		return nil
	}
	record.GuildName = name
	s.ds.Add(guildID, record)
	return nil
}

// GuildName returns the stored guild name, or "".
func (s *Storage) GuildName(guildID string) string {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return ""
	}
	return record.GuildName
}

// LoadRelationships returns the persisted relationship map for a guild.
func (s *Storage) LoadRelationships(guildID string) (map[string]mind.Relationship, error) {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.Relationships, nil
}

// SaveRelationships replaces the guild's whole relationship map in one
// operation and flushes to disk, so reconciliation writes are all-or-nothing.
func (s *Storage) SaveRelationships(guildID string, rels map[string]mind.Relationship) error {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Relationships = rels
	s.ds.Add(guildID, record)
	return s.ds.SaveToFile()
}
