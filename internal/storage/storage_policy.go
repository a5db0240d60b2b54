// /internal/storage/storage_policy.go
package storage

import (
	"discordllmbot/internal/mind"
)

// GetReplyPolicy returns the guild's reply policy, falling back to the
// configured process-wide defaults when no record exists.
func (s *Storage) GetReplyPolicy(guildID string) mind.ReplyPolicy {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil || record.ReplyPolicy == nil {
		return s.defaultReplyPolicy()
	}
	rp := record.ReplyPolicy
	return mind.ReplyPolicy{
		Mode:             mind.ParseMode(rp.Mode),
		RequireMention:   rp.RequireMention,
		ReplyProbability: rp.ReplyProbability,
		IgnoreUsers:      rp.IgnoreUsers,
		IgnoreChannels:   rp.IgnoreChannels,
		IgnoreKeywords:   rp.IgnoreKeywords,
		AllowChannels:    rp.AllowChannels,
		DenyChannels:     rp.DenyChannels,
		MinDelayMs:       rp.MinDelayMs,
		MaxDelayMs:       rp.MaxDelayMs,
	}
}

// SetReplyPolicy stores a per-guild policy override (control-plane entry point).
func (s *Storage) SetReplyPolicy(guildID string, rp ReplyPolicyRecord) error {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.ReplyPolicy = &rp
	s.ds.Add(guildID, record)
	return s.ds.SaveToFile()
}

func (s *Storage) defaultReplyPolicy() mind.ReplyPolicy {
	return mind.ReplyPolicy{
		Mode:             mind.ParseMode(s.cfg.ReplyMode),
		RequireMention:   s.cfg.ReplyRequireMention,
		ReplyProbability: s.cfg.ReplyProbability,
		MinDelayMs:       s.cfg.ReplyMinDelayMs,
		MaxDelayMs:       s.cfg.ReplyMaxDelayMs,
	}
}

// GetPersona returns the guild's persona override, or the built-in default.
func (s *Storage) GetPersona(guildID string) mind.Persona {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil || record.Persona == nil {
		return mind.DefaultPersona()
	}
	return *record.Persona
}

// SetPersona stores a per-guild persona override.
func (s *Storage) SetPersona(guildID string, p mind.Persona) error {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.Persona = &p
	s.ds.Add(guildID, record)
	return s.ds.SaveToFile()
}

// GetMemoryPolicy returns the guild's window sizing.
func (s *Storage) GetMemoryPolicy(guildID string) mind.MemoryPolicy {
	l := s.keyLock(guildID)
	l.Lock()
	defer l.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil || record.Memory == nil || record.Memory.MaxMessages <= 0 {
		return mind.MemoryPolicy{MaxMessages: s.cfg.MemoryMaxMessages}
	}
	return mind.MemoryPolicy{MaxMessages: record.Memory.MaxMessages}
}
