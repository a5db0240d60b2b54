package mind

import (
	"log"
	"sync"
)

// MessageBackend is the durable-store contract for channel history. The
// in-memory window is a cache; the backend is authoritative beyond it.
type MessageBackend interface {
	AppendMessage(guildID, channelID string, entry ContextEntry) error
	LoadRecentMessages(guildID, channelID string, limit int) ([]ContextEntry, error)
}

// Contexts holds the bounded short-term history per (guild, channel).
// Each channel has its own lock, which doubles as the single-writer
// discipline: appends for one channel serialize, other channels don't wait.
type Contexts struct {
	backend MessageBackend
	max     int
	// MaxFor, when set, overrides the window bound per guild (memory
	// policy lookups). Set once at wiring time, before traffic.
	MaxFor func(guildID string) int
	mu     sync.Mutex
	chans  map[string]*channelWindow
}

type channelWindow struct {
	mu      sync.Mutex
	seeded  bool
	entries []ContextEntry
}

// NewContexts creates the registry. max bounds every window (FIFO, oldest
// evicted first).
func NewContexts(backend MessageBackend, max int) *Contexts {
	if max <= 0 {
		max = 30
	}
	return &Contexts{
		backend: backend,
		max:     max,
		chans:   make(map[string]*channelWindow),
	}
}

func (c *Contexts) maxFor(guildID string) int {
	if c.MaxFor != nil {
		if n := c.MaxFor(guildID); n > 0 {
			return n
		}
	}
	return c.max
}

func (c *Contexts) channel(guildID, channelID string) *channelWindow {
	key := guildID + ":" + channelID
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.chans[key]
	if w == nil {
		w = &channelWindow{}
		c.chans[key] = w
	}
	return w
}

// seed loads the last window from durable history on first touch, so
// context survives a process restart. A load failure leaves an empty
// window rather than blocking the pipeline.
func (w *channelWindow) seed(c *Contexts, guildID, channelID string) {
	if w.seeded {
		return
	}
	w.seeded = true
	max := c.maxFor(guildID)
	entries, err := c.backend.LoadRecentMessages(guildID, channelID, max)
	if err != nil {
		log.Printf("[ERR] context seed guild=%s channel=%s: %v", guildID, channelID, err)
		return
	}
	w.entries = entries
	w.trim(max)
}

// Append pushes one message to the window and durably persists it. The
// window is trimmed to the configured maximum, oldest first.
func (c *Contexts) Append(guildID, channelID string, entry ContextEntry) {
	w := c.channel(guildID, channelID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seed(c, guildID, channelID)
	w.entries = append(w.entries, entry)
	w.trim(c.maxFor(guildID))
	if err := c.backend.AppendMessage(guildID, channelID, entry); err != nil {
		log.Printf("[ERR] context persist guild=%s channel=%s: %v", guildID, channelID, err)
	}
}

// Window returns the current window, oldest first (copy).
func (c *Contexts) Window(guildID, channelID string) []ContextEntry {
	w := c.channel(guildID, channelID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seed(c, guildID, channelID)
	out := make([]ContextEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// WindowBefore returns the window with one trailing occurrence of entry
// removed. The triggering message is appended before the decision is made
// and must not be echoed into the transcript the model reads.
func (c *Contexts) WindowBefore(guildID, channelID string, entry ContextEntry) []ContextEntry {
	window := c.Window(guildID, channelID)
	if n := len(window); n > 0 && window[n-1] == entry {
		window = window[:n-1]
	}
	return window
}

// Forget drops every window of a guild (guild-leave).
func (c *Contexts) Forget(guildID string) {
	prefix := guildID + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.chans {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.chans, key)
		}
	}
}

func (w *channelWindow) trim(max int) {
	if len(w.entries) > max {
		w.entries = w.entries[len(w.entries)-max:]
	}
}
