package mind

import (
	"log"
	"sync"
)

// RelationshipBackend is the durable-store contract for relationship maps.
// SaveRelationships has replace-all semantics for the guild.
type RelationshipBackend interface {
	LoadRelationships(guildID string) (map[string]Relationship, error)
	SaveRelationships(guildID string, rels map[string]Relationship) error
}

// Relationships is the process-wide per-guild relationship cache, lazily
// loaded from the backend and reconciled against live rosters. Each guild
// has its own lock so reconciliation and single-user edits on the same
// guild serialize without stalling other guilds.
type Relationships struct {
	backend RelationshipBackend
	def     Relationship
	mu      sync.Mutex
	guilds  map[string]*guildRelationships
}

type guildRelationships struct {
	mu     sync.Mutex
	loaded bool
	rels   map[string]Relationship
}

// NewRelationships creates the cache. def is the guild-level fallback
// returned for users without a stored relationship.
func NewRelationships(backend RelationshipBackend, def Relationship) *Relationships {
	return &Relationships{
		backend: backend,
		def:     def,
		guilds:  make(map[string]*guildRelationships),
	}
}

func (r *Relationships) guild(guildID string) *guildRelationships {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.guilds[guildID]
	if g == nil {
		g = &guildRelationships{rels: make(map[string]Relationship)}
		r.guilds[guildID] = g
	}
	return g
}

// ensureLoaded populates the guild cache from the backend once. A read
// failure falls back to an empty map so the pipeline keeps running on
// defaults; the load is retried on the next miss. Entries inserted while
// the backend was unreachable stay authoritative: the loaded map merges
// under the cache, never over it.
func (g *guildRelationships) ensureLoaded(guildID string, backend RelationshipBackend) {
	if g.loaded {
		return
	}
	rels, err := backend.LoadRelationships(guildID)
	if err != nil {
		log.Printf("[ERR] relationships load guild=%s: %v", guildID, err)
		return
	}
	for id, rel := range rels {
		if _, ok := g.rels[id]; !ok {
			g.rels[id] = rel
		}
	}
	g.loaded = true
}

// Get returns the relationship for (guild, user), or the guild default
// when absent. Never a zero value.
func (r *Relationships) Get(guildID, userID string) Relationship {
	g := r.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLoaded(guildID, r.backend)
	if rel, ok := g.rels[userID]; ok {
		return rel
	}
	return r.def
}

// Set persists the relationship (replace-all for the guild) and then
// refreshes the cache entry, so an edit survives even if a concurrent
// reconcile is about to write.
func (r *Relationships) Set(guildID, userID string, rel Relationship) error {
	g := r.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLoaded(guildID, r.backend)
	g.rels[userID] = rel
	if err := r.backend.SaveRelationships(guildID, copyRelationships(g.rels)); err != nil {
		return err
	}
	return nil
}

// Observe registers a first sighting of a user (message or member-add):
// inserts a default-derived relationship when none exists, or patches
// username/display-name/avatar drift on an existing one. Persists only
// when something changed.
func (r *Relationships) Observe(guildID string, m Member) {
	if m.Bot {
		return
	}
	g := r.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLoaded(guildID, r.backend)

	cur, ok := g.rels[m.ID]
	if !ok {
		rel := r.def
		rel.Username = m.Username
		rel.DisplayName = m.DisplayName
		rel.AvatarURL = m.AvatarURL
		g.rels[m.ID] = rel
	} else if patchMemberDrift(&cur, m) {
		g.rels[m.ID] = cur
	} else {
		return
	}

	if err := r.backend.SaveRelationships(guildID, copyRelationships(g.rels)); err != nil {
		log.Printf("[ERR] relationships save guild=%s user=%s: %v", guildID, m.ID, err)
	}
}

// Reconcile aligns the guild cache with the live member roster: first
// sightings get a default relationship, drifted names/avatars are patched,
// departed members are pruned, and the corrected map is persisted in one
// replace-all write when anything changed. Idempotent for an unchanged
// roster. A save failure keeps the corrected cache and is surfaced as a
// warning — the next reconcile writes it again.
func (r *Relationships) Reconcile(guildID string, members []Member) (bool, error) {
	g := r.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLoaded(guildID, r.backend)

	stale := make(map[string]bool, len(g.rels))
	for id := range g.rels {
		stale[id] = true
	}

	changed := false
	for _, m := range members {
		if m.Bot {
			continue
		}
		delete(stale, m.ID)
		cur, ok := g.rels[m.ID]
		if !ok {
			rel := r.def
			rel.Username = m.Username
			rel.DisplayName = m.DisplayName
			rel.AvatarURL = m.AvatarURL
			g.rels[m.ID] = rel
			changed = true
			continue
		}
		if patchMemberDrift(&cur, m) {
			g.rels[m.ID] = cur
			changed = true
		}
	}

	for id := range stale {
		delete(g.rels, id)
		changed = true
	}

	if !changed {
		return false, nil
	}
	if err := r.backend.SaveRelationships(guildID, copyRelationships(g.rels)); err != nil {
		log.Printf("[ERR] relationships reconcile save guild=%s: %v (cache kept)", guildID, err)
		return true, err
	}
	return true, nil
}

// Snapshot returns a copy of the guild's relationship map for prompt
// assembly.
func (r *Relationships) Snapshot(guildID string) map[string]Relationship {
	g := r.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureLoaded(guildID, r.backend)
	return copyRelationships(g.rels)
}

// Forget drops a guild from the cache (guild-leave).
func (r *Relationships) Forget(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guilds, guildID)
}

func patchMemberDrift(rel *Relationship, m Member) bool {
	changed := false
	if m.Username != "" && rel.Username != m.Username {
		rel.Username = m.Username
		changed = true
	}
	if m.DisplayName != "" && rel.DisplayName != m.DisplayName {
		rel.DisplayName = m.DisplayName
		changed = true
	}
	if m.AvatarURL != "" && rel.AvatarURL != m.AvatarURL {
		rel.AvatarURL = m.AvatarURL
		changed = true
	}
	return changed
}

func copyRelationships(in map[string]Relationship) map[string]Relationship {
	out := make(map[string]Relationship, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
