package discord

import (
	"context"
	"log"
	"time"

	"discordllmbot/internal/mind"

	"github.com/bwmarrin/discordgo"
)

// rosterReconcileInterval paces the background full-roster refresh; guild
// joins and member-add events keep the cache fresh in between.
const rosterReconcileInterval = 30 * time.Minute

// reconcileLoop periodically re-runs roster reconciliation for every
// connected guild so departures and renames are picked up even without
// gateway events.
func (b *Bot) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(rosterReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, g := range b.dg.State.Guilds {
				gc := &discordgo.GuildCreate{Guild: g}
				members, err := b.fetchRoster(b.dg, gc)
				if err != nil {
					log.Printf("[WARN] periodic roster fetch guild=%s: %v", g.ID, err)
					continue
				}
				if changed, err := b.rels.Reconcile(g.ID, members); err != nil {
					log.Printf("[ERR] periodic reconcile guild=%s: %v", g.ID, err)
				} else if changed {
					log.Printf("[INFO] periodic reconcile guild=%s members=%d", g.ID, len(members))
				}
			}
		}
	}
}

// onGuildCreate fires on startup for every known guild and on every new
// join. It books the guild name and reconciles the relationship cache
// against the live roster.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.rels == nil {
		return
	}
	if err := b.storage.SaveGuild(g.ID, g.Name); err != nil {
		log.Printf("[ERR] save guild %s: %v", g.ID, err)
	}

	members, err := b.fetchRoster(s, g)
	if err != nil {
		// Roster fetch can fail on rate limit or missing permission.
		// Fall back to the cached roster so reconciliation still runs
		// (and still patches drift) instead of aborting.
		log.Printf("[WARN] roster fetch guild=%s failed: %v, using cached roster", g.ID, err)
		members = b.rosterFromCache(g.ID)
	}

	changed, err := b.rels.Reconcile(g.ID, members)
	if err != nil {
		log.Printf("[ERR] reconcile guild=%s: %v", g.ID, err)
		return
	}
	if changed {
		log.Printf("[INFO] reconciled guild=%s members=%d", g.ID, len(members))
	}
}

// onGuildMemberAdd observes a new member so their first message already
// has a relationship.
func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if b.rels == nil || m.User == nil {
		return
	}
	b.rels.Observe(m.GuildID, memberOf(m.Member))
}

// onGuildDelete clears the guild's caches on leave/kick.
func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if b.rels == nil || g.Unavailable {
		return
	}
	b.rels.Forget(g.ID)
	b.ctxs.Forget(g.ID)
	log.Printf("[INFO] left guild %s, caches cleared", g.ID)
}

// fetchRoster prefers the members delivered with the event, then the REST
// endpoint.
func (b *Bot) fetchRoster(s *discordgo.Session, g *discordgo.GuildCreate) ([]mind.Member, error) {
	raw := g.Members
	if len(raw) == 0 {
		var err error
		raw, err = s.GuildMembers(g.ID, "", 1000)
		if err != nil {
			return nil, err
		}
	}
	members := make([]mind.Member, 0, len(raw))
	for _, m := range raw {
		if m.User == nil {
			continue
		}
		members = append(members, memberOf(m))
	}
	return members, nil
}

func (b *Bot) rosterFromCache(guildID string) []mind.Member {
	rels := b.rels.Snapshot(guildID)
	members := make([]mind.Member, 0, len(rels))
	for id, rel := range rels {
		members = append(members, mind.Member{
			ID:          id,
			Username:    rel.Username,
			DisplayName: rel.DisplayName,
			AvatarURL:   rel.AvatarURL,
		})
	}
	return members
}

func memberOf(m *discordgo.Member) mind.Member {
	display := m.Nick
	if display == "" {
		display = m.User.DisplayName()
	}
	return mind.Member{
		ID:          m.User.ID,
		Username:    m.User.Username,
		DisplayName: display,
		AvatarURL:   m.User.AvatarURL(""),
		Bot:         m.User.Bot,
	}
}
