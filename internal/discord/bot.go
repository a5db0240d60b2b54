package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"discordllmbot/internal/ai"
	"discordllmbot/internal/config"
	"discordllmbot/internal/mind"
	"discordllmbot/internal/storage"
	"discordllmbot/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
)

// Bot is the Discord gateway adapter: it turns gateway events into
// pipeline calls and implements mind.Gateway for the way back.
type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	storage *storage.Storage
	runner  *mind.Runner
	rels    *mind.Relationships
	ctxs    *mind.Contexts

	ctx      context.Context
	typingMu sync.Mutex
	typing   map[string]chan struct{}
}

// StartBot connects to Discord and blocks until ctx is canceled.
func StartBot(ctx context.Context, cfg *config.Config, store *storage.Storage, provider ai.Provider) error {
	b := &Bot{
		cfg:     cfg,
		storage: store,
		typing:  make(map[string]chan struct{}),
	}
	if err := b.run(ctx, cfg.DiscordToken, provider); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string, provider ai.Provider) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.ctx = ctx
	b.configureIntents()

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onGuildMemberAdd)
	dg.AddHandler(b.onGuildDelete)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	botUser := dg.State.User
	b.rels = mind.NewRelationships(b.storage, mind.DefaultRelationship())
	b.ctxs = mind.NewContexts(b.storage, b.cfg.MemoryMaxMessages)
	b.ctxs.MaxFor = func(guildID string) int {
		return b.storage.GetMemoryPolicy(guildID).MaxMessages
	}
	b.runner = mind.NewRunner(b.rels, b.ctxs, b.storage, provider, b, botUser.ID, botUser.Username)

	jm := jobmgr.NewManager(func(msg string) { log.Printf("[JOB] %s", msg) })
	defer jm.StopAll()
	if err := jm.StartAsync("roster-reconcile", b.reconcileLoop); err != nil {
		log.Printf("[ERR] start reconcile job: %v", err)
	}

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] Logged in as %s (%s), %d guilds", r.User.Username, r.User.ID, len(r.Guilds))
}

// onMessageCreate feeds every guild message into the pipeline. The
// pipeline runs in its own goroutine so a slow provider call never blocks
// other channels' events.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.runner == nil || m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return // no DM chatter
	}

	mentioned := false
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}

	in := mind.Inbound{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.DisplayName(),
		AuthorBot:   m.Author.Bot,
		Content:     m.Content,
		MentionsBot: mentioned,
	}
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		in.ChannelName = ch.Name
	}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		in.GuildName = g.Name
	}

	go b.runner.HandleMessage(b.ctx, in)
}

// SendTyping starts a typing keepalive for the channel; it stops when the
// reply goes out or after a hard timeout.
func (b *Bot) SendTyping(channelID string) {
	b.typingMu.Lock()
	if _, active := b.typing[channelID]; active {
		b.typingMu.Unlock()
		return
	}
	done := make(chan struct{})
	b.typing[channelID] = done
	b.typingMu.Unlock()

	go b.keepTyping(channelID, done)
}

// Reply sends the text and stops the typing keepalive.
func (b *Bot) Reply(channelID, text string) error {
	b.stopTyping(channelID)
	_, err := b.dg.ChannelMessageSend(channelID, text)
	return err
}

func (b *Bot) stopTyping(channelID string) {
	b.typingMu.Lock()
	defer b.typingMu.Unlock()
	if done, active := b.typing[channelID]; active {
		close(done)
		delete(b.typing, channelID)
	}
}

func (b *Bot) keepTyping(channelID string, done <-chan struct{}) {
	_ = b.dg.ChannelTyping(channelID)
	ticker := time.NewTicker(8 * time.Second)
	timeout := time.NewTimer(90 * time.Second)
	defer ticker.Stop()
	defer timeout.Stop()
	for {
		select {
		case <-done:
			return
		case <-timeout.C:
			b.stopTyping(channelID)
			return
		case <-ticker.C:
			_ = b.dg.ChannelTyping(channelID)
		}
	}
}
