package mind

import (
	"context"
	"log"
	"strings"
	"time"

	"discordllmbot/internal/ai"

	"github.com/google/uuid"
)

// MaxReplyLength is the transport message limit; longer replies are
// truncated with a trailing ellipsis before sending.
const MaxReplyLength = 2000

// Ellipsis marks a truncated reply.
const Ellipsis = "…"

// PolicyBackend supplies per-guild configuration to the pipeline.
type PolicyBackend interface {
	GetReplyPolicy(guildID string) ReplyPolicy
	GetPersona(guildID string) Persona
	GuildName(guildID string) string
}

// Gateway is the narrow outbound surface of the chat transport.
type Gateway interface {
	SendTyping(channelID string)
	Reply(channelID, text string) error
}

// Runner wires the caches, decision engine, prompt assembler and provider
// client into the message-response pipeline. One Runner serves all guilds;
// each HandleMessage call is an independent pipeline instance.
type Runner struct {
	Relationships *Relationships
	Contexts      *Contexts
	policies      PolicyBackend
	provider      ai.Provider
	gateway       Gateway
	botID         string
	botName       string

	// Rand feeds the probability gate and the delay model; nil means
	// math/rand. Injected for seeded tests.
	Rand func() float64
	// sleep is swappable so tests skip the reply delay.
	sleep func(context.Context, time.Duration)
}

// NewRunner creates the pipeline. botID/botName identify the bot's own
// messages in context windows.
func NewRunner(rels *Relationships, ctxs *Contexts, policies PolicyBackend, provider ai.Provider, gateway Gateway, botID, botName string) *Runner {
	return &Runner{
		Relationships: rels,
		Contexts:      ctxs,
		policies:      policies,
		provider:      provider,
		gateway:       gateway,
		botID:         botID,
		botName:       botName,
		sleep:         sleepCtx,
	}
}

// HandleMessage runs one inbound message through the pipeline:
// observe author → append context → decide → delay → generate → truncate
// → send → record. Every failure path logs and returns the pipeline to
// idle; a failed message never takes the process down with it.
func (r *Runner) HandleMessage(ctx context.Context, in Inbound) {
	trace := uuid.NewString()[:8]
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ERR] pipeline panic trace=%s guild=%s channel=%s user=%s: %v",
				trace, in.GuildID, in.ChannelID, in.AuthorID, rec)
		}
	}()

	if in.GuildID == "" || in.ChannelID == "" || in.AuthorID == "" {
		return
	}
	if in.AuthorID == r.botID {
		return
	}

	r.Relationships.Observe(in.GuildID, Member{
		ID:          in.AuthorID,
		Username:    in.AuthorName,
		DisplayName: in.AuthorName,
		Bot:         in.AuthorBot,
	})

	entry := ContextEntry{AuthorID: in.AuthorID, Author: in.AuthorName, Content: in.Content}
	r.Contexts.Append(in.GuildID, in.ChannelID, entry)

	if in.AuthorBot {
		// Other bots feed context but never trigger replies.
		return
	}

	policy := r.policies.GetReplyPolicy(in.GuildID)
	rel := r.Relationships.Get(in.GuildID, in.AuthorID)
	window := r.Contexts.WindowBefore(in.GuildID, in.ChannelID, entry)

	decision := Decide(DecideInput{
		AuthorID:  in.AuthorID,
		ChannelID: in.ChannelID,
		Content:   in.Content,
		Mentioned: in.MentionsBot,
		Policy:    policy,
		Rel:       rel,
		Window:    window,
		BotID:     r.botID,
		Rand:      r.Rand,
	})
	if !decision.Reply {
		log.Printf("[CHAT] trace=%s guild=%s channel=%s user=%s no reply: %s",
			trace, in.GuildID, in.ChannelID, in.AuthorID, decision.Reason)
		LogDecision(trace, decision)
		return
	}
	log.Printf("[CHAT] trace=%s guild=%s channel=%s user=%s replying (%d checks)",
		trace, in.GuildID, in.ChannelID, in.AuthorID, len(decision.Checks))

	r.gateway.SendTyping(in.ChannelID)

	delay := ReplyDelay(
		time.Duration(policy.MinDelayMs)*time.Millisecond,
		time.Duration(policy.MaxDelayMs)*time.Millisecond,
		r.Rand,
	)
	if delay > 0 {
		r.sleep(ctx, delay)
	}

	guildName := r.policies.GuildName(in.GuildID)
	if guildName == "" {
		guildName = in.GuildName
	}
	prompt := BuildPrompt(
		r.policies.GetPersona(in.GuildID),
		rel,
		window,
		r.Relationships.Snapshot(in.GuildID),
		guildName,
		in.AuthorName,
		in.Content,
	)
	LogPrompt(trace, prompt)

	reply, err := r.provider.Generate(ctx, prompt)
	if err != nil {
		log.Printf("[ERR] trace=%s AI request failed: %v", trace, err)
		return
	}
	log.Printf("[AI] trace=%s tokens prompt=%d completion=%d",
		trace, reply.Usage.PromptTokens, reply.Usage.CompletionTokens)

	text := strings.TrimSpace(reply.Text)
	if text == "" {
		log.Printf("[CHAT] trace=%s empty reply, staying silent", trace)
		return
	}
	if truncated := TruncateReply(text, MaxReplyLength); truncated != text {
		log.Printf("[WARN] trace=%s reply truncated from %d chars", trace, len([]rune(text)))
		text = truncated
	}

	if err := r.gateway.Reply(in.ChannelID, text); err != nil {
		log.Printf("[ERR] trace=%s send failed channel=%s: %v", trace, in.ChannelID, err)
		return
	}

	// The bot's own reply becomes history for following turns.
	r.Contexts.Append(in.GuildID, in.ChannelID, ContextEntry{
		AuthorID: r.botID,
		Author:   r.botName,
		Content:  text,
	})
	log.Printf("[CHAT] trace=%s reply sent: %s", trace, truncateForLog(text, 120))
}

// TruncateReply bounds s to max characters, ending in the ellipsis marker
// when anything was cut.
func TruncateReply(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + Ellipsis
}

func truncateForLog(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
