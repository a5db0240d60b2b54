package mind

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"discordllmbot/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolicies struct {
	policy ReplyPolicy
}

func (f *fakePolicies) GetReplyPolicy(guildID string) ReplyPolicy { return f.policy }
func (f *fakePolicies) GetPersona(guildID string) Persona         { return DefaultPersona() }
func (f *fakePolicies) GuildName(guildID string) string           { return "Test Server" }

type fakeProvider struct {
	mu      sync.Mutex
	reply   ai.Reply
	err     error
	prompts []string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (ai.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

type fakeGateway struct {
	mu      sync.Mutex
	typing  []string
	replies []string
	err     error
}

func (f *fakeGateway) SendTyping(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, channelID)
}

func (f *fakeGateway) Reply(channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, text)
	return nil
}

func newTestRunner(provider ai.Provider, gateway Gateway, policy ReplyPolicy) *Runner {
	store := newMemStore()
	r := NewRunner(
		NewRelationships(store, DefaultRelationship()),
		NewContexts(store, 10),
		&fakePolicies{policy: policy},
		provider,
		gateway,
		"bot-1",
		"Echo",
	)
	r.sleep = func(context.Context, time.Duration) {}
	return r
}

func inbound(content string, mentioned bool) Inbound {
	return Inbound{
		GuildID:     "g1",
		GuildName:   "Fallback Server",
		ChannelID:   "c1",
		ChannelName: "general",
		AuthorID:    "u1",
		AuthorName:  "alice",
		Content:     content,
		MentionsBot: mentioned,
	}
}

func TestHandleMessageReplies(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "hello alice"}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("hi @Echo", true))

	require.Len(t, gateway.replies, 1)
	assert.Equal(t, "hello alice", gateway.replies[0])
	assert.Equal(t, []string{"c1"}, gateway.typing)

	// Both the trigger and the bot's reply land in the window.
	window := r.Contexts.Window("g1", "c1")
	require.Len(t, window, 2)
	assert.Equal(t, "u1", window[0].AuthorID)
	assert.Equal(t, ContextEntry{AuthorID: "bot-1", Author: "Echo", Content: "hello alice"}, window[1])
}

func TestHandleMessageRejectionIsSilent(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "should not appear"}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("no mention here", false))

	assert.Empty(t, gateway.replies)
	assert.Empty(t, gateway.typing, "rejected message must not trigger typing")
	assert.Empty(t, provider.prompts, "rejected message must not reach the provider")

	// The message still feeds the context window.
	assert.Len(t, r.Contexts.Window("g1", "c1"), 1)
}

func TestHandleMessageIgnoresOwnMessages(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "echo"}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	in := inbound("talking to myself", true)
	in.AuthorID = "bot-1"
	r.HandleMessage(context.Background(), in)

	assert.Empty(t, gateway.replies)
	assert.Empty(t, r.Contexts.Window("g1", "c1"))
}

func TestHandleMessageBotAuthorsFeedContextOnly(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "echo"}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	in := inbound("beep boop", true)
	in.AuthorID = "other-bot"
	in.AuthorBot = true
	r.HandleMessage(context.Background(), in)

	assert.Empty(t, gateway.replies)
	assert.Len(t, r.Contexts.Window("g1", "c1"), 1)
	assert.Empty(t, r.Relationships.Snapshot("g1"), "bot authors get no relationship")
}

func TestHandleMessageTruncatesLongReplies(t *testing.T) {
	long := strings.Repeat("a", 2050)
	provider := &fakeProvider{reply: ai.Reply{Text: long}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("hi", true))

	require.Len(t, gateway.replies, 1)
	sent := gateway.replies[0]
	assert.Equal(t, MaxReplyLength, len([]rune(sent)))
	assert.True(t, strings.HasSuffix(sent, Ellipsis))
}

func TestHandleMessageProviderFailureStaysSilent(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream down")}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("hi", true))

	assert.Empty(t, gateway.replies)
	// No bot entry was recorded.
	assert.Len(t, r.Contexts.Window("g1", "c1"), 1)
}

func TestHandleMessageEmptyReplyStaysSilent(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "   "}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("hi", true))

	assert.Empty(t, gateway.replies)
}

func TestHandleMessageSendFailureKeepsReplyOutOfContext(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "hello"}}
	gateway := &fakeGateway{err: errors.New("channel gone")}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("hi", true))

	assert.Len(t, r.Contexts.Window("g1", "c1"), 1, "unsent reply must not pollute history")
}

func TestHandleMessagePromptExcludesTrigger(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "sure"}}
	gateway := &fakeGateway{}
	r := newTestRunner(provider, gateway, basePolicy())

	r.HandleMessage(context.Background(), inbound("earlier message", true))
	r.HandleMessage(context.Background(), inbound("the trigger", true))

	require.Len(t, provider.prompts, 2)
	last := provider.prompts[1]
	assert.Contains(t, last, "alice: earlier message")
	assert.NotContains(t, last, "alice: the trigger", "trigger must not be echoed into the transcript")
	assert.Contains(t, last, "alice says: the trigger")
}

func TestHandleMessageObservesAuthor(t *testing.T) {
	provider := &fakeProvider{reply: ai.Reply{Text: "hi"}}
	r := newTestRunner(provider, &fakeGateway{}, basePolicy())

	r.HandleMessage(context.Background(), inbound("hello", false))

	snap := r.Relationships.Snapshot("g1")
	require.Contains(t, snap, "u1")
	assert.Equal(t, "alice", snap["u1"].Username)
}

func TestTruncateReply(t *testing.T) {
	assert.Equal(t, "short", TruncateReply("short", 10))

	got := TruncateReply(strings.Repeat("é", 15), 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.Equal(t, strings.Repeat("é", 9)+Ellipsis, got)
}

func TestTruncateForLogKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncateForLog("short", 10))

	got := truncateForLog(strings.Repeat("é", 15), 10)
	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
	assert.Equal(t, strings.Repeat("é", 10)+"...", got)
}

func TestHandleMessageSurvivesPanic(t *testing.T) {
	r := newTestRunner(&fakeProvider{}, &fakeGateway{}, basePolicy())
	r.Rand = func() float64 { panic("entropy source exploded") }
	r.policies = &fakePolicies{policy: ReplyPolicy{Mode: ModeMentionOnly, ReplyProbability: 0.5}}

	assert.NotPanics(t, func() {
		r.HandleMessage(context.Background(), inbound("hi", true))
	})
}
