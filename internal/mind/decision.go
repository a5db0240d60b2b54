package mind

import (
	"fmt"
	"math/rand"
	"strings"
)

// Check is one evaluated step of the decision chain, kept for the audit trail.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Decision is the outcome of one reply-decision evaluation. Transient —
// logged, never persisted.
type Decision struct {
	Reply  bool
	Reason string
	Checks []Check
}

// DecideInput bundles everything the chain reads (no I/O — pure Go).
type DecideInput struct {
	AuthorID  string
	ChannelID string
	Content   string
	Mentioned bool
	Policy    ReplyPolicy
	Rel       Relationship
	Window    []ContextEntry
	BotID     string // author id the bot records its own replies under

	// Rand is the probability-gate sample source; nil means math/rand.
	// Injected so seeded tests can pin the roll.
	Rand func() float64
}

// Decide runs the ordered reply-decision chain. The first failing check
// terminates with Reply=false and a human-readable reason; the chain order
// is a behavioral contract — ignore checks run before the probability roll
// so messages that can never qualify consume no entropy.
func Decide(in DecideInput) Decision {
	var d Decision
	fail := func(name, reason string) Decision {
		d.Checks = append(d.Checks, Check{Name: name, Passed: false, Detail: reason})
		d.Reply = false
		d.Reason = reason
		return d
	}
	pass := func(name, detail string) {
		d.Checks = append(d.Checks, Check{Name: name, Passed: true, Detail: detail})
	}

	// 1. Global mode
	if in.Policy.Mode == ModeDisabled {
		return fail("mode", "replies are disabled for this guild")
	}
	pass("mode", in.Policy.Mode.String())

	// 2. Author ignore-list
	if containsString(in.Policy.IgnoreUsers, in.AuthorID) {
		return fail("ignore-users", fmt.Sprintf("author %s is on the guild ignore-list", in.AuthorID))
	}
	pass("ignore-users", "")

	// 3. Channel scoping: global ignore set, then allow/deny override.
	// A non-empty allow-list wins over any deny-list.
	if containsString(in.Policy.IgnoreChannels, in.ChannelID) {
		return fail("ignore-channels", fmt.Sprintf("channel %s is ignored", in.ChannelID))
	}
	if len(in.Policy.AllowChannels) > 0 {
		if !containsString(in.Policy.AllowChannels, in.ChannelID) {
			return fail("channel-allow", fmt.Sprintf("channel %s is not on the allow-list", in.ChannelID))
		}
	} else if len(in.Policy.DenyChannels) > 0 && containsString(in.Policy.DenyChannels, in.ChannelID) {
		return fail("channel-deny", fmt.Sprintf("channel %s is on the deny-list", in.ChannelID))
	}
	pass("channels", "")

	// 4. Keyword filter — case-insensitive substring match
	lower := strings.ToLower(in.Content)
	for _, kw := range in.Policy.IgnoreKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return fail("ignore-keywords", fmt.Sprintf("message contains ignored keyword %q", kw))
		}
	}
	pass("ignore-keywords", "")

	// 5. Per-user ignored flag
	if in.Rel.Ignored {
		return fail("relationship", fmt.Sprintf("user %s is marked ignored", in.AuthorID))
	}
	pass("relationship", "")

	// 6. Strategy evaluation by mode
	would := strategyWouldReply(in)
	pass("strategy", fmt.Sprintf("mode=%s would_reply=%t", in.Policy.Mode, would))

	// 7. Mention requirement — the override valve for non-active modes
	if in.Policy.RequireMention && !in.Mentioned && in.Policy.Mode != ModeActive {
		return fail("mention", "a mention is required and the bot was not mentioned")
	}
	pass("mention", "")

	// 8. Strategy result
	if !would {
		return fail("strategy-result", fmt.Sprintf("%s strategy declined", in.Policy.Mode))
	}
	pass("strategy-result", "")

	// 9. Probability gate — strictly last so earlier rejections never roll
	p := in.Policy.ReplyProbability
	switch {
	case p <= 0:
		return fail("probability", "reply probability is zero")
	case p < 1:
		rnd := in.Rand
		if rnd == nil {
			rnd = rand.Float64
		}
		if roll := rnd(); roll > p {
			return fail("probability", fmt.Sprintf("roll %.3f exceeded probability %.3f", roll, p))
		}
		pass("probability", fmt.Sprintf("p=%.3f", p))
	default:
		pass("probability", "p=1")
	}

	d.Reply = true
	d.Reason = "all checks passed"
	return d
}

// strategyWouldReply answers "would this mode reply at all" from message,
// mention and window shape. Exhaustive over the closed Mode set.
func strategyWouldReply(in DecideInput) bool {
	switch in.Policy.Mode {
	case ModeDisabled:
		return false
	case ModeActive:
		return true
	case ModePassive:
		// Mentioned, or continuing a conversation the bot spoke in last.
		if in.Mentioned {
			return true
		}
		if n := len(in.Window); n > 0 && in.Window[n-1].AuthorID == in.BotID {
			return true
		}
		return false
	default: // ModeMentionOnly
		return in.Mentioned
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
