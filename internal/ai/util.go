package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// decodeChatCompletion parses an OpenAI-style completion body into a
// Reply, cleaning the text and rejecting garbage.
func decodeChatCompletion(provider string, body []byte) (Reply, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Reply{}, &Error{Provider: provider, Msg: "unmarshal: " + err.Error() + " body=" + truncate(body), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return Reply{}, &Error{Provider: provider, Msg: "empty choices"}
	}

	text := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(text) {
		return Reply{}, &Error{Provider: provider, Msg: "returned garbage"}
	}
	return Reply{Text: text, Usage: parsed.Usage}, nil
}

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)
	if strings.Contains(l, "<html") {
		return true
	}
	if strings.Contains(l, "not allowed") {
		return true
	}
	return len(strings.TrimSpace(s)) < 2
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// cleanReply strips <think> blocks and symmetric wrapping quotes.
func cleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = thinkBlockRe.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}

	return reply
}
