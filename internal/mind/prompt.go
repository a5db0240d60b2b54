package mind

import (
	"fmt"
	"strings"
)

// unknownAttitude is rendered for context participants without a stored
// relationship, so a missing record never breaks assembly.
const unknownAttitude = "unknown — treat them neutrally"

// BuildPrompt renders the full model prompt. Pure and deterministic for
// identical inputs (snapshot-testable): persona, speaking style, global
// rules, guild, the triggering user's relationship, compact summaries for
// every distinct author in the window, the transcript, and finally the
// triggering message. Participant summaries cover the window only, so
// prompt size is bounded by the window and not by guild size.
func BuildPrompt(p Persona, rel Relationship, window []ContextEntry, guildRels map[string]Relationship, guildName, username, message string) string {
	var b strings.Builder

	b.WriteString("You are ")
	b.WriteString(p.Name)
	b.WriteString(". ")
	b.WriteString(p.Description)
	b.WriteString("\n")

	if len(p.Style) > 0 {
		b.WriteString("\nSpeaking style:\n")
		for _, s := range p.Style {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	if len(p.Rules) > 0 {
		b.WriteString("\nRules:\n")
		for _, r := range p.Rules {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}

	if guildName != "" {
		b.WriteString("\nServer: ")
		b.WriteString(guildName)
		b.WriteString("\n")
	}

	b.WriteString("\n--- Your relationship with ")
	b.WriteString(username)
	b.WriteString(" ---\n")
	b.WriteString("Attitude: ")
	b.WriteString(rel.Attitude)
	b.WriteString("\n")
	for _, d := range rel.Behavior {
		b.WriteString("Behavior: ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	for _, bd := range rel.Boundaries {
		b.WriteString("Boundary: ")
		b.WriteString(bd)
		b.WriteString("\n")
	}

	if parts := participantLines(window, guildRels); len(parts) > 0 {
		b.WriteString("\n--- People in this conversation ---\n")
		for _, line := range parts {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(window) > 0 {
		b.WriteString("\n--- Recent conversation ---\n")
		for _, e := range window {
			b.WriteString(e.Author)
			b.WriteString(": ")
			b.WriteString(e.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(username)
	b.WriteString(" says: ")
	b.WriteString(message)
	b.WriteString("\n")

	return b.String()
}

// participantLines returns one summary line per distinct author id in the
// window, in first-appearance order. Missing relationships render the
// synthetic unknown attitude.
func participantLines(window []ContextEntry, guildRels map[string]Relationship) []string {
	seen := make(map[string]bool)
	var lines []string
	for _, e := range window {
		if e.AuthorID == "" || seen[e.AuthorID] {
			continue
		}
		seen[e.AuthorID] = true
		rel, ok := guildRels[e.AuthorID]
		attitude := rel.Attitude
		if !ok || attitude == "" {
			attitude = unknownAttitude
		}
		line := fmt.Sprintf("%s: attitude %s", e.Author, attitude)
		if ok && len(rel.Boundaries) > 0 {
			line += "; boundaries: " + strings.Join(rel.Boundaries, "; ")
		}
		lines = append(lines, line)
	}
	return lines
}
