package mind

import "log"

// LogPrompt logs a bounded preview of the assembled prompt right before
// the provider call.
func LogPrompt(trace, prompt string) {
	preview := prompt
	if runes := []rune(preview); len(runes) > 500 {
		preview = string(runes[:500]) + "..."
	}
	log.Printf("[MIND] trace=%s prompt_len=%d preview: %s", trace, len(prompt), preview)
}

// LogDecision logs the audit trail of one decision at debug verbosity.
func LogDecision(trace string, d Decision) {
	for i, c := range d.Checks {
		status := "ok"
		if !c.Passed {
			status = "fail"
		}
		detail := ""
		if c.Detail != "" {
			detail = " " + c.Detail
		}
		log.Printf("[MIND] trace=%s check[%d] %s=%s%s", trace, i, c.Name, status, detail)
	}
}
