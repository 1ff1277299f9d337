// Package prompts contains the LLM prompt templates.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates use fmt.Sprintf interpolation and can be validated
// by tests. Each prompt gets an exported function that accepts the
// dynamic parts and returns the fully interpolated string.
package prompts

import (
	"fmt"
	"strings"
	"time"
)

// systemTemplate is the base system prompt. The dynamic parts are
// today's date and the requesting user's memory block.
const systemTemplate = `You are a helpful assistant in a Slack workspace. Be concise and helpful.
Always format your responses using standard Markdown syntax
(e.g. **bold**, *italic*, [links](url), - bullet lists, ` + "```code blocks```" + `).

Today's date is %s.

User messages are prefixed with the sender's name in brackets, like
"[dana]: hello" — use the name to tell participants apart, but never
prefix your own replies that way.

When a 'User Memory' section is present below, treat it as established
context — you already know these things. Don't ask users to repeat
information you've stored.`

// SystemPrompt builds the per-request system instructions. userMemory
// is the requesting user's full memory file; when empty, no memory
// section is appended.
func SystemPrompt(today time.Time, userMemory string) string {
	prompt := fmt.Sprintf(systemTemplate, today.Format("2006-01-02"))
	if m := strings.TrimSpace(userMemory); m != "" {
		prompt += "\n\n" + m
	}
	return prompt
}
