package xapi

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/technojoe/claude-token-share/internal/models"
)

// Share message templates, picked at random per post. The {tokens}
// placeholder is replaced with the formatted token count.
var (
	adminTemplates = []string{
		"I used {tokens} tokens with Claude in 2025! #ClaudeAI #AI2025",
		"My Claude usage this year: {tokens} tokens! #ClaudeAI #AI2025",
		"{tokens} tokens with Claude in 2025 and counting! #ClaudeAI #AI2025",
	}

	localTemplates = []string{
		"I used {tokens} tokens with Claude Code in 2025! \U0001F916✨ #ClaudeCode #AI2025",
		"My Claude Code total for 2025: {tokens} tokens! #ClaudeCode #AI2025",
		"{tokens} tokens of Claude Code in 2025! #ClaudeCode #AI2025",
	}
)

// FormatTokenCount renders a token count in a compact human form:
// 1234 becomes "1.23K", 1234567 becomes "1.23M" and so on.
func FormatTokenCount(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// BuildShareMessage creates the post text for a usage total, choosing a
// template appropriate to the data source and appending a link back to the
// app when appURL is set.
func BuildShareMessage(totalTokens int64, source models.DataSource, appURL string) string {
	templates := adminTemplates
	if source == models.SourceLocalFiles {
		templates = localTemplates
	}

	tpl := templates[rand.Intn(len(templates))]
	msg := strings.ReplaceAll(tpl, "{tokens}", FormatTokenCount(totalTokens))

	if appURL != "" {
		msg += "\n\n\U0001F4CA Check your usage: " + appURL
	}
	return msg
}
