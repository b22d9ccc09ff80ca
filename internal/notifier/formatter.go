package notifier

import (
	"fmt"
	"strings"
	"time"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes the characters Telegram's legacy Markdown treats as markup.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatStartup is sent once when the bot starts, before the broker login.
func FormatStartup(label string, every time.Duration) string {
	var b strings.Builder
	b.WriteString("📊 *Indian Market Bot Started* (SmartAPI)\n")
	b.WriteString(fmt.Sprintf("Watching %s every %s", EscapeMarkdown(label), every))
	return b.String()
}

// PhotoCaption is the fixed caption attached to every chart.
func PhotoCaption(label string) string {
	return fmt.Sprintf("📊 %s Analysis", label)
}
