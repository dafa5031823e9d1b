package core

import "strings"

const (
	titleMaxLength = 80
	fallbackTitle  = "Untitled Chat"
)

var titleStripper = strings.NewReplacer(`"`, "", `'`, "", `:`, "")

// TitleFromMessage derives a chat title from the first user message: trim,
// truncate to 80 characters with an ellipsis, drop quote and colon characters,
// and fall back to a placeholder so a chat never ends up untitled.
func TitleFromMessage(content string) string {
	title := strings.TrimSpace(content)

	if runes := []rune(title); len(runes) > titleMaxLength {
		title = string(runes[:titleMaxLength-3]) + "..."
	}

	title = titleStripper.Replace(title)

	if title == "" {
		title = fallbackTitle
	}
	return title
}
