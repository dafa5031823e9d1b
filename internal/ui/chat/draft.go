package chat

import (
	"os"

	"chatrelay/internal/client"
)

// The draft file is the terminal's stand-in for the browser's local-storage
// draft cache: whatever sits unsent in the input line survives a restart.

func loadDraft() string {
	path, err := client.DraftPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func saveDraft(content string) {
	path, err := client.DraftPath()
	if err != nil {
		return
	}
	if content == "" {
		_ = os.Remove(path)
		return
	}
	_ = os.WriteFile(path, []byte(content), 0o600)
}

func clearDraft() {
	saveDraft("")
}
