package services

import (
	"sort"
	"strings"

	"github.com/datasight/backend/internal/models"
)

// TranscriptEntry is one rendered turn of a topic conversation.
type TranscriptEntry struct {
	Role string
	Text string
}

// AssembleChatContext orders a topic's messages strictly by their store
// timestamp and renders them for transcript use. Messages without parts
// (legacy rows) become empty-text entries; the output always has one entry
// per input message.
func AssembleChatContext(messages []models.ChatMessage) []TranscriptEntry {
	sorted := make([]models.ChatMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	entries := make([]TranscriptEntry, len(sorted))
	for i, msg := range sorted {
		entries[i] = TranscriptEntry{
			Role: string(msg.Role),
			Text: msg.Text(),
		}
	}
	return entries
}

// RenderTranscript formats the ordered entries as the role-prefixed block
// consumed by the chat prompt.
func RenderTranscript(entries []TranscriptEntry) string {
	if len(entries) == 0 {
		return "(no prior messages)"
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Role + ": " + e.Text
	}
	return strings.Join(lines, "\n")
}
