package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedOutputError is returned when model output is not valid JSON
// after fence stripping. Raw and Cleaned are both kept for diagnostics.
type MalformedOutputError struct {
	Raw     string
	Cleaned string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// SanitizeModelJSON trims the model's text, strips a wholly-wrapping
// markdown code fence if present, and parses the result as strict JSON
// into out. No repair beyond fence stripping is attempted.
func SanitizeModelJSON(raw string, out interface{}) error {
	cleaned := StripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &MalformedOutputError{Raw: raw, Cleaned: cleaned, Err: err}
	}
	return nil
}

// StripCodeFence removes a ``` or ```json fence that wraps the entire
// text. Text that is not wholly fenced comes back trimmed but otherwise
// unchanged.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	body = strings.TrimSuffix(body, "```")
	// The fence opener may carry a language tag on its own line. Models
	// are inconsistent about the tag's case.
	if idx := strings.Index(body, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(body[:idx])
		if strings.EqualFold(firstLine, "json") || firstLine == "" {
			body = body[idx+1:]
		}
	} else if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	return strings.TrimSpace(body)
}
