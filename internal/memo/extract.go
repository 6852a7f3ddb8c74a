package memo

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractionError reports a missing or unparseable field in reasoning
// output. Critical extraction paths fail on it; non-critical paths catch it
// and default.
type ExtractionError struct {
	Label  string
	Reason string
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %s", e.Label, e.Reason)
}

// ExtractField parses the `| Label | value |` grammar: the value is
// everything after the labelled pipe segment up to the next pipe, trimmed.
// The label match is literal, so callers pass markers like
// "| Total PFT Rewarded |" or "Verifying Question |" exactly as the prompt
// demands them.
func ExtractField(text, marker string) (string, error) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", ExtractionError{Label: marker, Reason: "marker not found"}
	}
	rest := text[idx+len(marker):]
	if end := strings.Index(rest, "|"); end >= 0 {
		rest = rest[:end]
	}
	value := strings.TrimSpace(rest)
	if value == "" {
		return "", ExtractionError{Label: marker, Reason: "empty value"}
	}
	return value, nil
}

// ExtractInt extracts a field and parses the first integer token in it.
func ExtractInt(text, marker string) (int, error) {
	value, err := ExtractField(text, marker)
	if err != nil {
		return 0, err
	}
	for _, tok := range strings.Fields(value) {
		tok = strings.Trim(tok, ".,")
		if n, err := strconv.Atoi(tok); err == nil {
			return n, nil
		}
	}
	return 0, ExtractionError{Label: marker, Reason: fmt.Sprintf("no integer in %q", value)}
}

// Between returns the text between two literal markers, trimmed. Used for
// the verification-details section of context documents.
func Between(text, start, end string) (string, bool) {
	i := strings.Index(text, start)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}
