package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// IsTrivialNote reports whether database note text carries no content: empty,
// whitespace, or an empty JSON object or array left behind by the editor.
func IsTrivialNote(text string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	switch compact {
	case "", "{}", "[]", "null", `""`:
		return true
	}
	return false
}

// inlineNote builds the fallback candidate for database note text.
func inlineNote(slug string, recordID int64, text string) Candidate {
	base := strings.TrimSpace(slug)
	if base == "" {
		base = fmt.Sprintf("record-%d", recordID)
	}
	ext := ".md"
	trimmed := strings.TrimSpace(text)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)) {
		ext = ".json"
	}
	data := []byte(text)
	return Candidate{
		Name:   base + ext,
		Size:   int64(len(data)),
		Kind:   KindNote,
		Inline: data,
	}
}
