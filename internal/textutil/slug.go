package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wordSplitPattern matches runs of characters that separate slug words.
var wordSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// significantWordLength is the minimum rune count (exclusive) for a title word
// to take part in fuzzy directory matching.
const significantWordLength = 3

// Fold lowercases text and strips diacritics so "Café Réunion" and
// "cafe reunion" compare equal.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// Slugify converts a display title into the folder slug used for record
// directories: "Team Sync (Q3)" becomes "team-sync-q3". Returns "" when the
// title has no letters or digits.
func Slugify(title string) string {
	slug := wordSplitPattern.ReplaceAllString(Fold(strings.TrimSpace(title)), "-")
	return strings.Trim(slug, "-")
}

// Words splits text into folded alphanumeric words.
func Words(text string) []string {
	raw := wordSplitPattern.Split(Fold(text), -1)
	words := make([]string, 0, len(raw))
	for _, word := range raw {
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

// SignificantWords returns the distinct words of title longer than three
// characters, in first-seen order.
func SignificantWords(title string) []string {
	words := Words(title)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) <= significantWordLength {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

// ContainsFold reports whether needle occurs in haystack after both are folded.
func ContainsFold(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), needle)
}
