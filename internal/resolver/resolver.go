package resolver

import (
	"fmt"
	"path"
	"strings"

	"capturesync/internal/textutil"
)

// Strategy names how a candidate directory was found.
type Strategy string

const (
	StrategyCanonical Strategy = "canonical"
	StrategySession   Strategy = "session"
	StrategyTitle     Strategy = "title"
)

// Target is the record being resolved.
type Target struct {
	RecordID    int64
	Title       string
	Slug        string
	SessionKeys []string
}

// Directory is one child of a date bucket.
type Directory struct {
	Name  string
	Files []string
}

// Bucket is a snapshot of a date directory.
type Bucket struct {
	// Path is the bucket location relative to the notes root, e.g. "2025-03-12".
	Path string
	Dirs []Directory
}

// Candidate is a directory that may hold the record's artifacts.
type Candidate struct {
	// Path is relative to the notes root.
	Path      string
	Name      string
	Strategy  Strategy
	Canonical bool
	Files     []string
	// SessionFiles lists the files whose names embed a session key.
	SessionFiles []string
}

// DefaultSessionKey is the key capture builds use when naming audio files.
func DefaultSessionKey(recordID int64) string {
	return fmt.Sprintf("session%d", recordID)
}

// SessionKeys returns the deduplicated, lowercased session keys for a record:
// its explicit identifiers followed by the default key.
func SessionKeys(recordID int64, sessionIDs ...string) []string {
	keys := make([]string, 0, len(sessionIDs)+1)
	seen := make(map[string]struct{}, len(sessionIDs)+1)
	add := func(value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		keys = append(keys, value)
	}
	for _, id := range sessionIDs {
		add(id)
	}
	if recordID > 0 {
		add(DefaultSessionKey(recordID))
	}
	return keys
}

// Resolve returns candidate directories for target, most likely first.
//
// Strategies run in order and their results are concatenated without
// duplicates: the canonical slug directory, directories holding a file that
// embeds a session key, then directories whose name contains a significant
// word of the title. An empty result is valid.
func Resolve(target Target, bucket Bucket) []Candidate {
	var out []Candidate
	seen := make(map[string]struct{}, len(bucket.Dirs))
	add := func(dir Directory, strategy Strategy, canonical bool) {
		if _, ok := seen[dir.Name]; ok {
			return
		}
		seen[dir.Name] = struct{}{}
		out = append(out, Candidate{
			Path:         path.Join(bucket.Path, dir.Name),
			Name:         dir.Name,
			Strategy:     strategy,
			Canonical:    canonical,
			Files:        append([]string(nil), dir.Files...),
			SessionFiles: SessionMatches(dir.Files, target.SessionKeys),
		})
	}

	slug := strings.TrimSpace(target.Slug)
	if slug == "" {
		slug = textutil.Slugify(target.Title)
	}
	if slug != "" {
		for _, dir := range bucket.Dirs {
			if isCanonical(dir.Name, slug) {
				add(dir, StrategyCanonical, true)
				break
			}
		}
	}

	if len(target.SessionKeys) > 0 {
		for _, dir := range bucket.Dirs {
			if len(SessionMatches(dir.Files, target.SessionKeys)) > 0 {
				add(dir, StrategySession, false)
			}
		}
	}

	if words := textutil.SignificantWords(target.Title); len(words) > 0 {
		for _, dir := range bucket.Dirs {
			folded := textutil.Fold(dir.Name)
			for _, word := range words {
				if strings.Contains(folded, word) {
					add(dir, StrategyTitle, false)
					break
				}
			}
		}
	}

	return out
}

func isCanonical(name, slug string) bool {
	return strings.EqualFold(name, slug) || textutil.Slugify(name) == strings.ToLower(slug)
}

// SessionMatches returns the files whose names embed any of keys.
func SessionMatches(files []string, keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	var matches []string
	for _, file := range files {
		lowered := strings.ToLower(file)
		for _, key := range keys {
			if embedsKey(lowered, key) {
				matches = append(matches, file)
				break
			}
		}
	}
	return matches
}

// embedsKey reports whether key occurs in name without being part of a longer
// number, so "session4" does not match "session42.opus".
func embedsKey(name, key string) bool {
	if key == "" {
		return false
	}
	for offset := 0; offset <= len(name)-len(key); {
		idx := strings.Index(name[offset:], key)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(key)
		if !digitJoin(name, start-1, key[0]) && !digitJoin(name, end, key[len(key)-1]) {
			return true
		}
		offset = start + 1
	}
	return false
}

func digitJoin(name string, pos int, edge byte) bool {
	if pos < 0 || pos >= len(name) {
		return false
	}
	return isDigit(edge) && isDigit(name[pos])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
