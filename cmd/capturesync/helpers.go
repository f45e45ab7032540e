package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"capturesync/internal/api"
)

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(raw string) string {
	ts := api.ParseAPITime(raw)
	if ts.IsZero() {
		return ""
	}
	return humanize.RelTime(ts, time.Now(), "ago", "from now")
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
