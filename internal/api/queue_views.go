package api

import (
	"cmp"
	"slices"
	"time"
)

// SortQueueItemsNewestFirst orders queue items by CreatedAt descending, breaking ties by ID descending.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b QueueItem) int {
		if c := parseAPITime(b.CreatedAt).Compare(parseAPITime(a.CreatedAt)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sorted
}

// SortRecordsByBucket orders records by date bucket descending, then title.
func SortRecordsByBucket(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		if c := cmp.Compare(b.DateBucket, a.DateBucket); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return sorted
}

func parseAPITime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseAPITime exposes payload timestamp parsing for consumers that need display formatting.
func ParseAPITime(value string) time.Time {
	return parseAPITime(value)
}
