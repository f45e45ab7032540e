package logs

import (
	"encoding/json"
	"strings"

	"capturesync/internal/logging"
)

// Filter selects run log lines. Zero values match everything.
type Filter struct {
	RecordID int64
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether a JSON run log line passes the filter. Lines that are
// not JSON only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.RecordID == 0 && f.MinLevel == "" {
		return true
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return false
	}
	if f.RecordID != 0 {
		id, ok := entry[logging.FieldRecordID].(float64)
		if !ok || int64(id) != f.RecordID {
			return false
		}
	}
	if min, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		level, _ := entry["level"].(string)
		rank, known := levelRank[strings.ToLower(level)]
		if !known || rank < min {
			return false
		}
	}
	return true
}
