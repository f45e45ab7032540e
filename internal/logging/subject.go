package logging

import "strings"

// FormatSubject builds the "Record #42 · item 3 (provision)" prefix used in console output.
func FormatSubject(itemID, recordID, stage string) string {
	itemID = strings.TrimSpace(itemID)
	recordID = strings.TrimSpace(recordID)
	stage = strings.TrimSpace(stage)

	parts := make([]string, 0, 2)
	if recordID != "" {
		parts = append(parts, "Record #"+recordID)
	}
	if itemID != "" {
		parts = append(parts, "item "+itemID)
	}
	subject := strings.Join(parts, " · ")
	switch {
	case subject != "" && stage != "":
		return subject + " (" + stage + ")"
	case stage != "":
		return stage
	default:
		return subject
	}
}
