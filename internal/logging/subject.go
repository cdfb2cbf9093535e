package logging

import (
	"path/filepath"
	"strings"
)

// FormatSubject builds the batch/file subject shown in console output.
// Batch ids are shortened to their first eight characters and files to
// their base name.
func FormatSubject(batchID, file string) string {
	batchID = strings.TrimSpace(batchID)
	file = strings.TrimSpace(file)
	if len(batchID) > 8 {
		batchID = batchID[:8]
	}
	parts := make([]string, 0, 2)
	if batchID != "" {
		parts = append(parts, "batch "+batchID)
	}
	if file != "" {
		parts = append(parts, filepath.Base(file))
	}
	return strings.Join(parts, " · ")
}
