package ui

import (
	"fmt"
	"strings"

	"github.com/zhiduo233/minibackup/internal/stats"
)

// CompletionSummary renders the final one-line summary for a run.
func CompletionSummary(snap stats.Snapshot) string {
	var parts []string

	switch {
	case snap.EntriesPacked > 0:
		parts = append(parts, fmt.Sprintf("packed %s entries (%s -> %s)",
			FormatCount(snap.EntriesPacked), FormatBytes(snap.BytesRaw), FormatBytes(snap.BytesStored)))
	case snap.EntriesExtracted > 0:
		parts = append(parts, fmt.Sprintf("extracted %s entries (%s)",
			FormatCount(snap.EntriesExtracted), FormatBytes(snap.BytesRaw)))
	case snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0:
		// verification-only run
	default:
		parts = append(parts, "nothing to do")
	}

	if snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0 {
		parts = append(parts, fmt.Sprintf("verified %s files", FormatCount(snap.FilesVerified)))
	}
	if snap.EntriesSkipped > 0 {
		parts = append(parts, fmt.Sprintf("%s skipped", FormatCount(snap.EntriesSkipped)))
	}
	if snap.EntriesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%s failed", FormatCount(snap.EntriesFailed)))
	}
	if snap.ChecksumMismatches > 0 {
		parts = append(parts, fmt.Sprintf("%s checksum mismatches", FormatCount(snap.ChecksumMismatches)))
	}
	if snap.FilesVerifyFailed > 0 {
		parts = append(parts, fmt.Sprintf("%s verify failures", FormatCount(snap.FilesVerifyFailed)))
	}

	return strings.Join(parts, ", ") + " in " + FormatDuration(snap.Elapsed)
}
