package ui

import "github.com/zhiduo233/minibackup/internal/stats"

// quietPresenter drains events and prints nothing while running. Only
// failures surface, through the summary.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	snap := p.stats.Snapshot()
	if snap.EntriesFailed == 0 && snap.ChecksumMismatches == 0 && snap.FilesVerifyFailed == 0 {
		return ""
	}
	return CompletionSummary(snap)
}
