package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/stats"
)

// progressEvery is the number of one-second ticks between progress lines.
const progressEvery = 5

// plainPresenter outputs one line per processed entry to stdout and
// periodic progress to stderr.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      *stats.Collector
	verbose    bool
	noProgress bool
	styles     Styles
	ticks      int
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.ticks++
			if p.ticks%progressEvery == 0 && !p.noProgress {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := p.styles.Path(ev.Path)
	switch ev.Type {
	case ScanComplete:
		if p.verbose {
			fmt.Fprintf(p.errW, "found %s entries, %s\n",
				FormatCount(ev.Total), FormatBytes(ev.TotalSize))
		}
	case EntryPacked:
		fmt.Fprintf(p.w, "%s  %s  %s\n", path, FormatBytes(ev.Size),
			p.styles.Dim("-> "+FormatBytes(ev.Stored)))
	case EntryExtracted:
		fmt.Fprintf(p.w, "%s  %s\n", path, FormatBytes(ev.Size))
	case DirCreated, SymlinkCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  %s\n", path, p.styles.Dim(kindLabel(ev.Type)))
		}
	case EntryFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s\n", path, p.styles.Error(errMsg))
	case EntrySkipped:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  %s\n", path, p.styles.Dim("skipped"))
		}
	case ChecksumMismatch:
		fmt.Fprintf(p.w, "%s %s\n", p.styles.Warn("CHECKSUM MISMATCH:"), path)
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyFailed:
		fmt.Fprintf(p.w, "%s %s\n", p.styles.Error("MISMATCH:"), path)
	case VerifyOK:
		// silent in plain mode
	}
}

func kindLabel(t event.Type) string {
	if t == SymlinkCreated {
		return "symlink"
	}
	return "dir"
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	done := snap.Entries() + snap.EntriesFailed + snap.EntriesSkipped
	var line string
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesRaw) / float64(snap.BytesTotal) * 100
		line = fmt.Sprintf("progress: %.0f%% %s/%s %s/%s entries %s eta %s",
			pct,
			FormatBytes(snap.BytesRaw), FormatBytes(snap.BytesTotal),
			FormatCount(done), FormatCount(snap.EntriesTotal),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
	} else {
		line = fmt.Sprintf("progress: %s processed %s entries",
			FormatBytes(snap.BytesRaw), FormatCount(done))
	}
	fmt.Fprintln(p.errW, p.styles.Progress(line))
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
