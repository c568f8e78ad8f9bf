package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks pack/unpack statistics using atomic counters so a
// presenter goroutine can read while the engine writes.
type Collector struct {
	entriesScanned     atomic.Int64
	entriesPacked      atomic.Int64
	entriesExtracted   atomic.Int64
	entriesFailed      atomic.Int64
	entriesSkipped     atomic.Int64
	checksumMismatches atomic.Int64
	bytesRaw           atomic.Int64
	bytesStored        atomic.Int64
	dirsCreated        atomic.Int64
	symlinksCreated    atomic.Int64
	filesVerified      atomic.Int64
	filesVerifyFailed  atomic.Int64
	entriesTotal       atomic.Int64
	bytesTotal         atomic.Int64
	startTime          time.Time

	// written only by Tick
	mu         sync.Mutex
	throughput [ringSize]int64
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records scan totals.
func (c *Collector) SetTotals(entries, bytes int64) {
	c.entriesTotal.Store(entries)
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	EntriesScanned     int64
	EntriesPacked      int64
	EntriesExtracted   int64
	EntriesFailed      int64
	EntriesSkipped     int64
	ChecksumMismatches int64
	BytesRaw           int64
	BytesStored        int64
	DirsCreated        int64
	SymlinksCreated    int64
	FilesVerified      int64
	FilesVerifyFailed  int64
	EntriesTotal       int64
	BytesTotal         int64
	Elapsed            time.Duration
}

func (c *Collector) AddEntriesScanned(n int64)     { c.entriesScanned.Add(n) }
func (c *Collector) AddEntriesPacked(n int64)      { c.entriesPacked.Add(n) }
func (c *Collector) AddEntriesExtracted(n int64)   { c.entriesExtracted.Add(n) }
func (c *Collector) AddEntriesFailed(n int64)      { c.entriesFailed.Add(n) }
func (c *Collector) AddEntriesSkipped(n int64)     { c.entriesSkipped.Add(n) }
func (c *Collector) AddChecksumMismatches(n int64) { c.checksumMismatches.Add(n) }
func (c *Collector) AddBytesRaw(n int64)           { c.bytesRaw.Add(n) }
func (c *Collector) AddBytesStored(n int64)        { c.bytesStored.Add(n) }
func (c *Collector) AddDirsCreated(n int64)        { c.dirsCreated.Add(n) }
func (c *Collector) AddSymlinksCreated(n int64)    { c.symlinksCreated.Add(n) }
func (c *Collector) AddFilesVerified(n int64)      { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64)  { c.filesVerifyFailed.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		EntriesScanned:     c.entriesScanned.Load(),
		EntriesPacked:      c.entriesPacked.Load(),
		EntriesExtracted:   c.entriesExtracted.Load(),
		EntriesFailed:      c.entriesFailed.Load(),
		EntriesSkipped:     c.entriesSkipped.Load(),
		ChecksumMismatches: c.checksumMismatches.Load(),
		BytesRaw:           c.bytesRaw.Load(),
		BytesStored:        c.bytesStored.Load(),
		DirsCreated:        c.dirsCreated.Load(),
		SymlinksCreated:    c.symlinksCreated.Load(),
		FilesVerified:      c.filesVerified.Load(),
		FilesVerifyFailed:  c.filesVerifyFailed.Load(),
		EntriesTotal:       c.entriesTotal.Load(),
		BytesTotal:         c.bytesTotal.Load(),
		Elapsed:            c.Elapsed(),
	}
}

// Tick records the raw byte delta since the previous Tick. The presenter
// calls it once per second.
func (c *Collector) Tick() {
	current := c.bytesRaw.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time from the rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesRaw.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Entries returns the number of entries processed successfully in either
// direction.
func (s Snapshot) Entries() int64 {
	return s.EntriesPacked + s.EntriesExtracted
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d packed=%d extracted=%d failed=%d skipped=%d mismatches=%d raw=%d stored=%d dirs=%d symlinks=%d",
		s.EntriesScanned, s.EntriesPacked, s.EntriesExtracted, s.EntriesFailed, s.EntriesSkipped,
		s.ChecksumMismatches, s.BytesRaw, s.BytesStored, s.DirsCreated, s.SymlinksCreated,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
