package engine

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter returns a token bucket capping archive throughput at
// bytesPerSec, or nil when bytesPerSec is not positive. The burst is one
// second's worth, at most 1 MiB.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(min(bytesPerSec, 1<<20))
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// waitTokens blocks until n bytes may pass. Requests larger than the burst
// are split so WaitN never rejects them.
func waitTokens(ctx context.Context, lim *rate.Limiter, n int) error {
	burst := lim.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := lim.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

// throttleReader returns r unchanged when lim is nil.
func throttleReader(ctx context.Context, r io.Reader, lim *rate.Limiter) io.Reader {
	if lim == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, lim: lim}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := waitTokens(t.ctx, t.lim, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type throttledWriter struct {
	ctx context.Context
	w   io.Writer
	lim *rate.Limiter
}

// throttleWriter returns w unchanged when lim is nil.
func throttleWriter(ctx context.Context, w io.Writer, lim *rate.Limiter) io.Writer {
	if lim == nil {
		return w
	}
	return &throttledWriter{ctx: ctx, w: w, lim: lim}
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := waitTokens(t.ctx, t.lim, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}
