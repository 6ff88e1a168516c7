// Package progress emits transient scan-rate status lines. Purely
// observational: a nil *Reporter is valid and silently discards every
// update, which is how headless runs disable reporting.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// DefaultInterval bounds how often status lines are written.
const DefaultInterval = 250 * time.Millisecond

// Reporter writes an in-place status line (carriage return, no
// newline) at a bounded rate. It has no effect on scan correctness.
type Reporter struct {
	w       io.Writer
	limiter *rate.Limiter
	start   time.Time
	wrote   bool
}

// New creates a reporter writing to w, rate-limited to one line per
// interval (DefaultInterval if interval <= 0).
func New(w io.Writer, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		w:       w,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		start:   time.Now(),
	}
}

// Observe reports the running totals. Calls beyond the configured rate
// are dropped, so calling once per batch is fine.
func (r *Reporter) Observe(scanned, matched int64) {
	if r == nil || !r.limiter.Allow() {
		return
	}
	elapsed := time.Since(r.start).Seconds()
	rows := 0.0
	if elapsed > 0 {
		rows = float64(scanned) / elapsed
	}
	fmt.Fprintf(r.w, "  progress: %s rows scanned | %s matched | %s rows/s | %.1fs\r",
		humanize.Comma(scanned), humanize.Comma(matched),
		humanize.Comma(int64(rows)), elapsed)
	r.wrote = true
}

// Done terminates the transient line so the final summary starts on a
// fresh one. No-op when nothing was ever written.
func (r *Reporter) Done() {
	if r == nil || !r.wrote {
		return
	}
	fmt.Fprintln(r.w)
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	if r == nil {
		return 0
	}
	return time.Since(r.start)
}
