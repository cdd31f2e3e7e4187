package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// progressLine reports long-running work on stderr. On a terminal the line
// is rewritten in place; otherwise a line is emitted at most every
// plainInterval so logs stay readable.
type progressLine struct {
	w        io.Writer
	label    string
	tty      bool
	bytes    bool
	start    time.Time
	last     time.Time
	interval time.Duration
}

const plainInterval = 5 * time.Second

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newProgressLine(label string) *progressLine {
	tty := isTerminal(os.Stderr)
	interval := plainInterval
	if tty {
		interval = 200 * time.Millisecond
	}
	return &progressLine{w: os.Stderr, label: label, tty: tty, start: time.Now(), interval: interval}
}

// Update prints done out of total. total <= 0 means unknown.
func (p *progressLine) Update(done, total int64) {
	now := time.Now()
	if now.Sub(p.last) < p.interval && (total <= 0 || done < total) {
		return
	}
	p.last = now

	line := fmt.Sprintf("%s: %s", p.label, p.format(done))
	if total > 0 {
		line += fmt.Sprintf(" / %s (%d%%)", p.format(total), done*100/total)
	}
	line += fmt.Sprintf(" [%s]", formatDuration(now.Sub(p.start)))

	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(p.w, line)
	}
}

// Done ends an in-place line.
func (p *progressLine) Done() {
	if p.tty && !p.last.IsZero() {
		fmt.Fprintln(p.w)
	}
}

func (p *progressLine) format(n int64) string {
	if p.bytes {
		return humanize.Bytes(uint64(n))
	}
	return humanize.Comma(n)
}

// formatDuration formats a duration as "Xm Ys" or "Xh Ym" for readability.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatMillis renders an epoch-millisecond timestamp as a UTC date.
func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
