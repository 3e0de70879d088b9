// Package visibility reports whether the process is in the foreground of
// its terminal. A job queue pauses while the process is backgrounded
// (Ctrl-Z followed by bg) so refresh work doesn't race with a user who
// has moved on.
package visibility

import (
	"context"
	"os"
	"time"
)

// Source reports the current visibility.
type Source interface {
	Visible() bool
}

// SourceFunc adapts a function to Source.
type SourceFunc func() bool

func (f SourceFunc) Visible() bool { return f() }

// Terminal checks whether the process group owns f's terminal.
// Files that are not terminals are always visible.
type Terminal struct {
	f *os.File
}

// NewTerminal returns a Source for f, usually os.Stdin.
func NewTerminal(f *os.File) *Terminal {
	return &Terminal{f: f}
}

func (t *Terminal) Visible() bool {
	if t.f == nil {
		return true
	}
	return foreground(t.f.Fd())
}

// Watch polls src every interval and sends the visibility whenever it
// changes. The initial state is sent first. The channel is closed when ctx
// is done.
func Watch(ctx context.Context, src Source, interval time.Duration) <-chan bool {
	ch := make(chan bool, 1)

	go func() {
		defer close(ch)

		last := src.Visible()
		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := src.Visible()
				if now == last {
					continue
				}
				last = now
				select {
				case ch <- now:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}
