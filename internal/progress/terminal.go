package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/rescale/assetmover/internal/constants"
)

// TerminalBar renders one mpb bar per round. Each ShowProgressBar starts a
// fresh bar sized to the round; HideProgressBar removes it.
type TerminalBar struct {
	*Counter

	mu         sync.Mutex
	progress   *mpb.Progress
	bar        *mpb.Bar
	out        io.Writer
	isTerminal bool
}

// NewTerminalBar creates a bar drawing to f. When f is not a terminal the
// bar is not drawn and a one-line summary is printed per round instead.
func NewTerminalBar(f *os.File) *TerminalBar {
	isTerminal := term.IsTerminal(int(f.Fd()))
	if isTerminal {
		enableWindowsANSI(f)
	}
	return newTerminalBar(f, isTerminal)
}

func newTerminalBar(out io.Writer, isTerminal bool) *TerminalBar {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(constants.ProgressBarWidth),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &TerminalBar{
		Counter:    NewCounter(),
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
	}
}

// ShowProgressBar starts a bar for the current item count.
func (t *TerminalBar) ShowProgressBar() {
	t.Counter.ShowProgressBar()
	snap := t.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropBarLocked()
	if !t.isTerminal {
		return
	}

	t.bar = t.progress.New(int64(snap.Total),
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				if label := t.Snapshot().Label; label != "" {
					return label
				}
				return "Moving"
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
}

// UpdateProgressBar pushes the counters to the bar.
func (t *TerminalBar) UpdateProgressBar() {
	snap := t.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bar == nil {
		return
	}
	t.bar.SetTotal(int64(snap.Total), false)
	t.bar.SetCurrent(int64(snap.Processed))
}

// HideProgressBar removes the bar. Off a terminal, prints the round summary.
func (t *TerminalBar) HideProgressBar() {
	t.Counter.HideProgressBar()
	snap := t.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropBarLocked()
	if !t.isTerminal && snap.Total > 0 {
		label := snap.Label
		if label == "" {
			label = "Moved"
		}
		fmt.Fprintf(t.out, "%s: %d/%d\n", label, snap.Processed, snap.Total)
	}
}

func (t *TerminalBar) dropBarLocked() {
	if t.bar == nil {
		return
	}
	if !t.bar.Completed() {
		t.bar.Abort(true)
	}
	t.bar = nil
}

// Writer returns an io.Writer that safely prints above the bars.
func (t *TerminalBar) Writer() io.Writer {
	if t.isTerminal {
		return t.progress
	}
	return t.out
}

// IsTerminal reports whether bars are drawn.
func (t *TerminalBar) IsTerminal() bool {
	return t.isTerminal
}

// Wait removes any bar still shown and blocks until mpb has flushed.
func (t *TerminalBar) Wait() {
	t.mu.Lock()
	t.dropBarLocked()
	t.mu.Unlock()
	t.progress.Wait()
}
