package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// SimpleBar renders a single-line schollz/progressbar that is recreated on
// every ShowProgressBar.
type SimpleBar struct {
	*Counter

	mu  sync.Mutex
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewSimpleBar creates a bar writing to out.
func NewSimpleBar(out io.Writer) *SimpleBar {
	return &SimpleBar{Counter: NewCounter(), out: out}
}

func (s *SimpleBar) ShowProgressBar() {
	s.Counter.ShowProgressBar()
	snap := s.Snapshot()

	label := snap.Label
	if label == "" {
		label = "Moving"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		_ = s.bar.Exit()
	}
	s.bar = progressbar.NewOptions(snap.Total,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(0),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			_, _ = io.WriteString(s.out, "\n")
		}),
	)
}

func (s *SimpleBar) UpdateProgressBar() {
	snap := s.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar == nil {
		return
	}
	if int64(snap.Total) != s.bar.GetMax64() {
		s.bar.ChangeMax(snap.Total)
	}
	_ = s.bar.Set(snap.Processed)
}

func (s *SimpleBar) HideProgressBar() {
	s.Counter.HideProgressBar()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar == nil {
		return
	}
	if !s.bar.IsFinished() {
		_ = s.bar.Exit()
	}
	s.bar = nil
}

// State returns the underlying bar's state while shown.
func (s *SimpleBar) State() (progressbar.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar == nil {
		return progressbar.State{}, false
	}
	return s.bar.State(), true
}
