// Package progress implements the processed/total progress bar used while a
// batch of move requests is in flight.
//
// Counter holds the counters. Renderers embed it and draw on
// UpdateProgressBar: TerminalBar (mpb), SimpleBar (schollz/progressbar) and
// EventBar (event bus). A bare Counter draws nothing.
package progress

import "sync"

// Bar is the progress contract the move engine drives.
// Implementations must be safe for concurrent use; responses in a round
// increment the counter from many goroutines.
type Bar interface {
	ResetProgressBar()
	SetItemCount(n int)
	ShowProgressBar()
	HideProgressBar()
	IncrementProcessedItemCount(n int)
	SetProcessedItemCount(n int)
	UpdateProgressBar()

	ItemCount() int
	ProcessedItemCount() int
	Percent() float64
}

// Labeler is implemented by bars that display a caption.
type Labeler interface {
	SetLabel(label string)
}

// Snapshot is a consistent read of a Counter.
type Snapshot struct {
	Label     string
	Total     int
	Processed int
	Visible   bool
}

// Percent returns processed/total as 0..100.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Processed) / float64(s.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Counter is a thread-safe Bar that renders nothing.
type Counter struct {
	mu        sync.Mutex
	label     string
	total     int
	processed int
	visible   bool
}

// NewCounter returns an empty hidden counter.
func NewCounter() *Counter {
	return &Counter{}
}

// ResetProgressBar zeroes both counters.
func (c *Counter) ResetProgressBar() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = 0
	c.processed = 0
}

// SetItemCount sets the total for the current round.
func (c *Counter) SetItemCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = n
}

func (c *Counter) ShowProgressBar() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = true
}

func (c *Counter) HideProgressBar() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = false
}

// IncrementProcessedItemCount adds n to the processed counter.
func (c *Counter) IncrementProcessedItemCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed += n
}

func (c *Counter) SetProcessedItemCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = n
}

// UpdateProgressBar is a no-op for the bare counter.
func (c *Counter) UpdateProgressBar() {}

func (c *Counter) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

func (c *Counter) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Counter) ProcessedItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

func (c *Counter) Percent() float64 {
	return c.Snapshot().Percent()
}

// Snapshot returns all fields under one lock.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Label:     c.label,
		Total:     c.total,
		Processed: c.processed,
		Visible:   c.visible,
	}
}
