// Package index is the console stand-in for the element index a move is
// started from. It tracks whether the index is busy, owns the progress bar
// and the conflict prompt handler, and prints per-item errors.
package index

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/rescale/assetmover/internal/logging"
	"github.com/rescale/assetmover/internal/progress"
	"github.com/rescale/assetmover/internal/prompt"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

// writerBar is implemented by bars that can print above themselves.
type writerBar interface {
	Writer() io.Writer
	IsTerminal() bool
}

// Options configures New. Zero values get console defaults.
type Options struct {
	Bar     progress.Bar
	Handler *prompt.Handler
	ErrOut  io.Writer
	Logger  *logging.Logger
}

// Index implements mover.IndexUI on a terminal.
type Index struct {
	mu       sync.Mutex
	busy     bool
	errOut   io.Writer
	out      io.Writer // errOut, or the bar's writer while it is positioned
	messages []string

	bar     progress.Bar
	handler *prompt.Handler
	logger  *logging.Logger
}

// New creates an index.
func New(opts Options) *Index {
	if opts.Bar == nil {
		opts.Bar = progress.NewCounter()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Handler == nil {
		opts.Handler = prompt.NewHandler(nil, opts.Logger)
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	return &Index{
		errOut:  opts.ErrOut,
		out:     opts.ErrOut,
		bar:     opts.Bar,
		handler: opts.Handler,
		logger:  opts.Logger,
	}
}

func (i *Index) SetIndexBusy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.busy = true
}

func (i *Index) SetIndexAvailable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.busy = false
	i.out = i.errOut
}

// IsBusy reports whether a round is in flight.
func (i *Index) IsBusy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.busy
}

// PositionProgressBar routes error output above the bar until the index
// becomes available again.
func (i *Index) PositionProgressBar() {
	wb, ok := i.bar.(writerBar)
	if !ok || !wb.IsTerminal() {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.out = wb.Writer()
}

func (i *Index) ProgressBar() progress.Bar       { return i.bar }
func (i *Index) PromptHandler() *prompt.Handler { return i.handler }

// DisplayError prints message and keeps it for Errors.
func (i *Index) DisplayError(message string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.messages = append(i.messages, message)
	i.logger.Debug().Str("message", message).Msg("Item failed")
	fmt.Fprintln(i.out, errorStyle.Render("✗ "+message))
}

// Errors returns every message displayed so far.
func (i *Index) Errors() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.messages...)
}
