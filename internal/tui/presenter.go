// Package tui renders conflict prompts as a bubbletea modal.
package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescale/assetmover/internal/prompt"
)

// Presenter runs one bubbletea program per prompt.
type Presenter struct {
	in   io.Reader
	out  io.Writer
	opts []tea.ProgramOption
}

// NewPresenter creates a presenter reading keys from in and drawing to out.
func NewPresenter(in io.Reader, out io.Writer, opts ...tea.ProgramOption) *Presenter {
	return &Presenter{in: in, out: out, opts: opts}
}

// Present implements prompt.Presenter.
func (p *Presenter) Present(ctx context.Context, req prompt.Request) (prompt.Answer, error) {
	opts := append([]tea.ProgramOption{
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithContext(ctx),
	}, p.opts...)

	final, err := tea.NewProgram(newModel(req), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return prompt.Answer{}, ctx.Err()
		}
		return prompt.Answer{}, fmt.Errorf("conflict prompt failed: %w", err)
	}

	m, ok := final.(model)
	if !ok || m.dismissed || !m.done {
		return prompt.Answer{}, prompt.ErrDismissed
	}
	return m.answer, nil
}
