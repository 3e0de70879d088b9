// Package prompt coordinates batches of conflict prompts.
//
// Prompts are collected with AddPrompt and shown one at a time through a
// Presenter. When more than one prompt remains the presenter may offer
// "apply to remaining", which resolves every later prompt with the same
// choice without showing it.
package prompt

import (
	"context"
	"errors"
	"sync"

	"github.com/rescale/assetmover/internal/logging"
)

// ChoiceCancel drops the item. It is always a valid answer.
const ChoiceCancel = "cancel"

// ErrDismissed is returned by presenters when the user closed the prompt
// without choosing. It resolves the prompt as cancel.
var ErrDismissed = errors.New("prompt dismissed")

// Choice is one selectable option.
type Choice struct {
	Value string
	Title string
}

// Prompt is a single question. Data is carried through to Resolved
// untouched so callers can map answers back to their own records.
type Prompt struct {
	Message string
	Choices []Choice
	Data    any
}

// Resolved is a prompt plus the chosen value.
type Resolved struct {
	Prompt
	Choice string
}

// Cancelled reports whether the prompt was resolved as cancel.
func (r Resolved) Cancelled() bool {
	return r.Choice == ChoiceCancel
}

// Request is what a Presenter is asked to show.
type Request struct {
	Prompt Prompt
	Index  int // 0-based position in the batch
	Total  int

	// Remaining is the number of prompts after this one. Apply-to-remaining
	// is only offered when it is positive.
	Remaining int
}

// AllowApply reports whether apply-to-remaining should be offered.
func (r Request) AllowApply() bool {
	return r.Remaining > 0
}

// Answer is a presenter's response.
type Answer struct {
	Choice           string
	ApplyToRemaining bool
}

// Presenter shows a single prompt and blocks until it is answered.
type Presenter interface {
	Present(ctx context.Context, req Request) (Answer, error)
}

// Handler collects prompts and shows them as a batch.
//
// A Handler is meant to be owned by one batch at a time: call ResetPrompts
// before each round. Prompts are not cleared after ShowBatchPrompts.
type Handler struct {
	mu        sync.Mutex
	prompts   []Prompt
	presenter Presenter
	logger    *logging.Logger
}

// NewHandler creates a handler showing prompts through p.
func NewHandler(p Presenter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{presenter: p, logger: logger}
}

// ResetPrompts clears the pending batch.
func (h *Handler) ResetPrompts() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = nil
}

// AddPrompt appends p to the pending batch.
func (h *Handler) AddPrompt(p Prompt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, p)
}

// PromptCount returns the number of pending prompts.
func (h *Handler) PromptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.prompts)
}

// ShowBatchPrompts presents every pending prompt in order and returns one
// Resolved per prompt, in the same order.
//
// A presenter error, ErrDismissed, or a choice that isn't one of the
// prompt's choices resolves that prompt as cancel. Once ctx is done, the
// current and all remaining prompts resolve as cancel.
func (h *Handler) ShowBatchPrompts(ctx context.Context) []Resolved {
	h.mu.Lock()
	prompts := append([]Prompt(nil), h.prompts...)
	presenter := h.presenter
	h.mu.Unlock()

	resolved := make([]Resolved, 0, len(prompts))

	for i := 0; i < len(prompts); i++ {
		p := prompts[i]

		if ctx.Err() != nil || presenter == nil {
			resolved = append(resolved, cancelAll(prompts[i:])...)
			break
		}

		remaining := len(prompts) - i - 1
		ans, err := presenter.Present(ctx, Request{
			Prompt:    p,
			Index:     i,
			Total:     len(prompts),
			Remaining: remaining,
		})

		choice := ans.Choice
		switch {
		case err != nil:
			if !errors.Is(err, ErrDismissed) && ctx.Err() == nil {
				h.logger.Warn().Err(err).Msg("Prompt failed, treating as cancel")
			}
			choice = ChoiceCancel
		case !valid(p, choice):
			h.logger.Debug().Str("choice", choice).Msg("Unknown prompt choice, treating as cancel")
			choice = ChoiceCancel
		}

		if ctx.Err() != nil {
			resolved = append(resolved, cancelAll(prompts[i:])...)
			break
		}

		resolved = append(resolved, Resolved{Prompt: p, Choice: choice})

		if err == nil && ans.ApplyToRemaining && remaining > 0 {
			for _, rest := range prompts[i+1:] {
				resolved = append(resolved, Resolved{Prompt: rest, Choice: applied(rest, choice)})
			}
			break
		}
	}

	return resolved
}

// ShowBatchPromptsFunc runs ShowBatchPrompts and hands the result to fn.
func (h *Handler) ShowBatchPromptsFunc(ctx context.Context, fn func([]Resolved)) {
	fn(h.ShowBatchPrompts(ctx))
}

func valid(p Prompt, choice string) bool {
	if choice == ChoiceCancel {
		return true
	}
	for _, c := range p.Choices {
		if c.Value == choice {
			return true
		}
	}
	return false
}

// applied returns choice if later prompt p offers it, otherwise cancel.
func applied(p Prompt, choice string) string {
	if valid(p, choice) {
		return choice
	}
	return ChoiceCancel
}

func cancelAll(prompts []Prompt) []Resolved {
	out := make([]Resolved, len(prompts))
	for i, p := range prompts {
		out[i] = Resolved{Prompt: p, Choice: ChoiceCancel}
	}
	return out
}
