package prompt

import (
	"context"
	"sync"
)

// StaticPresenter answers every prompt with the same choice, optionally
// applying it to the rest of the batch. Used for --on-conflict.
type StaticPresenter struct {
	Choice           string
	ApplyToRemaining bool
}

// Present implements Presenter.
func (s StaticPresenter) Present(ctx context.Context, req Request) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	return Answer{Choice: s.Choice, ApplyToRemaining: s.ApplyToRemaining && req.AllowApply()}, nil
}

// ScriptedPresenter replays a fixed list of answers and records every
// request it was shown. Requests beyond the script are dismissed.
type ScriptedPresenter struct {
	mu      sync.Mutex
	answers []Answer
	shown   []Request
}

// NewScriptedPresenter creates a presenter answering in order.
func NewScriptedPresenter(answers ...Answer) *ScriptedPresenter {
	return &ScriptedPresenter{answers: answers}
}

// Present implements Presenter.
func (s *ScriptedPresenter) Present(ctx context.Context, req Request) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shown = append(s.shown, req)
	if len(s.answers) == 0 {
		return Answer{}, ErrDismissed
	}
	ans := s.answers[0]
	s.answers = s.answers[1:]
	return ans, nil
}

// Shown returns the requests presented so far.
func (s *ScriptedPresenter) Shown() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.shown...)
}
