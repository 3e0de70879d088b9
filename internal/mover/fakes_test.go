package mover

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rescale/assetmover/internal/api"
	"github.com/rescale/assetmover/internal/progress"
	"github.com/rescale/assetmover/internal/prompt"
)

type call struct {
	action    string
	params    map[string]any
	requestID string
}

// fakeClient answers actions through respond and records every call.
// Responses are delayed randomly so rounds settle out of order.
type fakeClient struct {
	mu      sync.Mutex
	calls   []call
	respond func(action string, params map[string]any) (api.Result, error)
}

func (f *fakeClient) Post(ctx context.Context, action string, params map[string]any) (api.Result, error) {
	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, call{action: action, params: params, requestID: api.RequestIDFromContext(ctx)})
	f.mu.Unlock()

	if f.respond == nil {
		return api.Result{"success": true}, nil
	}
	return f.respond(action, params)
}

func (f *fakeClient) callsFor(action string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.action == action {
			out = append(out, c)
		}
	}
	return out
}

// recordingBar remembers the item count at every show and the processed
// count at every hide.
type recordingBar struct {
	*progress.Counter

	mu             sync.Mutex
	shownCounts    []int
	finishedCounts []int
}

func newRecordingBar() *recordingBar {
	return &recordingBar{Counter: progress.NewCounter()}
}

func (b *recordingBar) ShowProgressBar() {
	b.Counter.ShowProgressBar()
	b.mu.Lock()
	b.shownCounts = append(b.shownCounts, b.ItemCount())
	b.mu.Unlock()
}

func (b *recordingBar) HideProgressBar() {
	b.Counter.HideProgressBar()
	b.mu.Lock()
	b.finishedCounts = append(b.finishedCounts, b.ProcessedItemCount())
	b.mu.Unlock()
}

// fakeUI is an IndexUI that records what the engine did to it.
type fakeUI struct {
	mu         sync.Mutex
	busy       int
	available  int
	positioned int
	busyNow    bool
	errors     []string

	bar     *recordingBar
	handler *prompt.Handler
}

func newFakeUI(p prompt.Presenter) *fakeUI {
	return &fakeUI{
		bar:     newRecordingBar(),
		handler: prompt.NewHandler(p, nil),
	}
}

func (u *fakeUI) SetIndexBusy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy++
	u.busyNow = true
}

func (u *fakeUI) SetIndexAvailable() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.available++
	u.busyNow = false
}

func (u *fakeUI) PositionProgressBar() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.positioned++
}

func (u *fakeUI) ProgressBar() progress.Bar       { return u.bar }
func (u *fakeUI) PromptHandler() *prompt.Handler { return u.handler }

func (u *fakeUI) DisplayError(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errors = append(u.errors, message)
}

func idOf(params map[string]any, key string) string {
	return fmt.Sprint(params[key])
}
