package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rescale/assetmover/internal/events"
)

// recorder collects job executions and queue events in order.
type recorder struct {
	mu     sync.Mutex
	ran    []string
	events []EventType
}

func (r *recorder) job(name string) Job {
	return func(ctx context.Context) (any, error) {
		r.mu.Lock()
		r.ran = append(r.ran, name)
		r.mu.Unlock()
		return name, nil
	}
}

func (r *recorder) listen(q *Queue) {
	for _, t := range AllEventTypes {
		q.On(t, func(ev Event) {
			r.mu.Lock()
			r.events = append(r.events, ev.Type)
			r.mu.Unlock()
		})
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func (r *recorder) eventLog() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventType(nil), r.events...)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for job result")
		return Result{}
	}
}

// blocker returns a job that runs until release is closed.
func blocker(started chan<- struct{}, release <-chan struct{}) Job {
	return func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "blocker", nil
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPushRunsInSubmissionOrder(t *testing.T) {
	q := New(context.Background(), nil)
	rec := &recorder{}

	var last <-chan Result
	for _, name := range []string{"j1", "j2", "j3", "j4", "j5"} {
		last = q.Push(rec.job(name))
	}
	res := waitResult(t, last)

	if res.Value != "j5" {
		t.Errorf("Expected last result j5, got %v", res.Value)
	}
	if got := rec.order(); !equal(got, []string{"j1", "j2", "j3", "j4", "j5"}) {
		t.Errorf("Expected FIFO order, got %v", got)
	}
}

func TestUnshiftRunsNext(t *testing.T) {
	q := New(context.Background(), nil)
	rec := &recorder{}

	started := make(chan struct{})
	release := make(chan struct{})
	first := q.Push(blocker(started, release))
	<-started

	q.Push(rec.job("b"))
	last := q.Push(rec.job("c"))
	q.Unshift(rec.job("d"))

	if q.Len() != 3 {
		t.Errorf("Expected 3 pending jobs, got %d", q.Len())
	}

	close(release)
	waitResult(t, first)
	waitResult(t, last)

	if got := rec.order(); !equal(got, []string{"d", "b", "c"}) {
		t.Errorf("Expected unshifted job first, got %v", got)
	}
}

func TestFailingJobDoesNotStopQueue(t *testing.T) {
	q := New(context.Background(), nil)
	boom := errors.New("boom")

	failing := q.Push(func(ctx context.Context) (any, error) { return nil, boom })
	panicking := q.Push(func(ctx context.Context) (any, error) { panic("kaboom") })
	ok := q.Push(func(ctx context.Context) (any, error) { return 42, nil })

	if res := waitResult(t, failing); !errors.Is(res.Err, boom) {
		t.Errorf("Expected boom, got %v", res.Err)
	}
	if res := waitResult(t, panicking); !errors.Is(res.Err, ErrJobPanicked) {
		t.Errorf("Expected ErrJobPanicked, got %v", res.Err)
	}
	if res := waitResult(t, ok); res.Err != nil || res.Value != 42 {
		t.Errorf("Expected 42, got %v (%v)", res.Value, res.Err)
	}

	stats := q.GetStats()
	if stats.Executed != 3 || stats.Failed != 2 {
		t.Errorf("Expected 3 executed / 2 failed, got %+v", stats)
	}
}

func TestResultChannelClosedAfterDelivery(t *testing.T) {
	q := New(context.Background(), nil)
	ch := q.Push(func(ctx context.Context) (any, error) { return "x", nil })

	waitResult(t, ch)
	if _, open := <-ch; open {
		t.Error("Expected result channel to be closed after delivery")
	}
}

func TestLifecycleEvents(t *testing.T) {
	q := New(context.Background(), nil)
	rec := &recorder{}
	rec.listen(q)

	done := make(chan struct{})
	var once sync.Once
	q.On(AfterRun, func(Event) { once.Do(func() { close(done) }) })

	// Hold the first job until the second is queued so both run in one pass
	started := make(chan struct{})
	release := make(chan struct{})
	q.Push(blocker(started, release))
	q.Push(rec.job("b"))
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for afterRun")
	}

	want := []EventType{BeforeRun, BeforeExec, AfterExec, BeforeExec, AfterExec, AfterRun}
	got := rec.eventLog()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if q.Running() {
		t.Error("Expected queue idle after afterRun")
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	q := New(context.Background(), nil)

	var mu sync.Mutex
	var calls []int
	for i := 1; i <= 3; i++ {
		i := i
		q.On(Pause, func(Event) {
			mu.Lock()
			calls = append(calls, i)
			mu.Unlock()
		})
	}
	remove := q.On(Pause, func(Event) { t.Error("removed listener should not be called") })
	remove()

	q.Pause()

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 3 || calls[0] != 1 || calls[1] != 2 || calls[2] != 3 {
		t.Errorf("Expected listeners called in order [1 2 3], got %v", calls)
	}
}

func TestPauseSourcesAreIndependent(t *testing.T) {
	tests := []struct {
		name       string
		firstClear func(q *Queue)
		lastClear  func(q *Queue)
	}{
		{
			name:       "visibility returns while manually paused",
			firstClear: func(q *Queue) { q.SetVisible(true) },
			lastClear:  func(q *Queue) { q.Resume() },
		},
		{
			name:       "manual resume while hidden",
			firstClear: func(q *Queue) { q.Resume() },
			lastClear:  func(q *Queue) { q.SetVisible(true) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(context.Background(), nil)
			rec := &recorder{}

			q.Pause()
			q.SetVisible(false)
			ch := q.Push(rec.job("held"))

			tt.firstClear(q)
			time.Sleep(50 * time.Millisecond)
			if len(rec.order()) != 0 {
				t.Fatal("Job ran while one pause source was still set")
			}
			if !q.Paused() {
				t.Error("Expected queue to report paused")
			}

			tt.lastClear(q)
			waitResult(t, ch)
			if got := rec.order(); !equal(got, []string{"held"}) {
				t.Errorf("Expected held job to run, got %v", got)
			}
		})
	}
}

func TestPauseResumeEventsDeduplicated(t *testing.T) {
	q := New(context.Background(), nil)
	rec := &recorder{}
	rec.listen(q)

	q.Pause()
	q.Pause()
	q.SetVisible(false)
	q.Resume()
	q.SetVisible(true)
	q.SetVisible(true)

	got := rec.eventLog()
	if len(got) != 2 || got[0] != Pause || got[1] != Resume {
		t.Errorf("Expected exactly [pause resume], got %v", got)
	}
}

func TestClearResolvesPendingJobs(t *testing.T) {
	q := New(context.Background(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	running := q.Push(blocker(started, release))
	<-started

	a := q.Push(func(ctx context.Context) (any, error) { return "a", nil })
	b := q.Push(func(ctx context.Context) (any, error) { return "b", nil })

	if n := q.Clear(); n != 2 {
		t.Errorf("Expected 2 cleared jobs, got %d", n)
	}
	close(release)

	if res := waitResult(t, a); !errors.Is(res.Err, ErrCleared) {
		t.Errorf("Expected ErrCleared, got %v", res.Err)
	}
	if res := waitResult(t, b); !errors.Is(res.Err, ErrCleared) {
		t.Errorf("Expected ErrCleared, got %v", res.Err)
	}
	if res := waitResult(t, running); res.Err != nil {
		t.Errorf("Running job should complete normally, got %v", res.Err)
	}
}

func TestCancelledContextDrainsPausedQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New(ctx, nil)

	q.Pause()
	ch := q.Push(func(ctx context.Context) (any, error) { return "never", nil })
	cancel()

	if res := waitResult(t, ch); !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", res.Err)
	}
}

func TestWatchVisibility(t *testing.T) {
	q := New(context.Background(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paused := make(chan struct{}, 1)
	q.On(Pause, func(Event) { paused <- struct{}{} })

	vis := make(chan bool)
	q.WatchVisibility(ctx, vis)
	vis <- false

	select {
	case <-paused:
	case <-time.After(time.Second):
		t.Fatal("Expected pause after visibility loss")
	}
	if !q.Paused() {
		t.Error("Expected queue paused while hidden")
	}
}

func TestWait(t *testing.T) {
	q := New(context.Background(), nil)
	v, err := Wait(context.Background(), q.Push(func(ctx context.Context) (any, error) { return 7, nil }))
	if err != nil || v != 7 {
		t.Errorf("Expected 7, got %v (%v)", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Wait(ctx, make(chan Result)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPublishTo(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Close()
	ch := bus.Subscribe(events.EventQueueState)

	q := New(context.Background(), nil)
	q.PublishTo(bus)
	q.Pause()

	select {
	case ev := <-ch:
		state := ev.(*events.QueueStateEvent)
		if state.State != "pause" {
			t.Errorf("Expected pause state, got %s", state.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for queue state event")
	}
}
