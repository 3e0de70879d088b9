// Package queue provides a sequential job runner shared by background work
// such as post-move refreshes.
//
// Jobs run strictly one at a time. Push appends to the tail, Unshift inserts
// at the head so the job runs next. Execution is suspended while the queue is
// manually paused or while the host is hidden; the two flags are tracked
// independently and jobs run only when both are clear.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rescale/assetmover/internal/events"
	"github.com/rescale/assetmover/internal/logging"
)

// Job is a unit of queued work.
type Job func(ctx context.Context) (any, error)

// Result is delivered exactly once on the channel returned by Push/Unshift.
type Result struct {
	Value any
	Err   error
}

// EventType names a queue lifecycle notification.
type EventType string

const (
	BeforeRun  EventType = "beforeRun"  // idle -> running
	AfterRun   EventType = "afterRun"   // running -> idle
	BeforeExec EventType = "beforeExec" // a job is about to start
	AfterExec  EventType = "afterExec"  // a job settled
	Pause      EventType = "pause"      // execution suspended
	Resume     EventType = "resume"     // execution allowed again
)

// AllEventTypes lists every notification in emission order of a normal run.
var AllEventTypes = []EventType{BeforeRun, BeforeExec, AfterExec, AfterRun, Pause, Resume}

// Event is passed to listeners.
type Event struct {
	Type    EventType
	Pending int   // jobs waiting, excluding the one executing
	Err     error // AfterExec only
}

// Listener receives queue notifications synchronously, in registration order.
// Listeners must not block; they may call back into the queue.
type Listener func(Event)

var (
	// ErrCleared resolves jobs dropped by Clear before they started.
	ErrCleared = errors.New("job queue cleared")

	// ErrJobPanicked wraps a recovered panic from a job.
	ErrJobPanicked = errors.New("job panicked")
)

type entry struct {
	job    Job
	result chan Result
}

type listener struct {
	id int
	fn Listener
}

// Stats holds counters about the queue.
type Stats struct {
	Pending  int
	Executed int
	Failed   int
}

// Queue is a sequential job queue.
type Queue struct {
	ctx    context.Context
	logger *logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []*entry
	running  bool
	manual   bool // Pause()/Resume()
	hidden   bool // SetVisible(false)
	executed int
	failed   int

	listenersMu sync.Mutex
	listeners   map[EventType][]listener
	nextID      int
}

// New creates an idle queue. ctx is handed to every job; once it is done,
// pending jobs are resolved with its error instead of running.
func New(ctx context.Context, logger *logging.Logger) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	q := &Queue{
		ctx:       ctx,
		logger:    logger,
		listeners: make(map[EventType][]listener),
	}
	q.cond = sync.NewCond(&q.mu)

	// Wake a worker parked on a paused queue so it can drain on shutdown
	context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})

	return q
}

// On registers fn for events of type t and returns a function that removes it.
func (q *Queue) On(t EventType, fn Listener) (remove func()) {
	q.listenersMu.Lock()
	defer q.listenersMu.Unlock()

	q.nextID++
	id := q.nextID
	q.listeners[t] = append(q.listeners[t], listener{id: id, fn: fn})

	return func() {
		q.listenersMu.Lock()
		defer q.listenersMu.Unlock()
		list := q.listeners[t]
		for i, l := range list {
			if l.id == id {
				q.listeners[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// emit calls listeners outside q.mu so they can re-enter the queue.
func (q *Queue) emit(ev Event) {
	q.listenersMu.Lock()
	list := append([]listener(nil), q.listeners[ev.Type]...)
	q.listenersMu.Unlock()

	for _, l := range list {
		l.fn(ev)
	}
}

// Push appends job to the tail of the queue.
func (q *Queue) Push(job Job) <-chan Result {
	return q.add(job, false)
}

// Unshift inserts job at the head of the queue, so it runs next.
func (q *Queue) Unshift(job Job) <-chan Result {
	return q.add(job, true)
}

func (q *Queue) add(job Job, head bool) <-chan Result {
	e := &entry{job: job, result: make(chan Result, 1)}

	q.mu.Lock()
	if head {
		q.jobs = append([]*entry{e}, q.jobs...)
	} else {
		q.jobs = append(q.jobs, e)
	}
	start := !q.running
	if start {
		q.running = true
	}
	pending := len(q.jobs)
	q.cond.Broadcast()
	q.mu.Unlock()

	if start {
		q.emit(Event{Type: BeforeRun, Pending: pending})
		go q.run()
	}

	return e.result
}

// run is the single worker. It exits when the queue drains.
func (q *Queue) run() {
	for {
		q.mu.Lock()
		for q.isPaused() && len(q.jobs) > 0 && q.ctx.Err() == nil {
			q.cond.Wait()
		}

		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			q.emit(Event{Type: AfterRun})
			return
		}

		if err := q.ctx.Err(); err != nil {
			dropped := q.jobs
			q.jobs = nil
			q.running = false
			q.mu.Unlock()
			for _, e := range dropped {
				resolve(e, Result{Err: err})
			}
			q.emit(Event{Type: AfterRun})
			return
		}

		e := q.jobs[0]
		q.jobs = q.jobs[1:]
		pending := len(q.jobs)
		q.mu.Unlock()

		q.emit(Event{Type: BeforeExec, Pending: pending})

		start := time.Now()
		res := q.exec(e.job)

		q.mu.Lock()
		q.executed++
		if res.Err != nil {
			q.failed++
		}
		pending = len(q.jobs)
		q.mu.Unlock()

		if res.Err != nil {
			q.logger.Debug().Err(res.Err).Dur("elapsed", time.Since(start)).Msg("Queued job failed")
		}

		resolve(e, res)
		q.emit(Event{Type: AfterExec, Pending: pending, Err: res.Err})
	}
}

func (q *Queue) exec(job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
		}
	}()
	v, err := job(q.ctx)
	return Result{Value: v, Err: err}
}

func resolve(e *entry, res Result) {
	e.result <- res
	close(e.result)
}

func (q *Queue) isPaused() bool {
	return q.manual || q.hidden
}

// setFlag flips one pause source and emits pause/resume only when the
// combined state changes.
func (q *Queue) setFlag(flag *bool, value bool) {
	q.mu.Lock()
	before := q.isPaused()
	*flag = value
	after := q.isPaused()
	pending := len(q.jobs)
	if !after {
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	switch {
	case !before && after:
		q.emit(Event{Type: Pause, Pending: pending})
	case before && !after:
		q.emit(Event{Type: Resume, Pending: pending})
	}
}

// Pause suspends execution after the current job.
func (q *Queue) Pause() {
	q.setFlag(&q.manual, true)
}

// Resume clears a manual pause. Jobs stay suspended while the host is hidden.
func (q *Queue) Resume() {
	q.setFlag(&q.manual, false)
}

// SetVisible records host visibility. A hidden host suspends execution.
func (q *Queue) SetVisible(visible bool) {
	q.setFlag(&q.hidden, !visible)
}

// WatchVisibility feeds visibility changes from ch until ctx is done or ch
// is closed.
func (q *Queue) WatchVisibility(ctx context.Context, ch <-chan bool) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case visible, ok := <-ch:
				if !ok {
					return
				}
				q.SetVisible(visible)
			}
		}
	}()
}

// Clear drops every job that has not started, resolving each with ErrCleared.
// The executing job, if any, is unaffected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.jobs
	q.jobs = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, e := range dropped {
		resolve(e, Result{Err: ErrCleared})
	}
	return len(dropped)
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Running reports whether the worker is active (including while paused with
// jobs pending).
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Paused reports whether either pause source is set.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isPaused()
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Pending: len(q.jobs), Executed: q.executed, Failed: q.failed}
}

// PublishTo mirrors every lifecycle notification onto bus as a
// QueueStateEvent.
func (q *Queue) PublishTo(bus *events.EventBus) {
	for _, t := range AllEventTypes {
		q.On(t, func(ev Event) {
			bus.Publish(&events.QueueStateEvent{
				BaseEvent: events.BaseEvent{EventType: events.EventQueueState, Time: time.Now()},
				State:     string(ev.Type),
				Pending:   ev.Pending,
			})
		})
	}
}

// Wait blocks until ch delivers or ctx is done.
func Wait(ctx context.Context, ch <-chan Result) (any, error) {
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
