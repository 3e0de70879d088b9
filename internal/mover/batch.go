package mover

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/assetmover/internal/api"
	"github.com/rescale/assetmover/internal/events"
	"github.com/rescale/assetmover/internal/progress"
)

// round identifies one wave of requests for labels, logs and events.
type round struct {
	operation string // "assets", "folders"
	phase     string // "move", "transfer", "delete"
	number    int    // 1-based within the phase
}

func (r round) label() string {
	switch r.phase {
	case phaseTransfer:
		return "Transferring files"
	case phaseDelete:
		return "Removing source folders"
	}
	if r.number > 1 {
		return "Moving " + r.operation + " (retry)"
	}
	return "Moving " + r.operation
}

const (
	phaseMove     = "move"
	phaseTransfer = "transfer"
	phaseDelete   = "delete"
)

// performBatch dispatches every request at once and waits for all of them.
//
// The index is busy and the progress bar shown for the duration of the
// round. Each settled response bumps the processed count; the last one sets
// it to the total instead so the bar finishes exactly once whatever order
// responses arrive in. Errors are displayed one per item. Success callbacks
// run after the round, in request order.
func (e *Engine) performBatch(ctx context.Context, r round, reqs []MoveRequest) []Outcome {
	if len(reqs) == 0 {
		return nil
	}

	e.ui.SetIndexBusy()
	bar := e.ui.ProgressBar()
	if l, ok := bar.(progress.Labeler); ok {
		l.SetLabel(r.label())
	}
	bar.ResetProgressBar()
	bar.SetItemCount(len(reqs))
	e.ui.PositionProgressBar()
	bar.ShowProgressBar()

	e.logger.Debug().
		Str("operation", r.operation).
		Str("phase", r.phase).
		Int("round", r.number).
		Int("requests", len(reqs)).
		Msg("Dispatching round")
	e.publish(&events.RoundEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRoundStarted, Time: time.Now()},
		Operation: r.operation,
		Phase:     r.phase,
		Round:     r.number,
		Requests:  len(reqs),
	})

	outcomes := make([]Outcome, len(reqs))
	var remaining atomic.Int64
	remaining.Store(int64(len(reqs)))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req MoveRequest) {
			defer wg.Done()

			id := uuid.NewString()
			outcomes[i] = Outcome{
				Request:   req,
				Result:    e.post(api.WithRequestID(ctx, id), req),
				RequestID: id,
			}

			if remaining.Add(-1) == 0 {
				bar.SetProcessedItemCount(len(reqs))
			} else {
				bar.IncrementProcessedItemCount(1)
			}
			bar.UpdateProgressBar()
		}(i, req)
	}
	wg.Wait()

	var successes, conflicts, errs int
	for _, o := range outcomes {
		if o.Success() {
			successes++
			if o.Request.onSuccess != nil {
				o.Request.onSuccess(o.Result)
			}
		}
		if o.Conflict() != "" {
			conflicts++
		}
		if msg := o.ErrorMessage(); msg != "" {
			errs++
			e.ui.DisplayError(msg)
			e.bus.PublishLog(events.ErrorLevel, msg, r.operation)
		}

		e.publish(&events.OutcomeEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventItemOutcome, Time: time.Now()},
			Operation: r.operation,
			Phase:     r.phase,
			Action:    o.Request.Action(),
			RequestID: o.RequestID,
			ItemID:    o.Request.ItemID(),
			Status:    o.Status(),
			Message:   o.Conflict() + o.ErrorMessage(),
		})
	}

	e.ui.SetIndexAvailable()
	bar.HideProgressBar()

	e.logger.Debug().
		Str("operation", r.operation).
		Str("phase", r.phase).
		Int("round", r.number).
		Int("successes", successes).
		Int("conflicts", conflicts).
		Int("errors", errs).
		Msg("Round settled")
	e.publish(&events.RoundEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRoundFinished, Time: time.Now()},
		Operation: r.operation,
		Phase:     r.phase,
		Round:     r.number,
		Requests:  len(reqs),
		Successes: successes,
		Conflicts: conflicts,
		Errors:    errs,
	})

	return outcomes
}

// post never fails: transport errors become error outcomes.
func (e *Engine) post(ctx context.Context, req MoveRequest) api.Result {
	res, err := e.client.Post(ctx, req.Action(), req.Params())
	if err != nil {
		e.logger.Debug().Err(err).
			Str("action", req.Action()).
			Str("item", req.ItemID()).
			Str("request_id", api.RequestIDFromContext(ctx)).
			Msg("Request failed")
		return api.ErrorResult(err.Error())
	}
	if res == nil {
		return api.ErrorResult("Empty response from " + req.Action())
	}
	return res
}
