// Package mover moves assets and folders into a target folder through the
// site's move actions, resolving naming conflicts with the user and
// replaying the affected items until no conflicts remain.
package mover

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rescale/assetmover/internal/api"
	"github.com/rescale/assetmover/internal/constants"
	"github.com/rescale/assetmover/internal/events"
	"github.com/rescale/assetmover/internal/logging"
	"github.com/rescale/assetmover/internal/progress"
	"github.com/rescale/assetmover/internal/prompt"
	"github.com/rescale/assetmover/internal/queue"
)

// IndexUI is the element index the engine reports to while it works.
type IndexUI interface {
	SetIndexBusy()
	SetIndexAvailable()
	PositionProgressBar()
	ProgressBar() progress.Bar
	PromptHandler() *prompt.Handler
	DisplayError(message string)
}

// Conflict choices
const (
	ChoiceKeepBoth = "keepBoth"
	ChoiceReplace  = "replace"
	ChoiceMerge    = "merge"
)

var (
	assetChoices = []prompt.Choice{
		{Value: ChoiceKeepBoth, Title: "Keep both"},
		{Value: ChoiceReplace, Title: "Replace it"},
	}
	folderChoices = []prompt.Choice{
		{Value: ChoiceReplace, Title: "Replace the folder (all existing files will be deleted)"},
		{Value: ChoiceMerge, Title: "Merge the folder (any conflicting files will be replaced)"},
	}
)

// ConflictChoices returns the answers a conflict on kind offers besides
// cancel.
func ConflictChoices(kind Kind) []prompt.Choice {
	if kind == KindFolder {
		return slices.Clone(folderChoices)
	}
	return slices.Clone(assetChoices)
}

// resolver turns a conflicting outcome and the user's choice into the
// request to retry. ok is false for choices the operation doesn't know.
type resolver func(o Outcome, choice string) (req MoveRequest, ok bool)

func resolveAsset(o Outcome, choice string) (MoveRequest, bool) {
	switch choice {
	case ChoiceKeepBoth:
		return o.Request.With(map[string]any{"filename": o.Result.Str("suggestedFilename")}), true
	case ChoiceReplace:
		return o.Request.With(map[string]any{"force": true}), true
	}
	return MoveRequest{}, false
}

func resolveFolder(o Outcome, choice string) (MoveRequest, bool) {
	switch choice {
	case ChoiceReplace:
		return o.Request.With(map[string]any{"force": true}), true
	case ChoiceMerge:
		return o.Request.With(map[string]any{"merge": true}), true
	}
	return MoveRequest{}, false
}

// Options configures optional collaborators.
type Options struct {
	// Queue receives a refresh job after every MoveAssets/MoveFolders call.
	Queue *queue.Queue

	// Bus receives round, outcome and completion events.
	Bus *events.EventBus

	Logger *logging.Logger
}

// Engine runs asset and folder moves.
//
// The engine owns the index's prompt handler for the duration of a call.
// Two calls sharing an IndexUI must not run concurrently.
type Engine struct {
	client api.ActionClient
	ui     IndexUI
	queue  *queue.Queue
	bus    *events.EventBus
	logger *logging.Logger
}

// NewEngine creates an engine posting through client and reporting to ui.
func NewEngine(client api.ActionClient, ui IndexUI, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		client: client,
		ui:     ui,
		queue:  opts.Queue,
		bus:    opts.Bus,
		logger: logger,
	}
}

// MoveAssets moves assetIDs into targetFolderID and returns how many were
// moved across all rounds. Errors are displayed on the index and cancelled
// conflicts are dropped; neither is returned. The error is non-nil only if
// ctx ended before the call completed.
func (e *Engine) MoveAssets(ctx context.Context, assetIDs []int, targetFolderID int) (int, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}
	start := time.Now()

	reqs := make([]MoveRequest, len(assetIDs))
	for i, id := range assetIDs {
		reqs[i] = NewMoveRequest(KindAsset, constants.ActionMoveAsset, map[string]any{
			"assetId":  id,
			"folderId": targetFolderID,
		}, nil)
	}

	moved := e.runRounds(ctx, "assets", reqs, assetChoices, resolveAsset)

	e.finish(ctx, "assets", len(assetIDs), moved, start)
	return moved, ctx.Err()
}

// MoveFolders moves folderIDs under targetFolderID and returns how many
// folders were moved.
//
// A successful folder move may hand back a transfer list of assets the
// caller has to move individually. Once all move rounds settle those are
// moved, then every requested folder whose move succeeded is deleted,
// unless one of its transfers failed. Neither phase adds to the count.
func (e *Engine) MoveFolders(ctx context.Context, folderIDs []int, targetFolderID int) (int, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}
	start := time.Now()

	var (
		transfers    []MoveRequest
		movedFolders = make(map[int]bool)
		pendingByID  = make(map[int]int) // transfers not yet moved, per source folder
	)

	reqs := make([]MoveRequest, len(folderIDs))
	for i, id := range folderIDs {
		reqs[i] = NewMoveRequest(KindFolder, constants.ActionMoveFolder, map[string]any{
			"folderId": id,
			"parentId": targetFolderID,
		}, func(res api.Result) {
			movedFolders[id] = true
			for _, params := range res.TransferList() {
				pendingByID[id]++
				transfers = append(transfers, NewMoveRequest(KindAsset, constants.ActionMoveAsset, params, func(api.Result) {
					pendingByID[id]--
				}))
			}
		})
	}

	moved := e.runRounds(ctx, "folders", reqs, folderChoices, resolveFolder)

	if len(transfers) > 0 && ctx.Err() == nil {
		outcomes := e.performBatch(ctx, round{operation: "folders", phase: phaseTransfer, number: 1}, transfers)
		for _, o := range outcomes {
			// Errors were displayed by performBatch; conflicts are not
			// prompted for here
			if c := o.Conflict(); c != "" && o.ErrorMessage() == "" {
				e.ui.DisplayError(c)
				e.bus.PublishLog(events.ErrorLevel, c, "folders")
			}
		}
	}

	var deletes []MoveRequest
	for _, id := range folderIDs {
		if !movedFolders[id] {
			continue
		}
		if pendingByID[id] > 0 {
			e.logger.Warn().Int("folder_id", id).Int("pending", pendingByID[id]).
				Msg("Keeping source folder, some files could not be transferred")
			continue
		}
		deletes = append(deletes, NewMoveRequest(KindFolder, constants.ActionDeleteFolder, map[string]any{
			"folderId": id,
		}, nil))
	}
	if len(deletes) > 0 && ctx.Err() == nil {
		e.performBatch(ctx, round{operation: "folders", phase: phaseDelete, number: 1}, deletes)
	}

	e.finish(ctx, "folders", len(folderIDs), moved, start)
	return moved, ctx.Err()
}

// runRounds dispatches reqs, prompts for any conflicts, and replays the
// resolved ones until a round has no conflicts or every conflict was
// cancelled. It returns the number of successes across all rounds.
func (e *Engine) runRounds(ctx context.Context, operation string, reqs []MoveRequest, choices []prompt.Choice, resolve resolver) int {
	total := 0

	for n := 1; len(reqs) > 0; n++ {
		outcomes := e.performBatch(ctx, round{operation: operation, phase: phaseMove, number: n}, reqs)

		var conflicts []Outcome
		for _, o := range outcomes {
			if o.Success() {
				total++
			}
			if o.Conflict() != "" {
				conflicts = append(conflicts, o)
			}
		}

		if len(conflicts) == 0 || ctx.Err() != nil {
			break
		}

		handler := e.ui.PromptHandler()
		handler.ResetPrompts()
		for _, o := range conflicts {
			handler.AddPrompt(prompt.Prompt{
				Message: o.Conflict(),
				Choices: choices,
				Data:    o,
			})
		}

		resolved := handler.ShowBatchPrompts(ctx)
		e.publishResolved(operation, resolved)

		var retries []MoveRequest
		for _, r := range resolved {
			if r.Cancelled() {
				continue
			}
			o, ok := r.Data.(Outcome)
			if !ok {
				continue
			}
			if req, ok := resolve(o, r.Choice); ok {
				retries = append(retries, req)
			}
		}
		reqs = retries
	}

	return total
}

// finish queues the background refresh and reports completion.
func (e *Engine) finish(ctx context.Context, operation string, requested, moved int, start time.Time) {
	e.queueRefresh()

	elapsed := time.Since(start)
	e.logger.Info().
		Str("operation", operation).
		Int("requested", requested).
		Int("moved", moved).
		Dur("elapsed", elapsed).
		Msg("Move finished")
	e.publish(&events.CompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventMoveComplete, Time: time.Now()},
		Operation: operation,
		Requested: requested,
		Moved:     moved,
		Duration:  elapsed,
	})
}

// queueRefresh asks the server to run its job queue so indexes and
// thumbnails catch up with the move. The job runs in the background.
func (e *Engine) queueRefresh() {
	if e.queue == nil {
		return
	}
	e.queue.Push(func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, constants.RefreshJobTimeout)
		defer cancel()

		res, err := e.client.Post(ctx, constants.ActionRunQueue, nil)
		if err != nil {
			return nil, fmt.Errorf("queue refresh: %w", err)
		}
		if msg := res.ErrorMessage(); msg != "" {
			return res, fmt.Errorf("queue refresh: %s", msg)
		}
		return res, nil
	})
}

func (e *Engine) publishResolved(operation string, resolved []prompt.Resolved) {
	counts := make(map[string]int)
	cancelled := 0
	for _, r := range resolved {
		counts[r.Choice]++
		if r.Cancelled() {
			cancelled++
		}
	}
	e.publish(&events.ConflictsResolvedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventConflictsResolved, Time: time.Now()},
		Operation: operation,
		Prompts:   len(resolved),
		Cancelled: cancelled,
		Choices:   counts,
	})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
