package mover

import (
	"fmt"
	"maps"

	"github.com/rescale/assetmover/internal/api"
)

// Kind is what a request moves.
type Kind string

const (
	KindAsset  Kind = "asset"
	KindFolder Kind = "folder"
)

// Plural returns "assets" or "folders".
func (k Kind) Plural() string { return string(k) + "s" }

// MoveRequest describes one action call. It is immutable: conflict
// resolutions build new requests with With.
type MoveRequest struct {
	kind      Kind
	action    string
	params    map[string]any
	onSuccess func(api.Result)
}

// NewMoveRequest copies params so later changes by the caller don't leak in.
// onSuccess, if set, is called once with the response when the request
// succeeds.
func NewMoveRequest(kind Kind, action string, params map[string]any, onSuccess func(api.Result)) MoveRequest {
	return MoveRequest{
		kind:      kind,
		action:    action,
		params:    maps.Clone(params),
		onSuccess: onSuccess,
	}
}

func (r MoveRequest) Kind() Kind     { return r.kind }
func (r MoveRequest) Action() string { return r.action }

// Params returns a copy of the request parameters.
func (r MoveRequest) Params() map[string]any {
	return maps.Clone(r.params)
}

// Param returns a single parameter.
func (r MoveRequest) Param(key string) any {
	return r.params[key]
}

// ItemID returns the id of the asset or folder being acted on, for logs
// and error messages.
func (r MoveRequest) ItemID() string {
	for _, key := range []string{"assetId", "folderId"} {
		if v, ok := r.params[key]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

// With returns a new request with extra merged over the parameters. The
// success callback is carried forward.
func (r MoveRequest) With(extra map[string]any) MoveRequest {
	params := maps.Clone(r.params)
	if params == nil {
		params = make(map[string]any, len(extra))
	}
	maps.Copy(params, extra)
	return MoveRequest{
		kind:      r.kind,
		action:    r.action,
		params:    params,
		onSuccess: r.onSuccess,
	}
}

// Outcome is a settled request.
type Outcome struct {
	Request   MoveRequest
	Result    api.Result
	RequestID string // X-Request-Id the request was sent with
}

func (o Outcome) Success() bool       { return o.Result.Success() }
func (o Outcome) Conflict() string     { return o.Result.Conflict() }
func (o Outcome) ErrorMessage() string { return o.Result.ErrorMessage() }

// Status classifies the outcome for logs and events.
func (o Outcome) Status() string {
	switch {
	case o.ErrorMessage() != "":
		return "error"
	case o.Conflict() != "":
		return "conflict"
	case o.Success():
		return "success"
	default:
		return "unknown"
	}
}
