package api

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Result is a decoded action response.
type Result map[string]any

// ErrorResult builds a Result carrying only an error message.
func ErrorResult(msg string) Result {
	return Result{"error": msg}
}

// Success reports whether the server returned success: true.
func (r Result) Success() bool {
	v, _ := r["success"].(bool)
	return v
}

// Conflict returns the conflict message, if any.
func (r Result) Conflict() string {
	return r.Str("conflict")
}

// ErrorMessage returns the error message, if any.
func (r Result) ErrorMessage() string {
	return r.Str("error")
}

// TransferList returns the per-asset moves a folder move deferred to the
// caller. Entries that are not objects are skipped.
func (r Result) TransferList() []map[string]any {
	raw, ok := r["transferList"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Str returns the value at key rendered as a string. Numbers decoded from
// JSON come back without a trailing ".0".
func (r Result) Str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
