// Package bridge builds the JSON envelopes returned to JavaScript by the wasm
// entry point. Every result is a JSON string.
package bridge

import (
	"encoding/json"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/pkg/roster"
)

// ErrorResult is {"error": msg}.
func ErrorResult(msg string) string {
	return JSONResult(map[string]interface{}{"error": msg})
}

// SuccessResult is {"success": msg}.
func SuccessResult(msg string) string {
	return JSONResult(map[string]interface{}{"success": msg})
}

// CodeResult is {"error", "code", "metadata"} for a failed call.
func CodeResult(err error) string {
	return JSONResult(withError(map[string]interface{}{}, err))
}

// AppliedResult is the payload of a mutation that took effect. A non-nil err
// (typically PERSISTENCE) is reported alongside it, never instead of it.
func AppliedResult(payload map[string]interface{}, err error) string {
	return JSONResult(withError(payload, err))
}

// ExchangeResult renders a SendMessage outcome. resolve is false when the
// call failed outright; the envelope then still carries the user message the
// roster kept, if any. Once a reply was appended the exchange resolves, with
// any save error attached.
func ExchangeResult(ex *roster.Exchange, err error) (out string, resolve bool) {
	if err == nil {
		return JSONResult(ex), true
	}
	payload := map[string]interface{}{}
	if ex != nil {
		payload["characterId"] = ex.CharacterID
		payload["conversationId"] = ex.ConversationID
		payload["user"] = ex.User
		if ex.Reply != nil {
			payload["reply"] = ex.Reply
		}
	}
	return AppliedResult(payload, err), ex != nil && ex.Reply != nil
}

// JSONResult marshals v, falling back to an error envelope.
func JSONResult(v interface{}) string {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return ErrorResult("encode result: " + err.Error())
	}
	return string(jsonBytes)
}

func withError(payload map[string]interface{}, err error) map[string]interface{} {
	if err == nil {
		return payload
	}
	payload["error"] = err.Error()
	payload["code"] = apperrors.GetCode(err)
	if md := apperrors.GetMetadata(err); len(md) > 0 {
		payload["metadata"] = md
	}
	return payload
}
