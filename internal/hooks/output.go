package hooks

import (
	"encoding/json"
	"io"
)

// Hook event names echoed back to the host.
const (
	EventSessionStart     = "SessionStart"
	EventUserPromptSubmit = "UserPromptSubmit"
)

// Output is the JSON the host expects on stdout from hooks that add context.
type Output struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

// WriteOutput writes an Output for event carrying context to w.
func WriteOutput(w io.Writer, event, context string) error {
	var out Output
	out.HookSpecificOutput.HookEventName = event
	out.HookSpecificOutput.AdditionalContext = context
	return json.NewEncoder(w).Encode(out)
}
