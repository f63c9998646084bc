package hooks

// HookInput is the JSON an agent host sends on stdin to hook handlers.
// Different events populate different subsets.
type HookInput struct {
	SessionID     string `json:"session_id"`
	CWD           string `json:"cwd"`
	HookEventName string `json:"hook_event_name"`

	// SessionStart
	Source string `json:"source,omitempty"`

	// UserPromptSubmit
	Prompt string `json:"prompt,omitempty"`

	// SessionEnd
	Reason string `json:"reason,omitempty"`
}
