package hooks

import (
	"encoding/json"
	"io"
	"strings"
)

// signalTriggers are phrases that mean the user wants something stored. They
// force learning mode for the prompt.
var signalTriggers = []string{
	"remember this", "don't forget", "note to self",
	"store this", "memorize", "add to my palace",
	"i want to learn", "i need to remember",
}

// hasSignal returns true if the prompt contains any signal trigger phrase.
func hasSignal(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, trigger := range signalTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// SubmitRequest is the body of POST /api/hooks/submit.
type SubmitRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
	Learning  bool   `json:"learning,omitempty"`
}

// SubmitResponse is the server's classification of a prompt.
type SubmitResponse struct {
	Result Result       `json:"result"`
	Budget BudgetStatus `json:"budget"`
}

func handleSubmit(client *Client, input *HookInput, stdout io.Writer) error {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil
	}

	body, err := json.Marshal(SubmitRequest{
		SessionID: input.SessionID,
		Prompt:    input.Prompt,
		Learning:  hasSignal(input.Prompt),
	})
	if err != nil {
		return err
	}
	data, err := client.Post("/api/hooks/submit", body)
	if err != nil {
		return err
	}

	var resp SubmitResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if !resp.Result.Triggered || resp.Result.Suggestion == nil {
		return nil
	}
	return WriteOutput(stdout, EventUserPromptSubmit, resp.Result.Suggestion.Text())
}
