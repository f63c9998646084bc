package hooks

import (
	"encoding/json"
	"io"
	"net/url"
)

// StartResponse is the server's answer to a session start.
type StartResponse struct {
	Context    string      `json:"context"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

func handleStart(client *Client, input *HookInput, stdout io.Writer) error {
	params := url.Values{}
	if input.SessionID != "" {
		params.Set("session_id", input.SessionID)
	}

	data, err := client.Get("/api/hooks/start?" + params.Encode())
	if err != nil {
		// degrade to an empty context
		return WriteOutput(stdout, EventSessionStart, "")
	}

	var resp StartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return WriteOutput(stdout, EventSessionStart, "")
	}
	return WriteOutput(stdout, EventSessionStart, resp.Context)
}
