// Package hooks implements the agent-host hook handlers that watch a
// conversation and offer to recall or store memory-palace entries. The
// handlers are thin clients of the palace server, which owns the per-session
// interruption budget and the classifier.
package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Handle reads HookInput from stdin, dispatches on event (start, submit or
// end) and writes any hook output to stdout. A down server is not an error:
// start still emits an empty context and the other events stay silent.
func Handle(client *Client, event string, stdin io.Reader, stdout io.Writer) error {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		// stdin may be empty for some events
		if event == "start" {
			return WriteOutput(stdout, EventSessionStart, "")
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode stdin: %w", err)
	}

	if !client.Healthy() {
		if event == "start" {
			return WriteOutput(stdout, EventSessionStart, "")
		}
		return nil
	}

	switch event {
	case "start":
		return handleStart(client, &input, stdout)
	case "submit":
		return handleSubmit(client, &input, stdout)
	case "end":
		return handleEnd(client, &input)
	default:
		return fmt.Errorf("unknown hook event: %s", event)
	}
}
