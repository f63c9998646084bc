package hooks

import "encoding/json"

func handleEnd(client *Client, input *HookInput) error {
	body, err := json.Marshal(map[string]string{"session_id": input.SessionID})
	if err != nil {
		return err
	}
	_, err = client.Post("/api/hooks/end", body)
	return err
}
