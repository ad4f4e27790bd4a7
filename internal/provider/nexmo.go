package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Nexmo sends messages through the Nexmo SMS REST API.
type Nexmo struct {
	Account string
	Token   string
	BaseURL string
	Client  *http.Client
}

// NewNexmo builds a Nexmo gateway with the given API credentials.
func NewNexmo(account, token string) *Nexmo {
	return &Nexmo{
		Account: account,
		Token:   token,
		BaseURL: "https://rest.nexmo.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type nexmoMessage struct {
	MessageID string `json:"message-id"`
	Status    string `json:"status"`
}

type nexmoResponse struct {
	MessageCount string         `json:"message-count"`
	Messages     []nexmoMessage `json:"messages"`
}

// Send posts the message to /sms/json and collects the per-segment
// message ids from the response.
func (n *Nexmo) Send(ctx context.Context, from, to, body string) ([]string, error) {
	payload := map[string]string{
		"api_key":    n.Account,
		"api_secret": n.Token,
		"from":       from,
		"to":         to,
		"text":       body,
		"type":       "unicode",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal nexmo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/sms/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("provider: build nexmo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: nexmo send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider: nexmo send: unexpected status %d", resp.StatusCode)
	}

	var parsed nexmoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("provider: decode nexmo response: %w", err)
	}

	var ids []string
	for _, m := range parsed.Messages {
		if m.MessageID != "" {
			ids = append(ids, m.MessageID)
		}
	}
	return ids, nil
}
