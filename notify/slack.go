package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type webhookMessage struct {
	Channel     string `json:"channel,omitempty"`
	Text        string `json:"text"`
	Mrkdwn      bool   `json:"mrkdwn"`
	UnfurlLinks bool   `json:"unfurl_links"`
}

// SlackClient posts mrkdwn messages to a Slack incoming webhook.
type SlackClient struct {
	webhookURL string
	httpClient doer
}

func NewSlackClient(webhookURL string, httpClient doer) *SlackClient {
	return &SlackClient{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *SlackClient) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(webhookMessage{
		Channel: channel,
		Text:    message,
		Mrkdwn:  true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Slack explains webhook failures in a short plain-text body.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if reason := strings.TrimSpace(string(body)); reason != "" {
			return fmt.Errorf("failed to post message: %s: %s", resp.Status, reason)
		}
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}
	return nil
}
