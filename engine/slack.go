package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SlackNotifier posts operator reports to a slack channel via "incoming
// webhook". The webhook must already be configured in the slack workplace.
type SlackNotifier struct {
	SlackWebhookURL string
}

var _ Notifier = (*SlackNotifier)(nil)

type slackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) SendOperator(ctx context.Context, text string) error {
	body, err := json.Marshal(slackWebhookBody{Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook request failed: status %d", resp.StatusCode)
	}
	return nil
}
