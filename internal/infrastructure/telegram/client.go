package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"profitsniffer/internal/application/port"
)

const DefaultAPIURL = "https://api.telegram.org"

// Client is a minimal Bot API client: sendMessage and getUpdates.
type Client struct {
	base   string // {api}/bot{token}
	client *http.Client
}

func NewClient(apiURL, token string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(apiURL, "/") + "/bot" + token,
		client: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Update is the subset of a Bot API update the poller reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var ar apiResponse
	if err := json.Unmarshal(b, &ar); err != nil {
		return fmt.Errorf("telegram %s http %d: %w", method, resp.StatusCode, err)
	}
	if !ar.OK {
		return fmt.Errorf("telegram %s http %d: %s", method, resp.StatusCode, ar.Description)
	}
	if out != nil {
		return json.Unmarshal(ar.Result, out)
	}
	return nil
}

// Notify sends text to the chat whose id is subscriberID.
func (c *Client) Notify(ctx context.Context, subscriberID, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{"chat_id": subscriberID, "text": text}, nil)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var out []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}, &out)
	return out, err
}

var _ port.Notifier = (*Client)(nil)
