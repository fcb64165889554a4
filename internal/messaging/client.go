package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"redemption-service/internal/config"

	"github.com/pkg/errors"
)

const defaultMessagingTimeoutMs = 10_000

// Client sends outbound chat messages through the messaging gateway's
// instance endpoint (POST {base}/send-text with a client-token header).
type Client struct {
	baseURL     string
	clientToken string
	client      *http.Client
}

func NewClient(cfg config.Messaging) *Client {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultMessagingTimeoutMs
	}

	return &Client{
		baseURL:     cfg.URL,
		clientToken: cfg.ClientToken,
		client:      &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

type sendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendText delivers a text message to phone. Delivery is fire-and-forget at
// the call sites; failures surface as errors for logging only.
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	body, err := json.Marshal(sendTextRequest{Phone: phone, Message: text})
	if err != nil {
		return errors.Wrap(err, "encoding send-text request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-text", bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrap(err, "creating send-text request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Token", c.clientToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling messaging gateway")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading messaging response")
	}

	if resp.StatusCode >= 400 {
		return errors.Errorf("messaging error response: %s: %s", resp.Status, string(respBody))
	}

	return nil
}
