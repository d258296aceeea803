package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"ocpinode/models"
	"ocpinode/utility"
	"time"
)

// ErrUnavailable marks transport-level failures; callers may retry.
var ErrUnavailable = utility.Err("counterparty unavailable")

// ErrProtocol marks malformed counterparty responses; callers must not retry.
var ErrProtocol = utility.Err("counterparty protocol violation")

type Client struct {
	client  *http.Client
	timeout time.Duration
}

func New(timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Get fetches an OCPI endpoint and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, url, token string, out interface{}) error {
	return c.do(ctx, http.MethodGet, url, token, nil, out)
}

// Post sends data to an OCPI endpoint and decodes the envelope data into out.
// A nil out discards the response data.
func (c *Client) Post(ctx context.Context, url, token string, data, out interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshalling body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, token, body, out)
}

func (c *Client) do(ctx context.Context, method, url, token string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status code %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status code %d", ErrProtocol, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response body: %v", ErrUnavailable, err)
	}

	var envelope struct {
		Data          json.RawMessage `json:"data"`
		StatusCode    int             `json:"status_code"`
		StatusMessage string          `json:"status_message"`
	}
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: decoding envelope: %v", ErrProtocol, err)
	}
	if envelope.StatusCode >= models.StatusServerError {
		return fmt.Errorf("%w: status %d %s", ErrUnavailable, envelope.StatusCode, envelope.StatusMessage)
	}
	if envelope.StatusCode < models.StatusSuccess || envelope.StatusCode >= models.StatusClientError {
		return fmt.Errorf("%w: status %d %s", ErrProtocol, envelope.StatusCode, envelope.StatusMessage)
	}
	if out != nil && envelope.Data != nil {
		if err = json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: decoding data: %v", ErrProtocol, err)
		}
	}
	return nil
}
