package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"redemption-service/internal/config"

	"github.com/pkg/errors"
)

const defaultRestTimeoutMs = 10_000

// RestStore talks to a Redis-compatible REST endpoint (GET /get/{key},
// /set/{key}/{value}, /setnx/{key}/{value}) authenticated with a bearer
// token. Single-command responses arrive as {"result": ...}.
type RestStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRestStore(cfg config.RestStore) *RestStore {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultRestTimeoutMs
	}

	return &RestStore{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

type restResult struct {
	Result *json.RawMessage `json:"result"`
}

func (s *RestStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.command(ctx, "get", key)
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}

	var value string
	if err := json.Unmarshal(*raw, &value); err != nil {
		return "", false, errors.Wrapf(err, "decoding GET result for key %q", key)
	}
	return value, true, nil
}

func (s *RestStore) Set(ctx context.Context, key, value string) error {
	_, err := s.command(ctx, "set", key, value)
	return err
}

func (s *RestStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	raw, err := s.command(ctx, "setnx", key, value)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	// SETNX replies 1 when the key was written, 0 when it already existed.
	var n int
	if err := json.Unmarshal(*raw, &n); err != nil {
		return false, errors.Wrapf(err, "decoding SETNX result for key %q", key)
	}
	return n == 1, nil
}

func (s *RestStore) command(ctx context.Context, parts ...string) (*json.RawMessage, error) {
	u := s.baseURL
	for _, part := range parts {
		u += "/" + url.PathEscape(part)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating store request")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling store")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading store response")
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("store error response: %s: %s", resp.Status, string(body))
	}

	var result restResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrap(err, "decoding store response")
	}

	return result.Result, nil
}
