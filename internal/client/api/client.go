// Package api is the HTTP request helper for the storefront backend.
// It owns URL construction, bearer authentication, JSON encoding and the
// mapping of transport and server failures onto typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-call identifier for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// ErrInvalidResponse is wrapped when a 2xx response body cannot be decoded.
var ErrInvalidResponse = errors.New("invalid response")

// NetworkError reports that no HTTP response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError reports a non-2xx response. Detail holds the "detail" field of
// the JSON error body when the server sent one.
type RejectedError struct {
	Op     string
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: server error %d", e.Op, e.Status)
}

// Unauthorized reports whether the server rejected the credential.
func (e *RejectedError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Message returns the user-facing text for err: the server detail for a
// rejected request, otherwise fallback.
func Message(err error, fallback string) string {
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Detail != "" {
		return rej.Detail
	}
	return fallback
}

// Client performs calls against one storefront origin.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a Client for baseURL. A nil httpClient falls back to http.DefaultClient,
// a nil logger to a no-op logger.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// BaseURL returns the origin the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends one request. in is JSON-encoded when non-nil; out is decoded from a
// 2xx body when non-nil. An empty token sends the request without credentials.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	log := c.log.With(zap.String("op", op), zap.String("request_id", reqID))

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("request failed", zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		rej := &RejectedError{Op: op, Status: resp.StatusCode, Detail: detail(data)}
		log.Debug("request rejected", zap.Int("status", resp.StatusCode), zap.String("detail", rej.Detail))
		return rej
	}

	log.Debug("request ok", zap.Int("status", resp.StatusCode))
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidResponse, err)
	}
	return nil
}

// detail extracts the "detail" field of an error body. Validation errors carry
// a list of objects with "msg"; the first message is used.
func detail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &list); err == nil && len(list) > 0 {
		return list[0].Msg
	}
	return ""
}
