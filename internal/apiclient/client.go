// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/ctxutil"
	"github.com/taibuivan/washdesk/internal/platform/notify"
)

// maxResponseBytes bounds the feature payloads read from the backend.
const maxResponseBytes = 4 << 20

// Client sends JSON feature requests through a session-aware [http.Client].
type Client struct {
	baseURL    string
	httpClient *http.Client
	notifier   notify.Notifier
}

// NewHTTPClient wraps transport in an [http.Client] with the given timeout.
func NewHTTPClient(transport *Transport, timeout time.Duration) *http.Client {
	return &http.Client{Transport: transport, Timeout: timeout}
}

// NewClient creates a Client for the backend at baseURL. Failures other than a
// rejected session are reported to notifier.
func NewClient(baseURL string, httpClient *http.Client, notifier notify.Notifier) *Client {
	if notifier == nil {
		notifier = notify.Logger{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		notifier:   notifier,
	}
}

// Get is shorthand for a GET through [Client.Do].
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Do sends in as JSON and decodes a 2xx body into out. Either may be nil.
//
// Outcomes:
//
//   - 401: UNAUTHORIZED, without a toast. The Transport already dealt with the session.
//   - other 4xx: REQUEST_FAILED, after a toast with the backend's message.
//   - 5xx: SERVER_ERROR, after a toast with the backend's message.
//   - no response: NETWORK_FAILURE, after the connectivity toast.
//
// Requests are never retried here.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {

	// ── 1. Encode ─────────────────────────────────────────────────────────
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal(fmt.Errorf("apiclient: encode %s: %w", path, err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Internal(fmt.Errorf("apiclient: build %s: %w", path, err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// ── 2. Send ───────────────────────────────────────────────────────────
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return apperr.NetworkFailure(err)
		}
		ctxutil.GetLogger(ctx).WarnContext(ctx, "api_request_unreachable",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		c.notifier.Notify(ctx, notify.Error(constants.MessageNetworkFailure))
		return apperr.NetworkFailure(err)
	}
	defer resp.Body.Close()

	// ── 3. Status ─────────────────────────────────────────────────────────
	status := resp.StatusCode
	switch {
	case status == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return apperr.Unauthorized("Session expired")

	case status >= 400:
		message := backendMessage(resp.Body)
		ctxutil.GetLogger(ctx).WarnContext(ctx, "api_request_failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
		)

		if status >= 500 {
			if message == "" {
				message = constants.MessageServerFailure
			}
			c.notifier.Notify(ctx, notify.Error(message))
			return apperr.ServerError(status, message)
		}

		if message == "" {
			message = constants.MessageGenericFailure
		}
		c.notifier.Notify(ctx, notify.Error(message))
		return apperr.RequestFailed(status, message)
	}

	// ── 4. Decode ─────────────────────────────────────────────────────────
	if out == nil || status == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		c.notifier.Notify(ctx, notify.Error(constants.MessageServerFailure))
		return apperr.ServerError(http.StatusBadGateway, "Unexpected response from the server").
			WithCause(fmt.Errorf("apiclient: decode %s: %w", path, err))
	}
	return nil
}

// backendMessage extracts a displayable message from an error body.
//
// Accepted shapes: {"message": "..."}, {"error": "..."} and
// {"error": {"message": "..."}}. Anything else yields "".
func backendMessage(body io.Reader) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxResponseBytes)).Decode(&envelope); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(envelope.Message); msg != "" {
		return msg
	}
	if len(envelope.Error) == 0 {
		return ""
	}

	var text string
	if json.Unmarshal(envelope.Error, &text) == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &nested) == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
