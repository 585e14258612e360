// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity performs the three credential calls against the backend:
login, token refresh and profile lookup.

The client holds no session state. Every failure is returned as an
[apperr.AppError] so callers can branch on the code:

  - INVALID_CREDENTIALS: the login answered anything but 2xx.
  - REFRESH_REJECTED: the refresh answered anything but 2xx or 5xx.
  - UNAUTHORIZED: the access token given to FetchProfile was rejected.
  - SERVER_ERROR: refresh or profile answered 5xx, or any call returned an unreadable payload.
  - NETWORK_FAILURE: no response at all.
*/
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/ctxutil"
	"github.com/taibuivan/washdesk/internal/platform/validate"
)

// maxResponseBytes bounds the identity payloads read from the backend.
const maxResponseBytes = 1 << 20

// errUnexpectedPayload is returned when a 2xx body cannot be decoded or validated.
var errUnexpectedPayload = apperr.ServerError(http.StatusBadGateway, "Unexpected response from the server")

// Client calls the backend identity endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient returns an [http.Client] tuned for a single console terminal.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(constants.GlobalRequestTimeout)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// # Credential Calls

// Login exchanges an email and password for a token pair and the operator profile.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	result := &LoginResult{}
	status, err := c.do(ctx, http.MethodPost, constants.PathLogin, "", body, result)
	if err != nil {
		return nil, err
	}

	// Any answer but 2xx, server failures included, reads as bad credentials.
	if !successful(status) {
		return nil, apperr.InvalidCredentials(fmt.Errorf("identity: login answered %d", status))
	}

	return result, nil
}

// Refresh mints a new token pair from refreshToken.
//
// When the backend does not rotate the refresh token, the returned pair keeps
// the one that was sent.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperr.RefreshRejected(fmt.Errorf("identity: no refresh token"))
	}

	body := map[string]string{"refreshToken": refreshToken}

	pair := &TokenPair{}
	status, err := c.do(ctx, http.MethodPost, constants.PathRefresh, "", body, pair)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 500:
		return nil, apperr.ServerError(status, constants.MessageServerFailure)
	case !successful(status):
		return nil, apperr.RefreshRejected(fmt.Errorf("identity: refresh answered %d", status))
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// FetchProfile returns the operator behind accessToken.
//
// The call attaches its own bearer header, so it never goes through the
// session-aware transport.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	profile := &UserProfile{}
	status, err := c.do(ctx, http.MethodGet, constants.PathProfile, accessToken, nil, profile)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 500:
		return nil, apperr.ServerError(status, constants.MessageServerFailure)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, apperr.Unauthorized("Session expired")
	case !successful(status):
		return nil, apperr.RequestFailed(status, constants.MessageGenericFailure)
	}

	return profile, nil
}

// # Wire Helpers

// do sends one JSON request and decodes a 2xx body into out.
//
// Non-2xx statuses are returned without error so each call maps them itself.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) (int, error) {

	// ── 1. Encode ─────────────────────────────────────────────────────────
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, apperr.Internal(fmt.Errorf("identity: encode %s: %w", path, err))
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("identity: build %s: %w", path, err))
	}

	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		request.Header.Set(constants.HeaderAuthorization, "Bearer "+bearer)
	}
	if id := ctxutil.GetRequestID(ctx); id != "" {
		request.Header.Set(constants.HeaderXRequestID, id)
	}

	// ── 2. Send ───────────────────────────────────────────────────────────
	response, err := c.httpClient.Do(request)
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "identity_call_unreachable",
			"path", path,
			"error", err.Error(),
		)
		return 0, apperr.NetworkFailure(err)
	}
	defer response.Body.Close()

	if !successful(response.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
		return response.StatusCode, nil
	}

	// ── 3. Decode & Validate ─────────────────────────────────────────────
	if err := json.NewDecoder(io.LimitReader(response.Body, maxResponseBytes)).Decode(out); err != nil {
		return 0, errUnexpectedPayload.WithCause(fmt.Errorf("identity: decode %s: %w", path, err))
	}
	if err := validate.Struct(out); err != nil {
		return 0, errUnexpectedPayload.WithCause(fmt.Errorf("identity: %s payload: %w", path, err))
	}

	return response.StatusCode, nil
}

func successful(status int) bool {
	return status >= 200 && status <= 299
}
