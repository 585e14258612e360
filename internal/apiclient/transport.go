// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apiclient carries every feature request to the backend on behalf of the
current session.

Architecture:

  - Transport: An [http.RoundTripper] that attaches the bearer token, the active
    station and the request ID, and reacts to a rejected token.
  - Client: A JSON wrapper over an [http.Client] using the Transport. It turns
    failures into [apperr.AppError] values and raises toasts for the operator.

Rejected tokens:

When the backend answers 401, the Transport asks the session for one coalesced
refresh and replays the request once with the new token. If the refresh is
refused or the replay is rejected again, the session is cleared. Concurrent
failures carrying the same token clear it exactly once, and only that first
clear fires the signed-out hook.
*/
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/ctxutil"
)

// Session is the view of the session the Transport needs.
//
// [session.Manager] satisfies it.
type Session interface {
	oauth2.TokenSource
	AccessToken() string
	StationID() (int64, bool)
	RefreshAccess(ctx context.Context, staleToken string) (string, error)
	InvalidateToken(ctx context.Context, token string) bool
}

// SignedOutHook runs once per rejected session, typically to send the operator
// back to the login view.
type SignedOutHook func(ctx context.Context)

// Transport decorates outbound requests with the session credentials.
type Transport struct {
	base          http.RoundTripper
	session       Session
	stationHeader string
	refresh       bool
	onSignedOut   SignedOutHook
}

// TransportOption configures a [Transport].
type TransportOption func(*Transport)

// WithBase sets the underlying round tripper. Defaults to [http.DefaultTransport].
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) { t.base = base }
}

// WithStationHeader renames the header carrying the active station.
func WithStationHeader(name string) TransportOption {
	return func(t *Transport) { t.stationHeader = name }
}

// WithRefresh toggles the refresh-and-replay reaction to a 401. When disabled,
// the first 401 clears the session.
func WithRefresh(enabled bool) TransportOption {
	return func(t *Transport) { t.refresh = enabled }
}

// WithSignedOut registers the hook fired by the request that cleared the session.
func WithSignedOut(hook SignedOutHook) TransportOption {
	return func(t *Transport) { t.onSignedOut = hook }
}

// NewTransport creates a Transport over session.
func NewTransport(session Session, opts ...TransportOption) *Transport {
	t := &Transport{
		base:          http.DefaultTransport,
		session:       session,
		stationHeader: constants.DefaultStationHeader,
		refresh:       true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	token := t.session.AccessToken()

	if req.Body != nil && req.GetBody != nil {
		defer req.Body.Close()
	}

	// ── 1. Proactive Refresh ──────────────────────────────────────────────
	// A failure here is not final: the backend decides with the 401 below.
	if token != "" && t.refresh && t.expired() {
		if fresh, err := t.session.RefreshAccess(ctx, token); err == nil {
			token = fresh
		}
	}

	// ── 2. Send ───────────────────────────────────────────────────────────
	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, err
	}

	// ── 3. Rejected Token ─────────────────────────────────────────────────
	if !t.refresh || !replayable(req) {
		t.signOut(ctx, token, nil)
		return resp, nil
	}

	fresh, err := t.session.RefreshAccess(ctx, token)
	if err != nil {
		t.signOut(ctx, token, err)
		return resp, nil
	}

	discard(resp)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "api_request_replayed", slog.String("path", req.URL.Path))

	replay, err := t.send(req, fresh)
	if err != nil || replay.StatusCode != http.StatusUnauthorized {
		return replay, err
	}

	t.signOut(ctx, fresh, nil)
	return replay, nil
}

// send clones req with the session headers and forwards it to the base transport.
func (t *Transport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())

	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("apiclient: rewind body: %w", err)
		}
		out.Body = body
	}

	if token != "" {
		out.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	} else {
		out.Header.Del(constants.HeaderAuthorization)
	}
	if id, ok := t.session.StationID(); ok {
		out.Header.Set(t.stationHeader, strconv.FormatInt(id, 10))
	}
	if out.Header.Get(constants.HeaderXRequestID) == "" {
		_, id := ctxutil.EnsureRequestID(req.Context())
		out.Header.Set(constants.HeaderXRequestID, id)
	}

	return t.base.RoundTrip(out)
}

// expired reports whether the current token carries an `exp` claim already past.
func (t *Transport) expired() bool {
	token, err := t.session.Token()
	if err != nil || token.Expiry.IsZero() {
		return false
	}
	return !token.Valid()
}

// signOut clears the session if it still holds token and fires the hook for
// the caller that actually cleared it.
func (t *Transport) signOut(ctx context.Context, token string, cause error) {
	if !t.session.InvalidateToken(ctx, token) {
		return
	}

	attrs := []any{}
	if cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	ctxutil.GetLogger(ctx).WarnContext(ctx, "api_session_rejected", attrs...)

	if t.onSignedOut != nil {
		t.onSignedOut(ctx)
	}
}

// replayable reports whether req can be sent a second time.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
