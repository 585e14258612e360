// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session owns the live session of the console: who is signed in, which
station requests are scoped to, and how the durable copy is kept in step.

Architecture:

  - Manager: The single writer of the session. Every reader (route guard,
    outbound transport, views) goes through it, so a clear performed by one
    component is visible to all others immediately.
  - Store: The durable copy (sqlite, redis, postgres or memory), optionally
    sealed at rest. Only the Manager writes to it.
  - StationPolicy: Decides the default station after sign-in or restore.

Lifecycle:

	ANONYMOUS ──sign-in──▶ AUTHENTICATED_NO_STATION ──station──▶ AUTHENTICATED_SCOPED
	ANONYMOUS ──restore, token only──▶ RESOLVING ──profile ok──▶ AUTHENTICATED_*
	RESOLVING ──profile fails──▶ ANONYMOUS
	AUTHENTICATED_* ──logout or rejected token──▶ ANONYMOUS
*/
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/washdesk/internal/identity"
	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/ctxkey"
	"github.com/taibuivan/washdesk/internal/platform/sec"
	"github.com/taibuivan/washdesk/pkg/pointer"
)

// Credentials is the subset of the identity client the Manager calls.
type Credentials interface {
	Login(ctx context.Context, email, password string) (*identity.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	FetchProfile(ctx context.Context, accessToken string) (*identity.UserProfile, error)
}

// LogoutHook runs synchronously after the session has been cleared.
type LogoutHook func(ctx context.Context)

// Manager is the in-memory owner of the session.
//
// # Concurrency
//
// All methods are safe for concurrent use. Mutations are applied under a write
// lock before the method returns, so no reader observes a half-written session.
type Manager struct {
	mu sync.RWMutex

	accessToken  string
	refreshToken string
	user         *identity.UserProfile
	stationID    *int64
	loading      bool

	store       Store
	credentials Credentials
	policy      StationPolicy
	logger      *slog.Logger

	refreshGroup singleflight.Group

	hooksMu sync.Mutex
	hooks   []LogoutHook
}

// Option configures a [Manager].
type Option func(*Manager)

// WithStationPolicy replaces the default [FirstAssigned] policy.
func WithStationPolicy(policy StationPolicy) Option {
	return func(m *Manager) { m.policy = policy }
}

// WithLogger sets the logger used for lifecycle events outside a request.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates an anonymous Manager. Call [Manager.Restore] to load a
// previously persisted session.
func NewManager(store Store, credentials Credentials, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		credentials: credentials,
		policy:      FirstAssigned,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnLogout registers a hook run after every clear, in registration order.
func (m *Manager) OnLogout(hook LogoutHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// # Reads

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		User:      m.user.Clone(),
		Loading:   m.loading,
		HasToken:  m.accessToken != "",
		StationID: pointer.Clone(m.stationID),
	}
	return snapshot
}

// User returns a copy of the signed-in operator, or nil.
func (m *Manager) User() *identity.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

// StationID returns the selected station, if any.
func (m *Manager) StationID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pointer.Val(m.stationID), m.stationID != nil
}

// AccessToken returns the current bearer credential, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// Token implements [oauth2.TokenSource] over the current session.
//
// The expiry comes from the JWT `exp` claim when the token carries one.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.accessToken == "" {
		return nil, apperr.Unauthorized("No active session")
	}

	token := &oauth2.Token{
		AccessToken:  m.accessToken,
		TokenType:    "Bearer",
		RefreshToken: m.refreshToken,
	}
	if expiry, ok := sec.TokenExpiry(m.accessToken); ok {
		token.Expiry = expiry
	}
	return token, nil
}

// # Mutations

// Login installs a new identity. Any previously selected station is cleared;
// choosing the scope is left to the caller.
//
// Calling Login again with the values already in place is a no-op.
func (m *Manager) Login(ctx context.Context, accessToken, refreshToken string, profile *identity.UserProfile) error {
	if accessToken == "" || profile == nil {
		return apperr.ValidationError("Access token and profile are required")
	}
	if !profile.Role.Valid() {
		return apperr.ValidationError(fmt.Sprintf("Unknown role %q", profile.Role))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken == accessToken && m.refreshToken == refreshToken && m.user.Equal(profile) && !m.loading {
		return nil
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		return apperr.Internal(fmt.Errorf("session: encode profile: %w", err))
	}

	// ── 1. Durable copy ───────────────────────────────────────────────────
	values := map[string]string{
		constants.KeyAccessToken:  accessToken,
		constants.KeyRefreshToken: refreshToken,
		constants.KeyUser:         string(encoded),
	}
	if err := m.store.Replace(ctx, values, constants.KeySelectedStationID); err != nil {
		return apperr.Internal(fmt.Errorf("session: persist login: %w", err))
	}

	// ── 2. Live copy ──────────────────────────────────────────────────────
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.user = profile.Clone()
	m.stationID = nil
	m.loading = false

	m.log(ctx).InfoContext(ctx, "session_login",
		slog.Int64("user_id", profile.ID),
		slog.String("role", profile.Role.String()),
	)
	return nil
}

// SelectStation scopes subsequent requests to station id.
//
// Membership in the operator's stations is not checked here; the route guard
// re-validates the scope on every navigation.
func (m *Manager) SelectStation(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return apperr.Unauthorized("Sign in before selecting a station")
	}
	return m.setStationLocked(ctx, id)
}

// setStationLocked persists and installs the station. Callers hold m.mu.
func (m *Manager) setStationLocked(ctx context.Context, id int64) error {
	value := strconv.FormatInt(id, 10)
	if err := m.store.Set(ctx, map[string]string{constants.KeySelectedStationID: value}); err != nil {
		return apperr.Internal(fmt.Errorf("session: persist station: %w", err))
	}

	m.stationID = &id
	m.log(ctx).InfoContext(ctx, "session_station_selected", slog.Int64("station_id", id))
	return nil
}

// Logout clears the live and durable session, then runs the logout hooks.
//
// It is safe to call on an anonymous session. The live copy is cleared even
// when the store fails, and the store error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	err := m.clearLocked(ctx)
	m.mu.Unlock()

	m.runHooks(ctx)
	m.log(ctx).InfoContext(ctx, "session_cleared", slog.String("reason", "logout"))
	return err
}

// InvalidateToken clears the session if it still holds token.
//
// It returns true for exactly one caller per session: concurrent failures
// carrying the same rejected token race for the write lock and the losers
// observe an already cleared session.
func (m *Manager) InvalidateToken(ctx context.Context, token string) bool {
	cleared, err := m.clearIf(ctx, token, false)
	if err != nil {
		m.log(ctx).ErrorContext(ctx, "session_store_clear_failed", slog.Any("error", err))
	}
	return cleared
}

// clearIf clears the session only while it still holds token, and while it is
// still resolving when resolving is set. The check and the clear share one
// critical section so a sign-in landing in between is never wiped.
func (m *Manager) clearIf(ctx context.Context, token string, resolving bool) (bool, error) {
	m.mu.Lock()
	if token == "" || m.accessToken != token || (resolving && !m.loading) {
		m.mu.Unlock()
		return false, nil
	}
	err := m.clearLocked(ctx)
	m.mu.Unlock()

	reason := "token_rejected"
	if resolving {
		reason = "resolve_failed"
	}

	m.runHooks(ctx)
	m.log(ctx).InfoContext(ctx, "session_cleared", slog.String("reason", reason))
	return true, err
}

// clearLocked resets the live copy and deletes every durable key in one call.
func (m *Manager) clearLocked(ctx context.Context) error {
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.stationID = nil
	m.loading = false

	if err := m.store.Delete(ctx, constants.SessionKeys...); err != nil {
		return apperr.Internal(fmt.Errorf("session: clear store: %w", err))
	}
	return nil
}

// log prefers the request logger and falls back to the Manager's own.
func (m *Manager) log(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger); ok {
		return logger
	}
	return m.logger
}

func (m *Manager) runHooks(ctx context.Context) {
	m.hooksMu.Lock()
	hooks := append([]LogoutHook(nil), m.hooks...)
	m.hooksMu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}
}

// # Orchestration

// SignIn performs the credential login, installs the session and applies the
// station policy. It returns the signed-in profile.
//
// A rejected form surfaces as INVALID_CREDENTIALS and leaves the session untouched.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*identity.UserProfile, error) {
	result, err := m.credentials.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if err := m.Login(ctx, result.AccessToken, result.RefreshToken, result.User); err != nil {
		return nil, err
	}

	if id, ok := m.policy(result.User); ok {
		if err := m.SelectStation(ctx, id); err != nil {
			return nil, err
		}
	}

	return result.User.Clone(), nil
}

// RefreshAccess trades the refresh token for a new access token.
//
// Concurrent callers reporting the same stale token share one backend call.
// A caller arriving after the token was already rotated gets the current one
// without a new call.
func (m *Manager) RefreshAccess(ctx context.Context, staleToken string) (string, error) {
	result, err, _ := m.refreshGroup.Do(staleToken, func() (any, error) {
		m.mu.RLock()
		current, refreshToken := m.accessToken, m.refreshToken
		m.mu.RUnlock()

		if current == "" {
			return "", apperr.Unauthorized("No active session")
		}
		if current != staleToken {
			return current, nil
		}

		// The burst outlives the request that happened to start it.
		detached := context.WithoutCancel(ctx)

		pair, err := m.credentials.Refresh(detached, refreshToken)
		if err != nil {
			return "", err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.accessToken != staleToken {
			// Cleared or replaced while the refresh was in flight.
			if m.accessToken == "" {
				return "", apperr.Unauthorized("No active session")
			}
			return m.accessToken, nil
		}

		values := map[string]string{
			constants.KeyAccessToken:  pair.AccessToken,
			constants.KeyRefreshToken: pair.RefreshToken,
		}
		if err := m.store.Set(detached, values); err != nil {
			return "", apperr.Internal(fmt.Errorf("session: persist refresh: %w", err))
		}

		m.accessToken = pair.AccessToken
		m.refreshToken = pair.RefreshToken
		m.log(ctx).InfoContext(detached, "session_token_refreshed")
		return pair.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// # Restore

// Restore rebuilds the session from the durable store at process start.
//
// When only the access token survived, the session enters RESOLVING and the
// profile is fetched in the background; the returned channel receives the
// outcome and is then closed. In every other case the channel is already
// closed when Restore returns.
func (m *Manager) Restore(ctx context.Context) (<-chan error, error) {
	done := make(chan error, 1)

	durable, err := m.load(ctx)
	if err != nil {
		close(done)
		return done, err
	}

	logger := m.log(ctx)

	m.mu.Lock()

	// ── 1. Nothing to restore ─────────────────────────────────────────────
	if durable.accessToken == "" {
		m.mu.Unlock()
		close(done)
		if durable.any {
			// Orphaned keys without a token cannot form a session.
			return done, m.Logout(ctx)
		}
		return done, nil
	}

	m.accessToken = durable.accessToken
	m.refreshToken = durable.refreshToken

	// ── 2. Full session ───────────────────────────────────────────────────
	if durable.user != nil {
		m.user = durable.user
		m.stationID = durable.stationID
		m.mu.Unlock()

		logger.InfoContext(ctx, "session_restored", slog.Int64("user_id", durable.user.ID))
		close(done)
		return done, nil
	}

	// ── 3. Token only: resolve the profile ────────────────────────────────
	m.loading = true
	m.mu.Unlock()

	logger.InfoContext(ctx, "session_resolving")

	go func() {
		defer close(done)
		done <- m.resolve(ctx, durable.accessToken, durable.stationID)
	}()

	return done, nil
}

// resolve completes a RESOLVING session or clears it.
func (m *Manager) resolve(ctx context.Context, token string, persisted *int64) error {
	logger := m.log(ctx)

	profile, err := m.credentials.FetchProfile(ctx, token)
	if apperr.HasCode(err, apperr.CodeUnauthorized) {
		// The surviving token may simply have expired.
		if fresh, refreshErr := m.RefreshAccess(ctx, token); refreshErr == nil {
			token = fresh
			profile, err = m.credentials.FetchProfile(ctx, token)
		}
	}

	if err != nil {
		logger.WarnContext(ctx, "session_resolve_failed", slog.Any("error", err))
		if cleared, clearErr := m.clearIf(ctx, token, true); cleared && clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != token || !m.loading {
		// A sign-in or logout happened meanwhile; it wins.
		return nil
	}

	encoded, err := json.Marshal(profile)
	if err != nil {
		return apperr.Internal(fmt.Errorf("session: encode profile: %w", err))
	}
	if err := m.store.Set(ctx, map[string]string{constants.KeyUser: string(encoded)}); err != nil {
		return apperr.Internal(fmt.Errorf("session: persist profile: %w", err))
	}

	m.user = profile.Clone()
	m.loading = false

	switch {
	case persisted != nil:
		m.stationID = persisted
	default:
		if id, ok := m.policy(profile); ok {
			if err := m.setStationLocked(ctx, id); err != nil {
				return err
			}
		}
	}

	logger.InfoContext(ctx, "session_restored", slog.Int64("user_id", profile.ID))
	return nil
}

// durableSession is what [Manager.load] found in the store.
type durableSession struct {
	accessToken  string
	refreshToken string
	user         *identity.UserProfile
	stationID    *int64
	any          bool
}

// load reads the four durable keys. Unreadable values are treated as absent.
func (m *Manager) load(ctx context.Context) (durableSession, error) {
	durable := durableSession{}
	values := make(map[string]string, len(constants.SessionKeys))

	for _, key := range constants.SessionKeys {
		value, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return durable, apperr.Internal(fmt.Errorf("session: read %s: %w", key, err))
		}
		if ok {
			values[key] = value
			durable.any = true
		}
	}

	logger := m.log(ctx)

	durable.accessToken = values[constants.KeyAccessToken]
	durable.refreshToken = values[constants.KeyRefreshToken]

	if raw, ok := values[constants.KeyUser]; ok {
		profile := &identity.UserProfile{}
		if err := json.Unmarshal([]byte(raw), profile); err != nil {
			logger.WarnContext(ctx, "session_user_unreadable", slog.Any("error", err))
		} else {
			durable.user = profile
		}
	}

	if raw, ok := values[constants.KeySelectedStationID]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.WarnContext(ctx, "session_station_unreadable", slog.String("value", raw))
		} else {
			durable.stationID = &id
		}
	}

	return durable, nil
}
