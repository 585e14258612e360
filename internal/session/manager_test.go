// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washdesk/internal/identity"
	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/sec"
	"github.com/taibuivan/washdesk/internal/session"
)

// # Test Doubles

// fakeCredentials plays the backend identity endpoints.
type fakeCredentials struct {
	mu       sync.Mutex
	login    *identity.LoginResult
	loginErr error

	// profiles maps an access token to the profile /auth/me returns.
	profiles    map[string]*identity.UserProfile
	profileGate chan struct{}

	refreshPair  *identity.TokenPair
	refreshErr   error
	refreshGate  chan struct{}
	refreshCalls atomic.Int32
}

func (f *fakeCredentials) Login(context.Context, string, string) (*identity.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.login, f.loginErr
}

func (f *fakeCredentials) Refresh(context.Context, string) (*identity.TokenPair, error) {
	f.refreshCalls.Add(1)
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	return f.refreshPair, f.refreshErr
}

func (f *fakeCredentials) FetchProfile(_ context.Context, token string) (*identity.UserProfile, error) {
	if f.profileGate != nil {
		<-f.profileGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if profile, ok := f.profiles[token]; ok {
		return profile.Clone(), nil
	}
	return nil, apperr.Unauthorized("Session expired")
}

// brokenStore refuses every combined write, leaving the durable copy as it was.
type brokenStore struct {
	*session.MemoryStore
}

func (brokenStore) Replace(context.Context, map[string]string, ...string) error {
	return errors.New("disk full")
}

func profile(role sec.Role, stations ...int64) *identity.UserProfile {
	return &identity.UserProfile{
		ID:         42,
		Email:      "operateur@lavage.fr",
		Nom:        "Durand",
		Prenom:     "Léa",
		Role:       role,
		StationIDs: stations,
	}
}

func loginResult(p *identity.UserProfile) *identity.LoginResult {
	return &identity.LoginResult{AccessToken: "access-1", RefreshToken: "refresh-1", User: p}
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("restore did not resolve")
		return nil
	}
}

// # Sign-in & Station Scope

/*
TestSignIn_CashierAutoScoped is the single-station operator: the station is set without a selection call.
*/
func TestSignIn_CashierAutoScoped(t *testing.T) {
	credentials := &fakeCredentials{login: loginResult(profile(sec.RoleCashier, 7))}
	manager := session.NewManager(session.NewMemoryStore(), credentials)

	user, err := manager.SignIn(t.Context(), "caisse@lavage.fr", "secret")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleCashier, user.Role)

	id, ok := manager.StationID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, session.AuthenticatedScoped, manager.Snapshot().State())
}

/*
TestSignIn_OwnerAdminUnscoped verifies the owner-admin waits for an explicit selection.
*/
func TestSignIn_OwnerAdminUnscoped(t *testing.T) {
	credentials := &fakeCredentials{login: loginResult(profile(sec.RoleOwnerAdmin))}
	manager := session.NewManager(session.NewMemoryStore(), credentials)

	_, err := manager.SignIn(t.Context(), "patron@lavage.fr", "secret")
	require.NoError(t, err)

	_, ok := manager.StationID()
	assert.False(t, ok)
	assert.Equal(t, session.AuthenticatedNoStation, manager.Snapshot().State())

	require.NoError(t, manager.SelectStation(t.Context(), 3))
	id, ok := manager.StationID()
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
}

/*
TestSignIn_StationWithinAssignment checks every scoped role lands on one of its stations.
*/
func TestSignIn_StationWithinAssignment(t *testing.T) {
	for _, role := range sec.Roles {
		if role == sec.RoleOwnerAdmin {
			continue
		}
		t.Run(string(role), func(t *testing.T) {
			p := profile(role, 11, 4, 9)
			manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{login: loginResult(p)})

			_, err := manager.SignIn(t.Context(), "x@lavage.fr", "secret")
			require.NoError(t, err)

			id, ok := manager.StationID()
			require.True(t, ok)
			assert.Contains(t, p.StationIDs, id)
		})
	}
}

/*
TestSignIn_InvalidCredentials leaves the session untouched.
*/
func TestSignIn_InvalidCredentials(t *testing.T) {
	credentials := &fakeCredentials{loginErr: apperr.InvalidCredentials(nil)}
	store := session.NewMemoryStore()
	manager := session.NewManager(store, credentials)

	_, err := manager.SignIn(t.Context(), "x@lavage.fr", "wrong")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCredentials))
	assert.Equal(t, session.Anonymous, manager.Snapshot().State())
	assert.Empty(t, store.Snapshot())
}

/*
TestSignIn_CustomPolicy verifies the station policy can be swapped.
*/
func TestSignIn_CustomPolicy(t *testing.T) {
	last := func(p *identity.UserProfile) (int64, bool) {
		if len(p.StationIDs) == 0 {
			return 0, false
		}
		return p.StationIDs[len(p.StationIDs)-1], true
	}

	credentials := &fakeCredentials{login: loginResult(profile(sec.RoleStationManager, 1, 2, 3))}
	manager := session.NewManager(session.NewMemoryStore(), credentials, session.WithStationPolicy(last))

	_, err := manager.SignIn(t.Context(), "x@lavage.fr", "secret")
	require.NoError(t, err)

	id, _ := manager.StationID()
	assert.Equal(t, int64(3), id)
}

/*
TestSelectStation_RequiresUser verifies a station cannot exist without an identity.
*/
func TestSelectStation_RequiresUser(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})

	err := manager.SelectStation(t.Context(), 7)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	_, ok := manager.StationID()
	assert.False(t, ok)
}

// # Idempotence

/*
TestLogin_Idempotent verifies that a repeated login with the same values changes nothing.
*/
func TestLogin_Idempotent(t *testing.T) {
	p := profile(sec.RoleWasher, 5)

	onceStore := session.NewMemoryStore()
	once := session.NewManager(onceStore, &fakeCredentials{})
	require.NoError(t, once.Login(t.Context(), "a", "r", p))

	twiceStore := session.NewMemoryStore()
	twice := session.NewManager(twiceStore, &fakeCredentials{})
	require.NoError(t, twice.Login(t.Context(), "a", "r", p))
	require.NoError(t, twice.Login(t.Context(), "a", "r", p))

	assert.Equal(t, once.Snapshot(), twice.Snapshot())
	assert.Equal(t, onceStore.Snapshot(), twiceStore.Snapshot())
}

/*
TestLogin_ReplacesIdentity verifies a different login clears the previous station.
*/
func TestLogin_ReplacesIdentity(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})

	require.NoError(t, manager.Login(t.Context(), "a", "r", profile(sec.RoleWasher, 5)))
	require.NoError(t, manager.SelectStation(t.Context(), 5))

	other := profile(sec.RoleInspector, 8)
	other.ID = 77
	require.NoError(t, manager.Login(t.Context(), "b", "r2", other))

	snapshot := manager.Snapshot()
	assert.Equal(t, int64(77), snapshot.User.ID)
	assert.Nil(t, snapshot.StationID)
}

/*
TestLogin_RejectsIncompleteInput guards against sessions without identity.
*/
func TestLogin_RejectsIncompleteInput(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})

	assert.Error(t, manager.Login(t.Context(), "", "r", profile(sec.RoleWasher)))
	assert.Error(t, manager.Login(t.Context(), "a", "r", nil))
	assert.Error(t, manager.Login(t.Context(), "a", "r", profile(sec.Role("janitor"))))
	assert.Equal(t, session.Anonymous, manager.Snapshot().State())
}

/*
TestLogin_FailedWriteLeavesSessionIntact verifies a refused durable write changes
neither the stored keys nor the live session.
*/
func TestLogin_FailedWriteLeavesSessionIntact(t *testing.T) {
	memory := session.NewMemoryStore()
	credentials := &fakeCredentials{login: loginResult(profile(sec.RoleCashier, 7))}

	source := session.NewManager(memory, credentials)
	_, err := source.SignIn(t.Context(), "caisse@lavage.fr", "secret")
	require.NoError(t, err)
	before := memory.Snapshot()
	require.Contains(t, before, constants.KeySelectedStationID)

	manager := session.NewManager(brokenStore{memory}, credentials)
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)
	require.NoError(t, wait(t, done))

	err = manager.Login(t.Context(), "access-2", "refresh-2", profile(sec.RoleWasher, 2))
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))

	assert.Equal(t, before, memory.Snapshot())
	assert.Equal(t, "access-1", manager.AccessToken())
	id, ok := manager.StationID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

/*
TestLogout_Idempotent verifies logout clears every key and is safe to repeat.
*/
func TestLogout_Idempotent(t *testing.T) {
	store := session.NewMemoryStore()
	manager := session.NewManager(store, &fakeCredentials{login: loginResult(profile(sec.RoleCashier, 7))})

	var hookRuns atomic.Int32
	manager.OnLogout(func(context.Context) {
		// The clear is visible to hooks.
		assert.Equal(t, session.Anonymous, manager.Snapshot().State())
		hookRuns.Add(1)
	})

	_, err := manager.SignIn(t.Context(), "caisse@lavage.fr", "secret")
	require.NoError(t, err)
	require.Len(t, store.Snapshot(), 4)

	require.NoError(t, manager.Logout(t.Context()))
	first := manager.Snapshot()
	require.NoError(t, manager.Logout(t.Context()))

	assert.Equal(t, first, manager.Snapshot())
	assert.Equal(t, session.Anonymous, first.State())
	assert.Empty(t, store.Snapshot())
	assert.Empty(t, manager.AccessToken())
	assert.Equal(t, int32(2), hookRuns.Load())
}

// # Forced Clear

/*
TestInvalidateToken_ClearsOnce is the concurrent 401 burst: exactly one caller clears.
*/
func TestInvalidateToken_ClearsOnce(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{login: loginResult(profile(sec.RoleCashier, 7))})
	_, err := manager.SignIn(t.Context(), "caisse@lavage.fr", "secret")
	require.NoError(t, err)

	var hookRuns atomic.Int32
	manager.OnLogout(func(context.Context) { hookRuns.Add(1) })

	const callers = 16
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if manager.InvalidateToken(context.Background(), "access-1") {
				winners.Add(1)
			}
			// Every completion handler observes the cleared session.
			assert.Nil(t, manager.User())
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(1), hookRuns.Load())
	assert.Equal(t, session.Anonymous, manager.Snapshot().State())
}

/*
TestInvalidateToken_IgnoresStaleToken verifies a late 401 for a replaced token is a no-op.
*/
func TestInvalidateToken_IgnoresStaleToken(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})
	require.NoError(t, manager.Login(t.Context(), "fresh", "r", profile(sec.RoleWasher, 1)))

	assert.False(t, manager.InvalidateToken(t.Context(), "old"))
	assert.False(t, manager.InvalidateToken(t.Context(), ""))
	assert.NotNil(t, manager.User())
}

// # Refresh

/*
TestRefreshAccess_Coalesces verifies a burst of callers shares one refresh call.
*/
func TestRefreshAccess_Coalesces(t *testing.T) {
	credentials := &fakeCredentials{
		refreshPair: &identity.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"},
		refreshGate: make(chan struct{}),
	}
	store := session.NewMemoryStore()
	manager := session.NewManager(store, credentials)
	require.NoError(t, manager.Login(t.Context(), "access-1", "refresh-1", profile(sec.RoleCashier, 7)))

	const callers = 8
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := manager.RefreshAccess(context.Background(), "access-1")
			assert.NoError(t, err)
			results <- token
		}()
	}

	// Let the callers pile up on the in-flight refresh before releasing it.
	require.Eventually(t, func() bool { return credentials.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(credentials.refreshGate)
	wg.Wait()
	close(results)

	for token := range results {
		assert.Equal(t, "access-2", token)
	}
	assert.Equal(t, int32(1), credentials.refreshCalls.Load())
	assert.Equal(t, "access-2", manager.AccessToken())
	assert.Equal(t, "refresh-2", store.Snapshot()[constants.KeyRefreshToken])

	// A straggler reporting the old token gets the rotated one without a new call.
	token, err := manager.RefreshAccess(t.Context(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, int32(1), credentials.refreshCalls.Load())
}

/*
TestRefreshAccess_Rejected leaves clearing to the caller.
*/
func TestRefreshAccess_Rejected(t *testing.T) {
	credentials := &fakeCredentials{refreshErr: apperr.RefreshRejected(nil)}
	manager := session.NewManager(session.NewMemoryStore(), credentials)
	require.NoError(t, manager.Login(t.Context(), "access-1", "refresh-1", profile(sec.RoleCashier, 7)))

	_, err := manager.RefreshAccess(t.Context(), "access-1")
	assert.True(t, apperr.HasCode(err, apperr.CodeRefreshRejected))
	assert.Equal(t, "access-1", manager.AccessToken())

	anonymous := session.NewManager(session.NewMemoryStore(), credentials)
	_, err = anonymous.RefreshAccess(t.Context(), "access-1")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
}

/*
TestToken exposes the session as an oauth2 token source.
*/
func TestToken(t *testing.T) {
	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})

	_, err := manager.Token()
	assert.Error(t, err)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}).
		SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, manager.Login(t.Context(), access, "r", profile(sec.RoleCashier, 7)))

	token, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, access, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, exp.Equal(token.Expiry))
	assert.True(t, token.Valid())
}

// # Restore

/*
TestRestore_RoundTrip rebuilds a session from a surviving access token only and
compares it with a fresh sign-in against the same backend.
*/
func TestRestore_RoundTrip(t *testing.T) {
	for _, p := range []*identity.UserProfile{profile(sec.RoleCashier, 7), profile(sec.RoleOwnerAdmin)} {
		t.Run(string(p.Role), func(t *testing.T) {
			credentials := &fakeCredentials{
				login:    loginResult(p),
				profiles: map[string]*identity.UserProfile{"access-1": p},
			}

			// 1. Fresh sign-in
			fresh := session.NewManager(session.NewMemoryStore(), credentials)
			_, err := fresh.SignIn(t.Context(), "x@lavage.fr", "secret")
			require.NoError(t, err)

			// 2. Only the access token survives the reload
			store := session.NewMemoryStore()
			require.NoError(t, store.Set(t.Context(), map[string]string{constants.KeyAccessToken: "access-1"}))

			restored := session.NewManager(store, credentials)
			done, err := restored.Restore(t.Context())
			require.NoError(t, err)
			require.NoError(t, wait(t, done))

			assert.Equal(t, fresh.Snapshot(), restored.Snapshot())
		})
	}
}

/*
TestRestore_ResolvingIsObservable verifies the loading state while the profile is fetched.
*/
func TestRestore_ResolvingIsObservable(t *testing.T) {
	credentials := &fakeCredentials{
		profiles:    map[string]*identity.UserProfile{"access-1": profile(sec.RoleInspector, 2)},
		profileGate: make(chan struct{}),
	}
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]string{
		constants.KeyAccessToken:       "access-1",
		constants.KeySelectedStationID: "2",
	}))

	manager := session.NewManager(store, credentials)
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)

	snapshot := manager.Snapshot()
	assert.Equal(t, session.Resolving, snapshot.State())
	assert.True(t, snapshot.Loading)
	assert.Nil(t, snapshot.User)

	close(credentials.profileGate)
	require.NoError(t, wait(t, done))

	snapshot = manager.Snapshot()
	assert.Equal(t, session.AuthenticatedScoped, snapshot.State())
	require.NotNil(t, snapshot.StationID)
	assert.Equal(t, int64(2), *snapshot.StationID)
	assert.Contains(t, store.Snapshot(), constants.KeyUser)
}

/*
TestRestore_ProfileFailureClears verifies RESOLVING never persists past a failed fetch.
*/
func TestRestore_ProfileFailureClears(t *testing.T) {
	credentials := &fakeCredentials{refreshErr: apperr.RefreshRejected(nil)}
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]string{
		constants.KeyAccessToken:  "revoked",
		constants.KeyRefreshToken: "revoked-refresh",
	}))

	manager := session.NewManager(store, credentials)
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)

	assert.True(t, apperr.HasCode(wait(t, done), apperr.CodeUnauthorized))
	assert.Equal(t, session.Anonymous, manager.Snapshot().State())
	assert.Empty(t, store.Snapshot())
}

/*
TestRestore_RefreshesExpiredToken recovers a session whose surviving token expired.
*/
func TestRestore_RefreshesExpiredToken(t *testing.T) {
	credentials := &fakeCredentials{
		profiles:    map[string]*identity.UserProfile{"access-2": profile(sec.RoleSalesAgent, 6)},
		refreshPair: &identity.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"},
	}
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]string{
		constants.KeyAccessToken:  "expired",
		constants.KeyRefreshToken: "refresh-1",
	}))

	manager := session.NewManager(store, credentials)
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)
	require.NoError(t, wait(t, done))

	assert.Equal(t, "access-2", manager.AccessToken())
	id, ok := manager.StationID()
	require.True(t, ok)
	assert.Equal(t, int64(6), id)
}

/*
TestRestore_FullSession restores without any network call.
*/
func TestRestore_FullSession(t *testing.T) {
	store := session.NewMemoryStore()
	source := session.NewManager(store, &fakeCredentials{})
	require.NoError(t, source.Login(t.Context(), "access-1", "refresh-1", profile(sec.RoleAccountant, 4)))
	require.NoError(t, source.SelectStation(t.Context(), 4))

	credentials := &fakeCredentials{profileGate: make(chan struct{})}
	restored := session.NewManager(store, credentials)
	done, err := restored.Restore(t.Context())
	require.NoError(t, err)

	// The channel is already closed: nothing was fetched.
	_, open := <-done
	assert.False(t, open)
	assert.Equal(t, source.Snapshot(), restored.Snapshot())
}

/*
TestRestore_OrphanKeysCleared removes durable keys left without a token.
*/
func TestRestore_OrphanKeysCleared(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]string{constants.KeySelectedStationID: "3"}))

	manager := session.NewManager(store, &fakeCredentials{})
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)
	require.NoError(t, wait(t, done))

	assert.Equal(t, session.Anonymous, manager.Snapshot().State())
	assert.Empty(t, store.Snapshot())
}

/*
TestRestore_LoginWins verifies a sign-in during RESOLVING is not overwritten by the late profile.
*/
func TestRestore_LoginWins(t *testing.T) {
	credentials := &fakeCredentials{
		profiles:    map[string]*identity.UserProfile{"access-old": profile(sec.RoleWasher, 1)},
		profileGate: make(chan struct{}),
	}
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(t.Context(), map[string]string{constants.KeyAccessToken: "access-old"}))

	manager := session.NewManager(store, credentials)
	done, err := manager.Restore(t.Context())
	require.NoError(t, err)

	newcomer := profile(sec.RoleCashier, 9)
	newcomer.ID = 99
	require.NoError(t, manager.Login(t.Context(), "access-new", "r", newcomer))

	close(credentials.profileGate)
	require.NoError(t, wait(t, done))

	assert.Equal(t, int64(99), manager.User().ID)
	assert.Equal(t, "access-new", manager.AccessToken())
}

/*
TestRestore_FailedResolveSparesNewSignIn races a failing profile fetch against
a sign-in: the signed-in operator always survives.
*/
func TestRestore_FailedResolveSparesNewSignIn(t *testing.T) {
	for range 50 {
		credentials := &fakeCredentials{
			login:       loginResult(profile(sec.RoleCashier, 7)),
			refreshErr:  apperr.RefreshRejected(nil),
			profileGate: make(chan struct{}),
		}
		store := session.NewMemoryStore()
		require.NoError(t, store.Set(t.Context(), map[string]string{constants.KeyAccessToken: "revoked"}))

		manager := session.NewManager(store, credentials)
		done, err := manager.Restore(t.Context())
		require.NoError(t, err)

		signedIn := make(chan error, 1)
		go func() {
			_, err := manager.SignIn(context.Background(), "caisse@lavage.fr", "secret")
			signedIn <- err
		}()
		close(credentials.profileGate)

		require.NoError(t, <-signedIn)
		_ = wait(t, done)

		require.NotNil(t, manager.User())
		assert.Equal(t, "access-1", manager.AccessToken())
		assert.Equal(t, "access-1", store.Snapshot()[constants.KeyAccessToken])
	}
}

// # Lookup

/*
TestContextLookup verifies the manager can be retrieved from a request context.
*/
func TestContextLookup(t *testing.T) {
	assert.Nil(t, session.FromContext(context.Background()))

	manager := session.NewManager(session.NewMemoryStore(), &fakeCredentials{})
	ctx := session.WithManager(context.Background(), manager)
	assert.Same(t, manager, session.FromContext(ctx))
}
