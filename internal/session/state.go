// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import "github.com/taibuivan/washdesk/internal/identity"

// State is the session lifecycle position.
type State int

const (
	// Anonymous has no identity.
	Anonymous State = iota

	// Resolving holds a restored token whose profile is still being fetched.
	Resolving

	// AuthenticatedNoStation knows the operator but has no station scope yet.
	AuthenticatedNoStation

	// AuthenticatedScoped knows the operator and the station it acts on.
	AuthenticatedScoped
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Resolving:
		return "resolving"
	case AuthenticatedNoStation:
		return "authenticated_no_station"
	case AuthenticatedScoped:
		return "authenticated_scoped"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of the session, safe to read without locks.
//
// Tokens are deliberately left out; only the transport reads them.
type Snapshot struct {
	User      *identity.UserProfile `json:"user"`
	StationID *int64                `json:"selectedStationId"`
	Loading   bool                  `json:"isLoading"`
	HasToken  bool                  `json:"-"`
}

// State derives the lifecycle position of the snapshot.
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return Resolving
	case s.User == nil:
		return Anonymous
	case s.StationID == nil:
		return AuthenticatedNoStation
	default:
		return AuthenticatedScoped
	}
}

// Authenticated reports whether an operator is known.
func (s Snapshot) Authenticated() bool {
	return !s.Loading && s.User != nil
}
