// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package guard decides whether a navigation to a protected console view may proceed.

The decision is a pure function of the current session snapshot and the
route's declaration. It is evaluated on every request and never cached, so a
session cleared by a rejected token is observed on the very next navigation.

Decisions:

  - Loading: the session is still resolving; render a neutral placeholder.
  - RedirectLogin: nobody is signed in ("who are you").
  - RedirectForbidden: the operator is known but not entitled to the view.
  - RedirectStationSelect: the view is station-scoped and no valid station is selected.
  - Allow: render the view.

The guard is a convenience for the operator; the backend remains the
authorization boundary.
*/
package guard

import (
	"github.com/taibuivan/washdesk/internal/platform/sec"
	"github.com/taibuivan/washdesk/internal/session"
)

// # Public Entry Points

const (
	PathLogin         = "/login"
	PathForbidden     = "/forbidden"
	PathStationSelect = "/select-station"
)

// Decision is the outcome of a guard evaluation.
type Decision int

const (
	Loading Decision = iota
	Allow
	RedirectLogin
	RedirectForbidden
	RedirectStationSelect
)

// String implements [fmt.Stringer].
func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectForbidden:
		return "redirect_forbidden"
	case RedirectStationSelect:
		return "redirect_station_select"
	default:
		return "unknown"
	}
}

// Location returns where a redirect decision sends the operator, or "".
func (d Decision) Location() string {
	switch d {
	case RedirectLogin:
		return PathLogin
	case RedirectForbidden:
		return PathForbidden
	case RedirectStationSelect:
		return PathStationSelect
	default:
		return ""
	}
}

// # Landing Views

var landing = map[sec.Role]string{
	sec.RoleOwnerAdmin:     "/stations",
	sec.RoleStationManager: "/dashboard",
	sec.RoleInspector:      "/incidents",
	sec.RoleCashier:        "/coupons",
	sec.RoleWasher:         "/incidents",
	sec.RoleSalesAgent:     "/clients",
	sec.RoleAccountant:     "/reports",
}

// LandingPath is the view an operator reaches right after sign-in.
//
// A role may always reach its own landing view, even when no route lists it.
func LandingPath(role sec.Role) string {
	if path, ok := landing[role]; ok {
		return path
	}
	return PathLogin
}

// # Decision

// Decide evaluates route against the session snapshot.
func Decide(snapshot session.Snapshot, route Route) Decision {

	// ── 1. Identity ───────────────────────────────────────────────────────
	if snapshot.Loading {
		return Loading
	}
	user := snapshot.User
	if user == nil {
		return RedirectLogin
	}

	// ── 2. Entitlement ────────────────────────────────────────────────────
	if !route.Allowed.Contains(user.Role) && route.Path != LandingPath(user.Role) {
		return RedirectForbidden
	}

	// ── 3. Station scope ──────────────────────────────────────────────────
	if route.StationScoped {
		if snapshot.StationID == nil {
			return RedirectStationSelect
		}
		if !user.MayOperate(*snapshot.StationID) {
			return RedirectStationSelect
		}
	}

	return Allow
}
