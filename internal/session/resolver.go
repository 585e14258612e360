// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"github.com/taibuivan/washdesk/internal/identity"
	"github.com/taibuivan/washdesk/internal/platform/sec"
)

// StationPolicy decides the default station of a freshly identified operator.
//
// It runs once at sign-in and once when a session is restored without a
// persisted station, never afterwards.
type StationPolicy func(profile *identity.UserProfile) (int64, bool)

// FirstAssigned is the default policy: the first station in assignment order.
var FirstAssigned StationPolicy = ResolveDefaultStation

// ResolveDefaultStation leaves the owner-admin unscoped and gives every other
// role the first of its assigned stations, if any.
func ResolveDefaultStation(profile *identity.UserProfile) (int64, bool) {
	if profile == nil || profile.Role == sec.RoleOwnerAdmin {
		return 0, false
	}
	if len(profile.StationIDs) == 0 {
		return 0, false
	}
	return profile.StationIDs[0], true
}
