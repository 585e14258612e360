// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"slices"
)

// # Operator Roles

// Role is the closed set of operator categories known to the console.
//
// A value outside this set can only be produced by a type conversion; every
// decoding path goes through [ParseRole] and fails instead.
type Role string

const (
	// Runs the whole network; picks a station explicitly
	RoleOwnerAdmin Role = "owner-admin"

	// Runs one or more stations day to day
	RoleStationManager Role = "station-manager"

	// Reports and follows incidents on the wash lanes
	RoleInspector Role = "inspector"

	// Sells coupons at the counter
	RoleCashier Role = "cashier"

	// Operates a lane
	RoleWasher Role = "washer"

	// Manages client accounts and subscriptions
	RoleSalesAgent Role = "sales-agent"

	// Reads financial reports; may be granted access to every station
	RoleAccountant Role = "accountant"
)

// Roles lists every known role in declaration order.
var Roles = []Role{
	RoleOwnerAdmin,
	RoleStationManager,
	RoleInspector,
	RoleCashier,
	RoleWasher,
	RoleSalesAgent,
	RoleAccountant,
}

// ParseRole converts a wire value into a [Role].
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if !role.Valid() {
		return "", fmt.Errorf("sec: unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// String implements [fmt.Stringer].
func (r Role) String() string { return string(r) }

// MarshalText implements [encoding.TextMarshaler].
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("sec: unknown role %q", string(r))
	}
	return []byte(r), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler]. Unknown values are rejected.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// # Station Scoping

// IsGlobal reports whether the role operates across every station without a fixed scope.
//
// The accountant is global only when the profile grants it.
func (r Role) IsGlobal(globalAccess bool) bool {
	switch r {
	case RoleOwnerAdmin:
		return true
	case RoleAccountant:
		return globalAccess
	default:
		return false
	}
}
