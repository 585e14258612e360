// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package guard

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/taibuivan/washdesk/internal/platform/sec"
)

// RoleSet is the set of roles allowed on a route.
type RoleSet map[sec.Role]struct{}

// Roles builds a RoleSet.
func Roles(roles ...sec.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Contains reports whether role is in the set.
func (s RoleSet) Contains(role sec.Role) bool {
	_, ok := s[role]
	return ok
}

// Route is the static declaration of a protected view.
type Route struct {
	Path          string
	Allowed       RoleSet
	StationScoped bool
}

// Table indexes the protected routes by path.
type Table struct {
	routes map[string]Route
}

// NewTable validates the declarations. An unknown role, a duplicate path or a
// route nobody may reach is a construction error.
func NewTable(routes ...Route) (*Table, error) {
	table := &Table{routes: make(map[string]Route, len(routes))}

	var errs []error
	for _, route := range routes {
		if !strings.HasPrefix(route.Path, "/") {
			errs = append(errs, fmt.Errorf("guard: route %q must be absolute", route.Path))
			continue
		}
		if _, dup := table.routes[route.Path]; dup {
			errs = append(errs, fmt.Errorf("guard: route %q declared twice", route.Path))
			continue
		}
		if len(route.Allowed) == 0 {
			errs = append(errs, fmt.Errorf("guard: route %q allows no role", route.Path))
			continue
		}
		for role := range route.Allowed {
			if !role.Valid() {
				errs = append(errs, fmt.Errorf("guard: route %q allows unknown role %q", route.Path, role))
			}
		}
		table.routes[route.Path] = route
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return table, nil
}

// MustTable is like [NewTable] but panics on an invalid declaration.
func MustTable(routes ...Route) *Table {
	table, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return table
}

// Routes returns every declaration sorted by path.
func (t *Table) Routes() []Route {
	routes := make([]Route, 0, len(t.routes))
	for _, route := range t.routes {
		routes = append(routes, route)
	}
	slices.SortFunc(routes, func(a, b Route) int { return strings.Compare(a.Path, b.Path) })
	return routes
}

// # Console Views

// ConsoleRoutes declares the protected views of the console.
func ConsoleRoutes() []Route {
	return []Route{
		{
			Path:          "/dashboard",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager, sec.RoleAccountant),
			StationScoped: true,
		},
		{
			Path:          "/coupons",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager, sec.RoleCashier, sec.RoleSalesAgent),
			StationScoped: true,
		},
		{
			Path:          "/clients",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager, sec.RoleSalesAgent, sec.RoleCashier),
			StationScoped: true,
		},
		{
			Path:          "/inventory",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager),
			StationScoped: true,
		},
		{
			Path:          "/incidents",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager, sec.RoleInspector, sec.RoleWasher),
			StationScoped: true,
		},
		{
			Path:          "/reports",
			Allowed:       Roles(sec.RoleOwnerAdmin, sec.RoleStationManager, sec.RoleAccountant),
			StationScoped: true,
		},
		{
			Path:    "/stations",
			Allowed: Roles(sec.RoleOwnerAdmin),
		},
	}
}
