// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/washdesk/internal/platform/sec"
)

// # Identity Records

// UserProfile is the operator identity returned by the backend.
//
// It is immutable for the lifetime of a session and replaced wholesale on re-login.
type UserProfile struct {
	ID     int64    `json:"id"     validate:"required"`
	Email  string   `json:"email"  validate:"required,email"`
	Nom    string   `json:"nom"`
	Prenom string   `json:"prenom"`
	Role   sec.Role `json:"role"   validate:"required"`

	// StationIDs is ordered as assigned by the backend; empty for owner-admin.
	StationIDs []int64 `json:"stationIds"`

	// GlobalAccess exempts an accountant from single-station scoping.
	GlobalAccess bool `json:"globalAccess,omitempty"`
}

// IsGlobal reports whether the operator may act on any station.
func (p *UserProfile) IsGlobal() bool {
	return p.Role.IsGlobal(p.GlobalAccess)
}

// HasStation reports whether id is one of the operator's assigned stations.
func (p *UserProfile) HasStation(id int64) bool {
	return slices.Contains(p.StationIDs, id)
}

// MayOperate reports whether the operator may scope requests to station id.
func (p *UserProfile) MayOperate(id int64) bool {
	return p.IsGlobal() || p.HasStation(id)
}

// Equal reports whether both profiles describe the same identity.
func (p *UserProfile) Equal(other *UserProfile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID &&
		p.Email == other.Email &&
		p.Nom == other.Nom &&
		p.Prenom == other.Prenom &&
		p.Role == other.Role &&
		p.GlobalAccess == other.GlobalAccess &&
		slices.Equal(p.StationIDs, other.StationIDs)
}

// Clone returns a deep copy so callers cannot mutate a live session's profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.StationIDs = slices.Clone(p.StationIDs)
	return &clone
}

// DisplayName renders "Prenom Nom" with French title casing, falling back to the email.
func (p *UserProfile) DisplayName() string {
	name := strings.TrimSpace(strings.Join(strings.Fields(p.Prenom+" "+p.Nom), " "))
	if name == "" {
		return p.Email
	}
	return cases.Title(language.French).String(name)
}

// # Token Payloads

// TokenPair is the credential pair minted by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"  validate:"required"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the body of a successful `POST /auth/login`.
type LoginResult struct {
	AccessToken  string       `json:"accessToken"  validate:"required"`
	RefreshToken string       `json:"refreshToken" validate:"required"`
	User         *UserProfile `json:"user"         validate:"required"`
}
