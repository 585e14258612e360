// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides the security primitives used by the session core.
//
// # Architecture
//
// The console never verifies the backend's signatures: it only inspects the
// expiry of the access token it holds and protects the tokens it persists.
// Signature checks stay on the backend, which is the security boundary.
package sec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parser reads claims without verifying the signature.
var parser = jwt.NewParser()

// TokenExpiry returns the `exp` claim of a JWT access token.
//
// The second result is false for opaque tokens or tokens without an expiry;
// callers then rely on the backend answering 401.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
