// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the console process.

It defines default timeouts, rate limits, header names and durable storage keys that
are shared between the session core, the outbound API client and the console server.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the local console server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Session: Durable key names and outbound header names.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "washdesk"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 10 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// LoginRateLimitBurst is the burst allowed on the login endpoint.
	LoginRateLimitBurst = 5

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderRetryAfter    = "Retry-After"

	// DefaultStationHeader carries the active station on every scoped backend call.
	DefaultStationHeader = "x-station-id"
)

// # Session Storage Keys

// The four durable keys are independent values, cleared together by a logout only.
const (
	KeyAccessToken       = "accessToken"
	KeyRefreshToken      = "refreshToken"
	KeyUser              = "user"
	KeySelectedStationID = "selectedStationId"
)

// SessionKeys lists every durable session key in a stable order.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeySelectedStationID}

// # Backend Endpoints

const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathProfile = "/auth/me"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession = "washdesk:session:"
)

// # Toasts

const (
	// ToastQueueCapacity bounds the number of undrained notifications kept in memory.
	ToastQueueCapacity = 50

	MessageNetworkFailure = "Cannot reach the server. Check the connection and try again."
	MessageGenericFailure = "The request failed. Please try again."
	MessageServerFailure  = "The server encountered an error. Please try again later."
)
