// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package console

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taibuivan/washdesk/internal/apiclient"
	"github.com/taibuivan/washdesk/internal/guard"
	"github.com/taibuivan/washdesk/internal/identity"
	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/middleware"
	"github.com/taibuivan/washdesk/internal/platform/notify"
	requestutil "github.com/taibuivan/washdesk/internal/platform/request"
	"github.com/taibuivan/washdesk/internal/platform/respond"
	"github.com/taibuivan/washdesk/internal/platform/validate"
	"github.com/taibuivan/washdesk/internal/querycache"
	"github.com/taibuivan/washdesk/internal/session"
)

// SignedOut is the transport hook for a session the backend rejected.
// The operator sees no toast: the guard sends them to login on the next navigation.
func SignedOut(log *slog.Logger) apiclient.SignedOutHook {
	return func(ctx context.Context) {
		log.WarnContext(ctx, "console_signed_out", slog.String("redirect", guard.PathLogin))
	}
}

// WithSession makes the process-wide [session.Manager] reachable from every
// handler through [session.FromContext].
func WithSession(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := session.WithManager(request.Context(), manager)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

type sessionHandler struct {
	toasts *notify.Queue
	views  *querycache.Cache
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type stationRequest struct {
	StationID int64 `json:"stationId"`
}

// # Response Payloads

type sessionView struct {
	State       session.State         `json:"state"`
	User        *identity.UserProfile `json:"user"`
	DisplayName string                `json:"displayName,omitempty"`
	StationID   *int64                `json:"selectedStationId"`
	Loading     bool                  `json:"isLoading"`
}

type loginView struct {
	sessionView
	Landing string `json:"landing"`
}

func viewOf(snapshot session.Snapshot) sessionView {
	view := sessionView{
		State:     snapshot.State(),
		User:      snapshot.User,
		StationID: snapshot.StationID,
		Loading:   snapshot.Loading,
	}
	if snapshot.User != nil {
		view.DisplayName = snapshot.User.DisplayName()
	}
	return view
}

/*
login signs the operator in and applies the default station policy.

POST /auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: loginView: Session snapshot and the landing view of the role
  - 400: VALIDATION_ERROR: Malformed form
  - 401: INVALID_CREDENTIALS: Rejected form, shown inline on the login view
  - 429: RATE_LIMITED: Too many attempts from this address
*/
func (handler *sessionHandler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeValid(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	manager := session.FromContext(request.Context())
	profile, err := manager.SignIn(request.Context(), input.Email, input.Password)
	if err != nil {
		if !apperr.HasCode(err, apperr.CodeInvalidCredentials) {
			handler.toasts.Notify(request.Context(), notify.Error(err.Error()))
		}
		respond.Error(writer, request, err)
		return
	}

	// A sign-in over a live session never passes through logout.
	handler.views.Clear(request.Context())

	middleware.Annotate(writer, slog.Int64("user_id", profile.ID))
	respond.OK(writer, loginView{
		sessionView: viewOf(manager.Snapshot()),
		Landing:     guard.LandingPath(profile.Role),
	})
}

/*
logout clears the session.

POST /auth/logout

Response:
  - 204: Always, even without an active session
*/
func (handler *sessionHandler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := session.FromContext(request.Context()).Logout(request.Context()); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

/*
current returns the session as the front-end sees it.

GET /session
*/
func (handler *sessionHandler) current(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, viewOf(session.FromContext(request.Context()).Snapshot()))
}

/*
selectStation scopes subsequent requests to one station.

POST /session/station

Request:
  - Body: stationRequest (StationID)

Response:
  - 200: sessionView
  - 400: VALIDATION_ERROR: Missing or non-positive id
  - 401: UNAUTHORIZED: Nobody is signed in
  - 403: FORBIDDEN: The station is not assigned to a scoped role
*/
func (handler *sessionHandler) selectStation(writer http.ResponseWriter, request *http.Request) {
	var input stationRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	manager := session.FromContext(request.Context())
	user := manager.User()
	if user == nil {
		respond.Error(writer, request, apperr.Unauthorized("Sign in before selecting a station"))
		return
	}

	validator := &validate.Validator{}
	if err := validator.Positive("stationId", input.StationID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !user.MayOperate(input.StationID) {
		respond.Error(writer, request, apperr.Forbidden("Station is not assigned to this operator"))
		return
	}

	if err := manager.SelectStation(request.Context(), input.StationID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	middleware.Annotate(writer, slog.Int64("station_id", input.StationID))
	respond.OK(writer, viewOf(manager.Snapshot()))
}

/*
drainToasts hands the pending toasts to the front-end, oldest first.

GET /toasts
*/
func (handler *sessionHandler) drainToasts(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, handler.toasts.Drain())
}
