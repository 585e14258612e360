// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package console

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taibuivan/washdesk/internal/guard"
	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/middleware"
	"github.com/taibuivan/washdesk/internal/platform/respond"
	"github.com/taibuivan/washdesk/internal/querycache"
	"github.com/taibuivan/washdesk/internal/session"
	"github.com/taibuivan/washdesk/pkg/pointer"
)

// Guard evaluates the route guard for route on every request.
//
// Redirects are answered with 303 and a JSON body naming the target view. A
// session still resolving gets a 202 placeholder.
func Guard(route guard.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			snapshot := session.FromContext(request.Context()).Snapshot()
			decision := guard.Decide(snapshot, route)

			attrs := []slog.Attr{slog.String("guard", decision.String())}
			if snapshot.User != nil {
				attrs = append(attrs, slog.Int64("user_id", snapshot.User.ID))
			}
			if snapshot.StationID != nil {
				attrs = append(attrs, slog.Int64("station_id", *snapshot.StationID))
			}
			middleware.Annotate(writer, attrs...)

			switch decision {
			case guard.Allow:
				next.ServeHTTP(writer, request)
			case guard.Loading:
				respond.Accepted(writer, map[string]string{"status": session.Resolving.String()})
			default:
				respond.Redirect(writer, request, decision.Location())
			}
		})
	}
}

type viewHandler struct {
	cache *querycache.Cache
}

type collectionView struct {
	View      string          `json:"view"`
	StationID *int64          `json:"stationId,omitempty"`
	Items     json.RawMessage `json:"items"`
}

// collection serves the backend collection behind a guarded view.
//
// A rejected session is answered with a redirect to the login view; the
// transport has already cleared it.
func (handler *viewHandler) collection(route guard.Route) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		view := collectionView{View: route.Path}

		var scope int64
		if route.StationScoped {
			if id, ok := session.FromContext(request.Context()).StationID(); ok {
				scope = id
				view.StationID = pointer.To(id)
			}
		}

		if err := handler.cache.Fetch(request.Context(), scope, route.Path, &view.Items); err != nil {
			if apperr.HasCode(err, apperr.CodeUnauthorized) {
				respond.Redirect(writer, request, guard.PathLogin)
				return
			}
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, view)
	}
}

// # Public Views

// page serves a placeholder for a public view rendered by the front-end.
func page(name string) http.HandlerFunc {
	return func(writer http.ResponseWriter, _ *http.Request) {
		respond.OK(writer, map[string]string{"view": name})
	}
}

// stationSelect lists the stations the operator may pick from.
//
// Global operators get an empty list and an "any" flag; the front-end offers
// the full station directory instead.
func stationSelect(writer http.ResponseWriter, request *http.Request) {
	user := session.FromContext(request.Context()).User()
	if user == nil {
		respond.Redirect(writer, request, guard.PathLogin)
		return
	}

	stations := user.StationIDs
	if stations == nil {
		stations = []int64{}
	}
	respond.OK(writer, map[string]any{
		"view":     "select-station",
		"stations": stations,
		"any":      user.IsGlobal(),
	})
}
