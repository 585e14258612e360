// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/notify"
)

/*
TestClient_Failures maps backend answers to error codes and toasts.
*/
func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantToast string
	}{
		{"message_field", http.StatusConflict, `{"message":"Coupon already used"}`, apperr.CodeRequestFailed, "Coupon already used"},
		{"error_string", http.StatusBadRequest, `{"error":"Plate is required"}`, apperr.CodeRequestFailed, "Plate is required"},
		{"error_object", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"Client not found"}}`, apperr.CodeRequestFailed, "Client not found"},
		{"generic_4xx", http.StatusForbidden, `not json`, apperr.CodeRequestFailed, constants.MessageGenericFailure},
		{"server_message", http.StatusServiceUnavailable, `{"message":"Maintenance"}`, apperr.CodeServerError, "Maintenance"},
		{"generic_5xx", http.StatusInternalServerError, ``, apperr.CodeServerError, constants.MessageServerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer backend.Close()

			h := newHarness(t, backend, "access-1", true)
			err := h.client.Get(t.Context(), "/coupons", nil)

			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)

			toasts := h.queue.Drain()
			require.Len(t, toasts, 1)
			assert.Equal(t, notify.LevelError, toasts[0].Level)
			assert.Equal(t, tt.wantToast, toasts[0].Message)

			// The session survives ordinary failures.
			assert.NotNil(t, h.manager.User())
		})
	}
}

/*
TestClient_NetworkFailure verifies an unreachable backend raises the connectivity toast.
*/
func TestClient_NetworkFailure(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	h := newHarness(t, backend, "access-1", true)
	backend.Close()

	err := h.client.Get(t.Context(), "/incidents", nil)
	assert.True(t, apperr.HasCode(err, apperr.CodeNetworkFailure))

	toasts := h.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, constants.MessageNetworkFailure, toasts[0].Message)
	assert.NotNil(t, h.manager.User())
}

/*
TestClient_DecodesSuccess verifies a 2xx body is decoded into out.
*/
func TestClient_DecodesSuccess(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"plate":"AB-123-CD"}]`))
	}))
	defer backend.Close()

	h := newHarness(t, backend, "access-1", true)

	var out []map[string]any
	require.NoError(t, h.client.Get(t.Context(), "/clients", &out))
	require.Len(t, out, 1)
	assert.Equal(t, "AB-123-CD", out[0]["plate"])

	// A body that is not JSON is a server failure.
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer bad.Close()

	h = newHarness(t, bad, "access-1", true)
	err := h.client.Get(t.Context(), "/clients", &out)
	assert.True(t, apperr.HasCode(err, apperr.CodeServerError))
	assert.Equal(t, 1, h.queue.Len())
}
