package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/internal/api/middleware"
	"github.com/leadflow/leadflow/internal/api/response"
)

func identityRequest(userID, orgID, role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if orgID != "" {
		req.Header.Set("X-Organisation-ID", orgID)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	return req
}

func TestIdentity_ValidHeaders(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	var captured *middleware.Caller
	handler := middleware.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetCaller(r.Context())
	}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, identityRequest(userID.String(), orgID.String(), "team_member"))

	require.NotNil(t, captured)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, orgID, captured.OrganisationID)
	assert.Equal(t, "team_member", captured.Role)
}

func TestIdentity_MissingHeaders(t *testing.T) {
	cases := map[string]*http.Request{
		"no user":       identityRequest("", uuid.New().String(), "admin"),
		"no org":        identityRequest(uuid.New().String(), "", "admin"),
		"no role":       identityRequest(uuid.New().String(), uuid.New().String(), ""),
		"malformed ids": identityRequest("bogus", "bogus", "admin"),
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			handler := middleware.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not be reached without a complete identity")
			}))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var env response.Envelope
			require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
			require.NotNil(t, env.Error)
			assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
		})
	}
}

func TestGetCaller_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Nil(t, middleware.GetCaller(req.Context()))
}
