package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/api/response"
)

const callerKey contextKey = "caller"

// Caller is the verified identity of the requester, established by the
// upstream authentication gateway. This service trusts the gateway:
// tokens are validated and exchanged for identity headers before a
// request reaches us.
type Caller struct {
	UserID         uuid.UUID
	OrganisationID uuid.UUID
	Role           string
}

// Identity is middleware that extracts the verified caller identity from
// the X-User-ID, X-Organisation-ID and X-Role headers set by the
// gateway. Requests without a complete identity are rejected with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())

		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Verified caller identity is required", requestID)
			return
		}
		orgID, err := uuid.Parse(r.Header.Get("X-Organisation-ID"))
		if err != nil {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Verified caller identity is required", requestID)
			return
		}
		role := r.Header.Get("X-Role")
		if role == "" {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Verified caller identity is required", requestID)
			return
		}

		caller := &Caller{
			UserID:         userID,
			OrganisationID: orgID,
			Role:           role,
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCaller retrieves the verified caller from the request context.
func GetCaller(ctx context.Context) *Caller {
	if c, ok := ctx.Value(callerKey).(*Caller); ok {
		return c
	}
	return nil
}
