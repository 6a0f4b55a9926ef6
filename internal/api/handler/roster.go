package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/leadflow/leadflow/internal/api/middleware"
	"github.com/leadflow/leadflow/internal/api/response"
	"github.com/leadflow/leadflow/internal/roster"
)

// RosterHandler handles team roster endpoints.
type RosterHandler struct {
	repo roster.Repository
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(repo roster.Repository) *RosterHandler {
	return &RosterHandler{repo: repo}
}

type memberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	JoinedAt string `json:"joinedAt"`
}

// List handles GET /team-members. It returns the organisation's eligible
// assignees in the same stable order the round-robin rotation uses.
func (h *RosterHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	members, err := h.repo.Members(r.Context(), caller.OrganisationID)
	if err != nil {
		slog.Error("failed to list team members", "error", err, "organisationId", caller.OrganisationID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve team members", requestID)
		return
	}

	items := make([]memberResponse, 0, len(members))
	for _, m := range members {
		items = append(items, memberResponse{
			ID:       m.ID.String(),
			Name:     m.Name,
			Email:    m.Email,
			Phone:    m.Phone,
			JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339),
		})
	}

	response.Success(w, http.StatusOK, items, requestID)
}
