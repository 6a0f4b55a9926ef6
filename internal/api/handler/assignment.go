package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/api/middleware"
	"github.com/leadflow/leadflow/internal/api/response"
	"github.com/leadflow/leadflow/internal/api/validation"
	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/lead"
)

type assignmentResponse struct {
	ID                 string  `json:"id"`
	OrganisationID     string  `json:"organisationId"`
	LeadID             string  `json:"leadId"`
	AssignedUserID     string  `json:"assignedUserId"`
	AssignedByUserID   string  `json:"assignedByUserId"`
	PreviousUserID     *string `json:"previousUserId"`
	Status             string  `json:"status"`
	ReassignmentReason *string `json:"reassignmentReason"`
	Notes              *string `json:"notes"`
	AssignedAt         string  `json:"assignedAt"`
	CompletedAt        *string `json:"completedAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

func toAssignmentResponse(a *assignment.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:                 a.ID.String(),
		OrganisationID:     a.OrganisationID.String(),
		LeadID:             a.LeadID.String(),
		AssignedUserID:     a.AssignedUserID.String(),
		AssignedByUserID:   a.AssignedByUserID.String(),
		PreviousUserID:     uuidPtrString(a.PreviousUserID),
		Status:             string(a.Status),
		ReassignmentReason: a.ReassignmentReason,
		Notes:              a.Notes,
		AssignedAt:         formatTime(a.AssignedAt),
		CompletedAt:        timePtrString(a.CompletedAt),
		UpdatedAt:          formatTime(a.UpdatedAt),
	}
}

type assigneeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type historyEntryResponse struct {
	assignmentResponse
	AssignedUserName  string  `json:"assignedUserName"`
	AssignedUserEmail string  `json:"assignedUserEmail"`
	AssignedByName    string  `json:"assignedByName"`
	PreviousUserName  *string `json:"previousUserName"`
}

type assignmentWithLeadResponse struct {
	assignmentResponse
	AssignedUserName  string `json:"assignedUserName"`
	AssignedUserEmail string `json:"assignedUserEmail"`
	LeadName          string `json:"leadName"`
	LeadEmail         string `json:"leadEmail"`
	LeadStatus        string `json:"leadStatus"`
	LeadSource        string `json:"leadSource"`
}

func toAssignmentWithLeadResponse(a *assignment.AssignmentWithLead) assignmentWithLeadResponse {
	return assignmentWithLeadResponse{
		assignmentResponse: toAssignmentResponse(&a.Assignment),
		AssignedUserName:   a.AssignedUserName,
		AssignedUserEmail:  a.AssignedUserEmail,
		LeadName:           a.LeadName,
		LeadEmail:          a.LeadEmail,
		LeadStatus:         a.LeadStatus,
		LeadSource:         a.LeadSource,
	}
}

// AssignmentHandler handles assignment endpoints.
type AssignmentHandler struct {
	service     *assignment.Service
	lifecycle   *assignment.Lifecycle
	store       assignment.Repository
	overdueDays int
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(service *assignment.Service, lifecycle *assignment.Lifecycle, store assignment.Repository, overdueDays int) *AssignmentHandler {
	return &AssignmentHandler{
		service:     service,
		lifecycle:   lifecycle,
		store:       store,
		overdueDays: overdueDays,
	}
}

type autoAssignRequest struct {
	LeadID string `json:"leadId"`
}

// AutoAssign handles POST /assignments/auto-assign.
func (h *AssignmentHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req autoAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateAutoAssignRequest(validation.AutoAssignRequest{LeadID: req.LeadID})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}
	leadID := uuid.MustParse(req.LeadID)

	result, err := h.service.AutoAssign(r.Context(), caller.OrganisationID, leadID, caller.UserID)
	if err != nil {
		switch {
		case errors.Is(err, lead.ErrLeadNotFound):
			response.Err(w, http.StatusNotFound, "LEAD_NOT_FOUND", "Lead not found or access denied", requestID)
		case errors.Is(err, assignment.ErrDuplicateActiveAssignment):
			response.Err(w, http.StatusConflict, "ALREADY_ASSIGNED", "Lead already has an active assignment", requestID)
		default:
			slog.Error("failed to auto-assign lead", "error", err, "leadId", leadID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign lead", requestID)
		}
		return
	}

	if !result.Assigned {
		response.Err(w, http.StatusConflict, "NO_TEAM_MEMBERS", result.Message, requestID)
		return
	}

	response.Success(w, http.StatusCreated, map[string]any{
		"assignmentId": result.Assignment.ID.String(),
		"leadId":       leadID.String(),
		"assignedAt":   formatTime(result.Assignment.AssignedAt),
		"assignedTo": assigneeResponse{
			ID:    result.Assignee.ID.String(),
			Name:  result.Assignee.Name,
			Email: result.Assignee.Email,
		},
	}, requestID)
}

type assignRequest struct {
	LeadID             string  `json:"leadId"`
	AssignedUserID     string  `json:"assignedUserId"`
	Notes              *string `json:"notes"`
	ReassignmentReason *string `json:"reassignmentReason"`
}

// Assign handles POST /assignments/assign.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateAssignRequest(validation.AssignRequest{
		LeadID:         req.LeadID,
		AssignedUserID: req.AssignedUserID,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}
	leadID := uuid.MustParse(req.LeadID)
	userID := uuid.MustParse(req.AssignedUserID)

	result, err := h.service.ManualAssign(r.Context(), caller.OrganisationID, leadID, userID, caller.UserID, req.Notes, req.ReassignmentReason)
	if err != nil {
		switch {
		case errors.Is(err, lead.ErrLeadNotFound):
			response.Err(w, http.StatusNotFound, "LEAD_NOT_FOUND", "Lead not found or access denied", requestID)
		case errors.Is(err, assignment.ErrInvalidAssignee):
			response.Err(w, http.StatusNotFound, "ASSIGNEE_NOT_FOUND", "Assignee not found or not a team member", requestID)
		case errors.Is(err, assignment.ErrDuplicateActiveAssignment):
			response.Err(w, http.StatusConflict, "ALREADY_ASSIGNED", "Lead already has an active assignment; use reassign to move it", requestID)
		default:
			slog.Error("failed to assign lead", "error", err, "leadId", leadID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign lead", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, map[string]any{
		"assignmentId":   result.Assignment.ID.String(),
		"leadId":         leadID.String(),
		"previousUserId": uuidPtrString(result.PreviousUserID),
		"assignedTo": assigneeResponse{
			ID:    result.Assignee.ID.String(),
			Name:  result.Assignee.Name,
			Email: result.Assignee.Email,
		},
	}, requestID)
}

type reassignRequest struct {
	LeadID    string  `json:"leadId"`
	NewUserID string  `json:"newUserId"`
	Reason    *string `json:"reason"`
}

// Reassign handles POST /assignments/reassign.
func (h *AssignmentHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateReassignRequest(validation.ReassignRequest{
		LeadID:    req.LeadID,
		NewUserID: req.NewUserID,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}
	leadID := uuid.MustParse(req.LeadID)
	newUserID := uuid.MustParse(req.NewUserID)

	result, err := h.lifecycle.Reassign(r.Context(), leadID, newUserID, caller.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrNoActiveAssignment):
			response.Err(w, http.StatusConflict, "NO_ACTIVE_ASSIGNMENT", "Lead has no active assignment to reassign", requestID)
		case errors.Is(err, assignment.ErrInvalidAssignee):
			response.Err(w, http.StatusNotFound, "ASSIGNEE_NOT_FOUND", "Assignee not found or not a team member", requestID)
		default:
			slog.Error("failed to reassign lead", "error", err, "leadId", leadID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reassign lead", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, map[string]any{
		"leadId":          result.LeadID.String(),
		"oldAssignmentId": result.OldAssignmentID.String(),
		"newAssignmentId": result.NewAssignmentID.String(),
		"oldUserId":       result.OldUserID.String(),
		"newUserId":       result.NewUserID.String(),
	}, requestID)
}

type bulkReassignRequest struct {
	LeadIDs        []string `json:"leadIds"`
	AssignedUserID string   `json:"assignedUserId"`
	Reason         *string  `json:"reason"`
	Notes          *string  `json:"notes"`
}

// BulkReassign handles PUT /assignments/bulk-reassign.
func (h *AssignmentHandler) BulkReassign(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req bulkReassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateBulkReassignRequest(validation.BulkReassignRequest{
		LeadIDs:        req.LeadIDs,
		AssignedUserID: req.AssignedUserID,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	leadIDs := make([]uuid.UUID, 0, len(req.LeadIDs))
	for _, id := range req.LeadIDs {
		leadIDs = append(leadIDs, uuid.MustParse(id))
	}
	userID := uuid.MustParse(req.AssignedUserID)

	result, err := h.service.BulkReassign(r.Context(), caller.OrganisationID, leadIDs, userID, caller.UserID, req.Reason, req.Notes)
	if err != nil {
		if errors.Is(err, assignment.ErrInvalidAssignee) {
			response.Err(w, http.StatusNotFound, "ASSIGNEE_NOT_FOUND", "Assignee not found or not a team member", requestID)
			return
		}
		slog.Error("failed to bulk reassign leads", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to perform bulk reassignment", requestID)
		return
	}

	successful := make([]map[string]any, 0, len(result.Successful))
	for _, s := range result.Successful {
		successful = append(successful, map[string]any{
			"leadId":       s.LeadID.String(),
			"assignmentId": s.AssignmentID.String(),
		})
	}
	failed := make([]map[string]any, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, map[string]any{
			"leadId": f.LeadID.String(),
			"error":  f.Reason,
		})
	}

	response.Success(w, http.StatusOK, map[string]any{
		"successful": successful,
		"failed":     failed,
		"summary": map[string]int{
			"total":      result.Summary.Total,
			"successful": result.Summary.Successful,
			"failed":     result.Summary.Failed,
		},
	}, requestID)
}

type transitionRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

// TransitionStatus handles POST /assignments/{id}/status.
func (h *AssignmentHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateStatusRequest(validation.StatusRequest{Status: req.Status})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	status, err := assignment.ParseStatus(req.Status)
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_STATUS", err.Error(), requestID)
		return
	}

	result, err := h.lifecycle.Transition(r.Context(), id, status, caller.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrAssignmentNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Assignment not found", requestID)
		case errors.Is(err, assignment.ErrInvalidTransition):
			response.Err(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), requestID)
		default:
			slog.Error("failed to update assignment status", "error", err, "assignmentId", id)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update assignment status", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, map[string]any{
		"assignmentId": result.AssignmentID.String(),
		"oldStatus":    string(result.OldStatus),
		"newStatus":    string(result.NewStatus),
	}, requestID)
}

// History handles GET /assignments/history/{leadId}.
func (h *AssignmentHandler) History(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	leadID, err := uuid.Parse(chi.URLParam(r, "leadId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "leadId must be a valid UUID", requestID)
		return
	}

	entries, err := h.service.History(r.Context(), leadID, caller.OrganisationID)
	if err != nil {
		slog.Error("failed to fetch assignment history", "error", err, "leadId", leadID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve assignment history", requestID)
		return
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		items = append(items, historyEntryResponse{
			assignmentResponse: toAssignmentResponse(&e.Assignment),
			AssignedUserName:   e.AssignedUserName,
			AssignedUserEmail:  e.AssignedUserEmail,
			AssignedByName:     e.AssignedByName,
			PreviousUserName:   e.PreviousUserName,
		})
	}

	response.Success(w, http.StatusOK, items, requestID)
}

type statusChangeResponse struct {
	ID            string  `json:"id"`
	AssignmentID  string  `json:"assignmentId"`
	OldStatus     string  `json:"oldStatus"`
	NewStatus     string  `json:"newStatus"`
	ChangedBy     string  `json:"changedBy"`
	ChangedByName *string `json:"changedByName"`
	Reason        *string `json:"reason"`
	ChangedAt     string  `json:"changedAt"`
}

// StatusHistory handles GET /assignments/{id}/status-history.
func (h *AssignmentHandler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	changes, err := h.store.StatusHistory(r.Context(), id)
	if err != nil {
		slog.Error("failed to fetch status history", "error", err, "assignmentId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve status history", requestID)
		return
	}

	items := make([]statusChangeResponse, 0, len(changes))
	for _, c := range changes {
		items = append(items, statusChangeResponse{
			ID:            c.ID.String(),
			AssignmentID:  c.AssignmentID.String(),
			OldStatus:     string(c.OldStatus),
			NewStatus:     string(c.NewStatus),
			ChangedBy:     c.ChangedBy.String(),
			ChangedByName: c.ChangedByName,
			Reason:        c.Reason,
			ChangedAt:     formatTime(c.ChangedAt),
		})
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// UserAssignments handles GET /assignments/user/{userId}.
func (h *AssignmentHandler) UserAssignments(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "userId must be a valid UUID", requestID)
		return
	}

	filter := assignment.ListFilter{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 20),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := assignment.ParseStatus(raw)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_STATUS", err.Error(), requestID)
			return
		}
		filter.Status = &status
	}

	result, err := h.service.UserAssignments(r.Context(), userID, caller.OrganisationID, filter)
	if err != nil {
		slog.Error("failed to list user assignments", "error", err, "userId", userID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve user assignments", requestID)
		return
	}

	h.writeListResult(w, result, requestID)
}

// ByStatus handles GET /assignments/status/{status}.
func (h *AssignmentHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	status, err := assignment.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_STATUS", err.Error(), requestID)
		return
	}

	filter := assignment.ListFilter{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 20),
	}

	result, err := h.store.ListByStatus(r.Context(), caller.OrganisationID, status, filter)
	if err != nil {
		slog.Error("failed to list assignments by status", "error", err, "status", status)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve assignments", requestID)
		return
	}

	h.writeListResult(w, result, requestID)
}

type overdueResponse struct {
	assignmentWithLeadResponse
	DaysOverdue int `json:"daysOverdue"`
}

// Overdue handles GET /assignments/overdue.
func (h *AssignmentHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	cutoff := time.Now().UTC().AddDate(0, 0, -h.overdueDays)
	overdue, err := h.store.ListOverdue(r.Context(), caller.OrganisationID, cutoff)
	if err != nil {
		slog.Error("failed to list overdue assignments", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve overdue assignments", requestID)
		return
	}

	items := make([]overdueResponse, 0, len(overdue))
	for i := range overdue {
		items = append(items, overdueResponse{
			assignmentWithLeadResponse: toAssignmentWithLeadResponse(&overdue[i].AssignmentWithLead),
			DaysOverdue:                overdue[i].DaysOverdue,
		})
	}

	response.Success(w, http.StatusOK, map[string]any{
		"overdueDays": h.overdueDays,
		"assignments": items,
	}, requestID)
}

func (h *AssignmentHandler) writeListResult(w http.ResponseWriter, result *assignment.ListResult, requestID string) {
	items := make([]assignmentWithLeadResponse, 0, len(result.Assignments))
	for i := range result.Assignments {
		items = append(items, toAssignmentWithLeadResponse(&result.Assignments[i]))
	}
	response.SuccessList(w, http.StatusOK, items, result.Total, result.Page, result.Limit, result.TotalPages, requestID)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
