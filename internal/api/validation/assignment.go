package validation

import "github.com/google/uuid"

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// maxBulkLeads caps a single bulk reassignment batch.
const maxBulkLeads = 100

// AutoAssignRequest mirrors the fields needed for auto-assign validation.
type AutoAssignRequest struct {
	LeadID string
}

// ValidateAutoAssignRequest validates an auto-assign request.
// Returns a slice of field errors; empty slice means valid.
func ValidateAutoAssignRequest(req AutoAssignRequest) []FieldError {
	var errs []FieldError
	errs = appendUUIDError(errs, "leadId", req.LeadID)
	return errs
}

// AssignRequest mirrors the fields needed for manual-assign validation.
type AssignRequest struct {
	LeadID         string
	AssignedUserID string
}

// ValidateAssignRequest validates a manual assignment request.
func ValidateAssignRequest(req AssignRequest) []FieldError {
	var errs []FieldError
	errs = appendUUIDError(errs, "leadId", req.LeadID)
	errs = appendUUIDError(errs, "assignedUserId", req.AssignedUserID)
	return errs
}

// ReassignRequest mirrors the fields needed for reassign validation.
type ReassignRequest struct {
	LeadID    string
	NewUserID string
}

// ValidateReassignRequest validates a reassignment request.
func ValidateReassignRequest(req ReassignRequest) []FieldError {
	var errs []FieldError
	errs = appendUUIDError(errs, "leadId", req.LeadID)
	errs = appendUUIDError(errs, "newUserId", req.NewUserID)
	return errs
}

// BulkReassignRequest mirrors the fields needed for bulk validation.
type BulkReassignRequest struct {
	LeadIDs        []string
	AssignedUserID string
}

// ValidateBulkReassignRequest validates a bulk reassignment request.
func ValidateBulkReassignRequest(req BulkReassignRequest) []FieldError {
	var errs []FieldError

	if len(req.LeadIDs) == 0 {
		errs = append(errs, FieldError{Field: "leadIds", Message: "leadIds must not be empty"})
	} else if len(req.LeadIDs) > maxBulkLeads {
		errs = append(errs, FieldError{Field: "leadIds", Message: "leadIds must not exceed 100 entries"})
	}
	for _, id := range req.LeadIDs {
		if _, err := uuid.Parse(id); err != nil {
			errs = append(errs, FieldError{Field: "leadIds", Message: "leadIds must all be valid UUIDs"})
			break
		}
	}

	errs = appendUUIDError(errs, "assignedUserId", req.AssignedUserID)
	return errs
}

// StatusRequest mirrors the fields needed for status-transition validation.
type StatusRequest struct {
	Status string
}

// ValidateStatusRequest validates a status transition request. Status
// membership in the state machine is checked by the assignment package;
// this only enforces presence.
func ValidateStatusRequest(req StatusRequest) []FieldError {
	var errs []FieldError
	if req.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "status is required"})
	}
	return errs
}

func appendUUIDError(errs []FieldError, field, value string) []FieldError {
	if value == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if _, err := uuid.Parse(value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid UUID"})
	}
	return errs
}
