package assignment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/internal/assignment"
)

func TestParseStatus_Valid(t *testing.T) {
	for _, raw := range []string{"active", "completed", "cancelled", "reassigned"} {
		status, err := assignment.ParseStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, assignment.Status(raw), status)
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, raw := range []string{"", "Active", "done", "open"} {
		_, err := assignment.ParseStatus(raw)
		assert.Error(t, err, "status %q should be rejected", raw)
	}
}

func TestStatus_ActiveTransitions(t *testing.T) {
	assert.True(t, assignment.StatusActive.CanTransitionTo(assignment.StatusCompleted))
	assert.True(t, assignment.StatusActive.CanTransitionTo(assignment.StatusCancelled))
	assert.True(t, assignment.StatusActive.CanTransitionTo(assignment.StatusReassigned))
	assert.False(t, assignment.StatusActive.CanTransitionTo(assignment.StatusActive))
}

func TestStatus_TerminalStatesAllowNothing(t *testing.T) {
	terminals := []assignment.Status{
		assignment.StatusCompleted,
		assignment.StatusCancelled,
		assignment.StatusReassigned,
	}
	targets := []assignment.Status{
		assignment.StatusActive,
		assignment.StatusCompleted,
		assignment.StatusCancelled,
		assignment.StatusReassigned,
	}

	for _, from := range terminals {
		assert.True(t, from.Terminal())
		for _, to := range targets {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be illegal", from, to)
		}
	}
}

func TestStatus_ActiveIsNotTerminal(t *testing.T) {
	assert.False(t, assignment.StatusActive.Terminal())
}
