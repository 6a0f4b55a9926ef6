package analytics

import (
	"time"

	"github.com/google/uuid"
)

// BasicStats are organisation-wide assignment counts for a date window.
// Averages are nil when no qualifying rows exist in the window.
type BasicStats struct {
	TotalAssignments      int
	ActiveAssignments     int
	CompletedAssignments  int
	CancelledAssignments  int
	ReassignedAssignments int
	AvgCompletionHours    *float64
	ActiveTeamMembers     int
}

// MemberPerformance is one team member's assignment performance in a
// date window.
type MemberPerformance struct {
	UserID                uuid.UUID
	UserName              string
	UserEmail             string
	TotalAssignments      int
	CompletedAssignments  int
	ActiveAssignments     int
	AvgCompletionHours    *float64
	CompletionRatePercent float64
}

// SourceShare is one lead source's share of assignments in a date window.
type SourceShare struct {
	Source          string
	AssignmentCount int
	Percentage      float64
}

// ConversionMetrics correlate assignments with lead business outcomes.
type ConversionMetrics struct {
	TotalLeads            int
	ConvertedLeads        int
	LostLeads             int
	NewLeads              int
	ConversionRatePercent *float64
	AvgDaysToConvert      *float64
}

// ResponseTimeStats bucket the delay between lead creation and assignment.
type ResponseTimeStats struct {
	AvgDelayMinutes *float64
	MinDelayMinutes *float64
	MaxDelayMinutes *float64
	Within5Min      int
	Within15Min     int
	Within1Hour     int
}

// DailyTrend is one day's assignment activity.
type DailyTrend struct {
	Date                 time.Time
	TotalAssignments     int
	CompletedAssignments int
	ActiveTeamMembers    int
	AvgCompletionHours   *float64
}

// Overview bundles all aggregations for a date window.
type Overview struct {
	OrganisationID uuid.UUID
	DateFrom       time.Time
	DateTo         time.Time
	BasicStats     BasicStats
	Team           []MemberPerformance
	Distribution   []SourceShare
	Conversion     ConversionMetrics
	ResponseTime   ResponseTimeStats
	DailyTrends    []DailyTrend
	GeneratedAt    time.Time
}

// UserPerformance is a single member's assignment performance in a date
// window, with completion-time spread.
type UserPerformance struct {
	UserID                uuid.UUID
	UserName              string
	UserEmail             string
	TotalAssignments      int
	ActiveAssignments     int
	CompletedAssignments  int
	CancelledAssignments  int
	CompletionRatePercent float64
	AvgCompletionHours    *float64
	MinCompletionHours    *float64
	MaxCompletionHours    *float64
}

// WorkloadEntry is one team member's current load snapshot, used by a
// human operator for rebalancing decisions.
type WorkloadEntry struct {
	UserID                uuid.UUID
	UserName              string
	UserEmail             string
	ActiveAssignments     int
	CompletedToday        int
	OverdueAssignments    int
	AvgCompletionHours30d *float64
}

// DefaultWindow returns the trailing 30-day date range ending today.
func DefaultWindow(now time.Time) (from, to time.Time) {
	to = now.UTC().Truncate(24 * time.Hour)
	from = to.AddDate(0, 0, -30)
	return from, to
}
