package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/leadflow/internal/api/middleware"
	"github.com/leadflow/leadflow/internal/api/response"
	"github.com/leadflow/leadflow/internal/analytics"
)

// AnalyticsHandler handles analytics endpoints.
type AnalyticsHandler struct {
	repo        analytics.Repository
	overdueDays int
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(repo analytics.Repository, overdueDays int) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo, overdueDays: overdueDays}
}

type basicStatsResponse struct {
	TotalAssignments      int      `json:"totalAssignments"`
	ActiveAssignments     int      `json:"activeAssignments"`
	CompletedAssignments  int      `json:"completedAssignments"`
	CancelledAssignments  int      `json:"cancelledAssignments"`
	ReassignedAssignments int      `json:"reassignedAssignments"`
	AvgCompletionHours    *float64 `json:"avgCompletionHours"`
	ActiveTeamMembers     int      `json:"activeTeamMembers"`
}

type memberPerformanceResponse struct {
	UserID                string   `json:"userId"`
	UserName              string   `json:"userName"`
	UserEmail             string   `json:"userEmail"`
	TotalAssignments      int      `json:"totalAssignments"`
	CompletedAssignments  int      `json:"completedAssignments"`
	ActiveAssignments     int      `json:"activeAssignments"`
	AvgCompletionHours    *float64 `json:"avgCompletionHours"`
	CompletionRatePercent float64  `json:"completionRatePercent"`
}

type sourceShareResponse struct {
	Source          string  `json:"source"`
	AssignmentCount int     `json:"assignmentCount"`
	Percentage      float64 `json:"percentage"`
}

type conversionMetricsResponse struct {
	TotalLeads            int      `json:"totalLeads"`
	ConvertedLeads        int      `json:"convertedLeads"`
	LostLeads             int      `json:"lostLeads"`
	NewLeads              int      `json:"newLeads"`
	ConversionRatePercent *float64 `json:"conversionRatePercent"`
	AvgDaysToConvert      *float64 `json:"avgDaysToConvert"`
}

type responseTimeResponse struct {
	AvgDelayMinutes *float64 `json:"avgDelayMinutes"`
	MinDelayMinutes *float64 `json:"minDelayMinutes"`
	MaxDelayMinutes *float64 `json:"maxDelayMinutes"`
	Within5Min      int      `json:"within5Min"`
	Within15Min     int      `json:"within15Min"`
	Within1Hour     int      `json:"within1Hour"`
}

type dailyTrendResponse struct {
	Date                 string   `json:"date"`
	TotalAssignments     int      `json:"totalAssignments"`
	CompletedAssignments int      `json:"completedAssignments"`
	ActiveTeamMembers    int      `json:"activeTeamMembers"`
	AvgCompletionHours   *float64 `json:"avgCompletionHours"`
}

type overviewResponse struct {
	DateFrom     string                      `json:"dateFrom"`
	DateTo       string                      `json:"dateTo"`
	BasicStats   basicStatsResponse          `json:"basicStats"`
	Team         []memberPerformanceResponse `json:"teamPerformance"`
	Distribution []sourceShareResponse       `json:"sourceDistribution"`
	Conversion   conversionMetricsResponse   `json:"conversionMetrics"`
	ResponseTime responseTimeResponse        `json:"responseTime"`
	DailyTrends  []dailyTrendResponse        `json:"dailyTrends"`
	GeneratedAt  string                      `json:"generatedAt"`
}

// parseWindow reads the optional dateFrom/dateTo query parameters
// (YYYY-MM-DD, defaulting to the trailing 30 days) and writes the error
// response itself when they are malformed.
func parseWindow(w http.ResponseWriter, r *http.Request, requestID string) (from, to time.Time, ok bool) {
	from, to = analytics.DefaultWindow(time.Now())
	if raw := r.URL.Query().Get("dateFrom"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_DATE", "dateFrom must be a YYYY-MM-DD date", requestID)
			return from, to, false
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("dateTo"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_DATE", "dateTo must be a YYYY-MM-DD date", requestID)
			return from, to, false
		}
		to = parsed
	}
	if to.Before(from) {
		response.Err(w, http.StatusBadRequest, "INVALID_DATE", "dateTo must not be before dateFrom", requestID)
		return from, to, false
	}
	return from, to, true
}

// Overview handles GET /assignments/analytics. Accepts optional
// dateFrom/dateTo query parameters (YYYY-MM-DD); defaults to the
// trailing 30 days.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	from, to, ok := parseWindow(w, r, requestID)
	if !ok {
		return
	}

	ov, err := h.repo.Overview(r.Context(), caller.OrganisationID, from, to)
	if err != nil {
		slog.Error("failed to build analytics overview", "error", err, "organisationId", caller.OrganisationID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve analytics", requestID)
		return
	}

	response.Success(w, http.StatusOK, toOverviewResponse(ov), requestID)
}

func toOverviewResponse(ov *analytics.Overview) overviewResponse {
	team := make([]memberPerformanceResponse, 0, len(ov.Team))
	for _, m := range ov.Team {
		team = append(team, memberPerformanceResponse{
			UserID:                m.UserID.String(),
			UserName:              m.UserName,
			UserEmail:             m.UserEmail,
			TotalAssignments:      m.TotalAssignments,
			CompletedAssignments:  m.CompletedAssignments,
			ActiveAssignments:     m.ActiveAssignments,
			AvgCompletionHours:    m.AvgCompletionHours,
			CompletionRatePercent: m.CompletionRatePercent,
		})
	}

	distribution := make([]sourceShareResponse, 0, len(ov.Distribution))
	for _, s := range ov.Distribution {
		distribution = append(distribution, sourceShareResponse{
			Source:          s.Source,
			AssignmentCount: s.AssignmentCount,
			Percentage:      s.Percentage,
		})
	}

	trends := make([]dailyTrendResponse, 0, len(ov.DailyTrends))
	for _, t := range ov.DailyTrends {
		trends = append(trends, dailyTrendResponse{
			Date:                 t.Date.Format("2006-01-02"),
			TotalAssignments:     t.TotalAssignments,
			CompletedAssignments: t.CompletedAssignments,
			ActiveTeamMembers:    t.ActiveTeamMembers,
			AvgCompletionHours:   t.AvgCompletionHours,
		})
	}

	return overviewResponse{
		DateFrom: ov.DateFrom.Format("2006-01-02"),
		DateTo:   ov.DateTo.Format("2006-01-02"),
		BasicStats: basicStatsResponse{
			TotalAssignments:      ov.BasicStats.TotalAssignments,
			ActiveAssignments:     ov.BasicStats.ActiveAssignments,
			CompletedAssignments:  ov.BasicStats.CompletedAssignments,
			CancelledAssignments:  ov.BasicStats.CancelledAssignments,
			ReassignedAssignments: ov.BasicStats.ReassignedAssignments,
			AvgCompletionHours:    ov.BasicStats.AvgCompletionHours,
			ActiveTeamMembers:     ov.BasicStats.ActiveTeamMembers,
		},
		Team:         team,
		Distribution: distribution,
		Conversion: conversionMetricsResponse{
			TotalLeads:            ov.Conversion.TotalLeads,
			ConvertedLeads:        ov.Conversion.ConvertedLeads,
			LostLeads:             ov.Conversion.LostLeads,
			NewLeads:              ov.Conversion.NewLeads,
			ConversionRatePercent: ov.Conversion.ConversionRatePercent,
			AvgDaysToConvert:      ov.Conversion.AvgDaysToConvert,
		},
		ResponseTime: responseTimeResponse{
			AvgDelayMinutes: ov.ResponseTime.AvgDelayMinutes,
			MinDelayMinutes: ov.ResponseTime.MinDelayMinutes,
			MaxDelayMinutes: ov.ResponseTime.MaxDelayMinutes,
			Within5Min:      ov.ResponseTime.Within5Min,
			Within15Min:     ov.ResponseTime.Within15Min,
			Within1Hour:     ov.ResponseTime.Within1Hour,
		},
		DailyTrends: trends,
		GeneratedAt: formatTime(ov.GeneratedAt),
	}
}

type userPerformanceResponse struct {
	UserID                string   `json:"userId"`
	UserName              string   `json:"userName"`
	UserEmail             string   `json:"userEmail"`
	TotalAssignments      int      `json:"totalAssignments"`
	ActiveAssignments     int      `json:"activeAssignments"`
	CompletedAssignments  int      `json:"completedAssignments"`
	CancelledAssignments  int      `json:"cancelledAssignments"`
	CompletionRatePercent float64  `json:"completionRatePercent"`
	AvgCompletionHours    *float64 `json:"avgCompletionHours"`
	MinCompletionHours    *float64 `json:"minCompletionHours"`
	MaxCompletionHours    *float64 `json:"maxCompletionHours"`
}

// PerformanceReport handles GET /assignments/analytics/performance-report.
// With a userId query parameter it reports a single member; without one
// it reports the whole organisation. dateFrom/dateTo behave as in
// Overview.
func (h *AnalyticsHandler) PerformanceReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	from, to, ok := parseWindow(w, r, requestID)
	if !ok {
		return
	}

	report := map[string]any{
		"reportType":  "organisation",
		"dateFrom":    from.Format("2006-01-02"),
		"dateTo":      to.Format("2006-01-02"),
		"generatedAt": formatTime(time.Now().UTC()),
	}

	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_ID", "userId must be a valid UUID", requestID)
			return
		}

		perf, err := h.repo.UserPerformance(r.Context(), caller.OrganisationID, userID, from, to)
		if err != nil {
			slog.Error("failed to build user performance report", "error", err, "organisationId", caller.OrganisationID, "userId", userID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate performance report", requestID)
			return
		}

		report["reportType"] = "individual"
		report["userId"] = userID.String()
		if perf == nil {
			report["data"] = nil
		} else {
			report["data"] = userPerformanceResponse{
				UserID:                perf.UserID.String(),
				UserName:              perf.UserName,
				UserEmail:             perf.UserEmail,
				TotalAssignments:      perf.TotalAssignments,
				ActiveAssignments:     perf.ActiveAssignments,
				CompletedAssignments:  perf.CompletedAssignments,
				CancelledAssignments:  perf.CancelledAssignments,
				CompletionRatePercent: perf.CompletionRatePercent,
				AvgCompletionHours:    perf.AvgCompletionHours,
				MinCompletionHours:    perf.MinCompletionHours,
				MaxCompletionHours:    perf.MaxCompletionHours,
			}
		}
		response.Success(w, http.StatusOK, report, requestID)
		return
	}

	ov, err := h.repo.Overview(r.Context(), caller.OrganisationID, from, to)
	if err != nil {
		slog.Error("failed to build performance report", "error", err, "organisationId", caller.OrganisationID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate performance report", requestID)
		return
	}
	report["data"] = toOverviewResponse(ov)

	response.Success(w, http.StatusOK, report, requestID)
}

type workloadEntryResponse struct {
	UserID                string   `json:"userId"`
	UserName              string   `json:"userName"`
	UserEmail             string   `json:"userEmail"`
	ActiveAssignments     int      `json:"activeAssignments"`
	CompletedToday        int      `json:"completedToday"`
	OverdueAssignments    int      `json:"overdueAssignments"`
	AvgCompletionHours30d *float64 `json:"avgCompletionHours30d"`
}

// WorkloadBalance handles GET /assignments/analytics/workload-balance.
func (h *AnalyticsHandler) WorkloadBalance(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := middleware.GetCaller(r.Context())

	entries, err := h.repo.WorkloadBalance(r.Context(), caller.OrganisationID, h.overdueDays)
	if err != nil {
		slog.Error("failed to build workload balance", "error", err, "organisationId", caller.OrganisationID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve workload balance", requestID)
		return
	}

	items := make([]workloadEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, workloadEntryResponse{
			UserID:                e.UserID.String(),
			UserName:              e.UserName,
			UserEmail:             e.UserEmail,
			ActiveAssignments:     e.ActiveAssignments,
			CompletedToday:        e.CompletedToday,
			OverdueAssignments:    e.OverdueAssignments,
			AvgCompletionHours30d: e.AvgCompletionHours30d,
		})
	}

	response.Success(w, http.StatusOK, map[string]any{
		"overdueDays": h.overdueDays,
		"workload":    items,
	}, requestID)
}
