package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Overview bundles all aggregations for the date window.
func (r *PostgresRepository) Overview(ctx context.Context, organisationID uuid.UUID, from, to time.Time) (*Overview, error) {
	o := &Overview{
		OrganisationID: organisationID,
		DateFrom:       from,
		DateTo:         to,
		GeneratedAt:    time.Now().UTC(),
	}

	var err error
	if o.BasicStats, err = r.basicStats(ctx, organisationID, from, to); err != nil {
		return nil, err
	}
	if o.Team, err = r.teamPerformance(ctx, organisationID, from, to); err != nil {
		return nil, err
	}
	if o.Distribution, err = r.sourceDistribution(ctx, organisationID, from, to); err != nil {
		return nil, err
	}
	if o.Conversion, err = r.conversionMetrics(ctx, organisationID, from, to); err != nil {
		return nil, err
	}
	if o.ResponseTime, err = r.responseTime(ctx, organisationID, from, to); err != nil {
		return nil, err
	}
	if o.DailyTrends, err = r.dailyTrends(ctx, organisationID, from, to); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *PostgresRepository) basicStats(ctx context.Context, organisationID uuid.UUID, from, to time.Time) (BasicStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'reassigned'),
		       AVG(EXTRACT(EPOCH FROM (completed_at - assigned_at)) / 3600.0)
		           FILTER (WHERE status = 'completed' AND completed_at IS NOT NULL),
		       COUNT(DISTINCT assigned_user_id)
		FROM lead_assignments
		WHERE organisation_id = $1
		  AND assigned_at::date BETWEEN $2 AND $3`

	var s BasicStats
	err := r.pool.QueryRow(ctx, query, organisationID, from, to).Scan(
		&s.TotalAssignments, &s.ActiveAssignments, &s.CompletedAssignments,
		&s.CancelledAssignments, &s.ReassignedAssignments,
		&s.AvgCompletionHours, &s.ActiveTeamMembers,
	)
	if err != nil {
		return BasicStats{}, fmt.Errorf("querying basic stats: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) teamPerformance(ctx context.Context, organisationID uuid.UUID, from, to time.Time) ([]MemberPerformance, error) {
	query := `
		SELECT u.id, u.name, u.email,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE la.status = 'completed'),
		       COUNT(*) FILTER (WHERE la.status = 'active'),
		       AVG(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 3600.0)
		           FILTER (WHERE la.status = 'completed' AND la.completed_at IS NOT NULL),
		       ROUND((COUNT(*) FILTER (WHERE la.status = 'completed')) * 100.0 / COUNT(*), 2)
		FROM users u
		JOIN lead_assignments la ON la.assigned_user_id = u.id
		WHERE u.organisation_id = $1
		  AND u.role = 'team_member'
		  AND la.assigned_at::date BETWEEN $2 AND $3
		GROUP BY u.id, u.name, u.email
		ORDER BY COUNT(*) DESC`

	rows, err := r.pool.Query(ctx, query, organisationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying team performance: %w", err)
	}
	defer rows.Close()

	team := []MemberPerformance{}
	for rows.Next() {
		var p MemberPerformance
		err := rows.Scan(&p.UserID, &p.UserName, &p.UserEmail,
			&p.TotalAssignments, &p.CompletedAssignments, &p.ActiveAssignments,
			&p.AvgCompletionHours, &p.CompletionRatePercent)
		if err != nil {
			return nil, fmt.Errorf("scanning team performance row: %w", err)
		}
		team = append(team, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team performance rows: %w", err)
	}
	return team, nil
}

func (r *PostgresRepository) sourceDistribution(ctx context.Context, organisationID uuid.UUID, from, to time.Time) ([]SourceShare, error) {
	query := `
		SELECT l.source,
		       COUNT(*),
		       ROUND(COUNT(*) * 100.0 / SUM(COUNT(*)) OVER (), 2)
		FROM lead_assignments la
		JOIN leads l ON la.lead_id = l.id
		WHERE la.organisation_id = $1
		  AND la.assigned_at::date BETWEEN $2 AND $3
		GROUP BY l.source
		ORDER BY COUNT(*) DESC`

	rows, err := r.pool.Query(ctx, query, organisationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying source distribution: %w", err)
	}
	defer rows.Close()

	shares := []SourceShare{}
	for rows.Next() {
		var s SourceShare
		if err := rows.Scan(&s.Source, &s.AssignmentCount, &s.Percentage); err != nil {
			return nil, fmt.Errorf("scanning source share row: %w", err)
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source share rows: %w", err)
	}
	return shares, nil
}

func (r *PostgresRepository) conversionMetrics(ctx context.Context, organisationID uuid.UUID, from, to time.Time) (ConversionMetrics, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE l.status IN ('converted', 'won')),
		       COUNT(*) FILTER (WHERE l.status = 'lost'),
		       COUNT(*) FILTER (WHERE l.status = 'new'),
		       ROUND((COUNT(*) FILTER (WHERE l.status IN ('converted', 'won'))) * 100.0
		           / NULLIF(COUNT(*), 0), 2),
		       AVG(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 86400.0)
		           FILTER (WHERE l.status IN ('converted', 'won') AND la.completed_at IS NOT NULL)
		FROM lead_assignments la
		JOIN leads l ON la.lead_id = l.id
		WHERE la.organisation_id = $1
		  AND la.assigned_at::date BETWEEN $2 AND $3`

	var m ConversionMetrics
	err := r.pool.QueryRow(ctx, query, organisationID, from, to).Scan(
		&m.TotalLeads, &m.ConvertedLeads, &m.LostLeads, &m.NewLeads,
		&m.ConversionRatePercent, &m.AvgDaysToConvert,
	)
	if err != nil {
		return ConversionMetrics{}, fmt.Errorf("querying conversion metrics: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) responseTime(ctx context.Context, organisationID uuid.UUID, from, to time.Time) (ResponseTimeStats, error) {
	query := `
		SELECT AVG(delay_minutes),
		       MIN(delay_minutes),
		       MAX(delay_minutes),
		       COUNT(*) FILTER (WHERE delay_minutes <= 5),
		       COUNT(*) FILTER (WHERE delay_minutes <= 15),
		       COUNT(*) FILTER (WHERE delay_minutes <= 60)
		FROM (
			SELECT EXTRACT(EPOCH FROM (la.assigned_at - l.created_at)) / 60.0 AS delay_minutes
			FROM lead_assignments la
			JOIN leads l ON la.lead_id = l.id
			WHERE la.organisation_id = $1
			  AND la.assigned_at::date BETWEEN $2 AND $3
		) delays`

	var s ResponseTimeStats
	err := r.pool.QueryRow(ctx, query, organisationID, from, to).Scan(
		&s.AvgDelayMinutes, &s.MinDelayMinutes, &s.MaxDelayMinutes,
		&s.Within5Min, &s.Within15Min, &s.Within1Hour,
	)
	if err != nil {
		return ResponseTimeStats{}, fmt.Errorf("querying response times: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) dailyTrends(ctx context.Context, organisationID uuid.UUID, from, to time.Time) ([]DailyTrend, error) {
	query := `
		SELECT assigned_at::date,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(DISTINCT assigned_user_id),
		       AVG(EXTRACT(EPOCH FROM (completed_at - assigned_at)) / 3600.0)
		           FILTER (WHERE status = 'completed' AND completed_at IS NOT NULL)
		FROM lead_assignments
		WHERE organisation_id = $1
		  AND assigned_at::date BETWEEN $2 AND $3
		GROUP BY assigned_at::date
		ORDER BY assigned_at::date ASC`

	rows, err := r.pool.Query(ctx, query, organisationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying daily trends: %w", err)
	}
	defer rows.Close()

	trends := []DailyTrend{}
	for rows.Next() {
		var t DailyTrend
		err := rows.Scan(&t.Date, &t.TotalAssignments, &t.CompletedAssignments,
			&t.ActiveTeamMembers, &t.AvgCompletionHours)
		if err != nil {
			return nil, fmt.Errorf("scanning daily trend row: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily trend rows: %w", err)
	}
	return trends, nil
}

// UserPerformance returns one member's date-windowed report, or nil when
// the user had no assignments in the window.
func (r *PostgresRepository) UserPerformance(ctx context.Context, organisationID, userID uuid.UUID, from, to time.Time) (*UserPerformance, error) {
	query := `
		SELECT u.id, u.name, u.email,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE la.status = 'active'),
		       COUNT(*) FILTER (WHERE la.status = 'completed'),
		       COUNT(*) FILTER (WHERE la.status = 'cancelled'),
		       ROUND((COUNT(*) FILTER (WHERE la.status = 'completed')) * 100.0 / COUNT(*), 2),
		       AVG(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 3600.0)
		           FILTER (WHERE la.status = 'completed' AND la.completed_at IS NOT NULL),
		       MIN(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 3600.0)
		           FILTER (WHERE la.status = 'completed' AND la.completed_at IS NOT NULL),
		       MAX(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 3600.0)
		           FILTER (WHERE la.status = 'completed' AND la.completed_at IS NOT NULL)
		FROM users u
		JOIN lead_assignments la ON la.assigned_user_id = u.id
		WHERE u.id = $1
		  AND la.organisation_id = $2
		  AND la.assigned_at::date BETWEEN $3 AND $4
		GROUP BY u.id, u.name, u.email`

	var p UserPerformance
	err := r.pool.QueryRow(ctx, query, userID, organisationID, from, to).Scan(
		&p.UserID, &p.UserName, &p.UserEmail,
		&p.TotalAssignments, &p.ActiveAssignments, &p.CompletedAssignments,
		&p.CancelledAssignments, &p.CompletionRatePercent,
		&p.AvgCompletionHours, &p.MinCompletionHours, &p.MaxCompletionHours,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user performance: %w", err)
	}
	return &p, nil
}

// WorkloadBalance returns the current per-member load snapshot, heaviest
// load first. Members with no assignments appear with zero counts.
func (r *PostgresRepository) WorkloadBalance(ctx context.Context, organisationID uuid.UUID, overdueDays int) ([]WorkloadEntry, error) {
	query := `
		SELECT u.id, u.name, u.email,
		       COUNT(la.id) FILTER (WHERE la.status = 'active'),
		       COUNT(la.id) FILTER (WHERE la.status = 'completed'
		           AND la.completed_at::date = CURRENT_DATE),
		       COUNT(la.id) FILTER (WHERE la.status = 'active'
		           AND la.assigned_at < now() - make_interval(days => $2)),
		       ROUND((AVG(EXTRACT(EPOCH FROM (la.completed_at - la.assigned_at)) / 3600.0)
		           FILTER (WHERE la.status = 'completed'
		               AND la.completed_at >= now() - interval '30 days'))::numeric, 2)
		FROM users u
		LEFT JOIN lead_assignments la ON la.assigned_user_id = u.id
		WHERE u.organisation_id = $1
		  AND u.role = 'team_member'
		  AND u.is_verified
		GROUP BY u.id, u.name, u.email
		ORDER BY COUNT(la.id) FILTER (WHERE la.status = 'active') DESC, u.created_at ASC`

	rows, err := r.pool.Query(ctx, query, organisationID, overdueDays)
	if err != nil {
		return nil, fmt.Errorf("querying workload balance: %w", err)
	}
	defer rows.Close()

	entries := []WorkloadEntry{}
	for rows.Next() {
		var e WorkloadEntry
		err := rows.Scan(&e.UserID, &e.UserName, &e.UserEmail,
			&e.ActiveAssignments, &e.CompletedToday, &e.OverdueAssignments,
			&e.AvgCompletionHours30d)
		if err != nil {
			return nil, fmt.Errorf("scanning workload row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workload rows: %w", err)
	}
	return entries, nil
}
