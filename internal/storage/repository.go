package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrCycleExists rejects a second write for the same organization and timestamp.
	ErrCycleExists = errors.New("storage: cycle already recorded")
	// ErrNotFound is returned when no cycle matches a lookup.
	ErrNotFound = errors.New("storage: cycle not found")
)

const (
	metricColumns = `metric_date,
        channel_id,
        COALESCE(creative_id, ''),
        COALESCE(campaign_id, ''),
        spend::text,
        revenue::text,
        impressions,
        clicks,
        conversions,
        frequency::text,
        cvr::text`

	listChannelMetricsSQL = `SELECT ` + metricColumns + `
    FROM daily_metrics
    WHERE organization_id = $1
      AND metric_date >= $2
      AND metric_date < $3
      AND creative_id IS NULL
    ORDER BY metric_date, channel_id;`

	listCreativeMetricsSQL = `SELECT ` + metricColumns + `
    FROM daily_metrics
    WHERE organization_id = $1
      AND metric_date >= $2
      AND metric_date < $3
      AND creative_id IS NOT NULL
    ORDER BY metric_date, creative_id;`

	listCreativesSQL = `SELECT
        id,
        name,
        channel_id,
        status,
        launch_date,
        spend::text,
        revenue::text,
        ctr::text,
        roas::text
    FROM creatives
    WHERE organization_id = $1
    ORDER BY id;`

	listCohortsSQL = `SELECT
        cohort_month,
        acquisition_channel,
        ltv_30d::text,
        ltv_60d::text,
        ltv_90d::text,
        ltv_180d::text
    FROM cohorts
    WHERE organization_id = $1
      AND cohort_month < $2
    ORDER BY cohort_month, acquisition_channel;`

	listChannelsSQL = `SELECT id, name, platform, is_active
    FROM channels
    WHERE organization_id = $1
    ORDER BY id;`

	insertCycleSQL = `INSERT INTO brain_cycles (
        organization_id,
        cycle_ts,
        window_start,
        window_end,
        risk_level,
        risk_score,
        total_spend,
        total_revenue,
        blended_roas,
        opportunity_usd,
        action_count,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (organization_id, cycle_ts) DO NOTHING;`

	cycleColumns = `organization_id,
        cycle_ts,
        window_start,
        window_end,
        risk_level,
        risk_score,
        total_spend::text,
        total_revenue::text,
        blended_roas::text,
        opportunity_usd::text,
        action_count,
        payload,
        created_at`

	listRecentCyclesSQL = `SELECT ` + cycleColumns + `
    FROM brain_cycles
    WHERE ($1::text = '' OR organization_id = $1)
    ORDER BY cycle_ts DESC
    LIMIT $2;`

	listCyclesBetweenSQL = `SELECT ` + cycleColumns + `
    FROM brain_cycles
    WHERE organization_id = $1
      AND cycle_ts >= $2
      AND cycle_ts < $3
    ORDER BY cycle_ts;`

	latestCycleSQL = `SELECT ` + cycleColumns + `
    FROM brain_cycles
    WHERE organization_id = $1
    ORDER BY cycle_ts DESC
    LIMIT 1;`

	countCyclesSQL = `SELECT COUNT(*) FROM brain_cycles WHERE ($1::text = '' OR organization_id = $1);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CycleHistory is the append-only record of cycle results.
type CycleHistory interface {
	SaveCycle(ctx context.Context, result brain.CycleResult) error
	ListRecentCycles(ctx context.Context, organizationID string, limit int) ([]CycleRecord, error)
	ListCyclesBetween(ctx context.Context, organizationID string, from, to time.Time) ([]CycleRecord, error)
	LatestCycle(ctx context.Context, organizationID string) (CycleRecord, error)
	CountCycles(ctx context.Context, organizationID string) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store reads the metric store tables and keeps the cycle history in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// A failed unlock is released with the session when the connection closes.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Fetch reads one organization's snapshot for [from, to). Cohorts are not
// windowed by from because drift compares months well outside the window.
func (s *Store) Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return brain.Snapshot{}, err
	}

	var snap brain.Snapshot
	if snap.DailyMetrics, err = queryMetrics(ctx, pool, listChannelMetricsSQL, organizationID, from, to); err != nil {
		return brain.Snapshot{}, fmt.Errorf("list channel metrics: %w", err)
	}
	if snap.CreativeDailyMetrics, err = queryMetrics(ctx, pool, listCreativeMetricsSQL, organizationID, from, to); err != nil {
		return brain.Snapshot{}, fmt.Errorf("list creative metrics: %w", err)
	}
	if snap.Creatives, err = s.listCreatives(ctx, pool, organizationID); err != nil {
		return brain.Snapshot{}, err
	}
	if snap.Cohorts, err = s.listCohorts(ctx, pool, organizationID, to); err != nil {
		return brain.Snapshot{}, err
	}
	if snap.Channels, err = s.listChannels(ctx, pool, organizationID); err != nil {
		return brain.Snapshot{}, err
	}
	return snap, nil
}

func queryMetrics(ctx context.Context, pool *pgxpool.Pool, query, organizationID string, from, to time.Time) ([]brain.DailyMetric, error) {
	rows, err := pool.Query(ctx, query, organizationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make([]brain.DailyMetric, 0)
	for rows.Next() {
		var (
			m                                 brain.DailyMetric
			spend, revenue, frequency, cvrStr string
		)
		if err := rows.Scan(&m.Date, &m.ChannelID, &m.CreativeID, &m.CampaignID, &spend, &revenue,
			&m.Impressions, &m.Clicks, &m.Conversions, &frequency, &cvrStr); err != nil {
			return nil, err
		}
		values, err := floats(spend, revenue, frequency, cvrStr)
		if err != nil {
			return nil, err
		}
		m.Spend, m.Revenue, m.Frequency, m.CVR = values[0], values[1], values[2], values[3]
		m.Date = m.Date.UTC()
		metrics = append(metrics, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return metrics, nil
}

func (s *Store) listCreatives(ctx context.Context, pool *pgxpool.Pool, organizationID string) ([]brain.Creative, error) {
	rows, err := pool.Query(ctx, listCreativesSQL, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list creatives: %w", err)
	}
	defer rows.Close()

	creatives := make([]brain.Creative, 0)
	for rows.Next() {
		var (
			c                         brain.Creative
			status                    string
			launch                    sql.NullTime
			spend, revenue, ctr, roas string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.ChannelID, &status, &launch, &spend, &revenue, &ctr, &roas); err != nil {
			return nil, err
		}
		values, err := floats(spend, revenue, ctr, roas)
		if err != nil {
			return nil, fmt.Errorf("creative %s: %w", c.ID, err)
		}
		c.Spend, c.Revenue, c.CTR, c.ROAS = values[0], values[1], values[2], values[3]
		c.Status = brain.CreativeStatus(status)
		if launch.Valid {
			c.LaunchDate = launch.Time.UTC()
		}
		creatives = append(creatives, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return creatives, nil
}

func (s *Store) listCohorts(ctx context.Context, pool *pgxpool.Pool, organizationID string, before time.Time) ([]brain.Cohort, error) {
	rows, err := pool.Query(ctx, listCohortsSQL, organizationID, before)
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	defer rows.Close()

	cohorts := make([]brain.Cohort, 0)
	for rows.Next() {
		var (
			c                   brain.Cohort
			l30, l60, l90, l180 string
		)
		if err := rows.Scan(&c.CohortMonth, &c.AcquisitionChannel, &l30, &l60, &l90, &l180); err != nil {
			return nil, err
		}
		values, err := floats(l30, l60, l90, l180)
		if err != nil {
			return nil, fmt.Errorf("cohort %s: %w", c.CohortMonth.Format("2006-01"), err)
		}
		c.LTV30d, c.LTV60d, c.LTV90d, c.LTV180d = values[0], values[1], values[2], values[3]
		c.CohortMonth = c.CohortMonth.UTC()
		cohorts = append(cohorts, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return cohorts, nil
}

func (s *Store) listChannels(ctx context.Context, pool *pgxpool.Pool, organizationID string) ([]brain.Channel, error) {
	rows, err := pool.Query(ctx, listChannelsSQL, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]brain.Channel, 0)
	for rows.Next() {
		var ch brain.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Platform, &ch.IsActive); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return channels, nil
}

// SaveCycle appends a cycle result. An existing (organization, timestamp) row
// is never overwritten.
func (s *Store) SaveCycle(ctx context.Context, result brain.CycleResult) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	rec, err := NewCycleRecord(result)
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, insertCycleSQL,
		rec.OrganizationID,
		rec.Timestamp,
		rec.WindowStart,
		rec.WindowEnd,
		string(rec.RiskLevel),
		rec.RiskScore,
		rec.TotalSpend.String(),
		rec.TotalRevenue.String(),
		rec.BlendedROAS.String(),
		rec.OpportunityUSD.String(),
		rec.ActionCount,
		[]byte(rec.Payload),
	)
	if execErr != nil {
		return fmt.Errorf("insert cycle: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s at %s", ErrCycleExists, rec.OrganizationID, rec.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ListRecentCycles lists the newest cycles first. An empty organizationID
// lists every organization.
func (s *Store) ListRecentCycles(ctx context.Context, organizationID string, limit int) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentCyclesSQL, organizationID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	return collectCycles(rows)
}

// ListCyclesBetween lists one organization's cycles in [from, to), oldest first.
func (s *Store) ListCyclesBetween(ctx context.Context, organizationID string, from, to time.Time) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listCyclesBetweenSQL, organizationID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list cycles between: %w", queryErr)
	}
	return collectCycles(rows)
}

// LatestCycle returns the current state of an organization.
func (s *Store) LatestCycle(ctx context.Context, organizationID string) (CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return CycleRecord{}, err
	}
	rows, queryErr := pool.Query(ctx, latestCycleSQL, organizationID)
	if queryErr != nil {
		return CycleRecord{}, fmt.Errorf("latest cycle: %w", queryErr)
	}
	records, err := collectCycles(rows)
	if err != nil {
		return CycleRecord{}, err
	}
	if len(records) == 0 {
		return CycleRecord{}, ErrNotFound
	}
	return records[0], nil
}

// CountCycles counts stored cycles.
func (s *Store) CountCycles(ctx context.Context, organizationID string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countCyclesSQL, organizationID).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count cycles: %w", scanErr)
	}
	return count, nil
}

func collectCycles(rows pgx.Rows) ([]CycleRecord, error) {
	defer rows.Close()

	records := make([]CycleRecord, 0)
	for rows.Next() {
		var (
			rec                               CycleRecord
			level                             string
			spend, revenue, roas, opportunity string
		)
		if err := rows.Scan(
			&rec.OrganizationID,
			&rec.Timestamp,
			&rec.WindowStart,
			&rec.WindowEnd,
			&level,
			&rec.RiskScore,
			&spend,
			&revenue,
			&roas,
			&opportunity,
			&rec.ActionCount,
			&rec.Payload,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.RiskLevel = brain.RiskLevel(level)
		if err := rec.setDecimals(spend, revenue, roas, opportunity); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// floats parses NUMERIC text columns.
func floats(raw ...string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, r := range raw {
		d, err := decimal.NewFromString(r)
		if err != nil {
			return nil, fmt.Errorf("parse numeric %q: %w", r, err)
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

var (
	_ CycleHistory   = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
