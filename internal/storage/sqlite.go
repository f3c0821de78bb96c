package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"marketing-brain/internal/brain"
)

// sqliteTime is fixed width so text comparison orders chronologically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const (
	sqliteInsertCycleSQL = `INSERT INTO brain_cycles (
        organization_id, cycle_ts, window_start, window_end, risk_level, risk_score,
        total_spend, total_revenue, blended_roas, opportunity_usd, action_count, payload
    ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
    ON CONFLICT (organization_id, cycle_ts) DO NOTHING`

	sqliteCycleColumns = `organization_id, cycle_ts, window_start, window_end, risk_level, risk_score,
        total_spend, total_revenue, blended_roas, opportunity_usd, action_count, payload, created_at`

	sqliteRecentCyclesSQL = `SELECT ` + sqliteCycleColumns + `
    FROM brain_cycles
    WHERE (? = '' OR organization_id = ?)
    ORDER BY cycle_ts DESC
    LIMIT ?`

	sqliteCyclesBetweenSQL = `SELECT ` + sqliteCycleColumns + `
    FROM brain_cycles
    WHERE organization_id = ? AND cycle_ts >= ? AND cycle_ts < ?
    ORDER BY cycle_ts`

	sqliteLatestCycleSQL = `SELECT ` + sqliteCycleColumns + `
    FROM brain_cycles
    WHERE organization_id = ?
    ORDER BY cycle_ts DESC
    LIMIT 1`

	sqliteCountCyclesSQL = `SELECT COUNT(*) FROM brain_cycles WHERE (? = '' OR organization_id = ?)`
)

// SQLiteHistory keeps the cycle history in a local SQLite file for
// deployments without PostgreSQL.
type SQLiteHistory struct {
	db *sql.DB
}

// OpenSQLiteHistory opens (creating if needed) and migrates a history database.
func OpenSQLiteHistory(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := MigrateSQLite(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteHistory{db: db}, nil
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

// SaveCycle appends a cycle result, rejecting duplicates with ErrCycleExists.
func (h *SQLiteHistory) SaveCycle(ctx context.Context, result brain.CycleResult) error {
	rec, err := NewCycleRecord(result)
	if err != nil {
		return err
	}
	res, err := h.db.ExecContext(ctx, sqliteInsertCycleSQL,
		rec.OrganizationID,
		rec.Timestamp.Format(sqliteTime),
		rec.WindowStart.Format(sqliteTime),
		rec.WindowEnd.Format(sqliteTime),
		string(rec.RiskLevel),
		rec.RiskScore,
		rec.TotalSpend.String(),
		rec.TotalRevenue.String(),
		rec.BlendedROAS.String(),
		rec.OpportunityUSD.String(),
		rec.ActionCount,
		string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s at %s", ErrCycleExists, rec.OrganizationID, rec.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ListRecentCycles lists the newest cycles first; an empty organizationID
// lists every organization.
func (h *SQLiteHistory) ListRecentCycles(ctx context.Context, organizationID string, limit int) ([]CycleRecord, error) {
	rows, err := h.db.QueryContext(ctx, sqliteRecentCyclesSQL, organizationID, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent cycles: %w", err)
	}
	return collectSQLiteCycles(rows)
}

// ListCyclesBetween lists one organization's cycles in [from, to), oldest first.
func (h *SQLiteHistory) ListCyclesBetween(ctx context.Context, organizationID string, from, to time.Time) ([]CycleRecord, error) {
	rows, err := h.db.QueryContext(ctx, sqliteCyclesBetweenSQL, organizationID, from.UTC().Format(sqliteTime), to.UTC().Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("list cycles between: %w", err)
	}
	return collectSQLiteCycles(rows)
}

// LatestCycle returns the newest cycle of an organization.
func (h *SQLiteHistory) LatestCycle(ctx context.Context, organizationID string) (CycleRecord, error) {
	rows, err := h.db.QueryContext(ctx, sqliteLatestCycleSQL, organizationID)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("latest cycle: %w", err)
	}
	records, err := collectSQLiteCycles(rows)
	if err != nil {
		return CycleRecord{}, err
	}
	if len(records) == 0 {
		return CycleRecord{}, ErrNotFound
	}
	return records[0], nil
}

// CountCycles counts stored cycles; an empty organization counts all.
func (h *SQLiteHistory) CountCycles(ctx context.Context, organizationID string) (int64, error) {
	var count int64
	if err := h.db.QueryRowContext(ctx, sqliteCountCyclesSQL, organizationID, organizationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cycles: %w", err)
	}
	return count, nil
}

func collectSQLiteCycles(rows *sql.Rows) ([]CycleRecord, error) {
	defer rows.Close()

	records := make([]CycleRecord, 0)
	for rows.Next() {
		var (
			rec                               CycleRecord
			ts, start, end, level, created    string
			spend, revenue, roas, opportunity string
			payload                           string
		)
		if err := rows.Scan(&rec.OrganizationID, &ts, &start, &end, &level, &rec.RiskScore,
			&spend, &revenue, &roas, &opportunity, &rec.ActionCount, &payload, &created); err != nil {
			return nil, err
		}
		var err error
		if rec.Timestamp, err = time.Parse(sqliteTime, ts); err != nil {
			return nil, fmt.Errorf("parse cycle_ts: %w", err)
		}
		if rec.WindowStart, err = time.Parse(sqliteTime, start); err != nil {
			return nil, fmt.Errorf("parse window_start: %w", err)
		}
		if rec.WindowEnd, err = time.Parse(sqliteTime, end); err != nil {
			return nil, fmt.Errorf("parse window_end: %w", err)
		}
		// created_at comes from strftime and has millisecond precision.
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, strings.TrimSpace(created)); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if err := rec.setDecimals(spend, revenue, roas, opportunity); err != nil {
			return nil, err
		}
		rec.RiskLevel = brain.RiskLevel(level)
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var _ CycleHistory = (*SQLiteHistory)(nil)
