package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ValuationLogRepository struct {
	db *sql.DB
}

func NewValuationLogRepository(db *sql.DB) *ValuationLogRepository {
	return &ValuationLogRepository{db: db}
}

func (r *ValuationLogRepository) Log(ctx context.Context, userID, inputHash, outcome string) error {
	const query = `
INSERT INTO valuation_logs (user_id, input_hash, outcome)
VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, userID, inputHash, outcome); err != nil {
		return fmt.Errorf("insert valuation log: %w", err)
	}
	return nil
}

// CountByOutcomeForDay groups the UTC day containing day by outcome.
func (r *ValuationLogRepository) CountByOutcomeForDay(ctx context.Context, day time.Time) (map[string]int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	const query = `
SELECT outcome, COUNT(*) FROM valuation_logs
WHERE created_at >= ? AND created_at < ?
GROUP BY outcome`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("count valuation outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan valuation outcome: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}
