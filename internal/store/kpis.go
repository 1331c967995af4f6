package store

import (
	"context"
	"fmt"
	"time"
)

// KPIReport is a rollup over attempts that reached a terminal status within
// the trailing window.
type KPIReport struct {
	WindowHours     int            `json:"window_hours"`
	TotalAttempts   int            `json:"total_attempts"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	ConnectRate     float64        `json:"connect_rate"`
	AvgDurationSecs float64        `json:"avg_duration_seconds"`
	PromisedAmount  float64        `json:"promised_amount"`
	Dispositions    map[string]int `json:"dispositions"`
}

// KPIs computes the terminal-attempt rollup for the trailing window.
func (s *Store) KPIs(ctx context.Context, window time.Duration) (KPIReport, error) {
	since := time.Now().UTC().Add(-window)
	report := KPIReport{
		WindowHours:  int(window.Hours()),
		Dispositions: make(map[string]int),
	}

	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'COMPLETED'),
		       count(*) FILTER (WHERE status = 'FAILED'),
		       COALESCE(avg(duration_seconds) FILTER (WHERE status = 'COMPLETED'), 0),
		       COALESCE(sum(promise_amount), 0)
		FROM call_attempts
		WHERE end_time >= $1`, since,
	).Scan(
		&report.TotalAttempts, &report.Completed, &report.Failed,
		&report.AvgDurationSecs, &report.PromisedAmount,
	)
	if err != nil {
		return KPIReport{}, fmt.Errorf("kpi totals: %w", err)
	}
	if report.TotalAttempts > 0 {
		report.ConnectRate = float64(report.Completed) / float64(report.TotalAttempts)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT disposition_category, count(*)
		FROM call_attempts
		WHERE end_time >= $1 AND disposition_category IS NOT NULL
		GROUP BY disposition_category
		ORDER BY count(*) DESC`, since)
	if err != nil {
		return KPIReport{}, fmt.Errorf("kpi dispositions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return KPIReport{}, fmt.Errorf("scan disposition row: %w", err)
		}
		report.Dispositions[category] = n
	}
	if err := rows.Err(); err != nil {
		return KPIReport{}, fmt.Errorf("iterate disposition rows: %w", err)
	}
	return report, nil
}
