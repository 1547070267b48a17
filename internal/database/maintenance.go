package database

import (
	"fmt"
	"time"
)

// AggregateHourlyPatterns rebuilds the hour-of-day aggregates for the heatmap
// from the last two days of samples
func (db *DB) AggregateHourlyPatterns() error {
	query := `
        INSERT OR REPLACE INTO hourly_patterns (date, hour, target, total_pings, failed_pings, avg_rtt_ms, max_rtt_ms, failure_rate)
        SELECT
            strftime('%Y-%m-%d', timestamp) as date,
            CAST(strftime('%H', timestamp) AS INTEGER) as hour,
            target,
            COUNT(*) as total_pings,
            SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_pings,
            AVG(CASE WHEN success THEN rtt_ms ELSE NULL END) as avg_rtt_ms,
            MAX(CASE WHEN success THEN rtt_ms ELSE NULL END) as max_rtt_ms,
            ROUND((SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) * 100.0 / COUNT(*)), 2) as failure_rate
        FROM ping_results
        WHERE timestamp > datetime('now', '-2 days')
        AND strftime('%Y-%m-%d', timestamp) IS NOT NULL
        GROUP BY date, hour, target
    `
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("aggregate hourly patterns: %w", err)
	}
	return nil
}

// ArchiveOldData folds samples older than retentionDays into hourly_stats
// and deletes them. Aggregates are kept for 90 days.
func (db *DB) ArchiveOldData(retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("archive: retention must be positive, got %d", retentionDays)
	}
	cutoff := fmt.Sprintf("-%d days", retentionDays)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	archiveQuery := `
        INSERT OR IGNORE INTO hourly_stats (hour, target, total_pings, successful_pings, avg_rtt_ms, max_rtt_ms, min_rtt_ms, avg_jitter_ms, packet_loss_percent)
        SELECT
            strftime('%Y-%m-%d %H:00:00', timestamp) as hour,
            target,
            COUNT(*) as total_pings,
            SUM(CASE WHEN success THEN 1 ELSE 0 END) as successful_pings,
            AVG(CASE WHEN success THEN rtt_ms ELSE NULL END) as avg_rtt_ms,
            MAX(CASE WHEN success THEN rtt_ms ELSE NULL END) as max_rtt_ms,
            MIN(CASE WHEN success THEN rtt_ms ELSE NULL END) as min_rtt_ms,
            AVG(jitter_ms) as avg_jitter_ms,
            ROUND((1.0 - (CAST(SUM(CASE WHEN success THEN 1 ELSE 0 END) AS REAL) / COUNT(*))) * 100, 2) as packet_loss_percent
        FROM ping_results
        WHERE timestamp < datetime('now', ?)
        GROUP BY hour, target
    `
	if _, err := tx.Exec(archiveQuery, cutoff); err != nil {
		return fmt.Errorf("archive samples: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM ping_results WHERE timestamp < datetime('now', ?)`, cutoff); err != nil {
		return fmt.Errorf("delete samples: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM hourly_patterns WHERE date < date('now', '-90 days')`); err != nil {
		return fmt.Errorf("delete patterns: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM hourly_stats WHERE hour < datetime('now', '-90 days')`); err != nil {
		return fmt.Errorf("delete hourly stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	// Reclaim space once a month
	if time.Now().Day() == 1 {
		_, err := db.Exec("VACUUM")
		return err
	}
	return nil
}
