package database

import (
	"database/sql"
	"fmt"
	"time"

	"lagmon/internal/models"
)

// GetRecent retrieves recent samples, newest first
func (db *DB) GetRecent(hours int) ([]models.Sample, error) {
	query := `
        SELECT timestamp, target, success, rtt_ms, failure, error_message
        FROM ping_results
        WHERE timestamp > datetime('now', '-' || ? || ' hours')
        ORDER BY timestamp DESC
        LIMIT 10000
    `

	rows, err := db.Query(query, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Sample
	for rows.Next() {
		var s models.Sample
		var rtt sql.NullFloat64
		var failure, errMsg sql.NullString
		if err := rows.Scan(&s.Timestamp, &s.TargetID, &s.Success, &rtt, &failure, &errMsg); err != nil {
			return nil, err
		}
		s.RTT = rtt.Float64
		s.Failure = models.FailureReason(failure.String)
		s.Error = errMsg.String
		results = append(results, s)
	}

	return results, rows.Err()
}

// GetStats retrieves per-target aggregates over the last hours
func (db *DB) GetStats(hours int) ([]models.HistoryStats, error) {
	query := `
        SELECT
            target,
            COUNT(*) as total_pings,
            SUM(CASE WHEN success THEN 1 ELSE 0 END) as successful_pings,
            AVG(CASE WHEN success THEN rtt_ms ELSE NULL END) as avg_rtt,
            MAX(CASE WHEN success THEN rtt_ms ELSE NULL END) as max_rtt,
            MIN(CASE WHEN success THEN rtt_ms ELSE NULL END) as min_rtt,
            AVG(jitter_ms) as avg_jitter,
            ROUND((1.0 - (CAST(SUM(CASE WHEN success THEN 1 ELSE 0 END) AS REAL) / COUNT(*))) * 100, 2) as packet_loss
        FROM ping_results
        WHERE timestamp > datetime('now', '-' || ? || ' hours')
        GROUP BY target
        ORDER BY target
    `

	rows, err := db.Query(query, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.HistoryStats
	for rows.Next() {
		var s models.HistoryStats
		var avg, max, min, jitter sql.NullFloat64
		if err := rows.Scan(&s.Target, &s.TotalPings, &s.Successful, &avg, &max, &min, &jitter, &s.PacketLoss); err != nil {
			return nil, err
		}
		s.AvgRTT, s.MaxRTT, s.MinRTT, s.AvgJitter = avg.Float64, max.Float64, min.Float64, jitter.Float64
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOutages returns journaled outages that started within the last days,
// newest first. Ongoing outages have no end time.
func (db *DB) GetOutages(days int) ([]models.Outage, error) {
	query := `
        SELECT target, start_time, end_time, checks_failed
        FROM outages
        WHERE start_time > datetime('now', '-' || ? || ' days')
        ORDER BY start_time DESC
        LIMIT 100
    `

	rows, err := db.Query(query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outages []models.Outage
	for rows.Next() {
		var o models.Outage
		var end sql.NullTime
		if err := rows.Scan(&o.Target, &o.StartTime, &end, &o.FailedChecks); err != nil {
			return nil, err
		}
		if end.Valid {
			o.EndTime = end.Time
			o.Duration = o.EndTime.Sub(o.StartTime).String()
		} else {
			o.Ongoing = true
			o.Duration = time.Since(o.StartTime).Truncate(time.Second).String()
		}
		outages = append(outages, o)
	}

	return outages, rows.Err()
}

// DetectOutages finds runs of at least minFailures consecutive failed samples
// in the raw history of the last hours, newest first
func (db *DB) DetectOutages(hours, minFailures int) ([]models.Outage, error) {
	query := `
        WITH grouped_failures AS (
            SELECT
                target,
                timestamp,
                success,
                ROW_NUMBER() OVER (PARTITION BY target ORDER BY timestamp) -
                ROW_NUMBER() OVER (PARTITION BY target, success ORDER BY timestamp) as grp
            FROM ping_results
            WHERE timestamp > datetime('now', '-' || ? || ' hours')
        )
        SELECT
            target,
            MIN(timestamp) as start_time,
            MAX(timestamp) as end_time,
            COUNT(*) as failed_checks
        FROM grouped_failures
        WHERE success = 0
        GROUP BY target, grp
        HAVING COUNT(*) >= ?
        ORDER BY start_time DESC
    `

	rows, err := db.Query(query, hours, minFailures)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outages []models.Outage
	for rows.Next() {
		var o models.Outage
		var start, end string
		if err := rows.Scan(&o.Target, &start, &end, &o.FailedChecks); err != nil {
			return nil, err
		}
		if o.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if o.EndTime, err = parseTime(end); err != nil {
			return nil, err
		}
		o.Duration = o.EndTime.Sub(o.StartTime).String()
		outages = append(outages, o)
	}

	return outages, rows.Err()
}

// GetHeatmapData retrieves hour-of-day aggregates over the last days
func (db *DB) GetHeatmapData(days int) ([]models.HeatmapPoint, error) {
	query := `
        SELECT
            hour,
            target,
            AVG(failure_rate) as avg_failure_rate,
            AVG(avg_rtt_ms) as avg_latency,
            MAX(max_rtt_ms) as max_latency,
            SUM(failed_pings) as total_failures,
            SUM(total_pings) as total_pings,
            COUNT(DISTINCT date) as days_with_data
        FROM hourly_patterns
        WHERE date > date('now', '-' || ? || ' days')
        GROUP BY hour, target
        ORDER BY hour, target
    `

	rows, err := db.Query(query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var heatmapData []models.HeatmapPoint
	for rows.Next() {
		var h models.HeatmapPoint
		var avgLatency, maxLatency sql.NullFloat64
		if err := rows.Scan(&h.Hour, &h.Target, &h.FailureRate, &avgLatency,
			&maxLatency, &h.TotalFailures, &h.TotalPings, &h.DaysWithData); err != nil {
			return nil, err
		}
		h.AvgLatency = avgLatency.Float64
		h.MaxLatency = maxLatency.Float64
		heatmapData = append(heatmapData, h)
	}

	return heatmapData, rows.Err()
}

// GetPatterns retrieves the daily breakdown of one hour of day (0-23)
func (db *DB) GetPatterns(hour int) ([]models.PatternDetail, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("hour %d out of range", hour)
	}
	query := `
        SELECT
            date,
            target,
            total_pings,
            failed_pings,
            avg_rtt_ms,
            max_rtt_ms,
            failure_rate
        FROM hourly_patterns
        WHERE hour = ?
        AND date > date('now', '-30 days')
        ORDER BY date DESC, target
    `

	rows, err := db.Query(query, hour)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []models.PatternDetail
	for rows.Next() {
		var p models.PatternDetail
		var date any
		var avgRTT, maxRTT sql.NullFloat64
		if err := rows.Scan(&date, &p.Target, &p.TotalPings, &p.FailedPings,
			&avgRTT, &maxRTT, &p.FailureRate); err != nil {
			return nil, err
		}
		switch d := date.(type) {
		case time.Time:
			p.Date = d.Format("2006-01-02")
		case string:
			p.Date = d
		}
		p.AvgRTT = avgRTT.Float64
		p.MaxRTT = maxRTT.Float64
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// GetHistory returns the stored samples of one target between start and end, oldest first
func (db *DB) GetHistory(targetID string, start, end time.Time) ([]models.HistoryPoint, error) {
	query := `
        SELECT timestamp, rtt_ms, jitter_ms, success
        FROM ping_results
        WHERE target = ? AND timestamp >= ? AND timestamp <= ?
        ORDER BY timestamp
    `

	rows, err := db.Query(query, targetID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.HistoryPoint
	for rows.Next() {
		var p models.HistoryPoint
		var rtt, jitter sql.NullFloat64
		var success bool
		if err := rows.Scan(&p.Timestamp, &rtt, &jitter, &success); err != nil {
			return nil, err
		}
		p.Latency = rtt.Float64
		p.Jitter = jitter.Float64
		p.Loss = !success
		points = append(points, p)
	}

	return points, rows.Err()
}

// GetHourlyAvailability returns the uptime percentage per target and hour
func (db *DB) GetHourlyAvailability(hours int) ([]models.AvailabilityPoint, error) {
	query := `
        SELECT
            strftime('%Y-%m-%d %H:00:00', timestamp) as hour,
            target,
            (CAST(SUM(CASE WHEN success THEN 1 ELSE 0 END) AS REAL) / COUNT(*)) * 100 as uptime_percent
        FROM ping_results
        WHERE timestamp > datetime('now', '-' || ? || ' hours')
        GROUP BY hour, target
        ORDER BY hour, target
    `

	rows, err := db.Query(query, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.AvailabilityPoint
	for rows.Next() {
		var p models.AvailabilityPoint
		var hour string
		if err := rows.Scan(&hour, &p.Target, &p.UptimePercent); err != nil {
			return nil, err
		}
		if p.Hour, err = parseTime(hour); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// HistoryTargets lists the targets with samples in the last hours
func (db *DB) HistoryTargets(hours int) ([]string, error) {
	rows, err := db.Query(`
        SELECT DISTINCT target FROM ping_results
        WHERE timestamp > datetime('now', '-' || ? || ' hours')
        ORDER BY target
    `, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
