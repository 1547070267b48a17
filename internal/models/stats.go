package models

import "time"

// Stats is the rolling summary for one target, derived from its sample window
type Stats struct {
	LatencyMillis float64   `json:"latencyMillis"`
	JitterMillis  float64   `json:"jitterMillis"`
	LossDetected  bool      `json:"lossDetected"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Samples       int       `json:"samples"`  // samples currently in the window
	LossRatio     float64   `json:"lossRatio"` // failed / total in the window
}

// Known reports whether any sample has been recorded since the last reset
func (s Stats) Known() bool {
	return s.Samples > 0
}

// StatsDelta is returned by the aggregator after recording a sample
type StatsDelta struct {
	TargetID string
	Stats    Stats
	Previous Stats
	WentDown bool
	WentUp   bool
}

// HistoryStats represents aggregated statistics for a target over a stored period
type HistoryStats struct {
	Target     string  `json:"target"`
	TotalPings int     `json:"total_pings"`
	Successful int     `json:"successful_pings"`
	AvgRTT     float64 `json:"avg_rtt"`
	MaxRTT     float64 `json:"max_rtt"`
	MinRTT     float64 `json:"min_rtt"`
	AvgJitter  float64 `json:"avg_jitter"`
	PacketLoss float64 `json:"packet_loss"`
}

// Outage represents a connectivity outage period
type Outage struct {
	Target       string    `json:"target"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	FailedChecks int       `json:"failed_checks"`
	Duration     string    `json:"duration"`
	Ongoing      bool      `json:"ongoing"`
}

// AvailabilityPoint is the share of successful probes for one target in one hour
type AvailabilityPoint struct {
	Hour          time.Time `json:"hour"`
	Target        string    `json:"target"`
	UptimePercent float64   `json:"uptime_percent"`
}

// HeatmapPoint represents a data point for the heatmap visualization
type HeatmapPoint struct {
	Hour          int     `json:"hour"`
	Target        string  `json:"target"`
	FailureRate   float64 `json:"failure_rate"`
	AvgLatency    float64 `json:"avg_latency"`
	MaxLatency    float64 `json:"max_latency"`
	TotalFailures int     `json:"total_failures"`
	TotalPings    int     `json:"total_pings"`
	DaysWithData  int     `json:"days_with_data"`
}

// PatternDetail represents detailed pattern data for a specific hour
type PatternDetail struct {
	Date        string  `json:"date"`
	Target      string  `json:"target"`
	TotalPings  int     `json:"total_pings"`
	FailedPings int     `json:"failed_pings"`
	AvgRTT      float64 `json:"avg_rtt"`
	MaxRTT      float64 `json:"max_rtt"`
	FailureRate float64 `json:"failure_rate"`
}

// HistoryPoint is one stored sample with the jitter observed at that moment
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latency   float64   `json:"latency_ms"`
	Jitter    float64   `json:"jitter_ms"`
	Loss      bool      `json:"loss"`
}

// TargetState pairs a target with its current rolling stats
type TargetState struct {
	Target
	Stats Stats `json:"stats"`
}
