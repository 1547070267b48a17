package models

import (
	"context"
	"time"
)

// Prober executes one reachability measurement. Failures are reported as
// loss samples, never as errors.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) Sample
}

// Publisher accepts change notifications
type Publisher interface {
	Publish(e Event)
}

// SampleSink receives every sample that was aggregated, together with the
// stats it produced
type SampleSink interface {
	Add(s Sample, st Stats)
}

// Database interface defines operations for data persistence
type Database interface {
	GetRecent(hours int) ([]Sample, error)
	GetStats(hours int) ([]HistoryStats, error)
	GetOutages(days int) ([]Outage, error)
	GetHeatmapData(days int) ([]HeatmapPoint, error)
	GetPatterns(hour int) ([]PatternDetail, error)
	GetHistory(targetID string, start, end time.Time) ([]HistoryPoint, error)
}

// TargetPersister stores the target list when it changes at runtime
type TargetPersister interface {
	SaveTargets(targets []Target) error
}

// SettingsPersister is implemented by persisters that also store runtime settings
type SettingsPersister interface {
	SaveRetentionDays(days int) error
}
