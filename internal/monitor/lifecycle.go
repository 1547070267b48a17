package monitor

import (
	"time"
)

// Maintainer performs periodic housekeeping on stored history
type Maintainer interface {
	AggregateHourlyPatterns() error
	ArchiveOldData(retentionDays int) error
}

// maintenanceWorker runs periodic maintenance tasks
func (m *Monitor) maintenanceWorker() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.MaintenanceInterval)
	defer ticker.Stop()

	// Run immediately on start
	m.performMaintenance()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.performMaintenance()
		}
	}
}

// performMaintenance runs maintenance tasks
func (m *Monitor) performMaintenance() {
	m.log.Debug("Running maintenance tasks...")

	// Aggregate hourly patterns for heatmap
	if err := m.opts.Maintainer.AggregateHourlyPatterns(); err != nil {
		m.log.Error("Failed to aggregate hourly patterns: %v", err)
	}

	if days := m.RetentionDays(); days > 0 {
		if err := m.opts.Maintainer.ArchiveOldData(days); err != nil {
			m.log.Error("Failed to archive old data: %v", err)
		}
	}

	m.log.Debug("Maintenance complete")
}
