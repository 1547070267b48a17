// Package report renders stored history into files that can be handed to an
// ISP: charts, a plain-language summary and the raw samples as CSV.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lagmon/internal/logger"
	"lagmon/internal/models"
)

// ErrNoData is returned when the requested period holds no samples
var ErrNoData = errors.New("no samples in the requested period")

// Source is the history the generator reads
type Source interface {
	HistoryTargets(hours int) ([]string, error)
	GetHistory(targetID string, start, end time.Time) ([]models.HistoryPoint, error)
	GetHourlyAvailability(hours int) ([]models.AvailabilityPoint, error)
	DetectOutages(hours, minFailures int) ([]models.Outage, error)
}

// Options selects what goes into a report
type Options struct {
	OutputDir string
	Hours     int
	// TargetIDs limits the report; empty means every target with samples
	TargetIDs []string
	// Names maps target ids to display names
	Names map[string]string
}

// Generator creates static images and reports for ISP evidence
type Generator struct {
	src Source
	log logger.Logger
	now func() time.Time
}

// NewGenerator creates a new report generator
func NewGenerator(src Source, log logger.Logger) *Generator {
	if log == nil {
		log = logger.Noop()
	}
	return &Generator{src: src, log: log, now: time.Now}
}

// period is the window a report covers
type period struct {
	hours      int
	start, end time.Time
	targets    []string
	names      map[string]string
}

func (p period) name(id string) string {
	if n, ok := p.names[id]; ok && n != "" && n != id {
		return fmt.Sprintf("%s (%s)", n, id)
	}
	return id
}

// GenerateReport writes a report into a new timestamped directory under
// opts.OutputDir and returns that directory. A failed chart is logged and
// skipped; the summary and CSV files are required.
func (g *Generator) GenerateReport(opts Options) (string, error) {
	if opts.Hours <= 0 {
		return "", fmt.Errorf("hours must be positive")
	}

	targets := opts.TargetIDs
	if len(targets) == 0 {
		var err error
		if targets, err = g.src.HistoryTargets(opts.Hours); err != nil {
			return "", fmt.Errorf("list targets: %w", err)
		}
	}
	if len(targets) == 0 {
		return "", ErrNoData
	}

	end := g.now()
	p := period{
		hours:   opts.Hours,
		start:   end.Add(-time.Duration(opts.Hours) * time.Hour),
		end:     end,
		targets: targets,
		names:   opts.Names,
	}

	history := make(map[string][]models.HistoryPoint, len(targets))
	total := 0
	for _, id := range targets {
		points, err := g.src.GetHistory(id, p.start, p.end)
		if err != nil {
			return "", fmt.Errorf("history for %s: %w", id, err)
		}
		history[id] = points
		total += len(points)
	}
	if total == 0 {
		return "", ErrNoData
	}

	reportDir := filepath.Join(opts.OutputDir, fmt.Sprintf("network_report_%s", end.Format("2006-01-02_15-04-05")))
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	for _, id := range targets {
		if err := g.generateLatencyChart(reportDir, p, id, history[id]); err != nil {
			g.log.Warn("Failed to generate latency chart for %s: %v", id, err)
		}
	}
	if err := g.generateAvailabilityChart(reportDir, p); err != nil {
		g.log.Warn("Failed to generate availability chart: %v", err)
	}
	if err := g.generateOutageSummary(reportDir, p); err != nil {
		g.log.Warn("Failed to generate outage summary: %v", err)
	}

	if err := g.generateTextReport(reportDir, p, history); err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	for _, id := range targets {
		if err := writeCSV(reportDir, id, history[id]); err != nil {
			return "", fmt.Errorf("raw data for %s: %w", id, err)
		}
	}

	g.log.Info("Report generated in: %s", reportDir)
	return reportDir, nil
}
