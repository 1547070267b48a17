package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"lagmon/internal/models"
)

// Connection quality, from the average latency and loss of a period
const (
	StatusExcellent = "EXCELLENT"
	StatusUnstable  = "UNSTABLE"
	StatusCritical  = "CRITICAL"
)

// Classify rates a connection. Latency is in ms, loss in percent.
func Classify(avgLatency, lossPercent float64) string {
	switch {
	case avgLatency > 200 || lossPercent > 5:
		return StatusCritical
	case avgLatency > 100 || lossPercent > 2:
		return StatusUnstable
	default:
		return StatusExcellent
	}
}

// summary is the per-target figures of a period
type summary struct {
	total, lost     int
	avg, min, max   float64
	avgJitter, loss float64
}

func summarize(points []models.HistoryPoint) summary {
	var s summary
	var latSum, jitSum float64
	ok := 0
	for _, p := range points {
		s.total++
		if p.Loss {
			s.lost++
			continue
		}
		if ok == 0 || p.Latency < s.min {
			s.min = p.Latency
		}
		if p.Latency > s.max {
			s.max = p.Latency
		}
		latSum += p.Latency
		jitSum += p.Jitter
		ok++
	}
	if ok > 0 {
		s.avg = latSum / float64(ok)
		s.avgJitter = jitSum / float64(ok)
	}
	if s.total > 0 {
		s.loss = float64(s.lost) / float64(s.total) * 100
	}
	return s
}

func (g *Generator) generateTextReport(outputDir string, p period, history map[string][]models.HistoryPoint) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Network Connectivity Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", p.end.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Period: %s to %s (last %d hours)\n\n", p.start.Format("2006-01-02 15:04"), p.end.Format("2006-01-02 15:04"), p.hours)
	fmt.Fprintln(&b, strings.Repeat("=", 60))

	fmt.Fprintln(&b, "\nOVERALL STATISTICS")
	for _, id := range p.targets {
		s := summarize(history[id])
		fmt.Fprintf(&b, "Target: %s\n", p.name(id))
		if s.total == 0 {
			fmt.Fprintf(&b, "  No samples in this period\n\n")
			continue
		}
		fmt.Fprintf(&b, "  Status: %s\n", Classify(s.avg, s.loss))
		fmt.Fprintf(&b, "  Total Probes: %s\n", humanize.Comma(int64(s.total)))
		fmt.Fprintf(&b, "  Successful: %s (%.2f%%)\n", humanize.Comma(int64(s.total-s.lost)), 100-s.loss)
		fmt.Fprintf(&b, "  Packet Loss: %.2f%%\n", s.loss)
		if s.total > s.lost {
			fmt.Fprintf(&b, "  Average RTT: %.2f ms\n", s.avg)
			fmt.Fprintf(&b, "  Min RTT: %.2f ms\n", s.min)
			fmt.Fprintf(&b, "  Max RTT: %.2f ms\n", s.max)
			fmt.Fprintf(&b, "  Average Jitter: %.2f ms\n", s.avgJitter)
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintln(&b, strings.Repeat("=", 60))

	outages, err := g.src.DetectOutages(p.hours, minOutageChecks)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(p.targets))
	for _, id := range p.targets {
		wanted[id] = true
	}

	fmt.Fprintf(&b, "\nOUTAGE PERIODS (%d+ consecutive failures)\n", minOutageChecks)
	outageCount := 0
	for _, o := range outages {
		if !wanted[o.Target] {
			continue
		}
		outageCount++
		fmt.Fprintf(&b, "Outage #%d\n", outageCount)
		fmt.Fprintf(&b, "  Target: %s\n", p.name(o.Target))
		fmt.Fprintf(&b, "  Start: %s (%s)\n", o.StartTime.Local().Format("2006-01-02 15:04:05"), humanize.RelTime(o.StartTime, p.end, "ago", "from now"))
		fmt.Fprintf(&b, "  End: %s\n", o.EndTime.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "  Duration: %s\n", o.EndTime.Sub(o.StartTime))
		fmt.Fprintf(&b, "  Failed Checks: %d\n", o.FailedChecks)
		fmt.Fprintln(&b)
	}

	if outageCount == 0 {
		fmt.Fprintln(&b, "No significant outages detected.")
	} else {
		fmt.Fprintf(&b, "\nTotal Outages: %d\n", outageCount)
	}

	fmt.Fprintln(&b, strings.Repeat("=", 60))
	fmt.Fprintln(&b, "\nLatency above 100 ms or any packet loss can interrupt video calls and games.")
	fmt.Fprintln(&b, "Charts and raw samples are available in the accompanying files.")

	return os.WriteFile(filepath.Join(outputDir, "summary.txt"), []byte(b.String()), 0o644)
}
