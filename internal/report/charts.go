package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"lagmon/internal/models"
)

// minOutageChecks is the number of consecutive failures counted as an outage
const minOutageChecks = 3

var (
	chartPadding = chart.Style{
		Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
	}
	axisStyle = chart.Style{
		StrokeColor: drawing.ColorBlack,
		FontSize:    10,
	}
	gridStyle = chart.Style{
		StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
		StrokeWidth: 1.0,
	}
)

func (g *Generator) generateLatencyChart(outputDir string, p period, id string, points []models.HistoryPoint) error {
	var timestamps []time.Time
	var latency, jitter []float64
	for _, pt := range points {
		if pt.Loss {
			continue
		}
		timestamps = append(timestamps, pt.Timestamp)
		latency = append(latency, pt.Latency)
		jitter = append(jitter, pt.Jitter)
	}
	if len(timestamps) < 2 {
		return fmt.Errorf("not enough successful samples (%d)", len(timestamps))
	}

	graph := chart.Chart{
		Title:      fmt.Sprintf("Network Latency - %s", p.name(id)),
		TitleStyle: chart.Style{FontSize: 16},
		Background: chartPadding,
		Width:      1200,
		Height:     400,
		XAxis: chart.XAxis{
			Name:           "Time",
			NameStyle:      chart.Style{FontSize: 12},
			Style:          axisStyle,
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Latency (ms)",
			NameStyle:      chart.Style{FontSize: 12},
			Style:          axisStyle,
			GridMajorStyle: gridStyle,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Latency",
				Style: chart.Style{
					StrokeColor: chart.GetDefaultColor(0),
					StrokeWidth: 2,
				},
				XValues: timestamps,
				YValues: latency,
			},
			chart.TimeSeries{
				Name: "Jitter",
				Style: chart.Style{
					StrokeColor: chart.GetDefaultColor(2),
					StrokeWidth: 1,
				},
				XValues: timestamps,
				YValues: jitter,
			},
		},
	}

	// Add moving average
	if len(latency) > 10 {
		ts := graph.Series[0].(chart.TimeSeries)
		graph.Series = append(graph.Series, chart.SMASeries{
			Name: "Moving Avg",
			Style: chart.Style{
				StrokeColor:     chart.GetDefaultColor(1),
				StrokeWidth:     2,
				StrokeDashArray: []float64{5, 5},
			},
			InnerSeries: ts,
			Period:      10,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	filename := filepath.Join(outputDir, fmt.Sprintf("latency_%s.png", sanitizeFilename(id)))
	return writePNG(filename, graph.Render)
}

func (g *Generator) generateAvailabilityChart(outputDir string, p period) error {
	points, err := g.src.GetHourlyAvailability(p.hours)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(p.targets))
	for _, id := range p.targets {
		wanted[id] = true
	}

	type series struct {
		timestamps []time.Time
		values     []float64
	}
	byTarget := make(map[string]*series)
	for _, pt := range points {
		if !wanted[pt.Target] {
			continue
		}
		s, ok := byTarget[pt.Target]
		if !ok {
			s = &series{}
			byTarget[pt.Target] = s
		}
		s.timestamps = append(s.timestamps, pt.Hour)
		s.values = append(s.values, pt.UptimePercent)
	}

	// Combined availability chart, one line per target in report order
	var allSeries []chart.Series
	for i, id := range p.targets {
		s, ok := byTarget[id]
		if !ok || len(s.timestamps) < 2 {
			continue
		}
		allSeries = append(allSeries, chart.TimeSeries{
			Name: p.name(id),
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
			XValues: s.timestamps,
			YValues: s.values,
		})
	}
	if len(allSeries) == 0 {
		return fmt.Errorf("less than two hours of data")
	}

	graph := chart.Chart{
		Title:      "Network Availability (Hourly)",
		TitleStyle: chart.Style{FontSize: 16},
		Background: chartPadding,
		Width:      1200,
		Height:     400,
		XAxis: chart.XAxis{
			Name:           "Time",
			Style:          axisStyle,
			ValueFormatter: chart.TimeHourValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Uptime %",
			Style:          axisStyle,
			Range:          &chart.ContinuousRange{Min: 0, Max: 100},
			GridMajorStyle: gridStyle,
		},
		Series: allSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return writePNG(filepath.Join(outputDir, "availability.png"), graph.Render)
}

func (g *Generator) generateOutageSummary(outputDir string, p period) error {
	outages, err := g.src.DetectOutages(p.hours, minOutageChecks)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(p.targets))
	for _, id := range p.targets {
		wanted[id] = true
	}

	// Outage count by the hour they started
	hourlyOutages := make(map[string]int)
	for _, o := range outages {
		if wanted[o.Target] {
			hourlyOutages[o.StartTime.Local().Format("2006-01-02 15:00")]++
		}
	}
	if len(hourlyOutages) == 0 {
		return nil
	}

	hours := make([]string, 0, len(hourlyOutages))
	for h := range hourlyOutages {
		hours = append(hours, h)
	}
	sort.Strings(hours)

	values := make([]chart.Value, 0, len(hours))
	for _, h := range hours {
		values = append(values, chart.Value{Label: h, Value: float64(hourlyOutages[h])})
	}
	// a bar chart needs a non-zero range
	if len(values) == 1 {
		values = append(values, chart.Value{Label: "", Value: 0})
	}

	graph := chart.BarChart{
		Title:      "Outage Events by Hour",
		TitleStyle: chart.Style{FontSize: 16},
		Background: chartPadding,
		Width:      1200,
		Height:     400,
		Bars:       values,
		BarWidth:   40,
	}

	return writePNG(filepath.Join(outputDir, "outage_frequency.png"), graph.Render)
}

// writePNG renders a chart into path
func writePNG(path string, render func(chart.RendererProvider, io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(chart.PNG, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}
