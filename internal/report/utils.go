package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lagmon/internal/models"
)

// sanitizeFilename replaces dots and special characters for safe filenames
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		".", "_",
		":", "_",
		"/", "_",
		"\\", "_",
		" ", "_",
	)
	return replacer.Replace(s)
}

// writeCSV dumps the raw samples of one target, semicolon separated
func writeCSV(dir, id string, points []models.HistoryPoint) error {
	file, err := os.Create(filepath.Join(dir, fmt.Sprintf("samples_%s.csv", sanitizeFilename(id))))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = ';'
	w.Write([]string{"timestamp", "latency_ms", "jitter_ms", "loss"})
	for _, p := range points {
		w.Write([]string{
			p.Timestamp.Local().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(p.Latency, 'f', 3, 64),
			strconv.FormatFloat(p.Jitter, 'f', 3, 64),
			strconv.FormatBool(p.Loss),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
