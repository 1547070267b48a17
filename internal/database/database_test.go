package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagmon/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir() + "/lagmon.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ok(id string, at time.Time, rtt float64) models.Sample {
	return models.Sample{TargetID: id, Timestamp: at, Success: true, RTT: rtt}
}

func lost(id string, at time.Time) models.Sample {
	return models.Sample{TargetID: id, Timestamp: at, Failure: models.FailureTimeout, Error: "timeout"}
}

func store(t *testing.T, db *DB, samples ...models.Sample) {
	t.Helper()
	w := NewWriter(db, WriterOptions{FlushInterval: time.Hour})
	for _, s := range samples {
		w.Add(s, models.Stats{JitterMillis: 1.5})
	}
	require.NoError(t, w.Close())
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.InitSchema())
}

func TestWriterFlushesOnClose(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	store(t, db,
		ok("local", now.Add(-2*time.Second), 0.4),
		lost("gateway", now.Add(-time.Second)),
		ok("internet", now, 12.5),
	)

	recent, err := db.GetRecent(1)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	assert.Equal(t, "internet", recent[0].TargetID)
	assert.True(t, recent[0].Success)
	assert.Equal(t, 12.5, recent[0].RTT)

	assert.Equal(t, "gateway", recent[1].TargetID)
	assert.False(t, recent[1].Success)
	assert.Equal(t, models.FailureTimeout, recent[1].Failure)
	assert.Equal(t, "timeout", recent[1].Error)
	assert.Zero(t, recent[1].RTT)
}

func TestWriterFlushesFullBatch(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db, WriterOptions{BatchSize: 2, FlushInterval: time.Hour})
	defer w.Close()

	w.Add(ok("a", time.Now(), 1), models.Stats{})
	assert.Equal(t, 1, w.Pending())
	w.Add(ok("a", time.Now(), 2), models.Stats{})

	require.Eventually(t, func() bool {
		return countRows(t, db, "ping_results") == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, w.Pending())
}

func TestWriterIgnoresSamplesAfterClose(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db, WriterOptions{})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	w.Add(ok("a", time.Now(), 1), models.Stats{})
	assert.Zero(t, w.Pending())
}

func TestGetHistory(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Minute)
	store(t, db,
		ok("internet", base, 10),
		lost("internet", base.Add(10*time.Second)),
		ok("internet", base.Add(20*time.Second), 30),
		ok("local", base.Add(20*time.Second), 1),
	)

	points, err := db.GetHistory("internet", base.Add(-time.Second), base.Add(15*time.Second))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 10.0, points[0].Latency)
	assert.Equal(t, 1.5, points[0].Jitter)
	assert.False(t, points[0].Loss)
	assert.True(t, points[1].Loss)

	all, err := db.GetHistory("internet", base.Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	store(t, db,
		ok("internet", now.Add(-3*time.Second), 10),
		ok("internet", now.Add(-2*time.Second), 30),
		lost("internet", now.Add(-time.Second)),
		lost("internet", now),
	)

	stats, err := db.GetStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, "internet", s.Target)
	assert.Equal(t, 4, s.TotalPings)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 20.0, s.AvgRTT)
	assert.Equal(t, 30.0, s.MaxRTT)
	assert.Equal(t, 10.0, s.MinRTT)
	assert.Equal(t, 50.0, s.PacketLoss)
}

func TestDetectOutages(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Minute)
	store(t, db,
		ok("gateway", base, 1),
		lost("gateway", base.Add(1*time.Second)),
		lost("gateway", base.Add(2*time.Second)),
		lost("gateway", base.Add(3*time.Second)),
		ok("gateway", base.Add(4*time.Second), 1),
		lost("gateway", base.Add(5*time.Second)),
	)

	outages, err := db.DetectOutages(1, 3)
	require.NoError(t, err)
	require.Len(t, outages, 1)
	assert.Equal(t, "gateway", outages[0].Target)
	assert.Equal(t, 3, outages[0].FailedChecks)
	assert.Equal(t, 2*time.Second, outages[0].EndTime.Sub(outages[0].StartTime).Round(time.Second))
}

func TestHourlyAggregates(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	store(t, db,
		ok("internet", now, 10),
		lost("internet", now),
	)
	require.NoError(t, db.AggregateHourlyPatterns())
	require.NoError(t, db.AggregateHourlyPatterns())

	heatmap, err := db.GetHeatmapData(7)
	require.NoError(t, err)
	require.Len(t, heatmap, 1)
	assert.Equal(t, 2, heatmap[0].TotalPings)
	assert.Equal(t, 1, heatmap[0].TotalFailures)
	assert.Equal(t, 50.0, heatmap[0].FailureRate)

	patterns, err := db.GetPatterns(heatmap[0].Hour)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, now.UTC().Format("2006-01-02"), patterns[0].Date)

	_, err = db.GetPatterns(24)
	assert.Error(t, err)

	avail, err := db.GetHourlyAvailability(1)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, 50.0, avail[0].UptimePercent)

	targets, err := db.HistoryTargets(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"internet"}, targets)
}

func TestArchiveOldData(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	store(t, db,
		ok("internet", now.Add(-10*24*time.Hour), 10),
		ok("internet", now, 12),
	)

	require.NoError(t, db.ArchiveOldData(7))
	assert.Equal(t, 1, countRows(t, db, "ping_results"))
	assert.Equal(t, 1, countRows(t, db, "hourly_stats"))

	assert.Error(t, db.ArchiveOldData(0))
}

func TestJournalRecordsOutage(t *testing.T) {
	db := openTestDB(t)
	j, err := NewJournal(db, nil)
	require.NoError(t, err)

	start := time.Now().Add(-time.Minute)
	down := models.TargetDown("gateway")
	down.Time = start
	require.NoError(t, j.HandleEvent(down))
	require.NoError(t, j.HandleEvent(down), "a second down event does not open another outage")

	lossy := models.StatsUpdated("gateway", models.Stats{LossDetected: true})
	require.NoError(t, j.HandleEvent(lossy))
	require.NoError(t, j.HandleEvent(lossy))
	assert.Equal(t, []string{"gateway"}, j.Open())

	up := models.TargetUp("gateway")
	up.Time = start.Add(30 * time.Second)
	require.NoError(t, j.HandleEvent(up))
	assert.Empty(t, j.Open())

	outages, err := db.GetOutages(1)
	require.NoError(t, err)
	require.Len(t, outages, 1)
	o := outages[0]
	assert.Equal(t, "gateway", o.Target)
	assert.Equal(t, 3, o.FailedChecks)
	assert.False(t, o.Ongoing)
	assert.Equal(t, 30*time.Second, o.EndTime.Sub(o.StartTime).Round(time.Second))

	var secs int
	require.NoError(t, db.QueryRow("SELECT duration_seconds FROM outages").Scan(&secs))
	assert.Equal(t, 30, secs)
}

func TestJournalClosesOnRemovalAndRestart(t *testing.T) {
	db := openTestDB(t)
	j, err := NewJournal(db, nil)
	require.NoError(t, err)

	require.NoError(t, j.HandleEvent(models.TargetDown("a")))
	require.NoError(t, j.HandleEvent(models.TargetDown("b")))
	require.NoError(t, j.HandleEvent(models.TargetRemoved("a")))

	outages, err := db.GetOutages(1)
	require.NoError(t, err)
	require.Len(t, outages, 2)
	ongoing := map[string]bool{}
	for _, o := range outages {
		ongoing[o.Target] = o.Ongoing
	}
	assert.Equal(t, map[string]bool{"a": false, "b": true}, ongoing)

	_, err = NewJournal(db, nil)
	require.NoError(t, err)
	outages, err = db.GetOutages(1)
	require.NoError(t, err)
	for _, o := range outages {
		assert.False(t, o.Ongoing, "restart leaves %s open", o.Target)
	}
}
