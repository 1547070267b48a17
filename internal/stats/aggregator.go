// Package stats maintains rolling latency, jitter and loss statistics per target.
package stats

import (
	"sync"

	"lagmon/internal/models"
)

const (
	// DefaultWindow is the number of samples kept per target
	DefaultWindow = 20
)

// Config controls the rolling window
type Config struct {
	Window int
	// LossRatioThreshold flags loss when the failed share of the window
	// exceeds it. Zero disables the ratio check.
	LossRatioThreshold float64
}

// Aggregator owns the Stats of every target. Each target's series has its own
// lock; the map lock is only held for lookups and inserts.
type Aggregator struct {
	cfg Config

	mu     sync.RWMutex
	series map[string]*series
}

type series struct {
	mu    sync.Mutex
	w     *window
	stats models.Stats
	down  bool
}

// New creates an Aggregator
func New(cfg Config) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.LossRatioThreshold < 0 {
		cfg.LossRatioThreshold = 0
	}
	return &Aggregator{cfg: cfg, series: make(map[string]*series)}
}

func (a *Aggregator) get(id string) *series {
	a.mu.RLock()
	s, ok := a.series[id]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok = a.series[id]; !ok {
		s = &series{w: newWindow(a.cfg.Window)}
		a.series[id] = s
	}
	return s
}

// Record folds a sample into its target's window and returns the new stats
func (a *Aggregator) Record(sample models.Sample) models.StatsDelta {
	s := a.get(sample.TargetID)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.stats
	s.w.push(entry{ok: sample.Success, rtt: sample.RTT})

	latest, _ := s.w.latest()
	ratio := s.w.lossRatio()
	loss := !latest.ok || s.w.okCount == 0 ||
		(a.cfg.LossRatioThreshold > 0 && ratio > a.cfg.LossRatioThreshold)

	s.stats = models.Stats{
		LatencyMillis: s.w.latency(),
		JitterMillis:  s.w.jitter(),
		LossDetected:  loss,
		LastUpdated:   sample.Timestamp,
		Samples:       s.w.count,
		LossRatio:     ratio,
	}

	delta := models.StatsDelta{TargetID: sample.TargetID, Stats: s.stats, Previous: prev}
	switch {
	case loss && !s.down:
		delta.WentDown = true
	case !loss && s.down:
		delta.WentUp = true
	}
	s.down = loss
	return delta
}

// Reset discards a target's window so the next sample starts a fresh series
func (a *Aggregator) Reset(id string) {
	a.mu.Lock()
	delete(a.series, id)
	a.mu.Unlock()
}

// Remove discards a target's stats
func (a *Aggregator) Remove(id string) {
	a.Reset(id)
}

// Get returns the current stats for a target. Unknown targets yield zero Stats.
func (a *Aggregator) Get(id string) models.Stats {
	a.mu.RLock()
	s, ok := a.series[id]
	a.mu.RUnlock()
	if !ok {
		return models.Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Snapshot returns the stats of every target with a series
func (a *Aggregator) Snapshot() map[string]models.Stats {
	a.mu.RLock()
	ids := make([]string, 0, len(a.series))
	list := make([]*series, 0, len(a.series))
	for id, s := range a.series {
		ids = append(ids, id)
		list = append(list, s)
	}
	a.mu.RUnlock()

	out := make(map[string]models.Stats, len(ids))
	for i, s := range list {
		s.mu.Lock()
		out[ids[i]] = s.stats
		s.mu.Unlock()
	}
	return out
}

// Window returns the RTTs currently held for a target, oldest first. Failed
// samples are reported as -1.
func (a *Aggregator) Window(id string) []float64 {
	a.mu.RLock()
	s, ok := a.series[id]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.w.values()
	out := make([]float64, len(entries))
	for i, e := range entries {
		if e.ok {
			out[i] = e.rtt
		} else {
			out[i] = -1
		}
	}
	return out
}
