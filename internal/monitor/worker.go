package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lagmon/internal/models"
)

// job is the scheduling state of one target: Idle -> Probing -> Idle until stopped
type job struct {
	target   models.Target
	interval time.Duration
	running  bool // timer goroutine started; guarded by Monitor.mu

	ctx    context.Context
	cancel context.CancelFunc

	inFlight *atomic.Bool // shared by every job of the same target id
	skipped  atomic.Uint64

	mu      sync.Mutex // held while a completed sample is applied
	stopped bool
}

func (m *Monitor) newJob(t models.Target) *job {
	interval := t.Interval
	if interval <= 0 {
		interval = m.opts.Interval
	}
	ctx, cancel := context.WithCancel(m.ctx)
	return &job{target: t, interval: interval, ctx: ctx, cancel: cancel, inFlight: m.flagLocked(t.ID)}
}

// flagLocked returns the in-flight flag of a target id. Flags outlive jobs: a
// target that is rescheduled while its old probe still runs keeps waiting on it.
func (m *Monitor) flagLocked(id string) *atomic.Bool {
	f, ok := m.inFlight[id]
	if !ok {
		f = new(atomic.Bool)
		m.inFlight[id] = f
	}
	return f
}

// stop cancels the timer. It waits for a sample being applied right now, so
// no stats or events for this job are produced after it returns.
func (j *job) stop() {
	j.cancel()
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
}

// reconcileLocked aligns running jobs with the active targets in the registry
func (m *Monitor) reconcileLocked() {
	want := make(map[string]models.Target)
	for _, t := range m.registry.Active() {
		want[t.ID] = t
	}

	for id, j := range m.jobs {
		t, ok := want[id]
		if !ok || t.Address != j.target.Address || t.Interval != j.target.Interval {
			j.stop()
			delete(m.jobs, id)
		}
	}

	for id, f := range m.inFlight {
		if _, scheduled := want[id]; !scheduled && !f.Load() {
			delete(m.inFlight, id)
		}
	}

	for id, t := range want {
		j, ok := m.jobs[id]
		if !ok {
			j = m.newJob(t)
			m.jobs[id] = j
		}
		if m.started && !j.running {
			j.running = true
			m.wg.Add(1)
			go m.pingWorker(j)
		}
	}
}

// scheduleLoop re-reads the registry on every interval
func (m *Monitor) scheduleLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.started {
				m.reconcileLocked()
			}
			m.mu.Unlock()
		}
	}
}

// pingWorker probes a target on its own ticker until the job is stopped
func (m *Monitor) pingWorker(j *job) {
	defer m.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Immediate first probe
	m.tick(j)

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			m.tick(j)
		}
	}
}

// tick starts a probe unless one is already in flight for this target
func (m *Monitor) tick(j *job) {
	if j.ctx.Err() != nil {
		return
	}
	if !j.inFlight.CompareAndSwap(false, true) {
		n := j.skipped.Add(1)
		m.log.Debug("probe for %s still in flight, skipped tick (%d skipped)", j.target.ID, n)
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer j.inFlight.Store(false)
		m.probe(m.ctx, j)
	}()
}

// probe runs one measurement and applies it. The job must already be
// marked in flight. It reports whether the sample was aggregated.
func (m *Monitor) probe(ctx context.Context, j *job) bool {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	if j.ctx.Err() != nil {
		m.sem.Release(1)
		return false
	}
	sample := m.opts.Prober.Probe(ctx, j.target.Address, m.opts.Timeout)
	m.sem.Release(1)

	if ctx.Err() != nil {
		return false
	}
	sample.TargetID = j.target.ID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	return m.complete(j, sample)
}

// complete feeds the sample to the aggregator unless the target was removed
// or deactivated while the probe was in flight
func (m *Monitor) complete(j *job, sample models.Sample) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped || !m.registry.IsActive(j.target.ID) {
		m.log.Debug("discarding sample for %s: target no longer scheduled", j.target.ID)
		return false
	}

	delta := m.agg.Record(sample)
	if m.opts.Sink != nil {
		m.opts.Sink.Add(sample, delta.Stats)
	}

	m.bus.Publish(models.StatsUpdated(sample.TargetID, delta.Stats))
	switch {
	case delta.WentDown:
		m.log.Warn("%s (%s) is down: %s", j.target.Name, j.target.Address, sample.Error)
		m.bus.Publish(models.TargetDown(sample.TargetID))
	case delta.WentUp:
		m.log.Info("%s (%s) is back up", j.target.Name, j.target.Address)
		m.bus.Publish(models.TargetUp(sample.TargetID))
	}
	return true
}

// RunOnce probes every active target once, concurrently, and waits for the
// results. Targets whose probe is already in flight are skipped. It returns
// the number of samples that were aggregated.
func (m *Monitor) RunOnce(ctx context.Context) int {
	m.mu.Lock()
	m.reconcileLocked()
	batch := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		batch = append(batch, j)
	}
	m.mu.Unlock()

	var applied atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range batch {
		if !j.inFlight.CompareAndSwap(false, true) {
			j.skipped.Add(1)
			continue
		}
		g.Go(func() error {
			defer j.inFlight.Store(false)
			if m.probe(gctx, j) {
				applied.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(applied.Load())
}
