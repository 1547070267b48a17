// Package monitor runs the host-monitoring engine: it owns the target
// registry, schedules probes per target, aggregates samples into rolling
// stats and publishes every change on the event bus.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"lagmon/internal/events"
	"lagmon/internal/logger"
	"lagmon/internal/models"
	"lagmon/internal/registry"
	"lagmon/internal/stats"
)

const (
	DefaultInterval      = time.Second
	DefaultTimeout       = 900 * time.Millisecond
	DefaultMaxConcurrent = 32
)

// Options configures a Monitor. Prober is required.
type Options struct {
	Interval           time.Duration
	Timeout            time.Duration
	Window             int
	LossRatioThreshold float64
	MaxConcurrent      int
	EventBuffer        int

	RetentionDays       int
	MaintenanceInterval time.Duration

	Prober     models.Prober
	Sink       models.SampleSink
	Maintainer Maintainer
	Persister  models.TargetPersister
	Logger     logger.Logger
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.MaintenanceInterval <= 0 {
		o.MaintenanceInterval = time.Hour
	}
	if o.Logger == nil {
		o.Logger = logger.Noop()
	}
}

// Monitor coordinates registry, scheduler, aggregator and notifier
type Monitor struct {
	opts     Options
	log      logger.Logger
	bus      *events.Bus
	registry *registry.Registry
	agg      *stats.Aggregator
	sem      *semaphore.Weighted

	mu       sync.Mutex // guards jobs, inFlight, started and persistence
	jobs     map[string]*job
	inFlight map[string]*atomic.Bool
	started  bool

	retention atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Monitor
func New(opts Options) (*Monitor, error) {
	if opts.Prober == nil {
		return nil, errors.New("monitor: prober is required")
	}
	opts.applyDefaults()

	bus := events.NewBus(logger.New("[bus]"), opts.EventBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		opts:     opts,
		log:      opts.Logger,
		bus:      bus,
		registry: registry.New(bus),
		agg:      stats.New(stats.Config{Window: opts.Window, LossRatioThreshold: opts.LossRatioThreshold}),
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		jobs:     make(map[string]*job),
		inFlight: make(map[string]*atomic.Bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.retention.Store(int64(opts.RetentionDays))
	return m, nil
}

// Load adds the initial targets. Any invalid target aborts the load.
func (m *Monitor) Load(specs []models.TargetSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, spec := range specs {
		if _, err := m.registry.Add(spec); err != nil {
			return err
		}
	}
	m.reconcileLocked()
	return nil
}

// Start begins the monitoring process
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor: already started")
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return errors.New("monitor: stopped")
	}
	m.started = true
	m.reconcileLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.scheduleLoop()

	if m.opts.Maintainer != nil {
		m.wg.Add(1)
		go m.maintenanceWorker()
	}

	m.log.Info("Monitor started. Probing %d targets every %v", len(m.registry.Active()), m.opts.Interval)
	return nil
}

// Stop cancels every timer and in-flight probe
func (m *Monitor) Stop() {
	m.log.Info("Stopping monitor...")
	m.mu.Lock()
	for id, j := range m.jobs {
		j.stop()
		delete(m.jobs, id)
	}
	m.started = false
	m.mu.Unlock()
	m.cancel()
}

// Wait blocks until all goroutines finish, then drains subscribers
func (m *Monitor) Wait() {
	m.wg.Wait()
	m.bus.Close()
	m.log.Info("Monitor stopped")
}

// Subscribe registers an event handler on the monitor's bus
func (m *Monitor) Subscribe(name string, h events.Handler) *events.Subscription {
	return m.bus.Subscribe(name, h)
}

// AddTarget registers a target and schedules it when active
func (m *Monitor) AddTarget(spec models.TargetSpec) (models.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.registry.Add(spec)
	if err != nil {
		return models.Target{}, err
	}
	m.reconcileLocked()
	m.persistLocked()
	return t, nil
}

// RemoveTarget stops probing a target and discards its stats. Unknown ids are a no-op.
func (m *Monitor) RemoveTarget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removeLocked(id) {
		m.persistLocked()
	}
}

func (m *Monitor) removeLocked(id string) bool {
	if j, ok := m.jobs[id]; ok {
		j.stop()
		delete(m.jobs, id)
	}
	removed := m.registry.Remove(id)
	m.agg.Remove(id)
	return removed
}

// SetActive pauses or resumes probing. Reactivation starts a fresh stats series.
func (m *Monitor) SetActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !active {
		if j, ok := m.jobs[id]; ok {
			j.stop()
			delete(m.jobs, id)
		}
	}
	changed, err := m.registry.SetActive(id, active)
	if err == nil && changed && active {
		m.agg.Reset(id)
	}
	if err != nil {
		return err
	}
	m.reconcileLocked()
	if changed {
		m.persistLocked()
	}
	return nil
}

// SetTopology points a topology role at address, replacing the target that
// held the role. An empty address clears the role. It reports whether the
// target list changed.
func (m *Monitor) SetTopology(role models.Role, address string) (bool, error) {
	if !role.IsTopology() {
		return false, fmt.Errorf("%w: %q is not a topology role", models.ErrInvalidSetting, role)
	}
	var err error
	if address != "" {
		if address, err = models.NormalizeAddress(address); err != nil {
			return false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var holder *models.Target
	for _, t := range m.registry.List() {
		if t.Role == role {
			holder = &t
			break
		}
	}
	if holder != nil && holder.Address == address {
		return false, nil
	}
	if holder == nil && address == "" {
		return false, nil
	}

	if holder != nil {
		m.removeLocked(holder.ID)
	}
	if address != "" {
		id := string(role)
		if _, taken := m.registry.Get(id); taken {
			id = ""
		}
		spec := models.TargetSpec{ID: id, Address: address, Name: role.Title(), Role: role}
		_, err = m.registry.Add(spec)
	}
	m.reconcileLocked()
	m.persistLocked()
	return true, err
}

// RetentionDays returns how many days of raw samples maintenance keeps
func (m *Monitor) RetentionDays() int {
	return int(m.retention.Load())
}

// SetRetentionDays changes the retention used by the next maintenance run.
// Zero disables archiving.
func (m *Monitor) SetRetentionDays(days int) error {
	if days < 0 {
		return fmt.Errorf("%w: retention days cannot be negative", models.ErrInvalidSetting)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if int(m.retention.Swap(int64(days))) == days {
		return nil
	}
	if p, ok := m.opts.Persister.(models.SettingsPersister); ok {
		if err := p.SaveRetentionDays(days); err != nil {
			m.log.Error("Failed to persist retention: %v", err)
		}
	}
	return nil
}

// Targets returns the registered targets in insertion order
func (m *Monitor) Targets() []models.Target {
	return m.registry.List()
}

// Target returns one target
func (m *Monitor) Target(id string) (models.Target, bool) {
	return m.registry.Get(id)
}

// Stats returns the current stats for a target
func (m *Monitor) Stats(id string) (models.Stats, error) {
	if _, ok := m.registry.Get(id); !ok {
		return models.Stats{}, models.ErrNotFound
	}
	return m.agg.Get(id), nil
}

// States returns every target with its current stats
func (m *Monitor) States() []models.TargetState {
	targets := m.registry.List()
	snap := m.agg.Snapshot()
	out := make([]models.TargetState, len(targets))
	for i, t := range targets {
		out[i] = models.TargetState{Target: t, Stats: snap[t.ID]}
	}
	return out
}

// persistLocked saves the target list. Holding mu keeps saves in mutation order.
func (m *Monitor) persistLocked() {
	if m.opts.Persister == nil {
		return
	}
	if err := m.opts.Persister.SaveTargets(m.registry.List()); err != nil {
		m.log.Error("Failed to persist targets: %v", err)
	}
}
