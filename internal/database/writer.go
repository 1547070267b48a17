package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"lagmon/internal/logger"
	"lagmon/internal/models"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
)

// WriterOptions tunes the batching of a Writer
type WriterOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Logger        logger.Logger
}

type pendingRow struct {
	sample models.Sample
	jitter float64
}

// Writer buffers aggregated samples and stores them in batches, one
// transaction per flush. It implements models.SampleSink.
type Writer struct {
	db   *DB
	log  logger.Logger
	size int

	mu      sync.Mutex
	pending []pendingRow
	closed  bool

	flushMu sync.Mutex // serializes flushes
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWriter starts a batching writer on db
func NewWriter(db *DB, opts WriterOptions) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}

	w := &Writer{
		db:      db,
		log:     opts.Logger,
		size:    opts.BatchSize,
		pending: make([]pendingRow, 0, opts.BatchSize),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop(opts.FlushInterval)
	return w
}

// Add queues a sample. A full batch wakes the flusher.
func (w *Writer) Add(s models.Sample, st models.Stats) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, pendingRow{sample: s, jitter: st.JitterMillis})
	full := len(w.pending) >= w.size
	w.mu.Unlock()

	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of queued rows
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Writer) loop(interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
		case <-w.kick:
		}
		if err := w.Flush(); err != nil {
			w.log.Error("Failed to store samples: %v", err)
		}
	}
}

// Flush writes every queued sample. Rows of a failed batch are dropped.
func (w *Writer) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	w.pending = make([]pendingRow, 0, w.size)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := w.insert(batch); err != nil {
		return fmt.Errorf("flush %d samples: %w", len(batch), err)
	}
	w.log.Debug("stored %d samples", len(batch))
	return nil
}

func (w *Writer) insert(batch []pendingRow) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO ping_results (timestamp, target, success, rtt_ms, jitter_ms, failure, error_message)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		s := r.sample
		rtt := sql.NullFloat64{Float64: s.RTT, Valid: s.Success}
		failure := sql.NullString{String: string(s.Failure), Valid: s.Failure != ""}
		errMsg := sql.NullString{String: s.Error, Valid: s.Error != ""}
		if _, err := stmt.Exec(s.Timestamp.UTC(), s.TargetID, s.Success, rtt, r.jitter, failure, errMsg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close stops the flusher and stores whatever is still queued
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.Flush()
}
