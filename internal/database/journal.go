package database

import (
	"sync"
	"time"

	"lagmon/internal/logger"
	"lagmon/internal/models"
)

// Journal records outages from target.down / target.up events. Each outage
// is one row in the outages table, open until the target comes back.
type Journal struct {
	db  *DB
	log logger.Logger
	now func() time.Time

	mu   sync.Mutex
	open map[string]openOutage
}

type openOutage struct {
	id    int64
	start time.Time
}

// NewJournal creates a journal. Outages left open by a previous run are
// closed at their last recorded failure.
func NewJournal(db *DB, log logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.Noop()
	}
	j := &Journal{db: db, log: log, now: time.Now, open: make(map[string]openOutage)}
	if err := j.closeDangling(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) closeDangling() error {
	_, err := j.db.Exec(`
        UPDATE outages
        SET end_time = start_time, duration_seconds = 0
        WHERE end_time IS NULL
    `)
	return err
}

// HandleEvent is an events.Handler
func (j *Journal) HandleEvent(e models.Event) error {
	id := e.TargetID()
	at := e.Time
	if at.IsZero() {
		at = j.now()
	}

	switch e.Type {
	case models.EventTargetDown:
		return j.start(id, at)
	case models.EventTargetUp, models.EventTargetRemoved:
		return j.end(id, at)
	case models.EventTargetUpdated:
		if e.Target != nil && !e.Target.Active {
			return j.end(id, at)
		}
	case models.EventStatsUpdated:
		if e.Stats != nil && e.Stats.LossDetected {
			return j.count(id)
		}
	}
	return nil
}

func (j *Journal) start(id string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.open[id]; ok {
		return nil
	}
	res, err := j.db.Exec(`INSERT INTO outages (target, start_time, checks_failed) VALUES (?, ?, 1)`, id, at.UTC())
	if err != nil {
		return err
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	j.open[id] = openOutage{id: rowID, start: at}
	j.log.Debug("outage %d opened for %s", rowID, id)
	return nil
}

// count bumps the failure counter of an open outage. The stats update for
// the sample that opened it arrives before target.down and is not counted.
func (j *Journal) count(id string) error {
	j.mu.Lock()
	o, ok := j.open[id]
	j.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := j.db.Exec(`UPDATE outages SET checks_failed = checks_failed + 1 WHERE id = ?`, o.id)
	return err
}

func (j *Journal) end(id string, at time.Time) error {
	j.mu.Lock()
	o, ok := j.open[id]
	delete(j.open, id)
	j.mu.Unlock()
	if !ok {
		return nil
	}

	secs := int64(at.Sub(o.start).Seconds())
	if secs < 0 {
		secs = 0
	}
	_, err := j.db.Exec(`UPDATE outages SET end_time = ?, duration_seconds = ? WHERE id = ?`, at.UTC(), secs, o.id)
	if err == nil {
		j.log.Debug("outage %d closed for %s after %ds", o.id, id, secs)
	}
	return err
}

// Open returns the ids of targets with an ongoing outage
func (j *Journal) Open() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.open))
	for id := range j.open {
		ids = append(ids, id)
	}
	return ids
}
