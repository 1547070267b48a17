package web

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lagmon/internal/models"
)

const streamWriteTimeout = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// snapshotMessage is the first frame of every stream
type snapshotMessage struct {
	Version int                  `json:"v"`
	Type    string               `json:"type"`
	Time    time.Time            `json:"time"`
	Targets []models.TargetState `json:"targets"`
}

// streamConn serializes writes to one websocket
type streamConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	broken atomic.Bool
}

func (c *streamConn) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	err := c.conn.WriteJSON(v)
	if err != nil {
		c.broken.Store(true)
	}
	return err
}

// handleEvents handles GET /api/events: a snapshot of every target, then
// each engine event as it happens
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &streamConn{conn: conn}

	// Hold the write lock until the snapshot is out so no event overtakes it
	c.mu.Lock()
	sub := s.engine.Subscribe("ws "+r.RemoteAddr, func(e models.Event) error {
		if c.broken.Load() {
			return nil
		}
		return c.write(e)
	})
	defer sub.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	err = conn.WriteJSON(snapshotMessage{
		Version: models.EventSchemaVersion,
		Type:    "snapshot",
		Time:    time.Now().UTC(),
		Targets: s.engine.States(),
	})
	c.mu.Unlock()
	if err != nil {
		return
	}

	s.log.Debug("event stream opened for %s", r.RemoteAddr)
	defer s.log.Debug("event stream closed for %s", r.RemoteAddr)

	// Clients do not send anything; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if c.broken.Load() {
			return
		}
	}
}
