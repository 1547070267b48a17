package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagmon/internal/models"
	"lagmon/internal/monitor"
)

type staticProber struct{}

func (staticProber) Probe(ctx context.Context, address string, timeout time.Duration) models.Sample {
	if address == "192.168.1.1" {
		return models.Sample{Failure: models.FailureTimeout, Error: "timeout"}
	}
	return models.Sample{Success: true, RTT: 4}
}

type fakeDB struct {
	err     error
	history []models.HistoryPoint
	hours   int
}

func (f *fakeDB) GetRecent(hours int) ([]models.Sample, error) {
	f.hours = hours
	return []models.Sample{{TargetID: "internet", Success: true, RTT: 3}}, f.err
}
func (f *fakeDB) GetStats(hours int) ([]models.HistoryStats, error) {
	return []models.HistoryStats{{Target: "internet", TotalPings: 10}}, f.err
}
func (f *fakeDB) GetOutages(days int) ([]models.Outage, error) { return nil, f.err }
func (f *fakeDB) GetHeatmapData(days int) ([]models.HeatmapPoint, error) {
	return []models.HeatmapPoint{{Hour: 3}}, f.err
}
func (f *fakeDB) GetPatterns(hour int) ([]models.PatternDetail, error) { return nil, f.err }
func (f *fakeDB) GetHistory(id string, start, end time.Time) ([]models.HistoryPoint, error) {
	return f.history, f.err
}

func newTestServer(t *testing.T, db models.Database) (*Server, *monitor.Monitor) {
	t.Helper()
	m, err := monitor.New(monitor.Options{Prober: staticProber{}, Interval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Stop()
		m.Wait()
	})
	require.NoError(t, m.Load([]models.TargetSpec{
		{ID: "local", Address: "127.0.0.1", Role: models.RoleLocal},
		{ID: "gateway", Address: "192.168.1.1", Role: models.RoleGateway},
	}))
	var opts Options
	opts.Engine = m
	if db != nil {
		opts.DB = db
	}
	opts.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("lagmon_up 1\n"))
	})
	return New(opts), m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTargetRoutes(t *testing.T) {
	s, m := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/targets", `{"id":"dns","address":"1.1.1.1","name":"Cloudflare","interval":"5s"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Target
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "dns", created.ID)
	assert.Equal(t, models.RoleCustom, created.Role)
	assert.Equal(t, 5*time.Second, created.Interval)
	assert.True(t, created.Active)

	rec = do(t, h, http.MethodPost, "/api/targets", `{"id":"dns","address":"9.9.9.9"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "re-adding an id returns the existing target")

	rec = do(t, h, http.MethodGet, "/api/targets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Target
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	rec = do(t, h, http.MethodPut, "/api/targets/dns/active", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := m.Target("dns")
	assert.False(t, got.Active)

	rec = do(t, h, http.MethodDelete, "/api/targets/dns", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := m.Target("dns")
	assert.False(t, ok)
}

func TestTargetRouteErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"invalid json", http.MethodPost, "/api/targets", `{`, http.StatusBadRequest},
		{"invalid address", http.MethodPost, "/api/targets", `{"address":"bad host"}`, http.StatusBadRequest},
		{"unknown role", http.MethodPost, "/api/targets", `{"address":"1.1.1.1","role":"router"}`, http.StatusBadRequest},
		{"bad interval", http.MethodPost, "/api/targets", `{"address":"1.1.1.1","interval":"soon"}`, http.StatusBadRequest},
		{"role conflict", http.MethodPost, "/api/targets", `{"address":"10.0.0.1","role":"gateway"}`, http.StatusConflict},
		{"remove unknown", http.MethodDelete, "/api/targets/nope", "", http.StatusNotFound},
		{"activate unknown", http.MethodPut, "/api/targets/nope/active", `{"active":true}`, http.StatusNotFound},
		{"activate without flag", http.MethodPut, "/api/targets/local/active", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/api/targets", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusMethodNotAllowed {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestLiveAndDiagram(t *testing.T) {
	s, m := newTestServer(t, nil)
	h := s.Handler()

	m.RunOnce(context.Background())

	rec := do(t, h, http.MethodGet, "/api/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var live []models.TargetState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &live))
	require.Len(t, live, 2)
	assert.Equal(t, 4.0, live[0].Stats.LatencyMillis)
	assert.True(t, live[1].Stats.LossDetected)

	rec = do(t, h, http.MethodGet, "/api/diagram", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view diagramView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Slots, 3)
	assert.Equal(t, "up", view.Slots[0].Status)
	assert.Equal(t, "down", view.Slots[1].Status)
	assert.Equal(t, "empty", view.Slots[2].Status)
	assert.Empty(t, view.Custom)
}

func TestHistoryRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/recent", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	db := &fakeDB{}
	s, _ = newTestServer(t, db)
	h := s.Handler()

	rec = do(t, h, http.MethodGet, "/api/recent?hours=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, db.hours)

	for _, path := range []string{"/api/stats", "/api/outages", "/api/heatmap?days=7", "/api/patterns?hour=3"} {
		rec = do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = do(t, h, http.MethodGet, "/api/patterns?hour=25", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/history/internet", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	db.err = errors.New("disk I/O error")
	rec = do(t, h, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lagmon_up 1")
}

func TestEventStream(t *testing.T) {
	s, m := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap snapshotMessage
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, models.EventSchemaVersion, snap.Version)
	assert.Len(t, snap.Targets, 2)

	_, err = m.AddTarget(models.TargetSpec{ID: "dns", Address: "1.1.1.1"})
	require.NoError(t, err)

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	e, err := models.DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, models.EventTargetAdded, e.Type)
	assert.Equal(t, "dns", e.TargetID())
}

func TestEventStreamRejectsForeignOrigin(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
