package web

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagmon/internal/models"
)

func TestConfigRoutes(t *testing.T) {
	s, m := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view configView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, configView{
		Diagram: diagramAddresses{Local: "127.0.0.1", Gateway: "192.168.1.1"},
	}, view)

	rec = do(t, h, http.MethodPut, "/api/config", `{"retention_days":14,"diagram":{"internet":"8.8.8.8","local":""}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, configView{
		RetentionDays: 14,
		Diagram:       diagramAddresses{Gateway: "192.168.1.1", Internet: "8.8.8.8"},
	}, view)

	assert.Equal(t, 14, m.RetentionDays())
	internet, ok := m.Target("internet")
	require.True(t, ok)
	assert.Equal(t, models.RoleInternet, internet.Role)
	_, ok = m.Target("local")
	assert.False(t, ok, "clearing a slot removes its target")

	rec = do(t, h, http.MethodPut, "/api/config", `{"diagram":{"gateway":"10.0.0.1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	gw, ok := m.Target("gateway")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", gw.Address)
	assert.Equal(t, 14, m.RetentionDays(), "omitted fields are kept")
}

func TestConfigRouteErrors(t *testing.T) {
	s, m := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"negative retention", `{"retention_days":-1}`},
		{"bad slot address", `{"retention_days":5,"diagram":{"internet":"bad host"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/api/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	assert.Zero(t, m.RetentionDays(), "a rejected update applies nothing")
	assert.Len(t, m.Targets(), 2)
}
