package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lagmon/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAddress), errors.Is(err, models.ErrInvalidSetting), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrRoleConflict), errors.Is(err, models.ErrIDSpace):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}

// intParam reads a positive integer query parameter, falling back to def
func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

type addTargetRequest struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Active   *bool  `json:"active"`
	Interval string `json:"interval"`
}

func (req addTargetRequest) spec() (models.TargetSpec, error) {
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return models.TargetSpec{}, badRequest(err.Error())
	}
	var interval time.Duration
	if req.Interval != "" {
		if interval, err = time.ParseDuration(req.Interval); err != nil || interval < 0 {
			return models.TargetSpec{}, badRequest("invalid interval " + strconv.Quote(req.Interval))
		}
	}
	return models.TargetSpec{
		ID:       req.ID,
		Address:  req.Address,
		Name:     req.Name,
		Role:     role,
		Active:   req.Active,
		Interval: interval,
	}, nil
}

// handleListTargets handles GET /api/targets
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Targets())
}

// handleAddTarget handles POST /api/targets. Re-adding an existing id
// returns the registered target with 200.
func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var req addTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	spec, err := req.spec()
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if spec.ID != "" {
		if _, exists := s.engine.Target(spec.ID); exists {
			status = http.StatusOK
		}
	}

	t, err := s.engine.AddTarget(spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, t)
}

// handleRemoveTarget handles DELETE /api/targets/{id}
func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.engine.Target(id); !ok {
		writeError(w, models.ErrNotFound)
		return
	}
	s.engine.RemoveTarget(id)
	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// handleSetActive handles PUT /api/targets/{id}/active
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, badRequest(`body must be {"active": true|false}`))
		return
	}

	id := r.PathValue("id")
	if err := s.engine.SetActive(id, *req.Active); err != nil {
		writeError(w, err)
		return
	}
	t, _ := s.engine.Target(id)
	writeJSON(w, http.StatusOK, t)
}

// handleLive handles GET /api/live
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.States())
}

// diagramSlot is one node of the local -> gateway -> internet chain
type diagramSlot struct {
	Role   models.Role         `json:"role"`
	Status string              `json:"status"`
	Target *models.TargetState `json:"target,omitempty"`
}

type diagramView struct {
	Slots  []diagramSlot        `json:"slots"`
	Custom []models.TargetState `json:"custom"`
}

// slotStatus summarizes a target for the diagram
func slotStatus(st *models.TargetState) string {
	switch {
	case st == nil:
		return "empty"
	case !st.Active:
		return "paused"
	case !st.Stats.Known():
		return "unknown"
	case st.Stats.LossDetected:
		return "down"
	default:
		return "up"
	}
}

// handleDiagram handles GET /api/diagram
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	byRole := make(map[models.Role]*models.TargetState)
	view := diagramView{Custom: []models.TargetState{}}
	for _, st := range s.engine.States() {
		if st.Role.IsTopology() {
			byRole[st.Role] = &st
			continue
		}
		view.Custom = append(view.Custom, st)
	}
	for _, role := range models.TopologyRoles {
		st := byRole[role]
		view.Slots = append(view.Slots, diagramSlot{Role: role, Status: slotStatus(st), Target: st})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) historyAvailable(w http.ResponseWriter) bool {
	if s.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history storage is disabled"})
		return false
	}
	return true
}

// handleRecent handles /api/recent requests
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	results, err := s.db.GetRecent(intParam(r, "hours", 24))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleStats handles /api/stats requests
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	stats, err := s.db.GetStats(intParam(r, "hours", 24))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleOutages handles /api/outages requests
func (s *Server) handleOutages(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	outages, err := s.db.GetOutages(intParam(r, "days", 7))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outages)
}

// handleHeatmap handles /api/heatmap requests
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	heatmapData, err := s.db.GetHeatmapData(intParam(r, "days", 30))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heatmapData)
}

// handlePatterns handles /api/patterns requests
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		writeError(w, badRequest("hour parameter (0-23) required"))
		return
	}

	patterns, err := s.db.GetPatterns(hour)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

// handleHistory handles /api/history/{id}?hours=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	end := time.Now()
	start := end.Add(-time.Duration(intParam(r, "hours", 1)) * time.Hour)

	points, err := s.db.GetHistory(r.PathValue("id"), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	if points == nil {
		points = []models.HistoryPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}
