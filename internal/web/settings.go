package web

import (
	"encoding/json"
	"net/http"

	"lagmon/internal/models"
)

// diagramAddresses holds the address of each topology slot, "" when empty
type diagramAddresses struct {
	Local    string `json:"local"`
	Gateway  string `json:"gateway"`
	Internet string `json:"internet"`
}

type configView struct {
	RetentionDays int              `json:"retention_days"`
	Diagram       diagramAddresses `json:"diagram"`
}

// configUpdate carries the fields to change; omitted fields are kept
type configUpdate struct {
	RetentionDays *int `json:"retention_days"`
	Diagram       *struct {
		Local    *string `json:"local"`
		Gateway  *string `json:"gateway"`
		Internet *string `json:"internet"`
	} `json:"diagram"`
}

func (s *Server) currentConfig() configView {
	view := configView{RetentionDays: s.engine.RetentionDays()}
	for _, t := range s.engine.Targets() {
		switch t.Role {
		case models.RoleLocal:
			view.Diagram.Local = t.Address
		case models.RoleGateway:
			view.Diagram.Gateway = t.Address
		case models.RoleInternet:
			view.Diagram.Internet = t.Address
		}
	}
	return view
}

// handleGetConfig handles GET /api/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentConfig())
}

// handleUpdateConfig handles PUT /api/config. Every field is checked before
// anything is applied.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("invalid JSON body: "+err.Error()))
		return
	}
	if req.RetentionDays != nil && *req.RetentionDays < 0 {
		writeError(w, badRequest("retention_days cannot be negative"))
		return
	}

	slots := make(map[models.Role]string)
	if d := req.Diagram; d != nil {
		for role, addr := range map[models.Role]*string{
			models.RoleLocal:    d.Local,
			models.RoleGateway:  d.Gateway,
			models.RoleInternet: d.Internet,
		} {
			if addr == nil {
				continue
			}
			if *addr != "" {
				if _, err := models.NormalizeAddress(*addr); err != nil {
					writeError(w, err)
					return
				}
			}
			slots[role] = *addr
		}
	}

	if req.RetentionDays != nil {
		if err := s.engine.SetRetentionDays(*req.RetentionDays); err != nil {
			writeError(w, err)
			return
		}
	}
	for _, role := range models.TopologyRoles {
		addr, ok := slots[role]
		if !ok {
			continue
		}
		changed, err := s.engine.SetTopology(role, addr)
		if err != nil {
			writeError(w, err)
			return
		}
		if changed {
			s.log.Info("Diagram %s set to %q", role, addr)
		}
	}
	writeJSON(w, http.StatusOK, s.currentConfig())
}
