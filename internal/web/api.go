package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/pose"
	"github.com/mtzanidakis/kinema/internal/variables"
)

const (
	recentRuns   = 10
	recentEvents = 200
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.getStatus)

	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("GET /api/agents.geojson", s.getAgentsGeoJSON)
	mux.HandleFunc("GET /api/agents/{id}", s.getAgent)
	mux.HandleFunc("POST /api/agents/{id}/dest", s.setDest)
	mux.HandleFunc("POST /api/agents/{id}/command", s.setCommand)

	mux.HandleFunc("GET /api/swarm", s.getSwarm)
	mux.HandleFunc("GET /api/runs/{id}/events", s.getRunEvents)
}

// AgentView is the live state of one agent as the monitor sees it.
type AgentView struct {
	ID          int       `json:"id"`
	Platform    string    `json:"platform"`
	Algorithm   string    `json:"algorithm"`
	Location    []float64 `json:"location"`
	Orientation []float64 `json:"orientation"`
	Dest        []float64 `json:"dest"`
	DestSeq     int64     `json:"dest_seq"`
	Command     string    `json:"command,omitempty"`
	State       string    `json:"state"`
	Executions  int64     `json:"executions"`
	Online      bool      `json:"online"`
	RunID       string    `json:"run_id,omitempty"`
}

func (s *Server) agentView(id int) (AgentView, error) {
	v := AgentView{ID: id}
	if def, err := s.registry.Get(id); err != nil {
		return v, err
	} else if def != nil {
		v.Platform = def.Platform
		v.Algorithm = def.Algorithm
	}

	a := variables.AgentOf(s.kb, id)
	var err error
	if v.Location, err = a.Location.Get(); err != nil {
		return v, err
	}
	if v.Orientation, err = a.Orientation.Get(); err != nil {
		return v, err
	}
	if v.Dest, err = a.Dest.Get(); err != nil {
		return v, err
	}
	if v.DestSeq, err = a.DestSeq.Get(); err != nil {
		return v, err
	}
	if v.Command, err = a.Command.Get(); err != nil {
		return v, err
	}

	status := variables.NewAlgorithmStatus(s.kb, id)
	state, err := status.Get()
	if err != nil {
		return v, err
	}
	v.State = string(state)
	if v.Executions, err = status.Executions.Get(); err != nil {
		return v, err
	}

	if seen, ok := s.presence.Get(id); ok {
		v.RunID = seen.RunID
	}
	v.Online = s.presence.Online(id, presenceTimeout)
	return v, nil
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	defs, err := s.registry.List()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]AgentView, 0, len(defs))
	for _, d := range defs {
		v, err := s.agentView(d.ID)
		if err != nil {
			jsonError(w, err.Error(), storeErrorCode(err))
			return
		}
		out = append(out, v)
	}
	jsonResponse(w, out)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentID(w, r)
	if !ok {
		return
	}

	v, err := s.agentView(id)
	if err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}
	runs, err := s.store.ListRuns(id, recentRuns)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]any{
		"agent": v,
		"runs":  runs,
	})
}

func (s *Server) getAgentsGeoJSON(w http.ResponseWriter, r *http.Request) {
	locations, err := variables.NewSwarm(s.kb).Locations()
	if err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}

	data, err := pose.FeatureCollection(locations).MarshalJSON()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func (s *Server) getSwarm(w http.ResponseWriter, r *http.Request) {
	sw := variables.NewSwarm(s.kb)
	size, err := sw.Size()
	if err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}
	locations, err := sw.Locations()
	if err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}

	ids := make([]int, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ps := make([]pose.Position, 0, len(ids))
	for _, id := range ids {
		ps = append(ps, locations[id])
	}

	out := map[string]any{
		"size":    size,
		"located": len(ps),
		"idle":    s.presence.ListIdle(presenceTimeout),
	}
	if len(ps) > 0 {
		b := pose.Bound(ps)
		c := pose.Centroid(ps)
		out["bound"] = [][2]float64{{b.Min.X(), b.Min.Y()}, {b.Max.X(), b.Max.Y()}}
		out["centroid"] = [2]float64{c.X(), c.Y()}
	}
	jsonResponse(w, out)
}

func (s *Server) setDest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentID(w, r)
	if !ok {
		return
	}

	var body struct {
		Dest []float64 `json:"dest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.Dest) != 3 {
		jsonError(w, "dest must have 3 components", http.StatusBadRequest)
		return
	}

	seq, err := variables.PublishDest(s.kb, id, body.Dest)
	if err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}
	jsonResponse(w, map[string]any{"agent": id, "dest": body.Dest, "dest_seq": seq})
}

func (s *Server) setCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentID(w, r)
	if !ok {
		return
	}

	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Command != "" && !slices.Contains(controller.Commands, body.Command) {
		jsonError(w, fmt.Sprintf("unknown command %q", body.Command), http.StatusBadRequest)
		return
	}

	if err := variables.AgentOf(s.kb, id).Command.Set(body.Command); err != nil {
		jsonError(w, err.Error(), storeErrorCode(err))
		return
	}
	jsonResponse(w, map[string]any{"agent": id, "command": body.Command})
}

func (s *Server) getRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	run, err := s.store.GetRun(runID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	events, err := s.store.ListStatusEvents(runID, recentEvents)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{
		"run":    run,
		"events": events,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	defs, _ := s.registry.List()
	online := 0
	for _, d := range defs {
		if s.presence.Online(d.ID, presenceTimeout) {
			online++
		}
	}

	jsonResponse(w, map[string]any{
		"status":        "ok",
		"agents_count":  len(defs),
		"online_agents": online,
		"ws_clients":    s.hub.Clients(),
		"uptime":        formatUptime(time.Since(s.startedAt)),
		"timestamp":     time.Now().UTC(),
		"version":       s.version,
	})
}

// agentID parses the {id} path value and checks it against the swarm.
func (s *Server) agentID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		jsonError(w, "invalid agent id", http.StatusBadRequest)
		return 0, false
	}
	def, err := s.registry.Get(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return 0, false
	}
	if def == nil {
		jsonError(w, "agent not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func storeErrorCode(err error) int {
	if errors.Is(err, knowledge.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
