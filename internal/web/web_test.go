package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/registry"
	"github.com/mtzanidakis/kinema/internal/store"
	"github.com/mtzanidakis/kinema/internal/variables"
)

type fixture struct {
	srv   *Server
	kb    *knowledge.Memory
	store *store.Store
}

func newFixture(t *testing.T, auth string) *fixture {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	defaults := config.AgentDefinition{Platform: "sim", Algorithm: "follow", Home: []float64{0, 0, 0}, MoveSpeed: 1, Proximity: 0.1}
	reg := registry.New(s, nil, defaults, 2)
	if err := reg.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	kb := knowledge.NewMemory()
	if err := variables.NewSwarm(kb).SetSize(2); err != nil {
		t.Fatalf("set size: %v", err)
	}
	return &fixture{
		srv:   NewServer(kb, reg, s, config.WebConfig{Auth: auth}, "test"),
		kb:    kb,
		store: s,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPresence(t *testing.T) {
	p := NewPresence()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.Observe(controller.Event{Type: controller.EventRunStarted, Agent: 1, RunID: "r1"})
	p.Observe(controller.Event{Type: controller.EventStatus, Agent: 1, RunID: "r1", Call: "move", Status: "in_progress", Executions: 4})

	s, ok := p.Get(1)
	if !ok {
		t.Fatal("expected agent 1 to be tracked")
	}
	if s.LastCall != "move" || s.LastStatus != "in_progress" || s.Executions != 4 {
		t.Errorf("unexpected presence %+v", s)
	}
	if !p.Online(1, time.Second) {
		t.Error("expected agent 1 online")
	}
	if p.Online(0, time.Second) {
		t.Error("expected unknown agent offline")
	}

	now = now.Add(2 * time.Second)
	if p.Online(1, time.Second) {
		t.Error("expected agent 1 offline after timeout")
	}
	if idle := p.ListIdle(time.Second); len(idle) != 1 || idle[0] != 1 {
		t.Errorf("expected [1] idle, got %v", idle)
	}

	p.Observe(controller.Event{Type: controller.EventRunStopped, Agent: 1, RunID: "r1"})
	if p.Online(1, time.Hour) {
		t.Error("expected stopped run offline")
	}
	if idle := p.ListIdle(0); len(idle) != 0 {
		t.Errorf("stopped runs are not idle, got %v", idle)
	}

	p.Observe(controller.Event{Type: controller.EventRunStarted, Agent: 1, RunID: "r2"})
	if s, _ := p.Get(1); s.Stopped || s.RunID != "r2" || s.LastCall != "" {
		t.Errorf("expected fresh record for new run, got %+v", s)
	}
}

func TestListAgents(t *testing.T) {
	f := newFixture(t, "")
	if err := variables.AgentOf(f.kb, 1).Location.Set([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var agents []AgentView
	if err := json.NewDecoder(rec.Body).Decode(&agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[1].Platform != "sim" || agents[1].Location[2] != 3 {
		t.Errorf("unexpected agent view %+v", agents[1])
	}
	if agents[0].State != string(variables.AlgorithmUnknown) {
		t.Errorf("expected unknown state, got %q", agents[0].State)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	f := newFixture(t, "")
	if rec := f.do(t, http.MethodGet, "/api/agents/7", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/agents/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetAgentWithRuns(t *testing.T) {
	f := newFixture(t, "")
	if err := f.store.StartRun(&store.Run{ID: "run-1", AgentID: 0, Platform: "sim", Algorithm: "follow"}); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/agents/0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		Agent AgentView   `json:"agent"`
		Runs  []store.Run `json:"runs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Agent.ID != 0 || len(body.Runs) != 1 || body.Runs[0].ID != "run-1" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestSetDest(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/agents/1/dest", `{"dest":[4,5,6]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = f.do(t, http.MethodPost, "/api/agents/1/dest", `{"dest":[4,5,6]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	a := variables.AgentOf(f.kb, 1)
	dest, _ := a.Dest.Get()
	seq, _ := a.DestSeq.Get()
	if dest[0] != 4 || dest[1] != 5 || dest[2] != 6 {
		t.Errorf("unexpected dest %v", dest)
	}
	if seq != 2 {
		t.Errorf("expected dest_seq 2, got %d", seq)
	}

	if rec := f.do(t, http.MethodPost, "/api/agents/1/dest", `{"dest":[1,2]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for short dest, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/agents/1/dest", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestSetCommand(t *testing.T) {
	f := newFixture(t, "")

	if rec := f.do(t, http.MethodPost, "/api/agents/0/command", `{"command":"home"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	cmd, _ := variables.AgentOf(f.kb, 0).Command.Get()
	if cmd != controller.CommandHome {
		t.Errorf("expected home command, got %q", cmd)
	}

	if rec := f.do(t, http.MethodPost, "/api/agents/0/command", `{"command":"dance"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown command, got %d", rec.Code)
	}
}

func TestSwarmAndGeoJSON(t *testing.T) {
	f := newFixture(t, "")
	variables.AgentOf(f.kb, 0).Location.Set([]float64{0, 0, 1})
	variables.AgentOf(f.kb, 1).Location.Set([]float64{2, 4, 1})

	rec := f.do(t, http.MethodGet, "/api/swarm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sw struct {
		Size     int          `json:"size"`
		Located  int          `json:"located"`
		Bound    [][2]float64 `json:"bound"`
		Centroid [2]float64   `json:"centroid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sw); err != nil {
		t.Fatal(err)
	}
	if sw.Size != 2 || sw.Located != 2 {
		t.Errorf("unexpected swarm %+v", sw)
	}
	if sw.Bound[1] != [2]float64{2, 4} || sw.Centroid != [2]float64{1, 2} {
		t.Errorf("unexpected geometry %+v", sw)
	}

	rec = f.do(t, http.MethodGet, "/api/agents.geojson", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []any  `json:"features"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Errorf("unexpected collection %+v", fc)
	}
}

func TestRunEvents(t *testing.T) {
	f := newFixture(t, "")
	if rec := f.do(t, http.MethodGet, "/api/runs/missing/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	if err := f.store.StartRun(&store.Run{ID: "run-1", AgentID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SaveStatusEvent(&store.StatusEvent{RunID: "run-1", AgentID: 1, Call: "move", Status: "arrived"}); err != nil {
		t.Fatal(err)
	}
	rec := f.do(t, http.MethodGet, "/api/runs/run-1/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Events []store.StatusEvent `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Events) != 1 || body.Events[0].Status != "arrived" {
		t.Errorf("unexpected events %+v", body.Events)
	}
}

func TestUnavailableStore(t *testing.T) {
	f := newFixture(t, "")
	f.kb.Close()
	if rec := f.do(t, http.MethodGet, "/api/agents/0", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "secret")

	if rec := f.do(t, http.MethodGet, "/api/status", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("operator", "wrong")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong password, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.SetBasicAuth("operator", "secret")
	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with password, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodOptions, "/api/status", ""); rec.Code != http.StatusOK {
		t.Errorf("expected preflight to pass, got %d", rec.Code)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.srv.hub.Run(ctx)

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.srv.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.srv.Observe(controller.Event{Type: controller.EventStatus, Agent: 1, RunID: "r1", Call: "move", Status: "arrived"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string           `json:"type"`
		Payload controller.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != controller.EventStatus || msg.Payload.Call != "move" {
		t.Errorf("unexpected message %+v", msg)
	}
	if seen, ok := f.srv.Presence().Get(1); !ok || seen.LastStatus != "arrived" {
		t.Errorf("expected presence updated, got %+v", seen)
	}
}
