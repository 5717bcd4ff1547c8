package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-hub/repositories"
	"github.com/Dosada05/tournament-hub/services"
	"github.com/go-chi/chi/v5"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := repositories.NewTournamentRegistry()
	results := services.NewMatchResultService(reg, nil, nil, logger, services.MatchResultConfig{})
	cache := services.NewMatchStateCache(nil, logger, services.MatchStateCacheConfig{})
	svc := services.NewTournamentService(reg, results, cache, nil, logger, "http://hub.test")

	th := NewTournamentHandler(svc)
	sh := NewMatchStateHandler(svc)
	dh := NewDashboardHandler(svc)

	r := chi.NewRouter()
	r.Get("/health", dh.Health)
	r.Get("/api/tournaments", th.ListHandler)
	r.Get("/api/tournaments/active", th.ListActiveHandler)
	r.Post("/api/tournaments/register", th.RegisterHandler)
	r.Get("/api/tournaments/{tournamentID}", th.GetByIDHandler)
	r.Delete("/api/tournaments/{tournamentID}", th.UnregisterHandler)
	r.Post("/api/tournaments/{tournamentID}/sync", th.SyncHandler)
	r.Post("/api/tournaments/{tournamentID}/heartbeat", th.HeartbeatHandler)
	r.Get("/api/tournaments/{tournamentID}/matches/{matchID}", th.GetMatchHandler)
	r.Post("/api/tournaments/{tournamentID}/matches/{matchID}/result", th.SubmitResultHandler)
	r.Get("/api/forwarding", th.ForwardingStatusHandler)
	r.Post("/api/forwarding/{forwardID}/retry", th.RequeueForwardHandler)
	r.Put("/api/match-state/{tournamentID}/{matchID}", sh.SaveHandler)
	r.Get("/api/match-state/{tournamentID}/{matchID}", sh.LoadHandler)
	r.Delete("/api/match-state/{tournamentID}/{matchID}", sh.ClearHandler)
	r.Get("/api/match-state/{tournamentID}/{matchID}/exists", sh.ExistsHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func registerAndSync(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":"T1","name":"Spring Open"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d: %s", resp.StatusCode, body)
	}
	sync := `{"matches":[
		{"uniqueId":"tok-a","id":1,"player1":"Anna","player2":"Ben","classId":1},
		{"uniqueId":"tok-b","id":"2","player1":"Carl","player2":"Dora","classId":2}
	]}`
	resp, body = do(t, srv, http.MethodPost, "/api/tournaments/T1/sync", sync)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d: %s", resp.StatusCode, body)
	}
}

func TestRegisterHandler(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":"T1","name":"Spring Open"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var res struct {
		Endpoints struct {
			Rooms  string `json:"rooms"`
			Socket string `json:"socket"`
		} `json:"endpoints"`
		Created bool `json:"created"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Created || res.Endpoints.Rooms != "ws://hub.test/ws/rooms" || res.Endpoints.Socket != "ws://hub.test/ws/socket?tournamentId=T1" {
		t.Errorf("register = %s", body)
	}

	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":"T1","name":"Spring Open"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("re-registration status = %d, want 200", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":"T1","name":"Other"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("conflicting registration status = %d, want 409", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"name":"No id"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("broken JSON status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitResultHandler(t *testing.T) {
	srv := newTestServer(t)
	registerAndSync(t, srv)

	tests := []struct {
		name    string
		matchID string
		body    string
		status  int
		unique  string
	}{
		{"by legacy id", "1", `{"player1Sets":3,"player2Sets":1}`, http.StatusOK, "tok-a"},
		{"by token", "tok-b", `{"player1Sets":0,"player2Sets":3,"matchId":"ignored"}`, http.StatusOK, "tok-b"},
		{"tie rejected", "1", `{"player1Sets":2,"player2Sets":2}`, http.StatusUnprocessableEntity, ""},
		{"negative rejected", "1", `{"player1Sets":-1}`, http.StatusUnprocessableEntity, ""},
		{"unknown match", "99", `{"player1Sets":3}`, http.StatusNotFound, ""},
		{"wrong type", "1", `{"player1Sets":"three"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/api/tournaments/T1/matches/"+tt.matchID+"/result", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var res struct {
				Success  bool   `json:"success"`
				UniqueID string `json:"uniqueId"`
				Match    struct {
					Status string `json:"status"`
				} `json:"match"`
			}
			if err := json.Unmarshal(body, &res); err != nil {
				t.Fatal(err)
			}
			if !res.Success || res.UniqueID != tt.unique || res.Match.Status != "finished" {
				t.Errorf("response = %s", body)
			}
		})
	}

	resp, body := do(t, srv, http.MethodGet, "/api/forwarding?tournamentId=T1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forwarding status = %d", resp.StatusCode)
	}
	var fw struct {
		Forwarding struct {
			Pending []json.RawMessage `json:"pending"`
		} `json:"forwarding"`
	}
	json.Unmarshal(body, &fw)
	if len(fw.Forwarding.Pending) != 2 {
		t.Errorf("pending forwards = %d, want 2: %s", len(fw.Forwarding.Pending), body)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/api/forwarding?limit=x", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/forwarding/unknown/retry", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("retry of unknown forward status = %d", resp.StatusCode)
	}
}

func TestTournamentLifecycleHandlers(t *testing.T) {
	srv := newTestServer(t)
	registerAndSync(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/api/tournaments/T1/matches/tok-b", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"player1": "Carl"`) {
		t.Errorf("get match = %d: %s", resp.StatusCode, body)
	}

	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/T1/heartbeat", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("heartbeat status = %d", resp.StatusCode)
	}
	resp, body = do(t, srv, http.MethodGet, "/api/tournaments/active", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"count": 1`) {
		t.Errorf("active = %s", body)
	}

	if resp, _ := do(t, srv, http.MethodDelete, "/api/tournaments/T1", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("unregister status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/api/tournaments/T1", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after unregister status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/api/tournaments/T1/heartbeat", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("heartbeat after unregister status = %d", resp.StatusCode)
	}
}

func TestMatchStateHandlers(t *testing.T) {
	srv := newTestServer(t)
	path := "/api/match-state/T1/tok-a"

	if resp, _ := do(t, srv, http.MethodGet, path, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("load before save status = %d", resp.StatusCode)
	}

	state := "{\"leg\":3,  \"remaining\":[170, 40],\"note\":\"äö\"}"
	if resp, body := do(t, srv, http.MethodPut, path, state); resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d: %s", resp.StatusCode, body)
	}

	resp, body := do(t, srv, http.MethodGet, path, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d", resp.StatusCode)
	}
	if string(body) != state {
		t.Errorf("snapshot = %q, want %q", body, state)
	}
	if resp.Header.Get("X-Match-State-Resumable") != "true" || resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", resp.Header)
	}

	resp, body = do(t, srv, http.MethodGet, path+"/exists", "")
	var status services.MatchStateStatus
	if err := json.Unmarshal(body, &status); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("exists = %d: %s", resp.StatusCode, body)
	}
	if !status.Exists || !status.Resumable {
		t.Errorf("exists = %+v", status)
	}

	if resp, _ := do(t, srv, http.MethodPut, path, ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty save status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodDelete, path, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear status = %d", resp.StatusCode)
	}
	_, body = do(t, srv, http.MethodGet, path+"/exists", "")
	if !strings.Contains(string(body), `"exists": false`) {
		t.Errorf("exists after clear = %s", body)
	}
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, srv, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status": "ok"`) {
		t.Errorf("health = %d: %s", resp.StatusCode, body)
	}
}

func TestMatchStateHandlersResolveAliases(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/tournaments/register", `{"tournamentId":"T1","name":"Open"}`)
	do(t, srv, http.MethodPost, "/api/tournaments/T1/sync", `{"matches":[{"uniqueId":"tok-a","id":1,"player1":"Anna","player2":"Ben"}]}`)

	if resp, body := do(t, srv, http.MethodPut, "/api/match-state/T1/tok-a", `{"leg":2}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("save by token = %d: %s", resp.StatusCode, body)
	}
	resp, body := do(t, srv, http.MethodGet, "/api/match-state/T1/1", "")
	if resp.StatusCode != http.StatusOK || string(body) != `{"leg":2}` {
		t.Errorf("load by legacy id = %d: %s", resp.StatusCode, body)
	}
	if resp, _ := do(t, srv, http.MethodDelete, "/api/match-state/T1/01", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear by alias status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/api/match-state/T1/tok-a", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("load after clear = %d", resp.StatusCode)
	}
}
