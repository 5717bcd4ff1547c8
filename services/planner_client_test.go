package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

func TestPlannerClientForward(t *testing.T) {
	var got plannerResultRequest
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewPlannerClient(srv.URL+"/", time.Second)
	item := &models.PendingForward{
		ID:           "fwd-1",
		TournamentID: "T1",
		MatchID:      "7",
		UniqueID:     "tok",
		Payload:      &models.Match{ID: "7", Player1Sets: 3},
	}
	if err := client.Forward(context.Background(), item); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if path != "/api/tournaments/T1/matches/7/result" || key != "fwd-1" {
		t.Errorf("request = %s (key %q)", path, key)
	}
	if got.Attempt != 1 || got.Match == nil || got.Match.Player1Sets != 3 {
		t.Errorf("body = %+v", got)
	}
}

func TestPlannerClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bracket locked", http.StatusConflict)
	}))
	defer srv.Close()

	item := &models.PendingForward{ID: "x", TournamentID: "T1", MatchID: "1"}
	if err := NewPlannerClient(srv.URL, time.Second).Forward(context.Background(), item); !errors.Is(err, ErrForwardingFailed) {
		t.Errorf("non-2xx = %v", err)
	}
	if err := NewPlannerClient("", 0).Forward(context.Background(), item); !errors.Is(err, ErrForwardingFailed) {
		t.Errorf("unconfigured = %v", err)
	}

	unblock := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-unblock:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(unblock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewPlannerClient(slow.URL, time.Second).Forward(ctx, item); !errors.Is(err, ErrForwardingFailed) {
		t.Errorf("timeout = %v", err)
	}
}
