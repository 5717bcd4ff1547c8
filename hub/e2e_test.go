package hub

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/repositories"
	"github.com/Dosada05/tournament-hub/services"
)

type gatedForwarder struct {
	release chan struct{}
	mu      sync.Mutex
	items   []string
}

func (f *gatedForwarder) Forward(ctx context.Context, item *models.PendingForward) error {
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	f.items = append(f.items, item.ID)
	f.mu.Unlock()
	return nil
}

func newTestStack(t *testing.T, fwd services.Forwarder) (*Router, *services.TournamentService) {
	t.Helper()
	logger := discardLogger()
	router := NewRouter(logger)
	reg := repositories.NewTournamentRegistry()
	results := services.NewMatchResultService(reg, fwd, nil, logger, services.MatchResultConfig{ForwardTimeout: 5 * time.Second})
	cache := services.NewMatchStateCache(nil, logger, services.MatchStateCacheConfig{})
	return router, services.NewTournamentService(reg, results, cache, router, logger, "http://hub.test")
}

func seedTournament(t *testing.T, svc *services.TournamentService) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Register(ctx, services.RegisterInput{TournamentID: "T1", Name: "Spring Open"}); err != nil {
		t.Fatal(err)
	}
	one, two := 1, 2
	_, err := svc.FullSync(ctx, "T1", services.SyncInput{Matches: []*models.Match{
		{UniqueID: "tok-a", ID: "1", Player1: "Anna", Player2: "Ben", ClassID: &one},
		{UniqueID: "tok-b", ID: "2", Player1: "Carl", Player2: "Dora", ClassID: &two},
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSubmitResultEndToEnd(t *testing.T) {
	fwd := &gatedForwarder{release: make(chan struct{})}
	router, svc := newTestStack(t, fwd)
	seedTournament(t, svc)

	peers := map[string]*fakePeer{
		TournamentChannel("T1"):     newFakePeer("tournament"),
		MatchChannel("T1", "tok-b"): newFakePeer("token"),
		MatchChannel("T1", "2"):     newFakePeer("legacy"),
		MatchChannel("T1", "tok-a"): newFakePeer("other-token"),
		MatchChannel("T1", "1"):     newFakePeer("other-legacy"),
	}
	for ch, p := range peers {
		router.Subscribe(p, ch)
	}

	res, err := svc.SubmitResult(context.Background(), "T1", "2", services.MatchResultInput{
		Player1Sets: intPtr(3), Player2Sets: intPtr(1),
	})
	if err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	if res.MatchID != "2" || res.UniqueID != "tok-b" {
		t.Errorf("identifiers = %q / %q", res.MatchID, res.UniqueID)
	}

	var fired []string
	for ch, p := range peers {
		for _, msg := range p.messages() {
			if msg.Event == models.EventMatchUpdated {
				fired = append(fired, ch)
			}
		}
	}
	sort.Strings(fired)
	want := []string{"match:T1:2", "match:T1:tok-b", "tournament:T1"}
	if len(fired) != len(want) {
		t.Fatalf("fired on %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired on %v, want %v", fired, want)
		}
	}

	queue := svc.Results().Queue()
	pending := queue.Pending("T1")
	if len(pending) != 1 || pending[0].MatchID != "2" || pending[0].UniqueID != "tok-b" {
		t.Fatalf("pending = %+v", pending)
	}

	close(fwd.release)
	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("pending forward was not drained")
		}
		time.Sleep(10 * time.Millisecond)
	}
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if len(fwd.items) != 1 || fwd.items[0] != res.ForwardID {
		t.Errorf("forwarded = %v, want [%s]", fwd.items, res.ForwardID)
	}
}

func intPtr(v int) *int { return &v }
