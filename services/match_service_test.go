package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/repositories"
)

type fakeForwarder struct {
	mu    sync.Mutex
	calls map[string]int
	err   error

	entered chan struct{}
	release chan struct{}
}

func newFakeForwarder(err error) *fakeForwarder {
	return &fakeForwarder{calls: make(map[string]int), err: err}
}

func (f *fakeForwarder) Forward(ctx context.Context, item *models.PendingForward) error {
	f.mu.Lock()
	f.calls[item.ID]++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.err
}

func (f *fakeForwarder) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func newSyncedRegistry(t *testing.T) *repositories.TournamentRegistry {
	t.Helper()
	reg := repositories.NewTournamentRegistry()
	if _, _, err := reg.Register(repositories.TournamentRegistration{TournamentID: "T1", Name: "Open"}); err != nil {
		t.Fatal(err)
	}
	_, err := reg.FullSync("T1", repositories.SyncData{Matches: []*models.Match{
		{UniqueID: "tok-1", ID: "1", Player1: "Anna", Player2: "Ben", ClassID: intPtr(1)},
		{UniqueID: "tok-2", ID: "2", Player1: "Carl", Player2: "Dora", ClassID: intPtr(2)},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newTestResultService(t *testing.T, fwd Forwarder) (*MatchResultService, *repositories.TournamentRegistry, repositories.ForwardFailureRepository) {
	t.Helper()
	reg := newSyncedRegistry(t)
	failures := repositories.NewMemoryForwardFailureRepository(10)
	return NewMatchResultService(reg, fwd, failures, discardLogger(), MatchResultConfig{}), reg, failures
}

func TestSubmitByLegacyIDReturnsBothIdentifiers(t *testing.T) {
	svc, reg, _ := newTestResultService(t, newFakeForwarder(nil))

	res, err := svc.Submit(context.Background(), "T1", "2", MatchResultInput{
		Player1Sets: intPtr(3), Player2Sets: intPtr(1),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.MatchID != "2" || res.UniqueID != "tok-2" {
		t.Errorf("identifiers = %q / %q", res.MatchID, res.UniqueID)
	}
	if res.Match.Status != models.MatchStatusFinished || res.Match.Winner != "Carl" {
		t.Errorf("match = %+v", res.Match)
	}
	if res.Match.FinishedAt == nil || res.Match.SyncedAt == nil {
		t.Error("timestamps not stamped")
	}
	if res.Match.ClassName != "Gold" {
		t.Errorf("class metadata lost: %q", res.Match.ClassName)
	}

	stored, _ := reg.GetMatch("T1", "tok-2")
	if stored.Player1Sets != 3 {
		t.Errorf("registry not updated: %+v", stored)
	}
	if n := svc.Queue().Len(); n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}

func TestSubmitKeepsExplicitStatusAndClass(t *testing.T) {
	svc, _, _ := newTestResultService(t, nil)

	res, err := svc.Submit(context.Background(), "T1", "tok-1", MatchResultInput{
		Player1Legs: intPtr(2),
		Status:      statusPtr(models.MatchStatusInProgress),
		ClassName:   strPtr("Finale"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Match.Status != models.MatchStatusInProgress || res.Match.FinishedAt != nil {
		t.Errorf("status override ignored: %+v", res.Match)
	}
	if res.Match.ClassName != "Finale" || res.Match.ClassID == nil || *res.Match.ClassID != 1 {
		t.Errorf("class = %v / %q", res.Match.ClassID, res.Match.ClassName)
	}
}

func TestSubmitErrors(t *testing.T) {
	svc, reg, _ := newTestResultService(t, nil)
	ctx := context.Background()
	score := MatchResultInput{Player1Sets: intPtr(3)}

	if _, err := svc.Submit(ctx, "missing", "1", score); !errors.Is(err, ErrTournamentNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown tournament: %v", err)
	}
	if _, err := svc.Submit(ctx, "T1", "99", score); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("unknown match: %v", err)
	}

	_, err := svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(4)})
	if !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("sets over cap: %v", err)
	}
	stored, _ := reg.GetMatch("T1", "1")
	if stored.Player1Sets != 0 || stored.Status != models.MatchStatusNotStarted {
		t.Errorf("rejected result mutated the match: %+v", stored)
	}
	if svc.Queue().Len() != 0 {
		t.Error("rejected result was queued")
	}
}

func TestSubmitUsesResultRuleFirst(t *testing.T) {
	svc, _, _ := newTestResultService(t, nil)
	rule := models.DefaultGameRule()
	rule.SetsToWin = 5

	res, err := svc.Submit(context.Background(), "T1", "1", MatchResultInput{
		Player1Sets: intPtr(5), Player2Sets: intPtr(4), GameRulesUsed: &rule,
	})
	if err != nil {
		t.Fatalf("Submit with wider rule: %v", err)
	}
	if res.RuleApplied.SetsToWin != 5 || res.Match.GameRulesUsed.SetsToWin != 5 {
		t.Errorf("rule applied = %+v", res.RuleApplied)
	}
}

func TestDrainDeliversAndRemoves(t *testing.T) {
	fwd := newFakeForwarder(nil)
	svc, _, _ := newTestResultService(t, fwd)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(3)}); err != nil {
		t.Fatal(err)
	}
	stats := svc.DrainQueue(ctx)
	if stats.Delivered != 1 || svc.Queue().Len() != 0 {
		t.Errorf("stats = %+v, queue = %d", stats, svc.Queue().Len())
	}
	if stats := svc.DrainQueue(ctx); stats.Attempted != 0 {
		t.Errorf("delivered item forwarded again: %+v", stats)
	}
}

func TestDrainGivesUpAfterMaxAttempts(t *testing.T) {
	fwd := newFakeForwarder(errors.New("planner offline"))
	svc, _, failures := newTestResultService(t, fwd)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(3)}); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < DefaultMaxForwardAttempts; i++ {
		if stats := svc.DrainQueue(ctx); stats.Retrying != 1 {
			t.Fatalf("attempt %d: %+v", i, stats)
		}
	}
	if stats := svc.DrainQueue(ctx); stats.Exhausted != 1 {
		t.Fatalf("final attempt: %+v", stats)
	}
	if svc.Queue().Len() != 0 {
		t.Error("exhausted item still queued")
	}
	if stats := svc.DrainQueue(ctx); stats.Attempted != 0 {
		t.Errorf("exhausted item retried: %+v", stats)
	}
	if fwd.total() != DefaultMaxForwardAttempts {
		t.Errorf("forward calls = %d", fwd.total())
	}

	failed, _ := failures.List(ctx, "T1", 0)
	if len(failed) != 1 || failed[0].Attempts != DefaultMaxForwardAttempts || failed[0].LastError == "" {
		t.Errorf("failure log = %+v", failed)
	}

	// Later submissions for the same tournament are unaffected.
	if _, err := svc.Submit(ctx, "T1", "2", MatchResultInput{Player2Sets: intPtr(3)}); err != nil {
		t.Fatalf("submission after exhausted forward: %v", err)
	}
	if svc.Queue().Len() != 1 {
		t.Errorf("queue = %d, want the new item only", svc.Queue().Len())
	}
}

func TestConcurrentDrainsDoNotDoubleForward(t *testing.T) {
	fwd := newFakeForwarder(nil)
	fwd.entered = make(chan struct{}, 1)
	fwd.release = make(chan struct{})
	svc, _, _ := newTestResultService(t, fwd)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(3)}); err != nil {
		t.Fatal(err)
	}

	done := make(chan DrainStats)
	go func() { done <- svc.DrainQueue(ctx) }()
	<-fwd.entered

	if stats := svc.DrainQueue(ctx); stats.Attempted != 0 {
		t.Errorf("second drain claimed an in-flight item: %+v", stats)
	}
	close(fwd.release)
	if stats := <-done; stats.Delivered != 1 {
		t.Errorf("first drain = %+v", stats)
	}
	if fwd.total() != 1 {
		t.Errorf("forward calls = %d, want 1", fwd.total())
	}
}

func TestForwardingStatus(t *testing.T) {
	svc, _, _ := newTestResultService(t, nil)
	ctx := context.Background()
	svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(3)})

	status, err := svc.ForwardingStatus(ctx, "T1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Pending) != 1 || len(status.Failed) != 0 {
		t.Errorf("status = %+v", status)
	}
	other, _ := svc.ForwardingStatus(ctx, "T2", 0)
	if len(other.Pending) != 0 {
		t.Error("pending items not filtered by tournament")
	}
}

func strPtr(s string) *string { return &s }

func TestRequeueFailedForward(t *testing.T) {
	fwd := newFakeForwarder(errors.New("planner offline"))
	svc, _, failures := newTestResultService(t, fwd)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "T1", "1", MatchResultInput{Player1Sets: intPtr(3)})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < DefaultMaxForwardAttempts; i++ {
		svc.DrainQueue(ctx)
	}
	if svc.Queue().Len() != 0 {
		t.Fatal("forward not exhausted")
	}

	item, err := svc.RequeueFailed(ctx, res.ForwardID)
	if err != nil {
		t.Fatalf("RequeueFailed: %v", err)
	}
	if item.Attempts != 0 || item.LastError != "" || !item.FailedAt.IsZero() {
		t.Errorf("requeued item not reset: %+v", item)
	}
	if failed, _ := failures.List(ctx, "T1", 0); len(failed) != 0 {
		t.Errorf("failure log still holds %d items", len(failed))
	}

	fwd.mu.Lock()
	fwd.err = nil
	fwd.mu.Unlock()
	if stats := svc.DrainQueue(ctx); stats.Delivered != 1 {
		t.Errorf("drain after requeue = %+v", stats)
	}

	if _, err := svc.RequeueFailed(ctx, res.ForwardID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second requeue = %v, want not found", err)
	}
}
