package services

import (
	"sync"
	"time"

	"github.com/Dosada05/tournament-hub/models"
)

const DefaultMaxForwardAttempts = 3

type queuedForward struct {
	item     *models.PendingForward
	inFlight bool
}

// ForwardQueue holds accepted results until the system of record confirms them.
// An item is claimed by exactly one drain at a time.
type ForwardQueue struct {
	mu    sync.Mutex
	items []*queuedForward
}

func NewForwardQueue() *ForwardQueue {
	return &ForwardQueue{}
}

func (q *ForwardQueue) Enqueue(item *models.PendingForward) {
	q.mu.Lock()
	q.items = append(q.items, &queuedForward{item: item})
	q.mu.Unlock()
}

// claim marks every idle item as in flight and returns copies of them in
// enqueue order.
func (q *ForwardQueue) claim() []*models.PendingForward {
	q.mu.Lock()
	defer q.mu.Unlock()

	claimed := make([]*models.PendingForward, 0, len(q.items))
	for _, qf := range q.items {
		if qf.inFlight {
			continue
		}
		qf.inFlight = true
		c := *qf.item
		claimed = append(claimed, &c)
	}
	return claimed
}

func (q *ForwardQueue) complete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(id)
}

// fail records a failed attempt. When the item has used up its attempts it is
// removed and returned so the caller can log it as a permanent failure.
func (q *ForwardQueue) fail(id string, cause error, at time.Time) *models.PendingForward {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, qf := range q.items {
		if qf.item.ID != id {
			continue
		}
		qf.inFlight = false
		qf.item.Attempts++
		qf.item.LastError = cause.Error()
		if qf.item.Attempts < qf.item.MaxAttempts {
			return nil
		}
		qf.item.FailedAt = at
		exhausted := *qf.item
		q.remove(id)
		return &exhausted
	}
	return nil
}

func (q *ForwardQueue) remove(id string) {
	for i, qf := range q.items {
		if qf.item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Pending returns copies of the queued items, in flight or not.
func (q *ForwardQueue) Pending(tournamentID string) []*models.PendingForward {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.PendingForward, 0, len(q.items))
	for _, qf := range q.items {
		if tournamentID != "" && qf.item.TournamentID != tournamentID {
			continue
		}
		c := *qf.item
		out = append(out, &c)
	}
	return out
}

func (q *ForwardQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
