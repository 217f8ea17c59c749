package services

import (
	"sync"
	"time"
)

// Status reflects the gateway/archive state for the UI's transient
// banner. Only the transitions are part of the contract; the rendered
// text belongs to the presentation layer.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
	StatusSyncing Status = "syncing"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

// StatusUpdate is one transition. Reason is set for error states.
type StatusUpdate struct {
	Status Status    `json:"status"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

func (u StatusUpdate) String() string {
	if u.Status == StatusError && u.Reason != "" {
		return string(u.Status) + ":" + u.Reason
	}
	return string(u.Status)
}

// statusTracker keeps the latest transition and fans updates out to
// subscribers. Slow subscribers drop updates instead of blocking the
// save path.
type statusTracker struct {
	mu      sync.Mutex
	current StatusUpdate
	subs    map[int]chan StatusUpdate
	nextID  int
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		current: StatusUpdate{Status: StatusIdle, At: time.Now()},
		subs:    make(map[int]chan StatusUpdate),
	}
}

func (t *statusTracker) set(status Status, reason string) StatusUpdate {
	update := StatusUpdate{Status: status, Reason: reason, At: time.Now()}
	t.mu.Lock()
	t.current = update
	for _, ch := range t.subs {
		select {
		case ch <- update:
		default:
		}
	}
	t.mu.Unlock()
	return update
}

func (t *statusTracker) Current() StatusUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subscribe returns a channel of future transitions and a cancel
// function that must be called to release it.
func (t *statusTracker) Subscribe() (<-chan StatusUpdate, func()) {
	ch := make(chan StatusUpdate, 8)
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
	return ch, cancel
}
