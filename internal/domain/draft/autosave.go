package draft

import (
	"context"
	"sync"
	"time"

	"github.com/responda/responda/internal/platform/debounce"
)

// AutoSaver coalesces draft updates and writes the latest one once input
// pauses for the debounce window. Update never blocks on storage.
type AutoSaver struct {
	svc     *Service
	owner   Owner
	timeout time.Duration
	deb     *debounce.Debouncer

	mu      sync.Mutex
	latest  *Draft
	lastErr error
}

// NewAutoSaver returns an AutoSaver writing owner's drafts through svc
// after wait.
func NewAutoSaver(svc *Service, owner Owner, wait time.Duration) *AutoSaver {
	a := &AutoSaver{svc: svc, owner: owner, timeout: 5 * time.Second}
	a.deb = debounce.New(wait, a.save)
	return a
}

// Update records d as the newest state and schedules a save.
func (a *AutoSaver) Update(d Draft) {
	a.mu.Lock()
	a.latest = &d
	a.mu.Unlock()
	a.deb.Trigger()
}

// Flush writes a pending update immediately.
func (a *AutoSaver) Flush() error {
	a.deb.Flush()
	return a.Err()
}

// Err returns the result of the most recent save.
func (a *AutoSaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Close flushes and stops accepting updates.
func (a *AutoSaver) Close() error {
	err := a.Flush()
	a.deb.Stop()
	return err
}

func (a *AutoSaver) save() {
	a.mu.Lock()
	d := a.latest
	a.latest = nil
	a.mu.Unlock()
	if d == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	err := a.svc.Save(ctx, a.owner, d)

	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}
