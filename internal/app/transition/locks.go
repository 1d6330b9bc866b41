package transition

import (
	"context"
	"sync"
)

// lockTable serializes writers per order id. The lock is scoped to one order,
// never global: concurrent transitions against different orders proceed in
// parallel, concurrent transitions against the same order queue.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the per-order lock is held or ctx is done. The
// returned release func is safe to call exactly once via defer; the entry is
// dropped once the last waiter leaves, so the table stays bounded by the
// number of in-flight orders.
func (t *lockTable) acquire(ctx context.Context, orderID string) (func(), error) {
	t.mu.Lock()
	e := t.entries[orderID]
	if e == nil {
		e = &lockEntry{slot: make(chan struct{}, 1)}
		t.entries[orderID] = e
	}
	e.refs++
	t.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-e.slot
				t.drop(orderID, e)
			})
		}
		return release, nil
	case <-ctx.Done():
		t.drop(orderID, e)
		return nil, ctx.Err()
	}
}

func (t *lockTable) drop(orderID string, e *lockEntry) {
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, orderID)
	}
	t.mu.Unlock()
}
