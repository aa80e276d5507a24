package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// lockManager hands out one exclusive slot per account id.
type lockManager struct {
	mu   sync.Mutex
	sems map[uuid.UUID]chan struct{}
}

func newLockManager() *lockManager {
	return &lockManager{sems: make(map[uuid.UUID]chan struct{})}
}

func (m *lockManager) semaphore(id uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	sem, ok := m.sems[id]
	if !ok {
		sem = make(chan struct{}, 1)
		m.sems[id] = sem
	}
	return sem
}

// acquire blocks until the slot for id is free, the timeout elapses or ctx is done.
// A non-positive timeout waits indefinitely.
func (m *lockManager) acquire(ctx context.Context, id uuid.UUID, timeout time.Duration) error {
	sem := m.semaphore(id)

	select {
	case sem <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case sem <- struct{}{}:
		return nil
	case <-expired:
		return fmt.Errorf("account %s: %w", id, domain.ErrLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *lockManager) release(id uuid.UUID) {
	<-m.semaphore(id)
}
