package engine

import "sync"

// LockMap hands out per-workflow execution locks so each workflow runs at
// most once at a time within this process.
type LockMap struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewLockMap creates an empty lock map
func NewLockMap() *LockMap {
	return &LockMap{locks: make(map[int64]*sync.Mutex)}
}

// TryAcquire attempts to take the lock for a workflow without blocking.
// On success it returns a release func; on failure the workflow is
// already running.
func (l *LockMap) TryAcquire(workflowID int64) (func(), bool) {
	l.mu.Lock()
	m, ok := l.locks[workflowID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[workflowID] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
