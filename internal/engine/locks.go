package engine

import "sync"

// matchLocks hands out one mutex per match id. Every engine operation holds
// the match's mutex across its whole read-modify-write cycle, which is what
// serializes concurrent callers and makes solve-win vs. timeout ordering
// deterministic.
type matchLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *matchLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// forget drops a match's mutex after the match is deleted.
func (l *matchLocks) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, id)
}
