package checkpoint

import (
	"context"
	"sync"
)

// Locker is a durable keyed mutex: every checkpoint mutation holds the
// exclusive lock for its storage key across the read-modify-write,
// reads hold the shared lock. The in-process implementation below
// covers single-job deployments; distributed deployments substitute a
// lease service (see infra/redis) without changing the Store contract.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
	RLock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex is the in-process Locker: one RWMutex per storage key,
// created lazily and never discarded (checkpoint key cardinality is one
// per job/range, so growth is bounded).
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.RWMutex)}
}

func (m *KeyedMutex) get(key string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[key] = l
	}
	return l
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l := m.get(key)
	l.Lock()
	return l.Unlock, nil
}

func (m *KeyedMutex) RLock(ctx context.Context, key string) (func(), error) {
	l := m.get(key)
	l.RLock()
	return l.RUnlock, nil
}
