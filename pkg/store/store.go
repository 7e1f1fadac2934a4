// Package store holds the current plan for every live interview session.
//
// The store is the only shared mutable state in the service. Values are copied on the
// way in and out, so callers never share memory with the stored plan, and a Put is a
// single exclusive write: concurrent writers to one key resolve last-writer-wins.
// Entries are never evicted; Len exposes growth.
package store

import (
	"hash/fnv"
	"sync"

	"interviewer/pkg/plan"
)

// Store is a keyed, concurrency-safe plan store.
type Store interface {
	// Get returns a copy of the plan for key.
	Get(key string) (plan.Plan, bool)
	// Put replaces the plan for key.
	Put(key string, p plan.Plan)
	// GetOrInit returns the stored plan for key, storing fallback first if key is absent.
	GetOrInit(key string, fallback plan.Plan) plan.Plan
	// Len returns the number of sessions held.
	Len() int
}

// DefaultShards is used when NewMemoryStore is given a non-positive shard count.
const DefaultShards = 16

type shard struct {
	mu    sync.RWMutex
	plans map[string]plan.Plan
}

// MemoryStore is an in-process Store sharded by key hash so unrelated sessions rarely
// contend on the same lock.
type MemoryStore struct {
	shards []*shard
}

// NewMemoryStore creates a store with n shards.
func NewMemoryStore(n int) *MemoryStore {
	if n <= 0 {
		n = DefaultShards
	}
	s := &MemoryStore{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{plans: make(map[string]plan.Plan)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (plan.Plan, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	p, ok := sh.plans[key]
	if !ok {
		return plan.Plan{}, false
	}
	return p.Clone(), true
}

// Put implements Store.
func (s *MemoryStore) Put(key string, p plan.Plan) {
	stored := p.Clone()

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.plans[key] = stored
}

// GetOrInit implements Store. The check and the insert happen under one lock.
func (s *MemoryStore) GetOrInit(key string, fallback plan.Plan) plan.Plan {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if p, ok := sh.plans[key]; ok {
		return p.Clone()
	}
	sh.plans[key] = fallback.Clone()
	return fallback.Clone()
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.plans)
		sh.mu.RUnlock()
	}
	return n
}
