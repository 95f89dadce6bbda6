// Package locks provides keyed advisory locks. A lock is addressed by an
// arbitrary string key, hashed to a fixed slot space so the registry never
// grows with the number of distinct keys. Locks serialize critical sections
// for the same key without blocking unrelated keys.
package locks

import "sync"

// slotCount bounds the registry. Distinct keys may share a slot, which only
// costs extra serialization, never lost exclusion.
const slotCount = 1024

// Manager hands out advisory locks by key.
type Manager struct {
	slots [slotCount]sync.Mutex
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{}
}

// fnv1a64 hashes the key with FNV-1a. Reimplemented inline to keep the hot
// path allocation-free.
func fnv1a64(key string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= prime64
	}
	return h
}

// Lock acquires the advisory lock for key, blocking until available. The
// returned function releases it; callers must invoke it exactly once,
// typically via defer at the top of the guarded transaction.
func (m *Manager) Lock(key string) (unlock func()) {
	slot := &m.slots[fnv1a64(key)%slotCount]
	slot.Lock()
	return slot.Unlock
}
