/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tenant

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// Pool is anything the manager can evict; a released pool closes its
// connections.
type Pool interface {
	Release() error
}

// PoolManager keeps the process-wide cache of tenant connection pools. When
// the cache exceeds its cap the oldest entry is released; a re-registered
// tenant replaces (and releases) its previous pool.
type PoolManager struct {
	mu      sync.Mutex
	pools   map[string]Pool
	order   []string
	maxSize int
}

// NewPoolManager creates a pool cache holding at most maxSize entries.
func NewPoolManager(maxSize int) *PoolManager {
	return &PoolManager{
		pools:   make(map[string]Pool),
		maxSize: maxSize,
	}
}

// Get returns the cached pool for the key.
func (pm *PoolManager) Get(key string) (Pool, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pool, ok := pm.pools[key]
	return pool, ok
}

// Add caches a pool, failing when the key is already present.
func (pm *PoolManager) Add(key string, pool Pool) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, ok := pm.pools[key]; ok {
		return fmt.Errorf("pool %s already exists", key)
	}
	pm.insert(key, pool)
	return nil
}

// AddOrReplace caches a pool, releasing any previous pool under the key.
func (pm *PoolManager) AddOrReplace(key string, pool Pool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if old, ok := pm.pools[key]; ok {
		pm.releaseLocked(key, old)
	}
	pm.insert(key, pool)
}

// Remove evicts and releases the pool under the key; idempotent.
func (pm *PoolManager) Remove(key string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pool, ok := pm.pools[key]; ok {
		pm.releaseLocked(key, pool)
	}
}

// Len returns the number of cached pools.
func (pm *PoolManager) Len() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.pools)
}

// ReleaseAll drains the cache, releasing every pool.
func (pm *PoolManager) ReleaseAll() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for key, pool := range pm.pools {
		pm.releaseLocked(key, pool)
	}
}

func (pm *PoolManager) insert(key string, pool Pool) {
	for pm.maxSize > 0 && len(pm.pools) >= pm.maxSize && len(pm.order) > 0 {
		oldest := pm.order[0]
		if victim, ok := pm.pools[oldest]; ok {
			pm.releaseLocked(oldest, victim)
		} else {
			pm.order = pm.order[1:]
		}
	}
	pm.pools[key] = pool
	pm.order = append(pm.order, key)
}

func (pm *PoolManager) releaseLocked(key string, pool Pool) {
	if err := pool.Release(); err != nil {
		klog.ErrorS(err, "failed to release pool", "key", key)
	}
	delete(pm.pools, key)
	for i, k := range pm.order {
		if k == key {
			pm.order = append(pm.order[:i], pm.order[i+1:]...)
			break
		}
	}
}
