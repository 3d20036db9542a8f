// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vectorization

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/gomlx/fusion/internal/workerspool"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// ResolveAll resolves independent fusion groups in parallel, at most pool.MaxParallelism at a time.
// If pool is nil, a default pool with runtime.NumCPU() workers is used.
//
// The mappings are returned in the order of the plans. If any plan fails, the error of the first
// failing plan (in plan order) is returned.
func (r *Resolver) ResolveAll(pool *workerspool.Pool, plans []*ir.Plan) ([]*Mapping, error) {
	if pool == nil {
		pool = workerspool.New()
	}
	mappings := make([]*Mapping, len(plans))
	errs := make([]error, len(plans))
	pool.ForEach(len(plans), func(ii int) {
		mappings[ii], errs[ii] = r.Resolve(plans[ii])
	})
	for ii, err := range errs {
		if err != nil {
			return nil, errors.WithMessagef(err, "fusion group #%d", ii)
		}
	}
	return mappings, nil
}

// PlanKey returns a fingerprint of the plan, suitable as a Cache key.
func PlanKey(plan *ir.Plan) (string, error) {
	blob, err := json.Marshal(plan)
	if err != nil {
		return "", errors.Wrapf(err, "failed to serialize fusion plan")
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}

// Cache memoizes the mappings of a Resolver by key, typically the PlanKey of the fusion group.
//
// Concurrent requests for the same key are resolved only once. It is safe for concurrent use.
type Cache struct {
	resolver *Resolver
	group    singleflight.Group

	mu      sync.Mutex
	entries map[string]*Mapping
}

// NewCache creates a Cache for the resolver.
func NewCache(resolver *Resolver) *Cache {
	return &Cache{resolver: resolver, entries: make(map[string]*Mapping)}
}

// Resolve returns the cached mapping for the key, or resolves the plan and caches it.
// Failures are not cached.
//
// The returned Mapping is a copy owned by the caller.
func (c *Cache) Resolve(key string, plan *ir.Plan) (*Mapping, error) {
	c.mu.Lock()
	mapping, found := c.entries[key]
	c.mu.Unlock()
	if found {
		return mapping.Clone(), nil
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		mapping, found := c.entries[key]
		c.mu.Unlock()
		if found {
			return mapping, nil
		}
		mapping, err := c.resolver.Resolve(plan)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = mapping
		c.mu.Unlock()
		return mapping, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Mapping).Clone(), nil
}

// ResolvePlan is like Resolve, using PlanKey(plan) as the key.
func (c *Cache) ResolvePlan(plan *ir.Plan) (*Mapping, error) {
	key, err := PlanKey(plan)
	if err != nil {
		return nil, err
	}
	return c.Resolve(key, plan)
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops all cached mappings.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Mapping)
}
