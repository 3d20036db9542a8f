// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ForEach(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := NewWithParallelism(parallelism)
		const numTasks = 20
		var count, running, maxRunning atomic.Int32
		var mu sync.Mutex
		seen := make([]bool, numTasks)
		pool.ForEach(numTasks, func(ii int) {
			current := running.Add(1)
			for {
				prev := maxRunning.Load()
				if current <= prev || maxRunning.CompareAndSwap(prev, current) {
					break
				}
			}
			mu.Lock()
			seen[ii] = true
			mu.Unlock()
			count.Add(1)
			running.Add(-1)
		})
		assert.Equal(t, int32(numTasks), count.Load(), "parallelism=%d", parallelism)
		for ii, s := range seen {
			assert.True(t, s, "task %d not run with parallelism=%d", ii, parallelism)
		}
		if parallelism > 0 {
			assert.LessOrEqual(t, int(maxRunning.Load()), parallelism)
		}
		if parallelism == 0 {
			assert.Equal(t, int32(1), maxRunning.Load())
		}
	}
}

func TestPool_Settings(t *testing.T) {
	pool := New()
	assert.True(t, pool.IsEnabled())
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	assert.Equal(t, -1, pool.MaxParallelism())
}
