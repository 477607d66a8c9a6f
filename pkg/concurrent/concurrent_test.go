/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package concurrent

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	var calls atomic.Int64
	successes, err := Exec(8, func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 8, successes)
	assert.Equal(t, int64(8), calls.Load())
}

func TestExecPartialFailure(t *testing.T) {
	var calls atomic.Int64
	successes, err := Exec(4, func() error {
		if calls.Add(1)%2 == 0 {
			return fmt.Errorf("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, successes)
}

func TestExecZero(t *testing.T) {
	successes, err := Exec(0, func() error { return nil })
	assert.NoError(t, err)
	assert.Zero(t, successes)
}

func TestExecBounded(t *testing.T) {
	const limit = 3
	var mu sync.Mutex
	inFlight, peak := 0, 0
	seen := make([]bool, 32)

	err := ExecBounded(len(seen), limit, func(i int) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		seen[i] = true
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, limit)
	for i, ok := range seen {
		assert.True(t, ok, "index %d never ran", i)
	}
}

func TestExecBoundedFirstError(t *testing.T) {
	err := ExecBounded(10, 2, func(i int) error {
		if i == 7 {
			return fmt.Errorf("part 7 failed")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "part 7")
}

func TestExecBoundedUnbounded(t *testing.T) {
	var calls atomic.Int64
	require.NoError(t, ExecBounded(5, 0, func(int) error {
		calls.Add(1)
		return nil
	}))
	assert.Equal(t, int64(5), calls.Load())
}
