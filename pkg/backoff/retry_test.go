/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := Retry(func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	err := Retry(func() error {
		return fmt.Errorf("always")
	}, 50*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "always")
}

func TestLockRetryOnlyRetriesLocked(t *testing.T) {
	attempts := 0
	err := LockRetry(func() error {
		attempts++
		return fmt.Errorf("not a lock error")
	}, 5, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestLockRetryExhaustsCount(t *testing.T) {
	attempts := 0
	err := LockRetry(func() error {
		attempts++
		return storageerrors.NewResourceLocked("objects/avatars/cat.png")
	}, 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, storageerrors.IsResourceLocked(err))
}

func TestLockRetrySucceedsAfterContention(t *testing.T) {
	attempts := 0
	err := LockRetry(func() error {
		attempts++
		if attempts < 2 {
			return storageerrors.NewResourceLocked("objects/avatars/cat.png")
		}
		return nil
	}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
