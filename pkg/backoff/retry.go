/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// Retry executes an operation with exponential backoff retry logic.
// It retries the operation with exponential backoff intervals until the
// operation succeeds or the maximum elapsed time is reached.
func Retry(op backoff.Operation, maxElapsedTime, maxInterval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsedTime
	b.MaxInterval = maxInterval
	if err := backoff.Retry(op, b); err != nil {
		return err
	}
	return nil
}

// LockRetry executes an operation with fixed-interval retry logic for lock
// contention. It retries only while the error is ResourceLocked; any other
// error, or reaching the maximum retry count, stops the loop.
func LockRetry(op backoff.Operation, count int, interval time.Duration) error {
	var err error
	for i := 0; i < count; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !storageerrors.IsResourceLocked(err) {
			return err
		}
		if i < count-1 {
			time.Sleep(interval)
		}
	}
	return err
}
