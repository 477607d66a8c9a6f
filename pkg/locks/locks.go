/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package locks

import (
	"context"
	"time"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// LockId identifies one object mutation. Its string form matches the
// storage key shape so lock ids and upload ids serialize identically.
type LockId struct {
	TenantId string
	Bucket   string
	Key      string
	Version  string
}

// String renders tenant/bucket/key followed by the version separator.
func (id LockId) String() string {
	return id.TenantId + "/" + id.Bucket + "/" + id.Key +
		config.GetFileVersionSeparator() + id.Version
}

// Locker is the cluster-wide mutex per object. fn runs while the lock is
// held; its context is canceled when the holder loses the lock (renewal
// failure must surface, not silently continue). onReleaseRequest fires when
// a peer asks the holder to yield; it is a hint, the holder decides when.
type Locker interface {
	WithLock(ctx context.Context, id LockId, onReleaseRequest func(), fn func(ctx context.Context) error) error
	// CleanupZombieLocks removes lock residue whose expiry has passed and
	// returns the number removed. A no-op for variants with no residue.
	CleanupZombieLocks(ctx context.Context) (int, error)
}

// Options bound the acquisition loop, shared by both variants.
type Options struct {
	AcquireTimeout time.Duration
	RetryInterval  time.Duration
}

// OptionsFromConfig reads the configured acquisition budget.
func OptionsFromConfig() Options {
	return Options{
		AcquireTimeout: time.Duration(config.GetLockAcquireTimeoutSecond()) * time.Second,
		RetryInterval:  time.Duration(config.GetLockRetryIntervalMs()) * time.Millisecond,
	}
}

// Variants selectable through configuration.
const (
	VariantDB = "db"
	VariantS3 = "s3"
)

// ObjectStore is the slice of the blob backend the object-store lock
// variant needs.
type ObjectStore interface {
	PutIfAbsent(ctx context.Context, bucket, key string, body []byte) error
	Put(ctx context.Context, bucket, key string, body []byte) error
	Read(ctx context.Context, bucket, key, version string, opts *backend.ReadOptions) (*backend.ReadResult, error)
	Remove(ctx context.Context, bucket, key, version string) error
	List(ctx context.Context, bucket string, opts *backend.ListOptions) (*backend.ListResult, error)
}
