/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package locks

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/pubsub"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// DBLocker serializes writers through a session-level Postgres advisory
// lock on the tenant database. The holder keeps a dedicated connection for
// the lock's lifetime; peers waiting on the same id publish release
// requests on the bus and retry until the acquisition budget runs out.
type DBLocker struct {
	registry *tenant.Registry
	bus      *pubsub.Bus
	opts     Options
}

// NewDBLocker creates the advisory-lock variant.
func NewDBLocker(registry *tenant.Registry, bus *pubsub.Bus, opts Options) *DBLocker {
	return &DBLocker{registry: registry, bus: bus, opts: opts}
}

// WithLock acquires the advisory lock for the id, runs fn, and releases.
func (l *DBLocker) WithLock(ctx context.Context, id LockId, onReleaseRequest func(), fn func(ctx context.Context) error) error {
	client, err := l.registry.CatalogClient(id.TenantId)
	if err != nil {
		return err
	}
	key := dbclient.LockKey(id.TenantId, id.Bucket, id.Key, id.Version)
	deadline := time.Now().Add(l.opts.AcquireTimeout)

	for {
		if err = ctx.Err(); err != nil {
			return storageerrors.NewAborted(err.Error())
		}
		acquired, err := l.tryAcquire(ctx, client, key, id, onReleaseRequest, fn)
		if err != nil || acquired {
			return err
		}
		if time.Now().Add(l.opts.RetryInterval).After(deadline) {
			return storageerrors.NewLockTimeout(id.String())
		}
		// ask the current holder to yield, then back off
		if pubErr := l.bus.Publish(ctx, pubsub.RequestLockRelease, id.String()); pubErr != nil {
			klog.V(4).Infof("failed to publish release request for %s: %v", id.String(), pubErr)
		}
		select {
		case <-ctx.Done():
			return storageerrors.NewAborted(ctx.Err().Error())
		case <-time.After(l.opts.RetryInterval):
		}
	}
}

// tryAcquire makes one acquisition attempt. It returns acquired=false with
// a nil error when the lock is busy.
func (l *DBLocker) tryAcquire(ctx context.Context, client *dbclient.TenantClient, key int64,
	id LockId, onReleaseRequest func(), fn func(ctx context.Context) error) (bool, error) {
	conn, err := client.Conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	var acquired bool
	if err = conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock($1)`, key); err != nil {
		return false, storageerrors.NewDatabaseError(err.Error())
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		var released bool
		// unlock on a fresh context: the request may already be canceled
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if unlockErr := conn.GetContext(unlockCtx, &released, `SELECT pg_advisory_unlock($1)`, key); unlockErr != nil {
			klog.ErrorS(unlockErr, "failed to release advisory lock", "id", id.String())
		}
	}()

	unsubscribe, err := l.bus.Subscribe(pubsub.RequestLockRelease, func(payload string) {
		if payload == id.String() && onReleaseRequest != nil {
			onReleaseRequest()
		}
	})
	if err != nil {
		return false, err
	}
	defer unsubscribe()

	return true, fn(ctx)
}

// CleanupZombieLocks is a no-op: session advisory locks die with their
// connection.
func (l *DBLocker) CleanupZombieLocks(_ context.Context) (int, error) {
	return 0, nil
}
