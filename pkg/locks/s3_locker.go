/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package locks

import (
	"context"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/pubsub"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// lockBody is the JSON payload of a lock object.
type lockBody struct {
	LockId    string `json:"lockId"`
	HolderId  string `json:"holderId"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
	RenewedAt string `json:"renewedAt,omitempty"`
}

// S3Locker serializes writers through conditional lock objects on the blob
// store. A renewal timer rewrites the lock body while held; losing a
// renewal cancels the holder's context so the fault surfaces to the caller.
type S3Locker struct {
	store     ObjectStore
	bus       *pubsub.Bus
	bucket    string
	keyPrefix string
	ttl       time.Duration
	renewal   time.Duration
	opts      Options
}

// NewS3Locker creates the object-store variant.
func NewS3Locker(store ObjectStore, bus *pubsub.Bus, opts Options) *S3Locker {
	return &S3Locker{
		store:     store,
		bus:       bus,
		bucket:    config.GetStorageBucket(),
		keyPrefix: config.GetLockS3KeyPrefix(),
		ttl:       time.Duration(config.GetLockTTLSecond()) * time.Second,
		renewal:   time.Duration(config.GetLockRenewIntervalSecond()) * time.Second,
		opts:      opts,
	}
}

func (l *S3Locker) lockKey(id LockId) string {
	return l.keyPrefix + id.String()
}

// WithLock acquires the lock object for the id, runs fn under a context
// canceled on renewal failure, and deletes the lock object on the way out.
func (l *S3Locker) WithLock(ctx context.Context, id LockId, onReleaseRequest func(), fn func(ctx context.Context) error) error {
	key := l.lockKey(id)
	holderId := uuid.NewString()
	deadline := time.Now().Add(l.opts.AcquireTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return storageerrors.NewAborted(err.Error())
		}
		err := l.tryPut(ctx, key, id, holderId)
		if err == nil {
			return l.hold(ctx, key, id, holderId, onReleaseRequest, fn)
		}
		if !storageerrors.IsAlreadyExists(err) {
			return err
		}
		// on conflict, evict the lock if its holder already expired
		expired, readErr := l.removeIfExpired(ctx, key)
		if readErr != nil {
			return readErr
		}
		if expired {
			continue
		}
		if pubErr := l.bus.Publish(ctx, pubsub.RequestLockRelease, id.String()); pubErr != nil {
			klog.V(4).Infof("failed to publish release request for %s: %v", id.String(), pubErr)
		}
		// jittered backoff so contending peers do not retry in lockstep
		backoff := l.opts.RetryInterval + time.Duration(rand.Int63n(int64(l.opts.RetryInterval)/2+1))
		if time.Now().Add(backoff).After(deadline) {
			return storageerrors.NewLockTimeout(id.String())
		}
		select {
		case <-ctx.Done():
			return storageerrors.NewAborted(ctx.Err().Error())
		case <-time.After(backoff):
		}
	}
}

func (l *S3Locker) tryPut(ctx context.Context, key string, id LockId, holderId string) error {
	now := time.Now()
	body := lockBody{
		LockId:    id.String(),
		HolderId:  holderId,
		CreatedAt: timeutil.FormatRFC3339(now),
		ExpiresAt: timeutil.FormatRFC3339(now.Add(l.ttl)),
	}
	return l.store.PutIfAbsent(ctx, l.bucket, key, jsonutils.MarshalSilently(body))
}

func (l *S3Locker) readBody(ctx context.Context, key string) (*lockBody, error) {
	result, err := l.store.Read(ctx, l.bucket, key, "", nil)
	if err != nil {
		if storageerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	var body lockBody
	if err = jsonutils.Unmarshal(data, &body); err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	return &body, nil
}

// removeIfExpired deletes the lock object when its expiry has passed. A
// missing lock counts as expired (the holder released between our attempts).
func (l *S3Locker) removeIfExpired(ctx context.Context, key string) (bool, error) {
	body, err := l.readBody(ctx, key)
	if err != nil {
		return false, err
	}
	if body == nil {
		return true, nil
	}
	expiresAt, err := timeutil.ParseRFC3339(body.ExpiresAt)
	if err != nil || time.Now().After(expiresAt) {
		if removeErr := l.store.Remove(ctx, l.bucket, key, ""); removeErr != nil {
			return false, removeErr
		}
		return true, nil
	}
	return false, nil
}

// hold runs fn while renewing the lock; renewal failure cancels fn's
// context so the holder cannot silently continue without the lock.
func (l *S3Locker) hold(ctx context.Context, key string, id LockId, holderId string,
	onReleaseRequest func(), fn func(ctx context.Context) error) error {
	heldCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	unsubscribe, err := l.bus.Subscribe(pubsub.RequestLockRelease, func(payload string) {
		if payload == id.String() && onReleaseRequest != nil {
			onReleaseRequest()
		}
	})
	if err != nil {
		_ = l.unlock(key)
		return err
	}
	defer unsubscribe()

	stopRenew := make(chan struct{})
	defer close(stopRenew)
	go func() {
		ticker := time.NewTicker(l.renewal)
		defer ticker.Stop()
		for {
			select {
			case <-stopRenew:
				return
			case <-heldCtx.Done():
				return
			case <-ticker.C:
				if renewErr := l.renew(heldCtx, key, id, holderId); renewErr != nil {
					klog.ErrorS(renewErr, "lock renewal failed", "id", id.String())
					cancel(storageerrors.NewResourceLocked(id.String()))
					return
				}
			}
		}
	}()

	err = fn(heldCtx)
	if cause := context.Cause(heldCtx); cause != nil && ctx.Err() == nil {
		err = cause
	}
	if unlockErr := l.unlock(key); unlockErr != nil {
		klog.ErrorS(unlockErr, "failed to remove lock object", "id", id.String())
	}
	return err
}

func (l *S3Locker) renew(ctx context.Context, key string, id LockId, holderId string) error {
	body, err := l.readBody(ctx, key)
	if err != nil {
		return err
	}
	if body == nil || body.HolderId != holderId {
		return storageerrors.NewResourceLocked(id.String())
	}
	now := time.Now()
	body.ExpiresAt = timeutil.FormatRFC3339(now.Add(l.ttl))
	body.RenewedAt = timeutil.FormatRFC3339(now)
	return l.store.Put(ctx, l.bucket, key, jsonutils.MarshalSilently(body))
}

// unlock deletes the lock object; idempotent and safe after cancellation.
func (l *S3Locker) unlock(key string) error {
	unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.store.Remove(unlockCtx, l.bucket, key, "")
	if err != nil && !storageerrors.IsNotFound(err) {
		return err
	}
	return nil
}

// CleanupZombieLocks sweeps lock objects whose expiry has passed, covering
// holders that died without releasing.
func (l *S3Locker) CleanupZombieLocks(ctx context.Context) (int, error) {
	removed := 0
	token := ""
	for {
		page, err := l.store.List(ctx, l.bucket, &backend.ListOptions{
			Prefix:    l.keyPrefix,
			NextToken: token,
		})
		if err != nil {
			return removed, err
		}
		for _, entry := range page.Entries {
			expired, err := l.removeIfExpired(ctx, entry.Key)
			if err != nil {
				klog.ErrorS(err, "failed to sweep lock object", "key", entry.Key)
				continue
			}
			if expired {
				removed++
			}
		}
		if page.NextToken == "" {
			return removed, nil
		}
		token = page.NextToken
	}
}
