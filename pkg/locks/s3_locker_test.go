/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package locks

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// fakeStore keeps lock objects in memory behind the ObjectStore seam.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, _, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
	return nil
}

func (s *fakeStore) PutIfAbsent(_ context.Context, _, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return storageerrors.NewKeyAlreadyExists(key)
	}
	s.objects[key] = body
	return nil
}

func (s *fakeStore) Read(_ context.Context, _, key, _ string, _ *backend.ReadOptions) (*backend.ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, storageerrors.NewNoSuchKey(key)
	}
	return &backend.ReadResult{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (s *fakeStore) Remove(_ context.Context, _, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return storageerrors.NewNoSuchKey(key)
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ string, opts *backend.ListOptions) (*backend.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	result := &backend.ListResult{}
	for _, key := range keys {
		result.Entries = append(result.Entries, backend.ListEntry{Key: key})
	}
	return result, nil
}

func newTestLocker(store *fakeStore) *S3Locker {
	return &S3Locker{
		store:     store,
		bucket:    "store",
		keyPrefix: "locks/",
		ttl:       time.Minute,
		renewal:   time.Second,
		opts:      Options{AcquireTimeout: time.Second, RetryInterval: 10 * time.Millisecond},
	}
}

func putLock(t *testing.T, store *fakeStore, key, holderId string, expiresAt time.Time) {
	t.Helper()
	body := lockBody{
		LockId:    key,
		HolderId:  holderId,
		CreatedAt: timeutil.FormatRFC3339(time.Now()),
		ExpiresAt: timeutil.FormatRFC3339(expiresAt),
	}
	require.NoError(t, store.Put(context.Background(), "store", key, jsonutils.MarshalSilently(body)))
}

func TestTryPutConflicts(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store)
	id := LockId{TenantId: "t1", Bucket: "avatars", Key: "cat.png", Version: "v1"}
	key := locker.lockKey(id)

	require.NoError(t, locker.tryPut(context.Background(), key, id, "holder-a"))
	err := locker.tryPut(context.Background(), key, id, "holder-b")
	require.Error(t, err)
	assert.True(t, storageerrors.IsAlreadyExists(err))
}

func TestRemoveIfExpired(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store)

	putLock(t, store, "locks/live", "h1", time.Now().Add(time.Minute))
	expired, err := locker.removeIfExpired(context.Background(), "locks/live")
	require.NoError(t, err)
	assert.False(t, expired)

	putLock(t, store, "locks/stale", "h2", time.Now().Add(-time.Minute))
	expired, err = locker.removeIfExpired(context.Background(), "locks/stale")
	require.NoError(t, err)
	assert.True(t, expired)
	_, ok := store.objects["locks/stale"]
	assert.False(t, ok)

	// a missing lock counts as expired
	expired, err = locker.removeIfExpired(context.Background(), "locks/gone")
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestRenewRefusesForeignHolder(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store)
	id := LockId{TenantId: "t1", Bucket: "avatars", Key: "cat.png", Version: "v1"}
	key := locker.lockKey(id)

	putLock(t, store, key, "holder-a", time.Now().Add(time.Minute))
	err := locker.renew(context.Background(), key, id, "holder-b")
	require.Error(t, err)
	assert.True(t, storageerrors.IsResourceLocked(err))

	require.NoError(t, locker.renew(context.Background(), key, id, "holder-a"))
	body, err := locker.readBody(context.Background(), key)
	require.NoError(t, err)
	assert.NotEmpty(t, body.RenewedAt)
}

func TestCleanupZombieLocks(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store)

	putLock(t, store, "locks/stale-1", "h1", time.Now().Add(-time.Hour))
	putLock(t, store, "locks/stale-2", "h2", time.Now().Add(-time.Minute))
	putLock(t, store, "locks/live", "h3", time.Now().Add(time.Hour))
	require.NoError(t, store.Put(context.Background(), "store", "objects/not-a-lock", []byte("x")))

	removed, err := locker.CleanupZombieLocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	_, live := store.objects["locks/live"]
	assert.True(t, live)
	_, other := store.objects["objects/not-a-lock"]
	assert.True(t, other)
}
