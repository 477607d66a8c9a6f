/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"strings"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/locks"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// Enqueuer schedules background jobs; satisfied by the queue.
type Enqueuer interface {
	Send(ctx context.Context, name string, payload any) (string, error)
}

// Manager enforces the object lifecycle: exactly one live version per
// (bucket, key) under concurrent writers, readers, copies and deletes.
// Writers hold the distributed lock for the duration of their backend and
// catalog work; stale versions are purged by background jobs.
type Manager struct {
	registry *tenant.Registry
	store    backend.Backend
	locker   locks.Locker
	enqueuer Enqueuer
	bucket   string
}

// NewManager wires the lifecycle manager over its collaborators.
func NewManager(registry *tenant.Registry, store backend.Backend, locker locks.Locker, enqueuer Enqueuer) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		locker:   locker,
		enqueuer: enqueuer,
		bucket:   config.GetStorageBucket(),
	}
}

// physicalKey maps a logical object onto the shared backend namespace.
func physicalKey(tenantId, bucketName, objectName string) string {
	return tenantId + "/" + bucketName + "/" + objectName
}

// ValidateBucketName rejects empty names and names with surrounding
// whitespace; unicode is fine.
func ValidateBucketName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return storageerrors.NewInvalidBucketName(name)
	}
	if strings.ContainsAny(name, "/\x00") {
		return storageerrors.NewInvalidBucketName(name)
	}
	return nil
}

// ValidateObjectKey rejects empty keys, traversal segments and NUL bytes.
func ValidateObjectKey(key string) error {
	if key == "" || strings.ContainsRune(key, '\x00') {
		return storageerrors.NewInvalidKey(key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return storageerrors.NewInvalidKey(key)
		}
	}
	return nil
}

// checkMimeType enforces the bucket's allow-list when one is set.
func checkMimeType(bucket *dbclient.Bucket, contentType string) error {
	if len(bucket.AllowedMimeTypes) == 0 {
		return nil
	}
	for _, allowed := range bucket.AllowedMimeTypes {
		if allowed == "*/*" || strings.EqualFold(allowed, contentType) {
			return nil
		}
		// prefix match for patterns like image/*
		if strings.HasSuffix(allowed, "/*") &&
			strings.HasPrefix(strings.ToLower(contentType), strings.ToLower(strings.TrimSuffix(allowed, "*"))) {
			return nil
		}
	}
	return storageerrors.NewInvalidMimeType(contentType)
}

// sizeLimit resolves the effective cap: the bucket's own limit when set,
// else the service-wide maximum. Zero means unlimited.
func sizeLimit(bucket *dbclient.Bucket) int64 {
	if bucket.FileSizeLimit.Valid && bucket.FileSizeLimit.Int64 > 0 {
		return bucket.FileSizeLimit.Int64
	}
	return config.GetStorageMaxFileSize()
}
