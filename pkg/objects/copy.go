/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"time"

	cenkbackoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backoff"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/concurrent"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/locks"
)

// CopyParams describes a copy or move between keys.
type CopyParams struct {
	TenantId  string
	SrcBucket string
	SrcKey    string
	DstBucket string
	DstKey    string
	IsUpsert  bool
	// When set, the destination metadata replaces the source's.
	ContentType  string
	CacheControl string
	Conditions   *backend.CopyOptions
}

// Copy duplicates the source's live version under a fresh destination
// version and commits the destination atomically. Large sources are copied
// server-side in concurrent parts.
func (m *Manager) Copy(ctx context.Context, identity dbclient.Identity, params *CopyParams) (*dbclient.Object, error) {
	return m.copyOrMove(ctx, identity, params, false)
}

// Move is copy plus source delete under a single catalog transaction.
func (m *Manager) Move(ctx context.Context, identity dbclient.Identity, params *CopyParams) (*dbclient.Object, error) {
	return m.copyOrMove(ctx, identity, params, true)
}

func (m *Manager) copyOrMove(ctx context.Context, identity dbclient.Identity, params *CopyParams, deleteSource bool) (*dbclient.Object, error) {
	if err := ValidateObjectKey(params.SrcKey); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(params.DstKey); err != nil {
		return nil, err
	}
	client, err := m.registry.CatalogClient(params.TenantId)
	if err != nil {
		return nil, err
	}

	version := uuid.NewString()
	lockId := locks.LockId{
		TenantId: params.TenantId,
		Bucket:   params.DstBucket,
		Key:      params.DstKey,
		Version:  version,
	}

	var object *dbclient.Object
	var purge bool
	err = m.locker.WithLock(ctx, lockId, nil, func(ctx context.Context) error {
		return client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
			var txErr error
			object, purge, txErr = m.copyInTx(ctx, tx, params, version, identity, deleteSource)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}
	if purge || deleteSource {
		m.enqueueVersionPurge(ctx, params.TenantId, params.SrcBucket)
		if params.DstBucket != params.SrcBucket {
			m.enqueueVersionPurge(ctx, params.TenantId, params.DstBucket)
		}
	}
	return object, nil
}

func (m *Manager) copyInTx(ctx context.Context, tx *dbclient.Tx, params *CopyParams,
	version string, identity dbclient.Identity, deleteSource bool) (*dbclient.Object, bool, error) {
	srcBucket, err := tx.GetBucket(params.SrcBucket)
	if err != nil {
		return nil, false, err
	}
	source, err := tx.GetObject(srcBucket.Id, params.SrcKey, dbclient.LockShare)
	if err != nil {
		return nil, false, err
	}
	dstBucket := srcBucket
	if params.DstBucket != params.SrcBucket {
		if dstBucket, err = tx.GetBucket(params.DstBucket); err != nil {
			return nil, false, err
		}
	}

	var srcMetadata dbclient.ObjectMetadata
	if err = jsonutils.Unmarshal(source.Metadata, &srcMetadata); err != nil {
		return nil, false, storageerrors.NewInternalError(err.Error())
	}
	contentType := params.ContentType
	if contentType == "" {
		contentType = srcMetadata.Mimetype
	}
	if err = checkMimeType(dstBucket, contentType); err != nil {
		return nil, false, err
	}
	if limit := sizeLimit(dstBucket); limit > 0 && srcMetadata.Size > limit {
		return nil, false, storageerrors.NewEntityTooLarge(limit)
	}

	object, err := tx.FindOrCreateObjectForUpload(&dbclient.FindOrCreateUploadParams{
		BucketId:   dstBucket.Id,
		ObjectName: params.DstKey,
		Version:    version,
		Owner:      identity.Sub,
		IsUpsert:   params.IsUpsert,
	})
	if err != nil {
		return nil, false, err
	}
	replaced := object.Version != version

	srcKey := physicalKey(tx.TenantId(), params.SrcBucket, params.SrcKey)
	dstKey := physicalKey(tx.TenantId(), params.DstBucket, params.DstKey)
	metadata, err := m.copyBytes(ctx, srcKey, source.Version, dstKey, version, srcMetadata.Size, &backend.CopyOptions{
		ContentType:  contentType,
		CacheControl: params.CacheControl,
	})
	if err != nil {
		return nil, false, err
	}

	object.Version = version
	object.Owner = utils.NullString(identity.Sub)
	object.Metadata = marshalMetadata(metadata)
	object.UserMetadata = source.UserMetadata
	if err = tx.UpdateObject(object); err != nil {
		m.removeVersion(tx.TenantId(), params.DstBucket, params.DstKey, version)
		return nil, false, err
	}

	if deleteSource && !(params.SrcBucket == params.DstBucket && params.SrcKey == params.DstKey) {
		if _, err = tx.DeleteObject(srcBucket.Id, params.SrcKey); err != nil {
			m.removeVersion(tx.TenantId(), params.DstBucket, params.DstKey, version)
			return nil, false, err
		}
	}
	return object, replaced, nil
}

// copyBytes picks the copy strategy by size: a single backend copy with
// bounded retries, or a concurrent part-copy for sources over the part cap.
func (m *Manager) copyBytes(ctx context.Context, srcKey, srcVersion, dstKey, dstVersion string,
	size int64, opts *backend.CopyOptions) (*backend.Metadata, error) {
	maxPart := config.GetStorageCopyMaxPartSize()
	if maxPart <= 0 || size <= maxPart {
		var metadata *backend.Metadata
		err := backoff.Retry(func() error {
			var copyErr error
			metadata, copyErr = m.store.Copy(ctx, m.bucket, srcKey, srcVersion, dstKey, dstVersion, opts)
			if copyErr == nil {
				return nil
			}
			// only transient backend failures are worth retrying
			if storageerrors.GetHttpCode(copyErr) >= 500 && ctx.Err() == nil {
				return copyErr
			}
			return cenkbackoff.Permanent(copyErr)
		}, 30*time.Second, 5*time.Second)
		return metadata, err
	}
	return m.copyParts(ctx, srcKey, srcVersion, dstKey, dstVersion, size, maxPart, opts)
}

func (m *Manager) copyParts(ctx context.Context, srcKey, srcVersion, dstKey, dstVersion string,
	size, maxPart int64, opts *backend.CopyOptions) (*backend.Metadata, error) {
	uploadId, err := m.store.CreateMultipartUpload(ctx, m.bucket, dstKey, dstVersion, opts.ContentType, opts.CacheControl)
	if err != nil {
		return nil, err
	}
	count := int((size + maxPart - 1) / maxPart)
	parts := make([]backend.UploadedPart, count)
	err = concurrent.ExecBounded(count, config.GetStorageCopyConcurrent(), func(i int) error {
		first := int64(i) * maxPart
		last := first + maxPart - 1
		if last >= size {
			last = size - 1
		}
		part, partErr := m.store.UploadPartCopy(ctx, m.bucket, srcKey, srcVersion, dstKey, dstVersion,
			uploadId, int32(i+1), &backend.ByteRange{First: first, Last: last})
		if partErr != nil {
			return partErr
		}
		parts[i] = *part
		return nil
	})
	if err != nil {
		if abortErr := m.store.AbortMultipartUpload(ctx, m.bucket, dstKey, dstVersion, uploadId); abortErr != nil {
			klog.ErrorS(abortErr, "failed to abort part copy", "key", dstKey, "uploadId", uploadId)
		}
		return nil, err
	}
	return m.store.CompleteMultipartUpload(ctx, m.bucket, dstKey, dstVersion, uploadId, parts)
}
