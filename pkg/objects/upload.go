/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/locks"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// UploadParams describes one standard (single-shot) upload.
type UploadParams struct {
	TenantId     string
	Bucket       string
	ObjectName   string
	ContentType  string
	CacheControl string
	Body         io.Reader
	IsUpsert     bool
	UserMetadata []byte
}

// Upload streams a new object version to the backend and commits it as the
// live version. The whole operation runs under the distributed lock for the
// object, so concurrent writers to the same key serialize; the loser of a
// create race without upsert fails with KeyAlreadyExists.
func (m *Manager) Upload(ctx context.Context, identity dbclient.Identity, params *UploadParams) (*dbclient.Object, error) {
	if err := ValidateObjectKey(params.ObjectName); err != nil {
		return nil, err
	}
	client, err := m.registry.CatalogClient(params.TenantId)
	if err != nil {
		return nil, err
	}

	version := uuid.NewString()
	lockId := locks.LockId{
		TenantId: params.TenantId,
		Bucket:   params.Bucket,
		Key:      params.ObjectName,
		Version:  version,
	}

	var object *dbclient.Object
	var replacedOld bool
	err = m.locker.WithLock(ctx, lockId, nil, func(ctx context.Context) error {
		return client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
			var txErr error
			object, replacedOld, txErr = m.uploadInTx(ctx, tx, params, version, identity)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}
	if replacedOld {
		m.enqueueVersionPurge(ctx, params.TenantId, params.Bucket)
	}
	return object, nil
}

func (m *Manager) uploadInTx(ctx context.Context, tx *dbclient.Tx, params *UploadParams,
	version string, identity dbclient.Identity) (*dbclient.Object, bool, error) {
	bucket, err := tx.GetBucket(params.Bucket)
	if err != nil {
		return nil, false, err
	}
	if err = checkMimeType(bucket, params.ContentType); err != nil {
		return nil, false, err
	}

	object, err := tx.FindOrCreateObjectForUpload(&dbclient.FindOrCreateUploadParams{
		BucketId:   bucket.Id,
		ObjectName: params.ObjectName,
		Version:    version,
		Owner:      identity.Sub,
		IsUpsert:   params.IsUpsert,
	})
	if err != nil {
		return nil, false, err
	}
	oldVersion := ""
	if object.Version != version {
		oldVersion = object.Version
	}

	// reserve the fresh version so a crash leaves a traceable record
	uploadId := m.store.WithVersion(physicalKey(tx.TenantId(), params.Bucket, params.ObjectName), version)
	expiresAt := time.Now().Add(time.Duration(config.GetTusExpirySecond()) * time.Second)
	if err = tx.CreateUpload(&dbclient.Upload{
		Id:          uploadId,
		BucketId:    bucket.Id,
		ObjectName:  params.ObjectName,
		Version:     version,
		UploadType:  dbclient.UploadTypeStandard,
		ContentType: utils.NullString(params.ContentType),
		ExpiresAt:   utils.NullTime(expiresAt),
	}); err != nil {
		return nil, false, err
	}

	metadata, err := m.writeCapped(ctx, tx.TenantId(), params, version, sizeLimit(bucket))
	if err != nil {
		return nil, false, err
	}

	object.Version = version
	object.Owner = utils.NullString(identity.Sub)
	object.Metadata = marshalMetadata(metadata)
	if len(params.UserMetadata) > 0 {
		object.UserMetadata = params.UserMetadata
	}
	if err = tx.UpdateObject(object); err != nil {
		m.removeVersion(tx.TenantId(), params.Bucket, params.ObjectName, version)
		return nil, false, err
	}
	if err = tx.DeleteUpload(uploadId); err != nil {
		m.removeVersion(tx.TenantId(), params.Bucket, params.ObjectName, version)
		return nil, false, err
	}
	return object, oldVersion != "", nil
}

// writeCapped streams the body to the backend, aborting with EntityTooLarge
// as soon as the cap is exceeded; the half-written version is removed.
func (m *Manager) writeCapped(ctx context.Context, tenantId string, params *UploadParams,
	version string, limit int64) (*backend.Metadata, error) {
	body := params.Body
	if limit > 0 {
		body = &cappedReader{reader: body, remaining: limit}
	}
	key := physicalKey(tenantId, params.Bucket, params.ObjectName)
	metadata, err := m.store.Write(ctx, m.bucket, key, version, body, params.ContentType, params.CacheControl)
	if err != nil {
		m.removeVersion(tenantId, params.Bucket, params.ObjectName, version)
		if storageerrors.IsEntityTooLarge(err) {
			return nil, err
		}
		var capped *cappedReader
		if c, ok := body.(*cappedReader); ok {
			capped = c
		}
		if capped != nil && capped.exceeded {
			return nil, storageerrors.NewEntityTooLarge(limit)
		}
		return nil, err
	}
	if limit > 0 && metadata.Size > limit {
		m.removeVersion(tenantId, params.Bucket, params.ObjectName, version)
		return nil, storageerrors.NewEntityTooLarge(limit)
	}
	return metadata, nil
}

// removeVersion is the best-effort cleanup of a version that never became
// live; the orphan scanner is the backstop.
func (m *Manager) removeVersion(tenantId, bucket, name, version string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	key := physicalKey(tenantId, bucket, name)
	if err := m.store.Remove(cleanupCtx, m.bucket, key, version); err != nil && !storageerrors.IsNotFound(err) {
		klog.ErrorS(err, "failed to remove stale version", "key", key, "version", version)
	}
}

// enqueueVersionPurge schedules the backend sweep that reaps versions no
// longer referenced by the catalog.
func (m *Manager) enqueueVersionPurge(ctx context.Context, tenantId, bucket string) {
	if m.enqueuer == nil {
		return
	}
	_, err := m.enqueuer.Send(ctx, queue.JobObjectAdminDeleteAllBefore, queue.DeleteAllBeforePayload{
		BucketId: bucket,
		Before:   timeutil.FormatRFC3339(time.Now()),
		Tenant:   tenantId,
		ReqId:    uuid.NewString(),
	})
	if err != nil {
		klog.ErrorS(err, "failed to enqueue version purge", "tenant", tenantId, "bucket", bucket)
	}
}

func marshalMetadata(metadata *backend.Metadata) []byte {
	return jsonutils.MarshalSilently(dbclient.ObjectMetadata{
		Size:         metadata.Size,
		Mimetype:     metadata.ContentType,
		ETag:         metadata.ETag,
		LastModified: timeutil.FormatRFC3339(metadata.LastModified),
		CacheControl: metadata.CacheControl,
	})
}

// cappedReader fails the stream once more than remaining bytes have been
// read, so oversized uploads stop at the cap instead of draining the client.
type cappedReader struct {
	reader    io.Reader
	remaining int64
	exceeded  bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		c.exceeded = true
		return 0, storageerrors.NewEntityTooLarge(0)
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.reader.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		c.exceeded = true
		return n, storageerrors.NewEntityTooLarge(0)
	}
	return n, err
}
