/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tus

import (
	"bytes"
	"context"
	"database/sql"
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
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// Engine is the resumable upload state machine. One upload moves through
// pending PATCHes until the declared length is reached, then finalizes as
// the object's live version in a single catalog transaction.
type Engine struct {
	registry *tenant.Registry
	store    backend.Backend
	locker   locks.Locker
	bucket   string
	partSize int64
}

// NewEngine wires the engine over its collaborators.
func NewEngine(registry *tenant.Registry, store backend.Backend, locker locks.Locker) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		locker:   locker,
		bucket:   config.GetStorageBucket(),
		partSize: config.GetTusPartSize(),
	}
}

// CreateParams describes a POST (creation).
type CreateParams struct {
	TenantId string
	Bucket   string
	Key      string
	// DeclaredLength is -1 when the client defers the length.
	DeclaredLength int64
	ContentType    string
	CacheControl   string
	IsUpsert       bool
}

// Info is the observable state of an upload.
type Info struct {
	Id             string
	Offset         int64
	DeclaredLength int64
	LengthDeferred bool
	ContentType    string
	CacheControl   string
	ExpiresAt      time.Time
}

// Create mints a version, reserves the object row, opens the backend
// multipart upload and records the upload; all under the object lock.
func (e *Engine) Create(ctx context.Context, identity dbclient.Identity, params *CreateParams) (*Info, error) {
	if err := objects.ValidateBucketName(params.Bucket); err != nil {
		return nil, err
	}
	if err := objects.ValidateObjectKey(params.Key); err != nil {
		return nil, err
	}
	client, err := e.registry.CatalogClient(params.TenantId)
	if err != nil {
		return nil, err
	}

	id := UploadId{
		TenantId: params.TenantId,
		Bucket:   params.Bucket,
		Key:      params.Key,
		Version:  uuid.NewString(),
	}
	expiresAt := time.Now().Add(time.Duration(config.GetTusExpirySecond()) * time.Second)

	err = e.locker.WithLock(ctx, lockId(id), nil, func(ctx context.Context) error {
		return client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
			bucketRow, txErr := tx.GetBucket(params.Bucket)
			if txErr != nil {
				return txErr
			}
			if limit := bucketLimit(bucketRow); limit > 0 && params.DeclaredLength > limit {
				return storageerrors.NewEntityTooLarge(limit)
			}
			if _, txErr = tx.FindOrCreateObjectForUpload(&dbclient.FindOrCreateUploadParams{
				BucketId:   bucketRow.Id,
				ObjectName: params.Key,
				Version:    id.Version,
				Owner:      identity.Sub,
				IsUpsert:   params.IsUpsert,
			}); txErr != nil {
				return txErr
			}
			physKey := physicalKey(id)
			backendUploadId, txErr := e.store.CreateMultipartUpload(ctx, e.bucket, physKey, id.Version,
				params.ContentType, params.CacheControl)
			if txErr != nil {
				return txErr
			}
			return tx.CreateUpload(&dbclient.Upload{
				Id:              id.String(),
				BucketId:        bucketRow.Id,
				ObjectName:      params.Key,
				Version:         id.Version,
				UploadType:      dbclient.UploadTypeMultipart,
				BackendUploadId: utils.NullString(backendUploadId),
				DeclaredLength:  nullLength(params.DeclaredLength),
				ContentType:     utils.NullString(params.ContentType),
				CacheControl:    utils.NullString(params.CacheControl),
				ExpiresAt:       utils.NullTime(expiresAt),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &Info{
		Id:             id.String(),
		DeclaredLength: params.DeclaredLength,
		LengthDeferred: params.DeclaredLength < 0,
		ContentType:    params.ContentType,
		CacheControl:   params.CacheControl,
		ExpiresAt:      expiresAt,
	}, nil
}

// Head reports the committed offset; it never takes the distributed lock,
// so probes work while a PATCH is in flight.
func (e *Engine) Head(ctx context.Context, identity dbclient.Identity, rawId string) (*Info, error) {
	id, err := ParseUploadId(rawId)
	if err != nil {
		return nil, err
	}
	client, err := e.registry.CatalogClient(id.TenantId)
	if err != nil {
		return nil, err
	}
	var info *Info
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		upload, txErr := tx.GetUpload(id.String())
		if txErr != nil {
			return txErr
		}
		info = infoOf(upload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// PatchParams describes an append.
type PatchParams struct {
	Id     string
	Offset int64
	Body   io.Reader
	// DeclaredLength resolves a deferred length; -1 leaves it open.
	DeclaredLength int64
	// OnReleaseRequest fires when a peer asks for the lock; the handler
	// finishes the current part and commits instead of running the body
	// to completion.
	OnReleaseRequest func()
}

// Patch appends body bytes at the given offset. The offset must match the
// committed one exactly. A client disconnect mid-body commits the bytes
// accepted so far, so a follow-up HEAD sees the true offset; reaching the
// declared length finalizes the object.
func (e *Engine) Patch(ctx context.Context, identity dbclient.Identity, params *PatchParams) (*Info, bool, error) {
	id, err := ParseUploadId(params.Id)
	if err != nil {
		return nil, false, err
	}
	client, err := e.registry.CatalogClient(id.TenantId)
	if err != nil {
		return nil, false, err
	}

	var info *Info
	var finalized bool
	err = e.locker.WithLock(ctx, lockId(*id), params.OnReleaseRequest, func(ctx context.Context) error {
		return client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
			var txErr error
			info, finalized, txErr = e.patchInTx(ctx, tx, id, params)
			return txErr
		})
	})
	if err != nil {
		return nil, false, err
	}
	return info, finalized, nil
}

func (e *Engine) patchInTx(ctx context.Context, tx *dbclient.Tx, id *UploadId, params *PatchParams) (*Info, bool, error) {
	upload, err := tx.GetUpload(id.String())
	if err != nil {
		return nil, false, err
	}
	if upload.Status != dbclient.UploadStatusPending {
		return nil, false, storageerrors.NewInvalidUploadId(id.String())
	}
	if upload.ByteOffset != params.Offset {
		return nil, false, storageerrors.NewResourceAlreadyExists(
			"upload offset mismatch: the committed offset differs from the request")
	}
	if params.DeclaredLength >= 0 && !upload.DeclaredLength.Valid {
		upload.DeclaredLength = nullLength(params.DeclaredLength)
	}
	bucketRow, err := tx.GetBucket(id.Bucket)
	if err != nil {
		return nil, false, err
	}
	limit := bucketLimit(bucketRow)

	var parts []backend.UploadedPart
	if err = jsonutils.Unmarshal(partsOf(upload), &parts); err != nil {
		return nil, false, storageerrors.NewInternalError(err.Error())
	}

	written, parts, err := e.streamParts(ctx, id, upload, parts, params.Body, limit)
	if err != nil {
		return nil, false, err
	}

	upload.ByteOffset += written
	upload.Parts = jsonutils.MarshalSilently(parts)

	if upload.DeclaredLength.Valid && upload.ByteOffset == upload.DeclaredLength.Int64 {
		if err = e.finalize(ctx, tx, id, upload, parts); err != nil {
			return nil, false, err
		}
		info := infoOf(upload)
		return info, true, nil
	}
	if err = tx.UpdateUpload(upload); err != nil {
		return nil, false, err
	}
	return infoOf(upload), false, nil
}

// streamParts reads the body in part-sized slices and pushes each to the
// backend. A body read error stops the loop without failing the call:
// whatever was uploaded is committed and the client resumes from HEAD.
func (e *Engine) streamParts(ctx context.Context, id *UploadId, upload *dbclient.Upload,
	parts []backend.UploadedPart, body io.Reader, limit int64) (int64, []backend.UploadedPart, error) {
	physKey := physicalKey(*id)
	backendUploadId := utils.ParseNullString(upload.BackendUploadId)
	buf := make([]byte, e.partSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			// lock lost or request canceled; keep what was committed
			break
		}
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			if limit > 0 && upload.ByteOffset+written+int64(n) > limit {
				return written, parts, storageerrors.NewEntityTooLarge(limit)
			}
			partNumber := int32(len(parts) + 1)
			part, err := e.store.UploadPart(ctx, e.bucket, physKey, id.Version, backendUploadId,
				partNumber, bytes.NewReader(buf[:n]), int64(n))
			if err != nil {
				return written, parts, err
			}
			parts = append(parts, *part)
			written += int64(n)
		}
		if readErr != nil {
			if readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
				klog.V(4).Infof("upload %s: body read stopped: %v", id.String(), readErr)
			}
			break
		}
	}
	return written, parts, nil
}

// finalize completes the backend multipart upload and commits the object's
// live version in the surrounding transaction.
func (e *Engine) finalize(ctx context.Context, tx *dbclient.Tx, id *UploadId,
	upload *dbclient.Upload, parts []backend.UploadedPart) error {
	physKey := physicalKey(*id)
	metadata, err := e.store.CompleteMultipartUpload(ctx, e.bucket, physKey, id.Version,
		utils.ParseNullString(upload.BackendUploadId), parts)
	if err != nil {
		return err
	}
	object, err := tx.GetObject(upload.BucketId, upload.ObjectName, dbclient.LockUpdate)
	if err != nil {
		return err
	}
	object.Version = id.Version
	object.Metadata = jsonutils.MarshalSilently(dbclient.ObjectMetadata{
		Size:         metadata.Size,
		Mimetype:     metadata.ContentType,
		ETag:         metadata.ETag,
		LastModified: timeutil.FormatRFC3339(metadata.LastModified),
		CacheControl: metadata.CacheControl,
	})
	if err = tx.UpdateObject(object); err != nil {
		return err
	}
	return tx.DeleteUpload(upload.Id)
}

// Delete terminates an upload: the backend multipart is aborted, the
// record removed, and the never-finalized object stub cleaned up.
func (e *Engine) Delete(ctx context.Context, identity dbclient.Identity, rawId string) error {
	id, err := ParseUploadId(rawId)
	if err != nil {
		return err
	}
	client, err := e.registry.CatalogClient(id.TenantId)
	if err != nil {
		return err
	}
	return e.locker.WithLock(ctx, lockId(*id), nil, func(ctx context.Context) error {
		return client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
			upload, txErr := tx.GetUpload(id.String())
			if txErr != nil {
				return txErr
			}
			return e.abortUpload(ctx, tx, upload)
		})
	})
}

// abortUpload tears one pending upload down; shared with the expiry sweep.
func (e *Engine) abortUpload(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error {
	uploadId, err := ParseUploadId(upload.Id)
	if err != nil {
		return err
	}
	if backendId := utils.ParseNullString(upload.BackendUploadId); backendId != "" {
		abortErr := e.store.AbortMultipartUpload(ctx, e.bucket, physicalKey(*uploadId), upload.Version, backendId)
		if abortErr != nil && !storageerrors.IsNotFound(abortErr) {
			return abortErr
		}
	}
	if err = tx.DeleteUpload(upload.Id); err != nil {
		return err
	}
	return e.removeStub(tx, upload)
}

// removeStub deletes the object row reserved at creation when the upload
// never finalized; a row with committed metadata is left alone.
func (e *Engine) removeStub(tx *dbclient.Tx, upload *dbclient.Upload) error {
	object, err := tx.GetObject(upload.BucketId, upload.ObjectName, dbclient.LockUpdate)
	if err != nil {
		return storageerrors.IgnoreNotFound(err)
	}
	if object.Version != upload.Version || string(object.Metadata) != `{}` {
		return nil
	}
	_, err = tx.DeleteObject(upload.BucketId, upload.ObjectName)
	return storageerrors.IgnoreNotFound(err)
}

func lockId(id UploadId) locks.LockId {
	return locks.LockId{
		TenantId: id.TenantId,
		Bucket:   id.Bucket,
		Key:      id.Key,
		Version:  id.Version,
	}
}

func physicalKey(id UploadId) string {
	return id.TenantId + "/" + id.Bucket + "/" + id.Key
}

func bucketLimit(bucket *dbclient.Bucket) int64 {
	if bucket.FileSizeLimit.Valid && bucket.FileSizeLimit.Int64 > 0 {
		return bucket.FileSizeLimit.Int64
	}
	return config.GetStorageMaxFileSize()
}

// nullLength maps a deferred length (-1) to NULL. Zero is a valid declared
// length for empty uploads, so utils.NullInt64 does not fit here.
func nullLength(length int64) sql.NullInt64 {
	if length < 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: length, Valid: true}
}

func partsOf(upload *dbclient.Upload) []byte {
	if len(upload.Parts) == 0 {
		return []byte(`[]`)
	}
	return upload.Parts
}

func infoOf(upload *dbclient.Upload) *Info {
	info := &Info{
		Id:             upload.Id,
		Offset:         upload.ByteOffset,
		DeclaredLength: -1,
		LengthDeferred: !upload.DeclaredLength.Valid,
		ContentType:    utils.ParseNullString(upload.ContentType),
		CacheControl:   utils.ParseNullString(upload.CacheControl),
		ExpiresAt:      utils.ParseNullTime(upload.ExpiresAt),
	}
	if upload.DeclaredLength.Valid {
		info.DeclaredLength = upload.DeclaredLength.Int64
	}
	return info
}
