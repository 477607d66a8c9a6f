/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// maxPartNumber is the S3 part number ceiling.
const maxPartNumber = 10000

// defaultMaxUploads caps one ListMultipartUploads page.
const defaultMaxUploads = 1000

// CreateMultipartUpload handles POST /s3/:bucket/*key?uploads. The upload
// id is an opaque uuid; the reserved object row and the backend multipart
// upload are both created up front so parts have somewhere to land.
func (h *Handler) CreateMultipartUpload(c *gin.Context) {
	bucket, key := bucketKey(c)
	if err := objects.ValidateBucketName(bucket); err != nil {
		abortS3(c, err)
		return
	}
	if err := objects.ValidateObjectKey(key); err != nil {
		abortS3(c, err)
		return
	}
	identity := middleware.GetIdentity(c)
	tenantId := middleware.GetTenantId(c)
	client, err := h.registry.CatalogClient(tenantId)
	if err != nil {
		abortS3(c, err)
		return
	}
	uploadId := uuid.NewString()
	version := uuid.NewString()
	contentType := c.ContentType()
	cacheControl := c.GetHeader("Cache-Control")
	expiresAt := time.Now().Add(time.Duration(config.GetTusExpirySecond()) * time.Second)

	err = client.WithTransaction(c.Request.Context(), identity, func(tx *dbclient.Tx) error {
		bucketRow, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		if _, txErr = tx.FindOrCreateObjectForUpload(&dbclient.FindOrCreateUploadParams{
			BucketId:   bucketRow.Id,
			ObjectName: key,
			Version:    version,
			Owner:      identity.Sub,
			IsUpsert:   true,
		}); txErr != nil {
			return txErr
		}
		backendUploadId, txErr := h.store.CreateMultipartUpload(c.Request.Context(),
			h.bucket, h.physicalKey(tenantId, bucket, key), version, contentType, cacheControl)
		if txErr != nil {
			return txErr
		}
		return tx.CreateUpload(&dbclient.Upload{
			Id:              uploadId,
			BucketId:        bucketRow.Id,
			ObjectName:      key,
			Version:         version,
			UploadType:      dbclient.UploadTypeMultipart,
			BackendUploadId: dbutils.NullString(backendUploadId),
			ContentType:     dbutils.NullString(contentType),
			CacheControl:    dbutils.NullString(cacheControl),
			ExpiresAt:       dbutils.NullTime(expiresAt),
		})
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	writeXML(c, http.StatusOK, &InitiateMultipartUploadResult{
		Bucket:   bucket,
		Key:      key,
		UploadId: uploadId,
	})
}

// UploadPart handles PUT /s3/:bucket/*key?partNumber&uploadId. Retried
// part numbers overwrite their previous bytes, matching S3.
func (h *Handler) UploadPart(c *gin.Context) {
	partNumber, err := parsePartNumber(c.Query("partNumber"))
	if err != nil {
		abortS3(c, err)
		return
	}
	var uploaded *backend.UploadedPart
	err = h.withUpload(c, func(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error {
		bucket, key := bucketKey(c)
		part, txErr := h.store.UploadPart(ctx, h.bucket,
			h.physicalKey(middleware.GetTenantId(c), bucket, key), upload.Version,
			dbutils.ParseNullString(upload.BackendUploadId), partNumber,
			c.Request.Body, c.Request.ContentLength)
		if txErr != nil {
			return txErr
		}
		uploaded = part
		return recordPart(tx, upload, part)
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Header("ETag", quoteETag(uploaded.ETag))
	c.Status(http.StatusOK)
}

// UploadPartCopy handles PUT /s3/:bucket/*key?partNumber&uploadId with
// x-amz-copy-source: one part filled from an existing object's bytes.
func (h *Handler) UploadPartCopy(c *gin.Context) {
	partNumber, err := parsePartNumber(c.Query("partNumber"))
	if err != nil {
		abortS3(c, err)
		return
	}
	srcBucket, srcKey, err := parseCopySource(c.GetHeader(copySourceHeader))
	if err != nil {
		abortS3(c, err)
		return
	}
	srcRange, err := parseRange(c.GetHeader(copySourceRangeHeader))
	if err != nil {
		abortS3(c, err)
		return
	}
	tenantId := middleware.GetTenantId(c)
	var uploaded *backend.UploadedPart
	err = h.withUpload(c, func(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error {
		srcBucketRow, txErr := tx.GetBucket(srcBucket)
		if txErr != nil {
			return txErr
		}
		source, txErr := tx.GetObject(srcBucketRow.Id, srcKey, dbclient.LockNone)
		if txErr != nil {
			return txErr
		}
		bucket, key := bucketKey(c)
		part, txErr := h.store.UploadPartCopy(ctx, h.bucket,
			h.physicalKey(tenantId, srcBucket, srcKey), source.Version,
			h.physicalKey(tenantId, bucket, key), upload.Version,
			dbutils.ParseNullString(upload.BackendUploadId), partNumber, srcRange)
		if txErr != nil {
			return txErr
		}
		uploaded = part
		return recordPart(tx, upload, part)
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	writeXML(c, http.StatusOK, &CopyObjectResult{
		ETag:         quoteETag(uploaded.ETag),
		LastModified: timeutil.FormatRFC3339(time.Now()),
	})
}

// CompleteMultipartUpload handles POST /s3/:bucket/*key?uploadId. The
// client's part manifest is checked against the recorded parts before the
// backend stitch; the object's live version flips in the same transaction.
func (h *Handler) CompleteMultipartUpload(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortS3(c, storageerrors.NewInvalidParameter(err.Error()))
		return
	}
	var request CompleteMultipartUpload
	if err = xml.Unmarshal(body, &request); err != nil || len(request.Parts) == 0 {
		abortS3(c, storageerrors.NewInvalidParameter("malformed CompleteMultipartUpload document"))
		return
	}
	bucket, key := bucketKey(c)
	tenantId := middleware.GetTenantId(c)
	var etag string
	err = h.withUpload(c, func(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error {
		ordered, txErr := matchParts(&request, upload)
		if txErr != nil {
			return txErr
		}
		metadata, txErr := h.store.CompleteMultipartUpload(ctx, h.bucket,
			h.physicalKey(tenantId, bucket, key), upload.Version,
			dbutils.ParseNullString(upload.BackendUploadId), ordered)
		if txErr != nil {
			return txErr
		}
		object, txErr := tx.GetObject(upload.BucketId, upload.ObjectName, dbclient.LockUpdate)
		if txErr != nil {
			return txErr
		}
		object.Version = upload.Version
		object.Metadata = jsonutils.MarshalSilently(dbclient.ObjectMetadata{
			Size:         metadata.Size,
			Mimetype:     metadata.ContentType,
			ETag:         metadata.ETag,
			LastModified: timeutil.FormatRFC3339(metadata.LastModified),
			CacheControl: metadata.CacheControl,
		})
		if txErr = tx.UpdateObject(object); txErr != nil {
			return txErr
		}
		etag = metadata.ETag
		return tx.DeleteUpload(upload.Id)
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	writeXML(c, http.StatusOK, &CompleteMultipartUploadResult{
		Bucket: bucket,
		Key:    key,
		ETag:   quoteETag(etag),
	})
}

// AbortMultipartUpload handles DELETE /s3/:bucket/*key?uploadId. The
// reserved object row is removed when the upload never finalized.
func (h *Handler) AbortMultipartUpload(c *gin.Context) {
	bucket, key := bucketKey(c)
	tenantId := middleware.GetTenantId(c)
	err := h.withUpload(c, func(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error {
		if backendId := dbutils.ParseNullString(upload.BackendUploadId); backendId != "" {
			abortErr := h.store.AbortMultipartUpload(ctx, h.bucket,
				h.physicalKey(tenantId, bucket, key), upload.Version, backendId)
			if abortErr != nil && !storageerrors.IsNotFound(abortErr) {
				return abortErr
			}
		}
		if txErr := tx.DeleteUpload(upload.Id); txErr != nil {
			return txErr
		}
		object, txErr := tx.GetObject(upload.BucketId, upload.ObjectName, dbclient.LockUpdate)
		if txErr != nil {
			return storageerrors.IgnoreNotFound(txErr)
		}
		if object.Version != upload.Version || string(object.Metadata) != `{}` {
			return nil
		}
		_, txErr = tx.DeleteObject(upload.BucketId, upload.ObjectName)
		return storageerrors.IgnoreNotFound(txErr)
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListParts handles GET /s3/:bucket/*key?uploadId.
func (h *Handler) ListParts(c *gin.Context) {
	bucket, key := bucketKey(c)
	result := &ListPartsResult{
		Bucket:   bucket,
		Key:      key,
		UploadId: c.Query("uploadId"),
	}
	err := h.withUpload(c, func(_ context.Context, _ *dbclient.Tx, upload *dbclient.Upload) error {
		parts, txErr := storedParts(upload)
		if txErr != nil {
			return txErr
		}
		sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
		for _, part := range parts {
			result.Parts = append(result.Parts, PartEntry{
				PartNumber: part.PartNumber,
				ETag:       quoteETag(part.ETag),
				Size:       part.Size,
			})
		}
		return nil
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	writeXML(c, http.StatusOK, result)
}

// ListMultipartUploads handles GET /s3/:bucket?uploads.
func (h *Handler) ListMultipartUploads(c *gin.Context) {
	bucket, _ := bucketKey(c)
	keyMarker := c.Query("key-marker")
	maxUploads := defaultMaxUploads
	if raw := c.Query("max-uploads"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortS3(c, errUnknownOperation(c))
			return
		}
		if parsed < maxUploads {
			maxUploads = parsed
		}
	}
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		abortS3(c, err)
		return
	}
	var uploads []*dbclient.Upload
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		bucketRow, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		uploads, txErr = tx.ListUploadsForBucket(bucketRow.Id, keyMarker, maxUploads+1)
		return txErr
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	result := &ListMultipartUploadsResult{
		Bucket:      bucket,
		KeyMarker:   keyMarker,
		IsTruncated: len(uploads) > maxUploads,
	}
	if result.IsTruncated {
		uploads = uploads[:maxUploads]
	}
	for _, upload := range uploads {
		result.Uploads = append(result.Uploads, UploadEntry{
			Key:       upload.ObjectName,
			UploadId:  upload.Id,
			Initiated: formatXMLTime(upload.CreatedAt),
		})
	}
	writeXML(c, http.StatusOK, result)
}

// withUpload runs fn inside a catalog transaction with the upload row
// locked; the row lock serializes concurrent part bookkeeping.
func (h *Handler) withUpload(c *gin.Context, fn func(ctx context.Context, tx *dbclient.Tx, upload *dbclient.Upload) error) error {
	uploadId := c.Query("uploadId")
	bucket, key := bucketKey(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return err
	}
	return client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		upload, txErr := tx.GetUpload(uploadId)
		if txErr != nil {
			return txErr
		}
		if upload.Status != dbclient.UploadStatusPending || upload.ObjectName != key ||
			upload.BucketId != bucket {
			return storageerrors.NewNoSuchUpload(uploadId)
		}
		return fn(c.Request.Context(), tx, upload)
	})
}

func (h *Handler) physicalKey(tenantId, bucket, key string) string {
	return tenantId + "/" + bucket + "/" + key
}

func parsePartNumber(raw string) (int32, error) {
	partNumber, err := strconv.Atoi(raw)
	if err != nil || partNumber < 1 || partNumber > maxPartNumber {
		return 0, storageerrors.NewInvalidParameter("partNumber")
	}
	return int32(partNumber), nil
}

func storedParts(upload *dbclient.Upload) ([]backend.UploadedPart, error) {
	raw := upload.Parts
	if len(raw) == 0 {
		raw = []byte(`[]`)
	}
	var parts []backend.UploadedPart
	if err := jsonutils.Unmarshal(raw, &parts); err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	return parts, nil
}

// recordPart upserts one part into the upload's bookkeeping by number.
func recordPart(tx *dbclient.Tx, upload *dbclient.Upload, part *backend.UploadedPart) error {
	parts, err := storedParts(upload)
	if err != nil {
		return err
	}
	replaced := false
	for i := range parts {
		if parts[i].PartNumber == part.PartNumber {
			parts[i] = *part
			replaced = true
			break
		}
	}
	if !replaced {
		parts = append(parts, *part)
	}
	upload.Parts = jsonutils.MarshalSilently(parts)
	return tx.UpdateUpload(upload)
}

// matchParts validates the client's manifest against the recorded parts
// and returns them in the manifest's (ascending) order.
func matchParts(request *CompleteMultipartUpload, upload *dbclient.Upload) ([]backend.UploadedPart, error) {
	parts, err := storedParts(upload)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int32]backend.UploadedPart, len(parts))
	for _, part := range parts {
		byNumber[part.PartNumber] = part
	}
	ordered := make([]backend.UploadedPart, 0, len(request.Parts))
	previous := int32(0)
	for _, requested := range request.Parts {
		if requested.PartNumber <= previous {
			return nil, storageerrors.NewInvalidParameter("part numbers must be ascending")
		}
		previous = requested.PartNumber
		stored, ok := byNumber[requested.PartNumber]
		if !ok {
			return nil, storageerrors.NewMissingPart(requested.PartNumber, upload.Id)
		}
		if requested.ETag != "" && unquoteETag(requested.ETag) != stored.ETag {
			return nil, storageerrors.NewInvalidChecksum(
				"part " + strconv.Itoa(int(requested.PartNumber)) + " etag does not match")
		}
		ordered = append(ordered, stored)
	}
	return ordered, nil
}
