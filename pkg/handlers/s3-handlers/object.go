/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"k8s.io/utils/ptr"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
)

// PutObject handles PUT /s3/:bucket/*key without an uploadId or copy
// source. S3 PUT always overwrites.
func (h *Handler) PutObject(c *gin.Context) {
	bucket, key := bucketKey(c)
	object, err := h.manager.Upload(c.Request.Context(), middleware.GetIdentity(c), &objects.UploadParams{
		TenantId:     middleware.GetTenantId(c),
		Bucket:       bucket,
		ObjectName:   key,
		ContentType:  c.ContentType(),
		CacheControl: c.GetHeader("Cache-Control"),
		Body:         c.Request.Body,
		IsUpsert:     true,
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Header("ETag", quoteETag(objectETag(object)))
	c.Status(http.StatusOK)
}

// CopyObject handles PUT /s3/:bucket/*key with x-amz-copy-source.
func (h *Handler) CopyObject(c *gin.Context) {
	srcBucket, srcKey, err := parseCopySource(c.GetHeader(copySourceHeader))
	if err != nil {
		abortS3(c, err)
		return
	}
	dstBucket, dstKey := bucketKey(c)
	params := &objects.CopyParams{
		TenantId:   middleware.GetTenantId(c),
		SrcBucket:  srcBucket,
		SrcKey:     srcKey,
		DstBucket:  dstBucket,
		DstKey:     dstKey,
		IsUpsert:   true,
		Conditions: copyConditions(c),
	}
	if strings.EqualFold(c.GetHeader("x-amz-metadata-directive"), "REPLACE") {
		params.ContentType = c.ContentType()
		params.CacheControl = c.GetHeader("Cache-Control")
	}
	object, err := h.manager.Copy(c.Request.Context(), middleware.GetIdentity(c), params)
	if err != nil {
		abortS3(c, err)
		return
	}
	metadata := metadataOf(object)
	writeXML(c, http.StatusOK, &CopyObjectResult{
		ETag:         quoteETag(metadata.ETag),
		LastModified: metadata.LastModified,
	})
}

// GetObject handles GET /s3/:bucket/*key.
func (h *Handler) GetObject(c *gin.Context) {
	bucket, key := bucketKey(c)
	byteRange, err := parseRange(c.GetHeader("Range"))
	if err != nil {
		abortS3(c, err)
		return
	}
	options := &backend.ReadOptions{
		IfNoneMatch: unquoteETag(c.GetHeader("If-None-Match")),
		Range:       byteRange,
	}
	if raw := c.GetHeader("If-Modified-Since"); raw != "" {
		if since, parseErr := http.ParseTime(raw); parseErr == nil {
			options.IfModifiedSince = ptr.To(since)
		}
	}
	object, result, err := h.manager.Get(c.Request.Context(), middleware.GetIdentity(c), &objects.GetParams{
		TenantId:   middleware.GetTenantId(c),
		Bucket:     bucket,
		ObjectName: key,
		Options:    options,
		Touch:      true,
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	writeS3ObjectHeaders(c, object)
	if result.Status == http.StatusNotModified {
		c.Status(http.StatusNotModified)
		return
	}
	defer func() { _ = result.Body.Close() }()
	status := http.StatusOK
	if result.ContentRange != "" {
		c.Header("Content-Range", result.ContentRange)
		status = http.StatusPartialContent
	}
	c.Header("Content-Length", strconv.FormatInt(result.Metadata.Size, 10))
	c.Status(status)
	_, _ = io.Copy(c.Writer, result.Body)
}

// HeadObject handles HEAD /s3/:bucket/*key.
func (h *Handler) HeadObject(c *gin.Context) {
	bucket, key := bucketKey(c)
	object, err := h.manager.Head(c.Request.Context(), middleware.GetIdentity(c), &objects.GetParams{
		TenantId:   middleware.GetTenantId(c),
		Bucket:     bucket,
		ObjectName: key,
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	metadata := writeS3ObjectHeaders(c, object)
	c.Header("Content-Length", strconv.FormatInt(metadata.Size, 10))
	c.Status(http.StatusOK)
}

// DeleteObject handles DELETE /s3/:bucket/*key. S3 answers 204 whether or
// not the key existed.
func (h *Handler) DeleteObject(c *gin.Context) {
	bucket, key := bucketKey(c)
	err := h.manager.Delete(c.Request.Context(), middleware.GetIdentity(c),
		middleware.GetTenantId(c), bucket, key)
	if err != nil && !storageerrors.IsNotFound(err) {
		abortS3(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteObjects handles POST /s3/:bucket?delete: batched exact-key deletes
// with per-key outcomes.
func (h *Handler) DeleteObjects(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortS3(c, storageerrors.NewInvalidParameter(err.Error()))
		return
	}
	var request Delete
	if err = xml.Unmarshal(body, &request); err != nil {
		abortS3(c, storageerrors.NewInvalidParameter("malformed Delete document"))
		return
	}
	bucket, _ := bucketKey(c)
	identity := middleware.GetIdentity(c)
	tenantId := middleware.GetTenantId(c)
	result := &DeleteResult{}
	for _, object := range request.Objects {
		deleteErr := h.manager.Delete(c.Request.Context(), identity, tenantId, bucket, object.Key)
		if deleteErr != nil && !storageerrors.IsNotFound(deleteErr) {
			result.Errors = append(result.Errors, DeleteError{
				Key:     object.Key,
				Code:    storageerrors.GetErrorCode(deleteErr),
				Message: deleteErr.Error(),
			})
			continue
		}
		if !request.Quiet {
			result.Deleted = append(result.Deleted, DeletedEntry{Key: object.Key})
		}
	}
	writeXML(c, http.StatusOK, result)
}

func parseCopySource(header string) (string, string, error) {
	source, err := url.PathUnescape(header)
	if err != nil {
		return "", "", storageerrors.NewInvalidParameter(copySourceHeader)
	}
	source = strings.TrimPrefix(source, "/")
	bucket, key, found := strings.Cut(source, "/")
	if !found || bucket == "" || key == "" {
		return "", "", storageerrors.NewInvalidParameter(copySourceHeader)
	}
	return bucket, key, nil
}

func copyConditions(c *gin.Context) *backend.CopyOptions {
	options := &backend.CopyOptions{
		IfMatch:     unquoteETag(c.GetHeader("x-amz-copy-source-if-match")),
		IfNoneMatch: unquoteETag(c.GetHeader("x-amz-copy-source-if-none-match")),
	}
	if raw := c.GetHeader("x-amz-copy-source-if-modified-since"); raw != "" {
		if since, err := http.ParseTime(raw); err == nil {
			options.IfModifiedSince = ptr.To(since)
		}
	}
	if raw := c.GetHeader("x-amz-copy-source-if-unmodified-since"); raw != "" {
		if until, err := http.ParseTime(raw); err == nil {
			options.IfUnmodifiedSince = ptr.To(until)
		}
	}
	return options
}

func metadataOf(object *dbclient.Object) dbclient.ObjectMetadata {
	var metadata dbclient.ObjectMetadata
	if len(object.Metadata) > 0 {
		_ = jsonutils.Unmarshal(object.Metadata, &metadata)
	}
	return metadata
}

func objectETag(object *dbclient.Object) string {
	return metadataOf(object).ETag
}

func writeS3ObjectHeaders(c *gin.Context, object *dbclient.Object) dbclient.ObjectMetadata {
	metadata := metadataOf(object)
	if metadata.Mimetype != "" {
		c.Header("Content-Type", metadata.Mimetype)
	}
	if metadata.ETag != "" {
		c.Header("ETag", quoteETag(metadata.ETag))
	}
	if metadata.LastModified != "" {
		c.Header("Last-Modified", metadata.LastModified)
	}
	if metadata.CacheControl != "" {
		c.Header("Cache-Control", metadata.CacheControl)
	}
	return metadata
}
