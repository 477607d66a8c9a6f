/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package object_handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"k8s.io/utils/ptr"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// ObjectResponse is the wire shape of an object row.
type ObjectResponse struct {
	Id             string                   `json:"id"`
	Name           string                   `json:"name"`
	BucketId       string                   `json:"bucketId"`
	Version        string                   `json:"version"`
	Owner          string                   `json:"owner,omitempty"`
	Metadata       *dbclient.ObjectMetadata `json:"metadata,omitempty"`
	UserMetadata   json.RawMessage          `json:"userMetadata,omitempty"`
	CreatedAt      string                   `json:"createdAt,omitempty"`
	UpdatedAt      string                   `json:"updatedAt,omitempty"`
	LastAccessedAt string                   `json:"lastAccessedAt,omitempty"`
}

// UploadResponse acknowledges a committed upload.
type UploadResponse struct {
	Key     string `json:"Key"`
	Id      string `json:"Id"`
	Version string `json:"Version"`
}

// ListObjectsRequest is the POST /object/list/:bucket body.
type ListObjectsRequest struct {
	Prefix string `json:"prefix"`
	Search string `json:"search"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"sortBy"`
}

// CopyObjectRequest is the POST /object/copy and /object/move body.
type CopyObjectRequest struct {
	SourceBucket      string `json:"sourceBucket" binding:"required"`
	SourceKey         string `json:"sourceKey" binding:"required"`
	DestinationBucket string `json:"destinationBucket"`
	DestinationKey    string `json:"destinationKey" binding:"required"`
	Upsert            bool   `json:"upsert"`
	ContentType       string `json:"contentType"`
	CacheControl      string `json:"cacheControl"`
}

// DeleteObjectsRequest is the DELETE /object/:bucket body.
type DeleteObjectsRequest struct {
	Prefixes []string `json:"prefixes" binding:"required"`
}

// DeletedObject is one entry of the multi-delete outcome list.
type DeletedObject struct {
	BucketId string `json:"bucketId"`
	Name     string `json:"name"`
}

// UploadObject handles POST /object/:bucket/*key.
func (h *Handler) UploadObject(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.uploadObject(c, middleware.GetIdentity(c), c.GetHeader(upsertHeader) == "true")
	})
}

// UpsertObject handles PUT /object/:bucket/*key.
func (h *Handler) UpsertObject(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.uploadObject(c, middleware.GetIdentity(c), true)
	})
}

// GetObject handles GET /object/:bucket/*key.
func (h *Handler) GetObject(c *gin.Context) {
	h.serveObject(c, middleware.GetIdentity(c), true)
}

// ObjectInfo handles HEAD /object/:bucket/*key and the info endpoints.
func (h *Handler) ObjectInfo(c *gin.Context) {
	h.serveObjectInfo(c, middleware.GetIdentity(c))
}

// DeleteObject handles DELETE /object/:bucket/*key.
func (h *Handler) DeleteObject(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		bucket, key := bucketKey(c)
		err := h.manager.Delete(c.Request.Context(), middleware.GetIdentity(c),
			middleware.GetTenantId(c), bucket, key)
		if err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully deleted"}, nil
	})
}

// DeleteObjects handles DELETE /object/:bucket with a prefix list.
func (h *Handler) DeleteObjects(c *gin.Context) {
	handle(c, h.deleteObjects)
}

// ListObjects handles POST /object/list/:bucket.
func (h *Handler) ListObjects(c *gin.Context) {
	handle(c, h.listObjects)
}

// CopyObject handles POST /object/copy.
func (h *Handler) CopyObject(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.copyOrMove(c, false)
	})
}

// MoveObject handles POST /object/move.
func (h *Handler) MoveObject(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.copyOrMove(c, true)
	})
}

func (h *Handler) uploadObject(c *gin.Context, identity dbclient.Identity, upsert bool) (interface{}, error) {
	bucket, key := bucketKey(c)
	body, contentType, err := requestBody(c)
	if err != nil {
		return nil, err
	}
	object, err := h.manager.Upload(c.Request.Context(), identity, &objects.UploadParams{
		TenantId:     middleware.GetTenantId(c),
		Bucket:       bucket,
		ObjectName:   key,
		ContentType:  contentType,
		CacheControl: c.GetHeader("Cache-Control"),
		Body:         body,
		IsUpsert:     upsert,
	})
	if err != nil {
		return nil, err
	}
	return &UploadResponse{
		Key:     bucket + "/" + key,
		Id:      object.Id,
		Version: object.Version,
	}, nil
}

// requestBody returns the upload payload: the first file part of a
// multipart form, or the raw request body.
func requestBody(c *gin.Context) (io.Reader, string, error) {
	contentType := c.ContentType()
	if contentType != "multipart/form-data" {
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return c.Request.Body, contentType, nil
	}
	reader, err := c.Request.MultipartReader()
	if err != nil {
		return nil, "", storageerrors.NewInvalidParameter(err.Error())
	}
	for {
		part, partErr := reader.NextPart()
		if partErr != nil {
			return nil, "", storageerrors.NewMissingParameter("file")
		}
		if part.FileName() == "" {
			continue
		}
		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "application/octet-stream"
		} else if parsed, _, parseErr := mime.ParseMediaType(partType); parseErr == nil {
			partType = parsed
		}
		return part, partType, nil
	}
}

func (h *Handler) serveObject(c *gin.Context, identity dbclient.Identity, touch bool) {
	bucket, key := bucketKey(c)
	byteRange, err := parseRangeHeader(c.GetHeader("Range"))
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	options := &backend.ReadOptions{
		IfNoneMatch: c.GetHeader("If-None-Match"),
		Range:       byteRange,
	}
	if since, parseErr := http.ParseTime(c.GetHeader("If-Modified-Since")); parseErr == nil {
		options.IfModifiedSince = ptr.To(since)
	}
	object, result, err := h.manager.Get(c.Request.Context(), identity, &objects.GetParams{
		TenantId:   middleware.GetTenantId(c),
		Bucket:     bucket,
		ObjectName: key,
		Options:    options,
		Touch:      touch,
	})
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	writeObjectHeaders(c, objectMetadata(object))
	if result.Metadata.ContentType != "" {
		c.Header("Content-Type", result.Metadata.ContentType)
	}
	if result.Status == http.StatusNotModified {
		c.Status(http.StatusNotModified)
		return
	}
	if result.ContentRange != "" {
		c.Header("Content-Range", result.ContentRange)
	}
	c.Header("Content-Length", strconv.FormatInt(result.Metadata.Size, 10))
	c.Status(result.Status)
	defer result.Body.Close()
	_, _ = io.Copy(c.Writer, result.Body)
}

func (h *Handler) serveObjectInfo(c *gin.Context, identity dbclient.Identity) {
	bucket, key := bucketKey(c)
	object, err := h.manager.Head(c.Request.Context(), identity, &objects.GetParams{
		TenantId:   middleware.GetTenantId(c),
		Bucket:     bucket,
		ObjectName: key,
	})
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	metadata := objectMetadata(object)
	writeObjectHeaders(c, metadata)
	c.Header("Content-Length", strconv.FormatInt(metadata.Size, 10))
	c.Status(http.StatusOK)
}

func (h *Handler) deleteObjects(c *gin.Context) (interface{}, error) {
	var req DeleteObjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	bucket := c.Param("bucket")
	deleted, err := h.manager.DeleteMany(c.Request.Context(), middleware.GetIdentity(c),
		middleware.GetTenantId(c), bucket, req.Prefixes)
	if err != nil {
		return nil, err
	}
	outcome := make([]*DeletedObject, 0, len(deleted))
	for _, name := range deleted {
		outcome = append(outcome, &DeletedObject{BucketId: bucket, Name: name})
	}
	return outcome, nil
}

func (h *Handler) listObjects(c *gin.Context) (interface{}, error) {
	var req ListObjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	rows, err := h.manager.List(c.Request.Context(), middleware.GetIdentity(c), &objects.ListParams{
		TenantId:   middleware.GetTenantId(c),
		Bucket:     c.Param("bucket"),
		Prefix:     req.Prefix,
		Search:     req.Search,
		Limit:      req.Limit,
		Offset:     req.Offset,
		SortColumn: req.SortBy.Column,
		SortOrder:  req.SortBy.Order,
	})
	if err != nil {
		return nil, err
	}
	response := make([]*ObjectResponse, 0, len(rows))
	for _, row := range rows {
		response = append(response, toObjectResponse(row))
	}
	return response, nil
}

func (h *Handler) copyOrMove(c *gin.Context, move bool) (interface{}, error) {
	var req CopyObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	if req.DestinationBucket == "" {
		req.DestinationBucket = req.SourceBucket
	}
	params := &objects.CopyParams{
		TenantId:     middleware.GetTenantId(c),
		SrcBucket:    req.SourceBucket,
		SrcKey:       strings.TrimPrefix(req.SourceKey, "/"),
		DstBucket:    req.DestinationBucket,
		DstKey:       strings.TrimPrefix(req.DestinationKey, "/"),
		IsUpsert:     req.Upsert,
		ContentType:  req.ContentType,
		CacheControl: req.CacheControl,
	}
	var object *dbclient.Object
	var err error
	if move {
		object, err = h.manager.Move(c.Request.Context(), middleware.GetIdentity(c), params)
	} else {
		object, err = h.manager.Copy(c.Request.Context(), middleware.GetIdentity(c), params)
	}
	if err != nil {
		return nil, err
	}
	return &UploadResponse{
		Key:     req.DestinationBucket + "/" + params.DstKey,
		Id:      object.Id,
		Version: object.Version,
	}, nil
}

func toObjectResponse(object *dbclient.Object) *ObjectResponse {
	return &ObjectResponse{
		Id:             object.Id,
		Name:           object.Name,
		BucketId:       object.BucketId,
		Version:        object.Version,
		Owner:          utils.ParseNullString(object.Owner),
		Metadata:       objectMetadata(object),
		UserMetadata:   json.RawMessage(object.UserMetadata),
		CreatedAt:      formatTime(object.CreatedAt),
		UpdatedAt:      formatTime(object.UpdatedAt),
		LastAccessedAt: formatTime(object.LastAccessedAt),
	}
}

func formatTime(t pq.NullTime) string {
	if !t.Valid {
		return ""
	}
	return timeutil.FormatRFC3339(t.Time)
}
