/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// InitS3Routers registers the S3-wire surface. S3 multiplexes operations
// onto a handful of method+path shapes, so the leaf handlers dispatch on
// query parameters the way the protocol does.
func InitS3Routers(e *gin.Engine, h *Handler, registry *tenant.Registry) {
	group := e.Group("/s3", middleware.ResolveTenant(), SigV4Authenticated(registry))
	{
		group.GET("", h.ListBuckets)

		group.PUT("/:bucket", h.CreateBucket)
		group.DELETE("/:bucket", h.DeleteBucket)
		group.HEAD("/:bucket", h.HeadBucket)
		group.GET("/:bucket", h.dispatchBucketGet)
		group.POST("/:bucket", h.dispatchBucketPost)

		group.PUT("/:bucket/*key", h.dispatchObjectPut)
		group.GET("/:bucket/*key", h.dispatchObjectGet)
		group.HEAD("/:bucket/*key", h.HeadObject)
		group.DELETE("/:bucket/*key", h.dispatchObjectDelete)
		group.POST("/:bucket/*key", h.dispatchObjectPost)
	}
}

// GET /:bucket is ListObjects, ListObjectsV2 (?list-type=2) or
// ListMultipartUploads (?uploads).
func (h *Handler) dispatchBucketGet(c *gin.Context) {
	if _, uploads := c.GetQuery("uploads"); uploads {
		h.ListMultipartUploads(c)
		return
	}
	h.ListObjects(c)
}

// POST /:bucket is DeleteObjects (?delete).
func (h *Handler) dispatchBucketPost(c *gin.Context) {
	if _, del := c.GetQuery("delete"); del {
		h.DeleteObjects(c)
		return
	}
	abortS3(c, errUnknownOperation(c))
}

// PUT /:bucket/*key is UploadPart / UploadPartCopy (?uploadId), CopyObject
// (x-amz-copy-source) or PutObject.
func (h *Handler) dispatchObjectPut(c *gin.Context) {
	if c.Query("uploadId") != "" {
		if c.GetHeader(copySourceHeader) != "" {
			h.UploadPartCopy(c)
			return
		}
		h.UploadPart(c)
		return
	}
	if c.GetHeader(copySourceHeader) != "" {
		h.CopyObject(c)
		return
	}
	h.PutObject(c)
}

// GET /:bucket/*key is ListParts (?uploadId) or GetObject.
func (h *Handler) dispatchObjectGet(c *gin.Context) {
	if c.Query("uploadId") != "" {
		h.ListParts(c)
		return
	}
	h.GetObject(c)
}

// DELETE /:bucket/*key is AbortMultipartUpload (?uploadId) or DeleteObject.
func (h *Handler) dispatchObjectDelete(c *gin.Context) {
	if c.Query("uploadId") != "" {
		h.AbortMultipartUpload(c)
		return
	}
	h.DeleteObject(c)
}

// POST /:bucket/*key is CreateMultipartUpload (?uploads) or
// CompleteMultipartUpload (?uploadId).
func (h *Handler) dispatchObjectPost(c *gin.Context) {
	if _, uploads := c.GetQuery("uploads"); uploads {
		h.CreateMultipartUpload(c)
		return
	}
	if c.Query("uploadId") != "" {
		h.CompleteMultipartUpload(c)
		return
	}
	abortS3(c, errUnknownOperation(c))
}
