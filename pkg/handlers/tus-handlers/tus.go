/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package tus_handlers adapts the resumable upload engine to the TUS 1.0
// wire protocol.
package tus_handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tus"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

// patchContentType is the only body type PATCH accepts.
const patchContentType = "application/offset+octet-stream"

// releaseGracePeriod is how long a PATCH keeps streaming after a peer asks
// for the lock: enough to finish the in-flight part and commit.
const releaseGracePeriod = 200 * time.Millisecond

type Handler struct {
	engine *tus.Engine
}

func NewHandler(engine *tus.Engine) *Handler {
	return &Handler{engine: engine}
}

func abortTus(c *gin.Context, err error) {
	c.Header(tus.HeaderResumable, tus.Version)
	apiutils.AbortWithApiError(c, err)
}

// Options handles OPTIONS /upload/resumable: capability discovery.
func (h *Handler) Options(c *gin.Context) {
	c.Header(tus.HeaderResumable, tus.Version)
	c.Header(tus.HeaderVersion, tus.Version)
	c.Header(tus.HeaderExtension, tus.Extensions)
	c.Header(tus.HeaderMaxSize, strconv.FormatInt(config.GetStorageMaxFileSize(), 10))
	c.Status(http.StatusNoContent)
}

// Create handles POST /upload/resumable.
func (h *Handler) Create(c *gin.Context) {
	if err := checkProtocolVersion(c); err != nil {
		abortTus(c, err)
		return
	}
	length, deferred, err := parseLength(c)
	if err != nil {
		abortTus(c, err)
		return
	}
	metadata, err := tus.ParseMetadata(c.GetHeader(tus.HeaderMetadata))
	if err != nil {
		abortTus(c, err)
		return
	}
	bucket := metadata[tus.MetaBucketName]
	key := metadata[tus.MetaObjectName]
	if bucket == "" || key == "" {
		abortTus(c, storageerrors.NewMissingParameter(
			tus.MetaBucketName+" and "+tus.MetaObjectName+" metadata"))
		return
	}
	declared := length
	if deferred {
		declared = -1
	}
	info, err := h.engine.Create(c.Request.Context(), middleware.GetIdentity(c), &tus.CreateParams{
		TenantId:       middleware.GetTenantId(c),
		Bucket:         bucket,
		Key:            key,
		DeclaredLength: declared,
		ContentType:    metadata[tus.MetaContentType],
		CacheControl:   metadata[tus.MetaCacheControl],
		IsUpsert:       c.GetHeader("x-upsert") == "true",
	})
	if err != nil {
		abortTus(c, err)
		return
	}
	c.Header(tus.HeaderResumable, tus.Version)
	c.Header(tus.HeaderExpires, info.ExpiresAt.UTC().Format(http.TimeFormat))
	c.Header("Location", "/upload/resumable/"+info.Id)
	c.Status(http.StatusCreated)
}

// Head handles HEAD /upload/resumable/*id: the offset probe.
func (h *Handler) Head(c *gin.Context) {
	info, err := h.engine.Head(c.Request.Context(), middleware.GetIdentity(c), uploadId(c))
	if err != nil {
		abortTus(c, err)
		return
	}
	c.Header(tus.HeaderResumable, tus.Version)
	c.Header("Cache-Control", "no-store")
	c.Header(tus.HeaderOffset, strconv.FormatInt(info.Offset, 10))
	if info.LengthDeferred {
		c.Header(tus.HeaderDeferLength, "1")
	} else {
		c.Header(tus.HeaderLength, strconv.FormatInt(info.DeclaredLength, 10))
	}
	if !info.ExpiresAt.IsZero() {
		c.Header(tus.HeaderExpires, info.ExpiresAt.UTC().Format(http.TimeFormat))
	}
	c.Status(http.StatusOK)
}

// Patch handles PATCH /upload/resumable/*id: append at the given offset.
// When a peer requests the distributed lock mid-stream, the body read is
// cut after a short grace period so the committed prefix survives and the
// peer takes over.
func (h *Handler) Patch(c *gin.Context) {
	if err := checkProtocolVersion(c); err != nil {
		abortTus(c, err)
		return
	}
	if c.ContentType() != patchContentType {
		abortTus(c, storageerrors.NewInvalidParameter(
			"PATCH requires Content-Type "+patchContentType))
		return
	}
	offset, err := strconv.ParseInt(c.GetHeader(tus.HeaderOffset), 10, 64)
	if err != nil || offset < 0 {
		abortTus(c, storageerrors.NewMissingParameter(tus.HeaderOffset))
		return
	}
	declared := int64(-1)
	if raw := c.GetHeader(tus.HeaderLength); raw != "" {
		declared, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || declared < 0 {
			abortTus(c, storageerrors.NewInvalidParameter(tus.HeaderLength))
			return
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	onRelease := func() {
		time.AfterFunc(releaseGracePeriod, cancel)
	}

	info, _, err := h.engine.Patch(ctx, middleware.GetIdentity(c), &tus.PatchParams{
		Id:               uploadId(c),
		Offset:           offset,
		Body:             c.Request.Body,
		DeclaredLength:   declared,
		OnReleaseRequest: onRelease,
	})
	if err != nil {
		abortTus(c, err)
		return
	}
	c.Header(tus.HeaderResumable, tus.Version)
	c.Header(tus.HeaderOffset, strconv.FormatInt(info.Offset, 10))
	if !info.ExpiresAt.IsZero() {
		c.Header(tus.HeaderExpires, info.ExpiresAt.UTC().Format(http.TimeFormat))
	}
	c.Status(http.StatusNoContent)
}

// Terminate handles DELETE /upload/resumable/*id.
func (h *Handler) Terminate(c *gin.Context) {
	if err := checkProtocolVersion(c); err != nil {
		abortTus(c, err)
		return
	}
	err := h.engine.Delete(c.Request.Context(), middleware.GetIdentity(c), uploadId(c))
	if err != nil {
		abortTus(c, err)
		return
	}
	c.Header(tus.HeaderResumable, tus.Version)
	c.Status(http.StatusNoContent)
}

func uploadId(c *gin.Context) string {
	id := c.Param("id")
	if len(id) > 0 && id[0] == '/' {
		id = id[1:]
	}
	return id
}

// checkProtocolVersion enforces Tus-Resumable on mutating requests; a
// mismatch answers 412 with the supported version.
func checkProtocolVersion(c *gin.Context) error {
	if v := c.GetHeader(tus.HeaderResumable); v != tus.Version {
		c.Header(tus.HeaderVersion, tus.Version)
		return &apiutils.ApiError{
			HttpCode:   http.StatusPreconditionFailed,
			StatusCode: strconv.Itoa(http.StatusPreconditionFailed),
			Code:       storageerrors.InvalidParameter,
			ErrorName:  storageerrors.InvalidParameter,
			Message:    "unsupported TUS version: " + v,
		}
	}
	return nil
}

// parseLength reads Upload-Length / Upload-Defer-Length; exactly one must
// be present on creation.
func parseLength(c *gin.Context) (int64, bool, error) {
	deferRaw := c.GetHeader(tus.HeaderDeferLength)
	lengthRaw := c.GetHeader(tus.HeaderLength)
	if deferRaw != "" {
		if deferRaw != "1" || lengthRaw != "" {
			return 0, false, storageerrors.NewInvalidParameter(tus.HeaderDeferLength)
		}
		return 0, true, nil
	}
	if lengthRaw == "" {
		return 0, false, storageerrors.NewMissingParameter(tus.HeaderLength)
	}
	length, err := strconv.ParseInt(lengthRaw, 10, 64)
	if err != nil || length < 0 {
		return 0, false, storageerrors.NewInvalidParameter(tus.HeaderLength)
	}
	return length, false, nil
}
