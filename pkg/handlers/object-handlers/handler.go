/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package object_handlers serves the tenant-scoped object endpoints:
// upload, download, listing, copy/move, deletion, and the public and
// signed-URL access paths.
package object_handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

const upsertHeader = "x-upsert"

type Handler struct {
	registry *tenant.Registry
	manager  *objects.Manager
}

func NewHandler(registry *tenant.Registry, manager *objects.Manager) *Handler {
	return &Handler{registry: registry, manager: manager}
}

type handleFunc func(c *gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	response, err := fn(c)
	if err != nil {
		apiutils.AbortWithApiError(c, err)
		return
	}
	if response == nil {
		return
	}
	code := http.StatusOK
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	c.JSON(code, response)
}

// bucketKey extracts the :bucket and *key route params; the wildcard keeps
// its leading slash in gin.
func bucketKey(c *gin.Context) (string, string) {
	return c.Param("bucket"), strings.TrimPrefix(c.Param("key"), "/")
}

// parseRangeHeader resolves a Range header into an absolute byte range.
// Open-ended ranges rely on the backend clamping the last byte; suffix
// ranges are refused with 416 since the size is unknown before the read.
func parseRangeHeader(header string) (*backend.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, storageerrors.NewInvalidRange(header)
	}
	firstStr, lastStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, storageerrors.NewInvalidRange(header)
	}
	if firstStr == "" {
		return nil, &apiutils.ApiError{
			HttpCode:   http.StatusRequestedRangeNotSatisfiable,
			StatusCode: strconv.Itoa(http.StatusRequestedRangeNotSatisfiable),
			Code:       storageerrors.InvalidRange,
			ErrorName:  storageerrors.InvalidRange,
			Message:    "suffix byte ranges are not satisfiable: " + header,
		}
	}
	first, err := strconv.ParseInt(firstStr, 10, 64)
	if err != nil || first < 0 {
		return nil, storageerrors.NewInvalidRange(header)
	}
	last := int64(math.MaxInt64 - 1)
	if lastStr != "" {
		last, err = strconv.ParseInt(lastStr, 10, 64)
		if err != nil || last < first {
			return nil, storageerrors.NewInvalidRange(header)
		}
	}
	return &backend.ByteRange{First: first, Last: last}, nil
}

// objectMetadata decodes the system metadata blob stored on the row.
func objectMetadata(object *dbclient.Object) *dbclient.ObjectMetadata {
	metadata := &dbclient.ObjectMetadata{}
	if len(object.Metadata) > 0 {
		_ = jsonutils.Unmarshal(object.Metadata, metadata)
	}
	return metadata
}

// writeObjectHeaders renders the standard metadata headers of a GET/HEAD.
func writeObjectHeaders(c *gin.Context, metadata *dbclient.ObjectMetadata) {
	if metadata.Mimetype != "" {
		c.Header("Content-Type", metadata.Mimetype)
	}
	if metadata.ETag != "" {
		c.Header("ETag", metadata.ETag)
	}
	if metadata.LastModified != "" {
		c.Header("Last-Modified", metadata.LastModified)
	}
	if metadata.CacheControl != "" {
		c.Header("Cache-Control", metadata.CacheControl)
	}
}
