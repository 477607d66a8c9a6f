/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

const (
	copySourceHeader      = "x-amz-copy-source"
	copySourceRangeHeader = "x-amz-copy-source-range"
)

func errUnknownOperation(c *gin.Context) error {
	return storageerrors.NewInvalidParameter(
		"unsupported operation " + c.Request.Method + " " + c.Request.URL.RequestURI())
}

type Handler struct {
	registry *tenant.Registry
	manager  *objects.Manager
	store    backend.Backend
	bucket   string
}

func NewHandler(registry *tenant.Registry, manager *objects.Manager, store backend.Backend) *Handler {
	return &Handler{
		registry: registry,
		manager:  manager,
		store:    store,
		bucket:   config.GetStorageBucket(),
	}
}

// bucketKey splits the route params; the wildcard key keeps its leading
// slash in gin.
func bucketKey(c *gin.Context) (string, string) {
	return c.Param("bucket"), strings.TrimPrefix(c.Param("key"), "/")
}

// parseRange understands single "bytes=a-b" and open-ended "bytes=a-"
// ranges. Suffix ranges are answered 416: object sizes live in the catalog
// and are not consulted before the backend read.
func parseRange(header string) (*backend.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return nil, storageerrors.NewInvalidRange(header)
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return nil, storageerrors.NewInvalidRange(header)
	}
	if first == "" {
		return nil, storageerrors.NewS3Error(416, "suffix ranges are not supported")
	}
	firstByte, err := strconv.ParseInt(first, 10, 64)
	if err != nil || firstByte < 0 {
		return nil, storageerrors.NewInvalidRange(header)
	}
	lastByte := int64(math.MaxInt64 - 1)
	if last != "" {
		lastByte, err = strconv.ParseInt(last, 10, 64)
		if err != nil || lastByte < firstByte {
			return nil, storageerrors.NewInvalidRange(header)
		}
	}
	return &backend.ByteRange{First: firstByte, Last: lastByte}, nil
}

// quoteETag renders an ETag the way S3 clients expect it on the wire.
func quoteETag(etag string) string {
	if etag == "" || strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}

func unquoteETag(etag string) string {
	return strings.Trim(etag, `"`)
}
