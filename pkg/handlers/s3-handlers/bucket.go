/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// defaultMaxKeys caps a single listing page the way S3 does.
const defaultMaxKeys = 1000

// listPageSize is how many catalog rows one folding iteration pulls.
const listPageSize = 1000

// ListBuckets handles GET /s3.
func (h *Handler) ListBuckets(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		abortS3(c, err)
		return
	}
	var buckets []*dbclient.Bucket
	err = client.WithTransaction(c.Request.Context(), identity, func(tx *dbclient.Tx) error {
		var txErr error
		buckets, txErr = tx.ListBuckets(nil, []string{"name " + dbclient.ASC}, 0, 0)
		return txErr
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	result := &ListAllMyBucketsResult{
		Owner: Owner{ID: identity.Sub, DisplayName: identity.Sub},
	}
	for _, bucket := range buckets {
		result.Buckets = append(result.Buckets, BucketEntry{
			Name:         bucket.Name,
			CreationDate: formatXMLTime(bucket.CreatedAt),
		})
	}
	writeXML(c, http.StatusOK, result)
}

// CreateBucket handles PUT /s3/:bucket.
func (h *Handler) CreateBucket(c *gin.Context) {
	bucket, _ := bucketKey(c)
	if err := objects.ValidateBucketName(bucket); err != nil {
		abortS3(c, err)
		return
	}
	identity := middleware.GetIdentity(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		abortS3(c, err)
		return
	}
	err = client.WithTransaction(c.Request.Context(), identity, func(tx *dbclient.Tx) error {
		return tx.CreateBucket(&dbclient.Bucket{
			Id:    bucket,
			Name:  bucket,
			Owner: dbutils.NullString(identity.Sub),
		})
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Header("Location", "/"+bucket)
	c.Status(http.StatusOK)
}

// HeadBucket handles HEAD /s3/:bucket.
func (h *Handler) HeadBucket(c *gin.Context) {
	bucket, _ := bucketKey(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		abortS3(c, err)
		return
	}
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		_, txErr := tx.GetBucket(bucket)
		return txErr
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// DeleteBucket handles DELETE /s3/:bucket; refuses non-empty buckets.
func (h *Handler) DeleteBucket(c *gin.Context) {
	bucket, _ := bucketKey(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		abortS3(c, err)
		return
	}
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		return tx.DeleteBucket(bucket)
	})
	if err != nil {
		abortS3(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListObjects handles GET /s3/:bucket for both the V1 and V2 (?list-type=2)
// listings. The catalog pages keys in name order and the handler folds
// delimiter groups, so common prefixes behave like S3's regardless of how
// many keys share them.
func (h *Handler) ListObjects(c *gin.Context) {
	bucket, _ := bucketKey(c)
	v2 := c.Query("list-type") == "2"
	prefix := c.Query("prefix")
	delimiter := c.Query("delimiter")
	maxKeys := defaultMaxKeys
	if raw := c.Query("max-keys"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortS3(c, errUnknownOperation(c))
			return
		}
		if parsed < maxKeys {
			maxKeys = parsed
		}
	}
	marker := c.Query("marker")
	if v2 {
		marker = c.Query("continuation-token")
		if marker == "" {
			marker = c.Query("start-after")
		}
	}

	fold, err := h.foldListing(c, bucket, prefix, delimiter, marker, maxKeys)
	if err != nil {
		abortS3(c, err)
		return
	}

	result := &ListBucketResult{
		Name:           bucket,
		Prefix:         prefix,
		Delimiter:      delimiter,
		KeyCount:       len(fold.contents) + len(fold.commonPrefixes),
		MaxKeys:        maxKeys,
		IsTruncated:    fold.truncated,
		Contents:       fold.contents,
		CommonPrefixes: fold.commonPrefixes,
	}
	if v2 {
		result.ContinuationToken = c.Query("continuation-token")
		result.StartAfter = c.Query("start-after")
		if fold.truncated {
			result.NextContinuationToken = fold.nextMarker
		}
	} else {
		result.Marker = c.Query("marker")
		if fold.truncated {
			result.NextMarker = fold.nextMarker
		}
	}
	writeXML(c, http.StatusOK, result)
}

type foldResult struct {
	contents       []ObjectEntry
	commonPrefixes []CommonPrefix
	truncated      bool
	nextMarker     string
}

// foldListing walks catalog pages in key order, skipping keys at or before
// the marker, and groups keys under delimiter-bounded common prefixes
// until maxKeys entries are produced.
func (h *Handler) foldListing(c *gin.Context, bucket, prefix, delimiter, marker string, maxKeys int) (*foldResult, error) {
	identity := middleware.GetIdentity(c)
	tenantId := middleware.GetTenantId(c)
	fold := &foldResult{}
	lastPrefix := ""
	offset := 0
	for {
		page, err := h.manager.List(c.Request.Context(), identity, &objects.ListParams{
			TenantId:   tenantId,
			Bucket:     bucket,
			Prefix:     prefix,
			Limit:      listPageSize,
			Offset:     offset,
			SortColumn: "name",
			SortOrder:  dbclient.ASC,
		})
		if err != nil {
			return nil, err
		}
		for _, object := range page {
			if marker != "" && object.Name <= marker {
				continue
			}
			entry, group := foldKey(object.Name, prefix, delimiter)
			if group != "" && group == lastPrefix {
				continue
			}
			if len(fold.contents)+len(fold.commonPrefixes) >= maxKeys {
				fold.truncated = true
				return fold, nil
			}
			if group != "" {
				lastPrefix = group
				fold.commonPrefixes = append(fold.commonPrefixes, CommonPrefix{Prefix: group})
				fold.nextMarker = group
				continue
			}
			fold.contents = append(fold.contents, objectEntry(object, entry))
			fold.nextMarker = object.Name
		}
		if len(page) < listPageSize {
			return fold, nil
		}
		offset += listPageSize
	}
}

// foldKey decides whether a key is listed directly or grouped: a non-empty
// group return is the common prefix the key folds into.
func foldKey(key, prefix, delimiter string) (string, string) {
	if delimiter == "" {
		return key, ""
	}
	rest := strings.TrimPrefix(key, prefix)
	idx := strings.Index(rest, delimiter)
	if idx < 0 {
		return key, ""
	}
	return "", prefix + rest[:idx+len(delimiter)]
}

func objectEntry(object *dbclient.Object, key string) ObjectEntry {
	var metadata dbclient.ObjectMetadata
	if len(object.Metadata) > 0 {
		_ = jsonutils.Unmarshal(object.Metadata, &metadata)
	}
	return ObjectEntry{
		Key:          key,
		LastModified: metadata.LastModified,
		ETag:         quoteETag(metadata.ETag),
		Size:         metadata.Size,
		StorageClass: "STANDARD",
	}
}

func formatXMLTime(t pq.NullTime) string {
	if !t.Valid {
		return ""
	}
	return timeutil.FormatRFC3339(t.Time)
}
