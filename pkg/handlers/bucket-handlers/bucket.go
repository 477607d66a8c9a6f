/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package bucket_handlers serves the tenant-scoped bucket CRUD endpoints.
package bucket_handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

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
	code := http.StatusOK
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	c.JSON(code, response)
}

// CreateBucketRequest is the POST /bucket body.
type CreateBucketRequest struct {
	Id               string   `json:"id"`
	Name             string   `json:"name" binding:"required"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"fileSizeLimit"`
	AllowedMimeTypes []string `json:"allowedMimeTypes"`
}

// UpdateBucketRequest is the PUT /bucket/:id body.
type UpdateBucketRequest struct {
	Public           *bool    `json:"public"`
	FileSizeLimit    *int64   `json:"fileSizeLimit"`
	AllowedMimeTypes []string `json:"allowedMimeTypes"`
}

// BucketResponse is the wire shape of a bucket.
type BucketResponse struct {
	Id               string   `json:"id"`
	Name             string   `json:"name"`
	Owner            string   `json:"owner,omitempty"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"fileSizeLimit,omitempty"`
	AllowedMimeTypes []string `json:"allowedMimeTypes,omitempty"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

// CreateBucket handles POST /bucket.
func (h *Handler) CreateBucket(c *gin.Context) {
	handle(c, h.createBucket)
}

// ListBuckets handles GET /bucket.
func (h *Handler) ListBuckets(c *gin.Context) {
	handle(c, h.listBuckets)
}

// GetBucket handles GET /bucket/:id.
func (h *Handler) GetBucket(c *gin.Context) {
	handle(c, h.getBucket)
}

// UpdateBucket handles PUT /bucket/:id.
func (h *Handler) UpdateBucket(c *gin.Context) {
	handle(c, h.updateBucket)
}

// DeleteBucket handles DELETE /bucket/:id.
func (h *Handler) DeleteBucket(c *gin.Context) {
	handle(c, h.deleteBucket)
}

// EmptyBucket handles POST /bucket/:id/empty.
func (h *Handler) EmptyBucket(c *gin.Context) {
	handle(c, h.emptyBucket)
}

func (h *Handler) createBucket(c *gin.Context) (interface{}, error) {
	var req CreateBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	if err := objects.ValidateBucketName(req.Name); err != nil {
		return nil, err
	}
	if req.Id == "" {
		req.Id = req.Name
	}
	identity := middleware.GetIdentity(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	bucket := &dbclient.Bucket{
		Id:               req.Id,
		Name:             req.Name,
		Owner:            utils.NullString(identity.Sub),
		Public:           req.Public,
		FileSizeLimit:    utils.NullInt64(req.FileSizeLimit),
		AllowedMimeTypes: pq.StringArray(req.AllowedMimeTypes),
	}
	err = client.WithTransaction(c.Request.Context(), identity, func(tx *dbclient.Tx) error {
		return tx.CreateBucket(bucket)
	})
	if err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return toBucketResponse(bucket), nil
}

func (h *Handler) listBuckets(c *gin.Context) (interface{}, error) {
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	var buckets []*dbclient.Bucket
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		var txErr error
		buckets, txErr = tx.ListBuckets(nil, []string{"name " + dbclient.ASC}, 0, 0)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	response := make([]*BucketResponse, 0, len(buckets))
	for _, bucket := range buckets {
		response = append(response, toBucketResponse(bucket))
	}
	return response, nil
}

func (h *Handler) getBucket(c *gin.Context) (interface{}, error) {
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	var bucket *dbclient.Bucket
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		var txErr error
		bucket, txErr = tx.GetBucket(c.Param("id"))
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return toBucketResponse(bucket), nil
}

func (h *Handler) updateBucket(c *gin.Context) (interface{}, error) {
	var req UpdateBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	var bucket *dbclient.Bucket
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		var txErr error
		bucket, txErr = tx.GetBucket(c.Param("id"))
		if txErr != nil {
			return txErr
		}
		if req.Public != nil {
			bucket.Public = *req.Public
		}
		if req.FileSizeLimit != nil {
			bucket.FileSizeLimit = utils.NullInt64(*req.FileSizeLimit)
		}
		if req.AllowedMimeTypes != nil {
			bucket.AllowedMimeTypes = pq.StringArray(req.AllowedMimeTypes)
		}
		return tx.UpdateBucket(bucket)
	})
	if err != nil {
		return nil, err
	}
	return toBucketResponse(bucket), nil
}

func (h *Handler) deleteBucket(c *gin.Context) (interface{}, error) {
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	err = client.WithTransaction(c.Request.Context(), middleware.GetIdentity(c), func(tx *dbclient.Tx) error {
		return tx.DeleteBucket(c.Param("id"))
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"message": "Successfully deleted"}, nil
}

func (h *Handler) emptyBucket(c *gin.Context) (interface{}, error) {
	err := h.manager.EmptyBucket(c.Request.Context(), middleware.GetIdentity(c),
		middleware.GetTenantId(c), c.Param("id"))
	if err != nil {
		return nil, err
	}
	return gin.H{"message": "Successfully emptied"}, nil
}

func toBucketResponse(bucket *dbclient.Bucket) *BucketResponse {
	return &BucketResponse{
		Id:               bucket.Id,
		Name:             bucket.Name,
		Owner:            utils.ParseNullString(bucket.Owner),
		Public:           bucket.Public,
		FileSizeLimit:    bucket.FileSizeLimit.Int64,
		AllowedMimeTypes: bucket.AllowedMimeTypes,
		CreatedAt:        formatTime(bucket.CreatedAt),
		UpdatedAt:        formatTime(bucket.UpdatedAt),
	}
}

func formatTime(t pq.NullTime) string {
	if !t.Valid {
		return ""
	}
	return timeutil.FormatRFC3339(t.Time)
}
