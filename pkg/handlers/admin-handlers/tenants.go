/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package admin_handlers serves the API-key-guarded operator surface:
// tenant lifecycle, migrations, S3 credentials, orphan reconciliation and
// shard administration.
package admin_handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/migrations"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/scanner"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/shard"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

type Handler struct {
	registry  *tenant.Registry
	store     backend.Backend
	scanner   orphanScanner
	migrator  *migrations.Migrator
	fleet     *migrations.Fleet
	allocator *shard.Allocator
	jobQueue  *queue.Queue
	bucket    string
}

func NewHandler(registry *tenant.Registry, store backend.Backend, orphanScanner *scanner.Scanner,
	migrator *migrations.Migrator, fleet *migrations.Fleet, allocator *shard.Allocator,
	jobQueue *queue.Queue) *Handler {
	return &Handler{
		registry:  registry,
		store:     store,
		scanner:   orphanScanner,
		migrator:  migrator,
		fleet:     fleet,
		allocator: allocator,
		jobQueue:  jobQueue,
		bucket:    config.GetStorageBucket(),
	}
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

// CreateTenantRequest registers one tenant. Connection material is
// encrypted before it reaches the registry table.
type CreateTenantRequest struct {
	Id             string          `json:"id" binding:"required"`
	DatabaseUrl    string          `json:"databaseUrl" binding:"required"`
	PoolUrl        string          `json:"poolUrl"`
	MaxConnections int             `json:"maxConnections"`
	JwtSecret      string          `json:"jwtSecret"`
	Jwks           json.RawMessage `json:"jwks"`
	FeatureFlags   json.RawMessage `json:"featureFlags"`
}

// UpdateTenantRequest re-registers a tenant's connection material.
type UpdateTenantRequest struct {
	DatabaseUrl    string          `json:"databaseUrl" binding:"required"`
	PoolUrl        string          `json:"poolUrl"`
	MaxConnections int             `json:"maxConnections"`
	JwtSecret      string          `json:"jwtSecret"`
	Jwks           json.RawMessage `json:"jwks"`
	FeatureFlags   json.RawMessage `json:"featureFlags"`
}

// TenantResponse never carries connection strings or secrets.
type TenantResponse struct {
	Id                string `json:"id"`
	MaxConnections    int    `json:"maxConnections,omitempty"`
	MigrationsVersion string `json:"migrationsVersion,omitempty"`
	MigrationsStatus  string `json:"migrationsStatus,omitempty"`
	CursorId          int64  `json:"cursorId,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// CreateTenant handles POST /admin/tenants.
func (h *Handler) CreateTenant(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		record := &dbclient.Tenant{
			Id:             req.Id,
			DatabaseUrl:    req.DatabaseUrl,
			PoolUrl:        req.PoolUrl,
			MaxConnections: req.MaxConnections,
			JwtSecret:      req.JwtSecret,
			Jwks:           datatypes.JSON(req.Jwks),
			FeatureFlags:   datatypes.JSON(req.FeatureFlags),
		}
		if err := h.registry.Register(record); err != nil {
			return nil, err
		}
		c.Status(http.StatusCreated)
		return toTenantResponse(record), nil
	})
}

// ListTenants handles GET /admin/tenants.
func (h *Handler) ListTenants(c *gin.Context) {
	handle(c, func(*gin.Context) (interface{}, error) {
		tenants, err := h.registry.List()
		if err != nil {
			return nil, err
		}
		response := make([]*TenantResponse, 0, len(tenants))
		for _, record := range tenants {
			response = append(response, toTenantResponse(record))
		}
		return response, nil
	})
}

// GetTenant handles GET /admin/tenants/:tenantId.
func (h *Handler) GetTenant(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		record, err := h.registry.Get(c.Param("tenantId"))
		if err != nil {
			return nil, err
		}
		return toTenantResponse(record), nil
	})
}

// UpdateTenant handles PUT /admin/tenants/:tenantId.
func (h *Handler) UpdateTenant(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		record := &dbclient.Tenant{
			Id:             c.Param("tenantId"),
			DatabaseUrl:    req.DatabaseUrl,
			PoolUrl:        req.PoolUrl,
			MaxConnections: req.MaxConnections,
			JwtSecret:      req.JwtSecret,
			Jwks:           datatypes.JSON(req.Jwks),
			FeatureFlags:   datatypes.JSON(req.FeatureFlags),
		}
		if err := h.registry.Update(record); err != nil {
			return nil, err
		}
		return toTenantResponse(record), nil
	})
}

// DeleteTenant handles DELETE /admin/tenants/:tenantId.
func (h *Handler) DeleteTenant(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		if err := h.registry.Unregister(c.Param("tenantId")); err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully deleted"}, nil
	})
}

// TenantHealth handles GET /admin/tenants/:tenantId/health: a registry and
// catalog round-trip plus a backend listing probe.
func (h *Handler) TenantHealth(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		tenantId := c.Param("tenantId")
		if err := h.registry.Healthcheck(c.Request.Context(), tenantId); err != nil {
			return gin.H{"healthy": false, "error": err.Error()}, nil
		}
		_, err := h.store.List(c.Request.Context(), h.bucket, &backend.ListOptions{
			Prefix:  tenantId + "/",
			MaxKeys: 1,
		})
		if err != nil {
			return gin.H{"healthy": false, "error": err.Error()}, nil
		}
		return gin.H{"healthy": true}, nil
	})
}

func toTenantResponse(record *dbclient.Tenant) *TenantResponse {
	response := &TenantResponse{
		Id:                record.Id,
		MaxConnections:    record.MaxConnections,
		MigrationsVersion: record.MigrationsVersion,
		MigrationsStatus:  record.MigrationsStatus,
		CursorId:          record.CursorId,
	}
	if !record.CreatedAt.IsZero() {
		response.CreatedAt = timeutil.FormatRFC3339(record.CreatedAt)
	}
	if !record.UpdatedAt.IsZero() {
		response.UpdatedAt = timeutil.FormatRFC3339(record.UpdatedAt)
	}
	return response
}
