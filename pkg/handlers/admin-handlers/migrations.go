/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// ResetFleetRequest rewinds the fleet to re-run a contiguous migration
// tail starting at FromName.
type ResetFleetRequest struct {
	FromName            string `json:"fromName" binding:"required"`
	MarkPreviousApplied bool   `json:"markPreviousApplied"`
}

// MigrateFleet handles POST /admin/migrations/migrate/fleet: one migration
// job per tenant.
func (h *Handler) MigrateFleet(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		enqueued, err := h.fleet.EnqueueAll(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"enqueued": enqueued}, nil
	})
}

// ResetFleet handles POST /admin/migrations/reset/fleet.
func (h *Handler) ResetFleet(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req ResetFleetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		reset, err := h.fleet.ResetAll(c.Request.Context(), req.FromName, req.MarkPreviousApplied)
		if err != nil {
			return nil, err
		}
		return gin.H{"reset": reset}, nil
	})
}

// FleetProgress handles GET /admin/migrations/progress.
func (h *Handler) FleetProgress(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		remaining, err := h.fleet.Progress(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"remaining": remaining}, nil
	})
}

// FleetFailed handles GET /admin/migrations/failed?cursor=: a cursor-paged
// view over tenants whose last migration run failed.
func (h *Handler) FleetFailed(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		cursor := int64(0)
		if raw := c.Query("cursor"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 0 {
				return nil, storageerrors.NewInvalidParameter("cursor")
			}
			cursor = parsed
		}
		failed, err := h.fleet.Failed(cursor, config.GetMigrationsFailedPageSize())
		if err != nil {
			return nil, err
		}
		response := make([]*TenantResponse, 0, len(failed))
		nextCursor := cursor
		for _, record := range failed {
			response = append(response, toTenantResponse(record))
			if record.CursorId > nextCursor {
				nextCursor = record.CursorId
			}
		}
		return gin.H{"tenants": response, "nextCursor": nextCursor}, nil
	})
}

// MigrationStatus handles GET /admin/tenants/:tenantId/migrations.
func (h *Handler) MigrationStatus(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		version, status, isLatest, err := h.migrator.Status(c.Param("tenantId"))
		if err != nil {
			return nil, err
		}
		return gin.H{
			"migrationsVersion": version,
			"migrationsStatus":  status,
			"isLatest":          isLatest,
		}, nil
	})
}

// MigrateTenant handles POST /admin/tenants/:tenantId/migrate: run the
// tenant's migrations synchronously.
func (h *Handler) MigrateTenant(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		tenantId := c.Param("tenantId")
		if err := h.migrator.Migrate(c.Request.Context(), tenantId); err != nil {
			return nil, err
		}
		version, status, isLatest, err := h.migrator.Status(tenantId)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"migrationsVersion": version,
			"migrationsStatus":  status,
			"isLatest":          isLatest,
		}, nil
	})
}
