/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
)

// InitAdminRouters registers the operator surface. Everything under /admin
// requires one of the configured API keys; /metrics is left open for the
// scrapers.
func InitAdminRouters(e *gin.Engine, h *Handler) {
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	group := e.Group("/admin", middleware.AdminAuthenticated())
	{
		tenants := group.Group("/tenants")
		{
			tenants.POST("", h.CreateTenant)
			tenants.GET("", h.ListTenants)
			tenants.GET("/:tenantId", h.GetTenant)
			tenants.PUT("/:tenantId", h.UpdateTenant)
			tenants.DELETE("/:tenantId", h.DeleteTenant)
			tenants.GET("/:tenantId/health", h.TenantHealth)
			tenants.GET("/:tenantId/migrations", h.MigrationStatus)
			tenants.POST("/:tenantId/migrate", h.MigrateTenant)
			tenants.GET("/:tenantId/buckets/:bucketId/orphan-objects", h.ListOrphanObjects)
			tenants.DELETE("/:tenantId/buckets/:bucketId/orphan-objects", h.DeleteOrphanObjects)
			tenants.POST("/:tenantId/buckets/:bucketId/delete-all-before", h.EnqueueDeleteAllBefore)
		}

		migrations := group.Group("/migrations")
		{
			migrations.POST("/migrate/fleet", h.MigrateFleet)
			migrations.POST("/reset/fleet", h.ResetFleet)
			migrations.GET("/progress", h.FleetProgress)
			migrations.GET("/failed", h.FleetFailed)
		}

		credentials := group.Group("/s3/:tenantId/credentials")
		{
			credentials.POST("", h.CreateCredential)
			credentials.GET("", h.ListCredentials)
			credentials.DELETE("/:id", h.DeleteCredential)
		}

		shards := group.Group("/shards")
		{
			shards.POST("", h.CreateShard)
			shards.GET("", h.ListShards)
			shards.GET("/:shardKey", h.GetShard)
			shards.PUT("/:shardKey/status", h.SetShardStatus)
			shards.POST("/reservations", h.ReserveSlot)
			shards.POST("/reservations/:id/confirm", h.ConfirmReservation)
			shards.POST("/reservations/:id/cancel", h.CancelReservation)
		}
	}
}
