/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package bucket_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// InitBucketRouters registers the bucket CRUD surface.
func InitBucketRouters(e *gin.Engine, h *Handler, registry *tenant.Registry) {
	group := e.Group("/bucket", middleware.ResolveTenant(), middleware.Authenticated(registry))
	{
		group.POST("", h.CreateBucket)
		group.GET("", h.ListBuckets)
		group.GET("/:id", h.GetBucket)
		group.PUT("/:id", h.UpdateBucket)
		group.DELETE("/:id", h.DeleteBucket)
		group.POST("/:id/empty", h.EmptyBucket)
	}
}
