/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tus_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// InitTusRouters registers the resumable upload surface.
func InitTusRouters(e *gin.Engine, h *Handler, registry *tenant.Registry) {
	group := e.Group("/upload/resumable", middleware.ResolveTenant(), middleware.Authenticated(registry))
	{
		group.OPTIONS("", h.Options)
		group.POST("", h.Create)
		group.HEAD("/*id", h.Head)
		group.PATCH("/*id", h.Patch)
		group.DELETE("/*id", h.Terminate)
	}
}
