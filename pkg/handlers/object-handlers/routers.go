/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package object_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// InitObjectRouters registers the object surface. The public and signed
// paths resolve the tenant but skip JWT auth; everything else requires a
// bearer token.
func InitObjectRouters(e *gin.Engine, h *Handler, registry *tenant.Registry) {
	open := e.Group("/object", middleware.ResolveTenant())
	{
		open.GET("/public/:bucket/*key", h.GetPublicObject)
		open.GET("/info/public/:bucket/*key", h.PublicObjectInfo)
		open.HEAD("/info/public/:bucket/*key", h.PublicObjectInfo)
		open.GET("/sign/:bucket/*key", h.GetSignedObject)
		open.PUT("/upload/sign/:bucket/*key", h.UploadWithSignedUrl)
	}

	authed := e.Group("/object", middleware.ResolveTenant(), middleware.Authenticated(registry))
	{
		authed.POST("/list/:bucket", h.ListObjects)
		authed.POST("/copy", h.CopyObject)
		authed.POST("/move", h.MoveObject)
		authed.GET("/info/authenticated/:bucket/*key", h.ObjectInfo)
		authed.HEAD("/info/authenticated/:bucket/*key", h.ObjectInfo)
		authed.POST("/sign/:bucket/*key", h.SignObjectUrl)
		authed.POST("/upload/sign/:bucket/*key", h.SignUploadUrl)
		authed.POST("/:bucket/*key", h.UploadObject)
		authed.PUT("/:bucket/*key", h.UpsertObject)
		authed.GET("/:bucket/*key", h.GetObject)
		authed.HEAD("/:bucket/*key", h.ObjectInfo)
		authed.DELETE("/:bucket/*key", h.DeleteObject)
		authed.DELETE("/:bucket", h.DeleteObjects)
	}
}
