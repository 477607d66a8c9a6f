/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package handlers assembles the gin engine: middleware chain plus the
// REST, TUS, S3-wire and admin route groups.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	admin_handlers "github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/admin-handlers"
	bucket_handlers "github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/bucket-handlers"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	object_handlers "github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/object-handlers"
	s3_handlers "github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/s3-handlers"
	tus_handlers "github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/tus-handlers"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/migrations"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/scanner"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/shard"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tus"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

// Dependencies carries the shared services every route group draws from.
type Dependencies struct {
	Registry  *tenant.Registry
	Store     backend.Backend
	Manager   *objects.Manager
	TusEngine *tus.Engine
	Scanner   *scanner.Scanner
	Migrator  *migrations.Migrator
	Fleet     *migrations.Fleet
	Allocator *shard.Allocator
	JobQueue  *queue.Queue
}

// InitHttpHandlers creates the gin engine with the full middleware chain
// and every route group wired to the shared services.
func InitHttpHandlers(deps *Dependencies) (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(middleware.RequestId(), middleware.Logger(), gin.Recovery(), middleware.HandleTracing())
	engine.NoRoute(func(c *gin.Context) {
		apiutils.AbortWithApiError(c, &apiutils.ApiError{
			HttpCode:   http.StatusNotFound,
			StatusCode: strconv.Itoa(http.StatusNotFound),
			Code:       storageerrors.NoSuchKey,
			ErrorName:  storageerrors.NoSuchKey,
			Message:    c.Request.RequestURI + " not found",
		})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})

	bucket_handlers.InitBucketRouters(engine,
		bucket_handlers.NewHandler(deps.Registry, deps.Manager), deps.Registry)
	object_handlers.InitObjectRouters(engine,
		object_handlers.NewHandler(deps.Registry, deps.Manager), deps.Registry)
	tus_handlers.InitTusRouters(engine,
		tus_handlers.NewHandler(deps.TusEngine), deps.Registry)
	s3_handlers.InitS3Routers(engine,
		s3_handlers.NewHandler(deps.Registry, deps.Manager, deps.Store), deps.Registry)
	admin_handlers.InitAdminRouters(engine,
		admin_handlers.NewHandler(deps.Registry, deps.Store, deps.Scanner, deps.Migrator,
			deps.Fleet, deps.Allocator, deps.JobQueue))
	return engine, nil
}
