/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package middleware holds the gin middleware shared by every HTTP surface:
// request logging, identity resolution, and error-only tracing.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// Context keys set by the middleware chain.
const (
	ContextRequestId = "requestId"
	ContextTenantId  = "tenantId"
	ContextIdentity  = "identity"
)

// RequestId assigns every request an id, echoing the client's when the
// configured header carries one.
func RequestId() gin.HandlerFunc {
	header := config.GetRequestIdHeader()
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestId, id)
		c.Writer.Header().Set(header, id)
		c.Next()
	}
}

// GetRequestId returns the request id assigned by RequestId.
func GetRequestId(c *gin.Context) string {
	return c.GetString(ContextRequestId)
}

// Logger logs one line per request: method, path, status, latency, request
// id, and the first recorded error if any.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		if len(c.Errors) > 0 {
			klog.ErrorS(c.Errors.Last(), "request failed",
				"method", c.Request.Method, "path", path,
				"status", status, "latency", latency,
				"requestId", GetRequestId(c))
			return
		}
		klog.V(4).Infof("%s %s %d %s requestId=%s",
			c.Request.Method, path, status, latency, GetRequestId(c))
	}
}
