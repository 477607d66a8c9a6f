/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

const (
	tenantHeader = "X-Tenant-Id"
	apikeyHeader = "apikey"
	bearerPrefix = "Bearer "
)

// ResolveTenant stores the tenant id for the request: the tenant header
// when present, the configured default otherwise.
func ResolveTenant() gin.HandlerFunc {
	fallback := config.GetTenantDefaultId()
	return func(c *gin.Context) {
		id := c.GetHeader(tenantHeader)
		if id == "" {
			id = fallback
		}
		c.Set(ContextTenantId, id)
		c.Next()
	}
}

// GetTenantId returns the tenant id resolved for the request.
func GetTenantId(c *gin.Context) string {
	return c.GetString(ContextTenantId)
}

// Authenticated verifies the bearer JWT against the tenant secret and
// stores the identity it carries. Requests without a valid token abort.
func Authenticated(registry *tenant.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.AbortWithApiError(c, storageerrors.NewInvalidJWT("missing authorization header"))
			return
		}
		identity, err := registry.VerifyToken(GetTenantId(c), token)
		if err != nil {
			utils.AbortWithApiError(c, err)
			return
		}
		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// GetIdentity returns the identity stored by Authenticated (or by a signed
// URL / S3 credential resolver). The zero identity means anonymous.
func GetIdentity(c *gin.Context) dbclient.Identity {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return dbclient.Identity{Role: dbclient.AuthenticatedRole}
	}
	identity, ok := v.(dbclient.Identity)
	if !ok {
		return dbclient.Identity{Role: dbclient.AuthenticatedRole}
	}
	return identity
}

// SetIdentity stores a resolved identity; used by the signed-URL and
// S3-credential paths that authenticate outside the JWT middleware.
func SetIdentity(c *gin.Context, identity dbclient.Identity) {
	c.Set(ContextIdentity, identity)
}

// AdminAuthenticated matches the apikey header against the configured
// admin key set with constant-time comparison.
func AdminAuthenticated() gin.HandlerFunc {
	keys := config.GetAdminApiKeys()
	return func(c *gin.Context) {
		presented := c.GetHeader(apikeyHeader)
		if presented == "" || !matchApiKey(presented, keys) {
			utils.AbortWithApiError(c, storageerrors.NewAccessDenied("invalid admin api key"))
			return
		}
		c.Next()
	}
}

func matchApiKey(presented string, keys []string) bool {
	matched := false
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			matched = true
		}
	}
	return matched
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(header, bearerPrefix)
}
