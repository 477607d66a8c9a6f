/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package object_handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// SignUrlRequest is the body of the signed-URL issue endpoints.
type SignUrlRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

// SignUrlResponse carries the redeemable path.
type SignUrlResponse struct {
	SignedUrl string `json:"signedURL"`
	Token     string `json:"token"`
}

// GetPublicObject handles GET /object/public/:bucket/*key. Only buckets
// marked public serve through here; no auth is required.
func (h *Handler) GetPublicObject(c *gin.Context) {
	identity, err := h.publicIdentity(c)
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	h.serveObject(c, identity, false)
}

// PublicObjectInfo handles GET/HEAD /object/info/public/:bucket/*key.
func (h *Handler) PublicObjectInfo(c *gin.Context) {
	identity, err := h.publicIdentity(c)
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	h.serveObjectInfo(c, identity)
}

// publicIdentity verifies the bucket is public and returns the elevated
// identity used to read it.
func (h *Handler) publicIdentity(c *gin.Context) (dbclient.Identity, error) {
	bucket, _ := bucketKey(c)
	client, err := h.registry.CatalogClient(middleware.GetTenantId(c))
	if err != nil {
		return dbclient.Identity{}, err
	}
	var public bool
	err = client.AsSuperUser(c.Request.Context(), func(tx *dbclient.Tx) error {
		row, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		public = row.Public
		return nil
	})
	if err != nil {
		return dbclient.Identity{}, err
	}
	if !public {
		return dbclient.Identity{}, storageerrors.NewAccessDenied(
			"bucket " + bucket + " is not public")
	}
	return dbclient.Identity{Role: dbclient.SuperUserRole}, nil
}

// SignObjectUrl handles POST /object/sign/:bucket/*key.
func (h *Handler) SignObjectUrl(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.signUrl(c, "/object/sign/")
	})
}

// SignUploadUrl handles POST /object/upload/sign/:bucket/*key.
func (h *Handler) SignUploadUrl(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.signUrl(c, "/object/upload/sign/")
	})
}

func (h *Handler) signUrl(c *gin.Context, pathPrefix string) (interface{}, error) {
	var req SignUrlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, storageerrors.NewInvalidParameter(err.Error())
	}
	limit := config.GetUrlSigningExpireLimitSecond()
	if req.ExpiresIn <= 0 || req.ExpiresIn > limit {
		return nil, storageerrors.NewInvalidParameter("expiresIn must be within (0, " +
			time.Duration(int64(limit)*int64(time.Second)).String() + "]")
	}
	bucket, key := bucketKey(c)
	secret, err := h.registry.JwtSecret(middleware.GetTenantId(c))
	if err != nil {
		return nil, err
	}
	token, err := tenant.SignToken(middleware.GetIdentity(c), secret,
		map[string]string{"url": bucket + "/" + key},
		time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		return nil, err
	}
	return &SignUrlResponse{
		SignedUrl: pathPrefix + bucket + "/" + key + "?token=" + token,
		Token:     token,
	}, nil
}

// GetSignedObject handles GET /object/sign/:bucket/*key?token=.
func (h *Handler) GetSignedObject(c *gin.Context) {
	identity, err := h.redeemToken(c)
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	h.serveObject(c, identity, false)
}

// UploadWithSignedUrl handles PUT /object/upload/sign/:bucket/*key?token=.
func (h *Handler) UploadWithSignedUrl(c *gin.Context) {
	identity, err := h.redeemToken(c)
	if err != nil {
		handle(c, func(*gin.Context) (interface{}, error) { return nil, err })
		return
	}
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.uploadObject(c, identity, c.GetHeader(upsertHeader) == "true")
	})
}

// redeemToken verifies a signed-URL token and checks it was minted for the
// requested path.
func (h *Handler) redeemToken(c *gin.Context) (dbclient.Identity, error) {
	token := c.Query("token")
	if token == "" {
		return dbclient.Identity{}, storageerrors.NewMissingParameter("token")
	}
	secret, err := h.registry.JwtSecret(middleware.GetTenantId(c))
	if err != nil {
		return dbclient.Identity{}, err
	}
	claims, err := tenant.VerifySignedUrlToken(token, secret)
	if err != nil {
		return dbclient.Identity{}, err
	}
	bucket, key := bucketKey(c)
	if url, _ := claims["url"].(string); url != bucket+"/"+key {
		return dbclient.Identity{}, storageerrors.NewAccessDenied(
			"token was not issued for this object")
	}
	identity := dbclient.Identity{}
	identity.Sub, _ = claims["sub"].(string)
	identity.Role, _ = claims["role"].(string)
	if identity.Role == "" {
		identity.Role = dbclient.AuthenticatedRole
	}
	return identity, nil
}
