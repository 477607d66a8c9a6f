/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

const (
	accessKeyBytes = 16
	secretKeyBytes = 32
)

// CreateCredentialRequest mints one S3-wire access-key pair. The embedded
// claims become the identity S3 requests run under.
type CreateCredentialRequest struct {
	Description string                      `json:"description"`
	Claims      dbclient.S3CredentialClaims `json:"claims"`
}

// CredentialResponse carries the secret key exactly once, on creation.
type CredentialResponse struct {
	Id          string                      `json:"id"`
	AccessKey   string                      `json:"accessKey"`
	SecretKey   string                      `json:"secretKey,omitempty"`
	Description string                      `json:"description,omitempty"`
	Claims      dbclient.S3CredentialClaims `json:"claims"`
	CreatedAt   string                      `json:"createdAt,omitempty"`
}

// CreateCredential handles POST /admin/s3/:tenantId/credentials.
func (h *Handler) CreateCredential(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req CreateCredentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		if req.Claims.Role == "" {
			req.Claims.Role = dbclient.AuthenticatedRole
		}
		accessKey, err := randomHex(accessKeyBytes)
		if err != nil {
			return nil, storageerrors.NewInternalError(err.Error())
		}
		secretKey, err := randomHex(secretKeyBytes)
		if err != nil {
			return nil, storageerrors.NewInternalError(err.Error())
		}
		cred := &dbclient.S3Credential{
			Id:          uuid.NewString(),
			AccessKey:   accessKey,
			SecretKey:   secretKey,
			Description: dbutils.NullString(req.Description),
			Claims:      jsonutils.MarshalSilently(req.Claims),
		}
		client, err := h.registry.CatalogClient(c.Param("tenantId"))
		if err != nil {
			return nil, err
		}
		err = client.AsSuperUser(c.Request.Context(), func(tx *dbclient.Tx) error {
			return tx.CreateS3Credential(cred)
		})
		if err != nil {
			return nil, err
		}
		c.Status(http.StatusCreated)
		return &CredentialResponse{
			Id:          cred.Id,
			AccessKey:   cred.AccessKey,
			SecretKey:   cred.SecretKey,
			Description: req.Description,
			Claims:      req.Claims,
		}, nil
	})
}

// ListCredentials handles GET /admin/s3/:tenantId/credentials; secrets are
// never listed.
func (h *Handler) ListCredentials(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		client, err := h.registry.CatalogClient(c.Param("tenantId"))
		if err != nil {
			return nil, err
		}
		var creds []*dbclient.S3Credential
		err = client.AsSuperUser(c.Request.Context(), func(tx *dbclient.Tx) error {
			var txErr error
			creds, txErr = tx.ListS3Credentials()
			return txErr
		})
		if err != nil {
			return nil, err
		}
		response := make([]*CredentialResponse, 0, len(creds))
		for _, cred := range creds {
			entry := &CredentialResponse{
				Id:          cred.Id,
				AccessKey:   cred.AccessKey,
				Description: dbutils.ParseNullString(cred.Description),
			}
			if len(cred.Claims) > 0 {
				_ = jsonutils.Unmarshal(cred.Claims, &entry.Claims)
			}
			if cred.CreatedAt.Valid {
				entry.CreatedAt = timeutil.FormatRFC3339(cred.CreatedAt.Time)
			}
			response = append(response, entry)
		}
		return response, nil
	})
}

// DeleteCredential handles DELETE /admin/s3/:tenantId/credentials/:id.
func (h *Handler) DeleteCredential(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		client, err := h.registry.CatalogClient(c.Param("tenantId"))
		if err != nil {
			return nil, err
		}
		err = client.AsSuperUser(c.Request.Context(), func(tx *dbclient.Tx) error {
			return tx.DeleteS3Credential(c.Param("id"))
		})
		if err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully deleted"}, nil
	})
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
