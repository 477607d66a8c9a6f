/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tenant

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// Claims is the token contract of the REST surface: sub identifies the
// owner, role selects the database role the transaction runs as.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JwtSecret resolves the verification secret for a tenant: the tenant's own
// secret when configured, the deployment fallback otherwise.
func (r *Registry) JwtSecret(tenantId string) (string, error) {
	tenant, err := r.Get(tenantId)
	if err != nil {
		return "", err
	}
	if tenant.JwtSecret != "" {
		return tenant.JwtSecret, nil
	}
	if secret := config.GetJwtSecret(); secret != "" {
		return secret, nil
	}
	return "", storageerrors.NewInternalError("no jwt secret configured")
}

// VerifyToken parses and verifies a bearer token against the tenant secret
// and returns the identity it carries.
func (r *Registry) VerifyToken(tenantId, token string) (dbclient.Identity, error) {
	secret, err := r.JwtSecret(tenantId)
	if err != nil {
		return dbclient.Identity{}, err
	}
	return VerifyTokenWithSecret(token, secret)
}

// VerifyTokenWithSecret verifies an HS256 token against an explicit secret.
func VerifyTokenWithSecret(token, secret string) (dbclient.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, stderrors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return dbclient.Identity{}, storageerrors.NewExpiredToken(err.Error())
		}
		return dbclient.Identity{}, storageerrors.NewInvalidJWT(err.Error())
	}
	if !parsed.Valid {
		return dbclient.Identity{}, storageerrors.NewInvalidJWT("token is not valid")
	}
	return dbclient.Identity{Sub: claims.Subject, Role: claims.Role}, nil
}

// SignToken mints a short-lived HS256 token carrying the identity, used for
// signed object URLs and signed upload URLs.
func SignToken(identity dbclient.Identity, secret string, payload map[string]string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  identity.Sub,
		"role": identity.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	for k, v := range payload {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", storageerrors.NewInternalError(err.Error())
	}
	return signed, nil
}

// VerifySignedUrlToken verifies a signed-URL token and returns its payload
// claims.
func VerifySignedUrlToken(token, secret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, stderrors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, storageerrors.NewExpiredToken(err.Error())
		}
		return nil, storageerrors.NewInvalidJWT(err.Error())
	}
	if !parsed.Valid {
		return nil, storageerrors.NewInvalidJWT("token is not valid")
	}
	return claims, nil
}
