/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

// Identity is the caller attached to a tenant transaction. Role and Sub are
// exported to the session so the catalog's row-level policies apply.
type Identity struct {
	Sub  string
	Role string
}

// SuperUserRole bypasses row-level policies; reserved for internal paths
// (admin APIs, scanners, migrations).
const SuperUserRole = "storage_super_admin"

// AuthenticatedRole is the default role of JWT-authenticated callers.
const AuthenticatedRole = "authenticated"

// TenantClient is a catalog handle bound to one tenant's database.
type TenantClient struct {
	db                 *sqlx.DB
	tenantId           string
	requestTimeout     time.Duration
	statementTimeoutMs int
}

// NewTenantClient wraps an open tenant connection pool.
func NewTenantClient(db *sqlx.DB, tenantId string, requestTimeout time.Duration, statementTimeoutMs int) *TenantClient {
	return &TenantClient{
		db:                 db,
		tenantId:           tenantId,
		requestTimeout:     requestTimeout,
		statementTimeoutMs: statementTimeoutMs,
	}
}

// TenantId returns the tenant this client is bound to.
func (tc *TenantClient) TenantId() string {
	return tc.tenantId
}

// Healthcheck verifies the tenant database round-trip.
func (tc *TenantClient) Healthcheck(ctx context.Context) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, tc.requestTimeout)
	defer cancel()
	var one int
	if err := tc.db.GetContext(timeoutCtx, &one, `SELECT 1`); err != nil {
		return utils.NormalizeError(err)
	}
	return nil
}

// Conn checks out a dedicated connection, used by the advisory lock holder
// whose session must outlive individual transactions.
func (tc *TenantClient) Conn(ctx context.Context) (*sqlx.Conn, error) {
	if tc == nil || tc.db == nil {
		return nil, storageerrors.NewInternalError("the tenant client has not been initialized")
	}
	conn, err := tc.db.Connx(ctx)
	if err != nil {
		return nil, utils.NormalizeError(err)
	}
	return conn, nil
}

// Tx is a tenant transaction carrying the caller's identity. All catalog
// accessors hang off Tx so every mutation runs under the identity that
// opened it.
type Tx struct {
	tx       *sqlx.Tx
	tenantId string
	identity Identity
}

// TenantId returns the tenant of the transaction.
func (t *Tx) TenantId() string {
	return t.tenantId
}

// Identity returns the caller the transaction runs as.
func (t *Tx) Identity() Identity {
	return t.identity
}

// WithTransaction opens a transaction as the given identity, exports the
// identity to the session so row-level policies apply, runs fn, and commits.
// fn returning an error rolls the transaction back.
func (tc *TenantClient) WithTransaction(ctx context.Context, identity Identity, fn func(tx *Tx) error) error {
	if identity.Role == "" {
		identity.Role = AuthenticatedRole
	}
	return tc.run(ctx, identity, fn)
}

// AsSuperUser opens a transaction that bypasses row-level policies. Only
// internal paths may use it.
func (tc *TenantClient) AsSuperUser(ctx context.Context, fn func(tx *Tx) error) error {
	return tc.run(ctx, Identity{Role: SuperUserRole}, fn)
}

func (tc *TenantClient) run(ctx context.Context, identity Identity, fn func(tx *Tx) error) (err error) {
	if tc == nil || tc.db == nil {
		return storageerrors.NewInternalError("the tenant client has not been initialized")
	}
	sqlxTx, err := tc.db.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NormalizeError(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlxTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlxTx.Rollback(); rbErr != nil {
				klog.V(4).Infof("rollback failed for tenant %s: %v", tc.tenantId, rbErr)
			}
			err = utils.NormalizeError(err)
			return
		}
		err = utils.NormalizeError(sqlxTx.Commit())
	}()

	if tc.statementTimeoutMs > 0 {
		if _, err = sqlxTx.ExecContext(ctx,
			fmt.Sprintf(`SET LOCAL statement_timeout = %d`, tc.statementTimeoutMs)); err != nil {
			return err
		}
	}
	if identity.Role != SuperUserRole {
		claims := map[string]string{"sub": identity.Sub, "role": identity.Role}
		if _, err = sqlxTx.ExecContext(ctx,
			`SELECT set_config('request.jwt.claims', $1, true), set_config('role', $2, true)`,
			string(jsonutils.MarshalSilently(claims)), identity.Role); err != nil {
			return err
		}
	}
	err = fn(&Tx{tx: sqlxTx.Unsafe(), tenantId: tc.tenantId, identity: identity})
	return err
}

// Exec runs a raw statement inside the transaction. The migrations package
// owns its DDL and goes through here.
func (t *Tx) Exec(cmd string, args ...any) (sql.Result, error) {
	result, err := t.tx.Exec(cmd, args...)
	if err != nil {
		return nil, utils.NormalizeError(err)
	}
	return result, nil
}

// Select runs a raw query inside the transaction.
func (t *Tx) Select(dest any, cmd string, args ...any) error {
	if err := t.tx.Select(dest, cmd, args...); err != nil {
		return utils.NormalizeError(err)
	}
	return nil
}

// LockClass blocks until the transaction-scoped advisory lock on the class
// string is held; used where waiting is preferable to failing.
func (t *Tx) LockClass(class string) error {
	_, err := t.tx.Exec(`SELECT pg_advisory_xact_lock($1)`, int64(xxhash.Sum64String(class)))
	return utils.NormalizeError(err)
}

// LockKey derives the 64-bit advisory lock key for an object version triple.
func LockKey(tenantId, bucket, key, version string) int64 {
	return int64(xxhash.Sum64String(tenantId + "/" + bucket + "/" + key + "/" + version))
}

// MustLockObject acquires the transaction-scoped advisory lock for the
// object triple, or fails with ResourceLocked when another transaction holds
// it. The lock is released when the transaction ends.
func (t *Tx) MustLockObject(bucket, key, version string) error {
	var acquired bool
	err := t.tx.Get(&acquired, `SELECT pg_try_advisory_xact_lock($1)`,
		LockKey(t.tenantId, bucket, key, version))
	if err != nil {
		return utils.NormalizeError(err)
	}
	if !acquired {
		return storageerrors.NewResourceLocked(fmt.Sprintf("%s/%s", bucket, key))
	}
	return nil
}

// MustLockClass acquires a transaction-scoped advisory lock on an arbitrary
// class string, used to serialize placement decisions.
func (t *Tx) MustLockClass(class string) error {
	var acquired bool
	err := t.tx.Get(&acquired, `SELECT pg_try_advisory_xact_lock($1)`,
		int64(xxhash.Sum64String(class)))
	if err != nil {
		return utils.NormalizeError(err)
	}
	if !acquired {
		return storageerrors.NewResourceLocked(class)
	}
	return nil
}
