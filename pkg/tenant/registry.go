/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/crypto"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

var (
	once     sync.Once
	instance *Registry
)

// Registry resolves tenants from the registry database, decrypts their
// connection material, and hands out cached catalog clients.
type Registry struct {
	client *dbclient.Client
	crypto *crypto.Crypto
	pools  *PoolManager
}

// tenantPool pairs a connection pool with its catalog client so eviction
// closes the pool exactly once.
type tenantPool struct {
	db     *sqlx.DB
	client *dbclient.TenantClient
}

// Release closes the tenant connection pool.
func (p *tenantPool) Release() error {
	return p.db.Close()
}

// NewRegistry creates the singleton tenant registry.
func NewRegistry() *Registry {
	once.Do(func() {
		instance = &Registry{
			client: dbclient.NewClient(),
			crypto: crypto.NewCrypto(),
			pools:  NewPoolManager(config.GetTenantPoolCacheSize()),
		}
	})
	return instance
}

// Register encrypts and stores a new tenant record.
func (r *Registry) Register(tenant *dbclient.Tenant) error {
	if err := r.encryptRecord(tenant); err != nil {
		return err
	}
	return r.client.CreateTenant(tenant)
}

// Update re-encrypts and persists a tenant record, then drops any cached
// pool so the next request reconnects with the new material.
func (r *Registry) Update(tenant *dbclient.Tenant) error {
	if err := r.encryptRecord(tenant); err != nil {
		return err
	}
	if err := r.client.UpdateTenant(tenant); err != nil {
		return err
	}
	r.pools.Remove(tenant.Id)
	return nil
}

// Unregister removes the tenant and closes its cached pool.
func (r *Registry) Unregister(id string) error {
	if err := r.client.DeleteTenant(id); err != nil {
		return err
	}
	r.pools.Remove(id)
	return nil
}

// Get returns the tenant record with connection material decrypted.
func (r *Registry) Get(id string) (*dbclient.Tenant, error) {
	tenant, err := r.client.GetTenant(id)
	if err != nil {
		return nil, err
	}
	if err = r.decryptRecord(tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// List returns all tenant records without decrypting secrets.
func (r *Registry) List() ([]*dbclient.Tenant, error) {
	return r.client.ListTenants()
}

// RegistryClient exposes the underlying registry database client.
func (r *Registry) RegistryClient() *dbclient.Client {
	return r.client
}

// CatalogClient returns the cached catalog client for the tenant, opening
// and caching a connection pool on first use.
func (r *Registry) CatalogClient(id string) (*dbclient.TenantClient, error) {
	if pool, ok := r.pools.Get(id); ok {
		return pool.(*tenantPool).client, nil
	}
	tenant, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	url := tenant.PoolUrl
	if url == "" {
		url = tenant.DatabaseUrl
	}
	if url == "" {
		return nil, storageerrors.NewTenantNotFound(id)
	}
	maxConns := tenant.MaxConnections
	if maxConns <= 0 {
		maxConns = config.GetTenantDefaultMaxConns()
	}
	db, err := dbutils.ConnectURL(url, maxConns)
	if err != nil {
		klog.ErrorS(err, "failed to open tenant pool", "tenant", id)
		return nil, storageerrors.NewDatabaseError(err.Error())
	}
	client := dbclient.NewTenantClient(db, id,
		time.Duration(config.GetDBRequestTimeoutSecond())*time.Second,
		config.GetTenantStatementTimeoutMs())
	r.pools.AddOrReplace(id, &tenantPool{db: db, client: client})
	return client, nil
}

// Healthcheck verifies both the registry and the tenant database.
func (r *Registry) Healthcheck(ctx context.Context, id string) error {
	if err := r.client.Healthcheck(ctx); err != nil {
		return err
	}
	client, err := r.CatalogClient(id)
	if err != nil {
		return err
	}
	return client.Healthcheck(ctx)
}

// Close releases every cached tenant pool.
func (r *Registry) Close() {
	r.pools.ReleaseAll()
}

func (r *Registry) encryptRecord(tenant *dbclient.Tenant) error {
	var err error
	if tenant.DatabaseUrl, err = r.crypto.Encrypt([]byte(tenant.DatabaseUrl)); err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	if tenant.PoolUrl != "" {
		if tenant.PoolUrl, err = r.crypto.Encrypt([]byte(tenant.PoolUrl)); err != nil {
			return storageerrors.NewInternalError(err.Error())
		}
	}
	if tenant.JwtSecret != "" {
		if tenant.JwtSecret, err = r.crypto.Encrypt([]byte(tenant.JwtSecret)); err != nil {
			return storageerrors.NewInternalError(err.Error())
		}
	}
	return nil
}

func (r *Registry) decryptRecord(tenant *dbclient.Tenant) error {
	url, err := r.crypto.Decrypt(tenant.DatabaseUrl)
	if err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	tenant.DatabaseUrl = url
	if tenant.PoolUrl != "" {
		if url, err = r.crypto.Decrypt(tenant.PoolUrl); err != nil {
			return storageerrors.NewInternalError(err.Error())
		}
		tenant.PoolUrl = url
	}
	if tenant.JwtSecret != "" {
		secret, err := r.crypto.Decrypt(tenant.JwtSecret)
		if err != nil {
			return storageerrors.NewInternalError(err.Error())
		}
		tenant.JwtSecret = secret
	}
	return nil
}
