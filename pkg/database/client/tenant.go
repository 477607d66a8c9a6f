/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	stderrors "errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// Tenant is the registry row describing one tenant. Connection URLs and the
// JWT secret are encrypted at rest with the deployment encryption key; the
// pool manager decrypts them when opening connections.
type Tenant struct {
	Id                string         `gorm:"column:id;primaryKey"`
	DatabaseUrl       string         `gorm:"column:database_url"`
	PoolUrl           string         `gorm:"column:pool_url"`
	MaxConnections    int            `gorm:"column:max_connections"`
	JwtSecret         string         `gorm:"column:jwt_secret"`
	Jwks              datatypes.JSON `gorm:"column:jwks"`
	FeatureFlags      datatypes.JSON `gorm:"column:feature_flags"`
	MigrationsVersion string         `gorm:"column:migrations_version"`
	MigrationsStatus  string         `gorm:"column:migrations_status"`
	CursorId          int64          `gorm:"column:cursor_id;autoIncrement"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName maps the model onto the registry schema.
func (Tenant) TableName() string {
	return "tenants"
}

// CreateTenant registers a tenant; super-user only.
func (c *Client) CreateTenant(tenant *Tenant) error {
	gormDb, err := c.Gorm()
	if err != nil {
		return err
	}
	if tenant == nil || tenant.Id == "" {
		return storageerrors.NewMissingParameter("tenantId")
	}
	if tenant.MigrationsStatus == "" {
		tenant.MigrationsStatus = MigrationsPending
	}
	if err = gormDb.Create(tenant).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return storageerrors.NewResourceAlreadyExists("tenant " + tenant.Id + " already exists")
		}
		return storageerrors.NewDatabaseError(err.Error())
	}
	return nil
}

// GetTenant fetches a tenant row by id.
func (c *Client) GetTenant(id string) (*Tenant, error) {
	gormDb, err := c.Gorm()
	if err != nil {
		return nil, err
	}
	var tenant Tenant
	if err = gormDb.First(&tenant, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storageerrors.NewTenantNotFound(id)
		}
		return nil, storageerrors.NewDatabaseError(err.Error())
	}
	return &tenant, nil
}

// ListTenants returns all tenants ordered by cursor.
func (c *Client) ListTenants() ([]*Tenant, error) {
	gormDb, err := c.Gorm()
	if err != nil {
		return nil, err
	}
	var tenants []*Tenant
	if err = gormDb.Order("cursor_id").Find(&tenants).Error; err != nil {
		return nil, storageerrors.NewDatabaseError(err.Error())
	}
	return tenants, nil
}

// UpdateTenant persists mutable tenant attributes.
func (c *Client) UpdateTenant(tenant *Tenant) error {
	gormDb, err := c.Gorm()
	if err != nil {
		return err
	}
	result := gormDb.Model(&Tenant{}).Where("id = ?", tenant.Id).Updates(map[string]interface{}{
		"database_url":    tenant.DatabaseUrl,
		"pool_url":        tenant.PoolUrl,
		"max_connections": tenant.MaxConnections,
		"jwt_secret":      tenant.JwtSecret,
		"jwks":            tenant.Jwks,
		"feature_flags":   tenant.FeatureFlags,
	})
	if result.Error != nil {
		return storageerrors.NewDatabaseError(result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return storageerrors.NewTenantNotFound(tenant.Id)
	}
	return nil
}

// DeleteTenant unregisters a tenant; the caller is responsible for draining
// its pools first.
func (c *Client) DeleteTenant(id string) error {
	gormDb, err := c.Gorm()
	if err != nil {
		return err
	}
	if err = gormDb.Delete(&Tenant{}, "id = ?", id).Error; err != nil {
		return storageerrors.NewDatabaseError(err.Error())
	}
	return nil
}

// SetTenantMigrationState records the outcome of a migration run.
func (c *Client) SetTenantMigrationState(id, version, status string) error {
	gormDb, err := c.Gorm()
	if err != nil {
		return err
	}
	result := gormDb.Model(&Tenant{}).Where("id = ?", id).Updates(map[string]interface{}{
		"migrations_version": version,
		"migrations_status":  status,
	})
	if result.Error != nil {
		return storageerrors.NewDatabaseError(result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return storageerrors.NewTenantNotFound(id)
	}
	return nil
}

// ListFailedMigrations pages through tenants whose last migration failed,
// keyed by cursor id.
func (c *Client) ListFailedMigrations(cursor int64, limit int) ([]*Tenant, error) {
	gormDb, err := c.Gorm()
	if err != nil {
		return nil, err
	}
	var tenants []*Tenant
	err = gormDb.Where("migrations_status = ? AND cursor_id > ?", MigrationsFailed, cursor).
		Order("cursor_id").Limit(limit).Find(&tenants).Error
	if err != nil {
		return nil, storageerrors.NewDatabaseError(err.Error())
	}
	return tenants, nil
}
