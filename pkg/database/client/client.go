/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

var (
	once     sync.Once
	instance *Client
)

// Client is the registry database client. The registry holds tenants, shard
// state and the job queue; per-tenant object catalogs live in the tenants'
// own databases and are reached through TenantClient.
type Client struct {
	db              *sqlx.DB // sqlx database instance
	gorm            *gorm.DB // gorm ORM database instance
	*utils.DBConfig          // Embedded database configuration
}

// NewClient creates a singleton instance of the registry database client.
// The initialization happens only once even if called multiple times.
func NewClient() *Client {
	once.Do(func() {
		cfg := &utils.DBConfig{
			DBName:         config.GetDBName(),
			Username:       config.GetDBUser(),
			Password:       config.GetDBPassword(),
			Host:           config.GetDBHost(),
			Port:           config.GetDBPort(),
			SSLMode:        config.GetDBSslMode(),
			MaxOpenConns:   config.GetDBMaxOpenConns(),
			MaxIdleConns:   config.GetDBMaxIdleConns(),
			MaxLifetime:    time.Duration(config.GetDBMaxLifetimeSecond()) * time.Second,
			MaxIdleTime:    time.Duration(config.GetDBMaxIdleTimeSecond()) * time.Second,
			ConnectTimeout: config.GetDBConnectTimeoutSecond(),
			RequestTimeout: time.Duration(config.GetDBRequestTimeoutSecond()) * time.Second,
		}
		if err := checkParams(cfg); err != nil {
			klog.ErrorS(err, "failed to check db params")
			return
		}
		db, err := utils.Connect(cfg, utils.PgDriver)
		if err != nil {
			klog.Errorf("%s", err.Error())
			return
		}
		if err = db.Ping(); err != nil {
			klog.ErrorS(err, "failed to ping db")
			return
		}
		gormDb, err := utils.ConnectGorm(cfg)
		if err != nil {
			klog.ErrorS(err, "failed to connect gorm")
			return
		}
		instance = &Client{db: db, DBConfig: cfg, gorm: gormDb}
		klog.Infof("init db-client successfully! conn-timeout: %d(s), request-timeout: %d(s)",
			cfg.ConnectTimeout, config.GetDBRequestTimeoutSecond())
	})
	return instance
}

// Close performs the Close operation.
func (c *Client) Close() {
	if err := c.db.Close(); err != nil {
		klog.ErrorS(err, "failed to close db connection")
	}
}

// DB exposes the registry connection pool for packages owning their own SQL
// (shard allocator, job queue).
func (c *Client) DB() (*sqlx.DB, error) {
	return c.getDB()
}

// Gorm exposes the registry ORM handle for the tenant models.
func (c *Client) Gorm() (*gorm.DB, error) {
	if c == nil || c.gorm == nil {
		return nil, storageerrors.NewInternalError("The client of db has not been initialized")
	}
	return c.gorm, nil
}

// Healthcheck verifies the registry database round-trip.
func (c *Client) Healthcheck(ctx context.Context) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()
	var one int
	if err = db.GetContext(timeoutCtx, &one, `SELECT 1`); err != nil {
		return utils.NormalizeError(err)
	}
	return nil
}

// getDB retrieves DB for internal use.
func (c *Client) getDB() (*sqlx.DB, error) {
	if c == nil || c.db == nil {
		return nil, storageerrors.NewInternalError("The client of db has not been initialized")
	}
	return c.db.Unsafe(), nil
}

// checkParams checks Params and returns the result.
func checkParams(cfg *utils.DBConfig) error {
	var errs []error
	if cfg.DBName == "" {
		errs = append(errs, fmt.Errorf("dbname not found"))
	}
	if cfg.Username == "" {
		errs = append(errs, fmt.Errorf("username not found"))
	}
	if cfg.Password == "" {
		errs = append(errs, fmt.Errorf("password not found"))
	}
	if cfg.Host == "" {
		errs = append(errs, fmt.Errorf("host not found"))
	}
	if cfg.SSLMode == "" {
		errs = append(errs, fmt.Errorf("ssl_mode not found"))
	}
	if cfg.Port == 0 {
		errs = append(errs, fmt.Errorf("port not found"))
	}
	return utilerrors.NewAggregate(errs)
}
