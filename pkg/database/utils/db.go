/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package utils

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"k8s.io/klog/v2"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	jsonutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

// DBDriver represents the type of database driver to use
type DBDriver string

const (
	// PgDriver represents the PostgreSQL database driver
	PgDriver DBDriver = "postgres"

	// pg error classes surfaced through lib/pq
	pgUniqueViolation    = "23505"
	pgQueryCanceled      = "57014"
	pgLockNotAvailable   = "55P03"
	pgSerializationFail  = "40001"
	pgInsufficientPrivil = "42501"
)

// DBConfig carries everything needed to open a Postgres connection pool.
type DBConfig struct {
	DBName         string
	Username       string
	Password       string
	Host           string
	Port           int
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	ConnectTimeout int
	RequestTimeout time.Duration
	// StatementTimeoutMs is applied per-transaction with SET LOCAL; zero
	// leaves the server default in place.
	StatementTimeoutMs int
}

// SourceName renders the lib/pq connection string.
func (cfg *DBConfig) SourceName() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.ConnectTimeout)
}

// Connect establishes a sqlx connection pool using the provided configuration.
func Connect(cfg *DBConfig, driverName DBDriver) (*sqlx.DB, error) {
	dataSource := cfg.SourceName()
	db, err := sqlx.Connect(string(driverName), dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to connect db %s, err: %v", cfg.DBName, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}

// ConnectURL establishes a sqlx connection pool from a raw connection URL,
// used for tenant databases whose location is stored in the registry.
func ConnectURL(url string, maxConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect(string(PgDriver), url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect tenant db, err: %v", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetConnMaxIdleTime(time.Minute)
	return db, nil
}

// ConnectGorm establishes a GORM connection for the registry models.
func ConnectGorm(cfg *DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%v user=%s dbname=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBName, cfg.Password, cfg.SSLMode)
	dialector := postgres.Dialector{
		Config: &postgres.Config{
			DSN: dsn,
		},
	}
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}
	return gormDB, nil
}

// IsUniqueViolation reports whether the error is a Postgres unique-key
// conflict (class 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// IsQueryCanceled reports whether the statement was canceled, either by the
// statement timeout or by context cancellation.
func IsQueryCanceled(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code) == pgQueryCanceled
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// IsLockNotAvailable reports whether a NOWAIT/advisory acquisition failed.
func IsLockNotAvailable(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return string(pqErr.Code) == pgLockNotAvailable
	}
	return false
}

// NormalizeError converts a lib/pq failure into the closed error set.
func NormalizeError(err error) error {
	switch {
	case err == nil:
		return nil
	case storageerrors.IsStorageError(err):
		return err
	case stderrors.Is(err, sql.ErrNoRows):
		return err
	case IsQueryCanceled(err):
		return storageerrors.NewDatabaseTimeout(err.Error())
	case IsLockNotAvailable(err):
		return storageerrors.NewResourceLocked("")
	default:
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) {
			return storageerrors.NewDatabaseError(err.Error())
		}
		return err
	}
}

// ParseNullString parses the input data.
func ParseNullString(str sql.NullString) string {
	if str.Valid {
		return str.String
	}
	return ""
}

// ParseNullTime parses the input data.
func ParseNullTime(t pq.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// NullString converts a string to sql.NullString.
func NullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			Valid: false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

// NullInt64 converts an int64 to sql.NullInt64; zero maps to NULL.
func NullInt64(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{
			Valid: false,
		}
	}
	return sql.NullInt64{
		Int64: n,
		Valid: true,
	}
}

// NullTime converts a time.Time to pq.NullTime.
func NullTime(t time.Time) pq.NullTime {
	if t.IsZero() {
		return pq.NullTime{
			Valid: false,
		}
	}
	return pq.NullTime{
		Time:  t,
		Valid: true,
	}
}

// CvtToSqlStr converts data to the target format.
func CvtToSqlStr(sql sqrl.Sqlizer) string {
	sqlStr, args, err := sql.ToSql()
	if err != nil {
		klog.Errorf("failed to convert sql, err: %v", err)
		return ""
	}
	return sqlStr + " " + string(jsonutils.MarshalSilently(args))
}
