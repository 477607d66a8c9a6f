/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package utils

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"gotest.tools/assert"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestSourceName(t *testing.T) {
	cfg := &DBConfig{
		DBName:         "primus_store",
		Username:       "primus",
		Password:       "secret",
		Host:           "127.0.0.1",
		Port:           5432,
		SSLMode:        "disable",
		ConnectTimeout: 5,
	}
	assert.Equal(t, cfg.SourceName(),
		"host=127.0.0.1 port=5432 user=primus password=secret dbname=primus_store sslmode=disable connect_timeout=5")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.Assert(t, IsUniqueViolation(&pq.Error{Code: pq.ErrorCode(pgUniqueViolation)}))
	assert.Assert(t, !IsUniqueViolation(&pq.Error{Code: pq.ErrorCode(pgQueryCanceled)}))
	assert.Assert(t, !IsUniqueViolation(fmt.Errorf("boom")))
	assert.Assert(t, !IsUniqueViolation(nil))
}

func TestIsQueryCanceled(t *testing.T) {
	assert.Assert(t, IsQueryCanceled(&pq.Error{Code: pq.ErrorCode(pgQueryCanceled)}))
	assert.Assert(t, IsQueryCanceled(context.DeadlineExceeded))
	assert.Assert(t, !IsQueryCanceled(&pq.Error{Code: pq.ErrorCode(pgUniqueViolation)}))
}

func TestIsLockNotAvailable(t *testing.T) {
	assert.Assert(t, IsLockNotAvailable(&pq.Error{Code: pq.ErrorCode(pgLockNotAvailable)}))
	assert.Assert(t, !IsLockNotAvailable(sql.ErrNoRows))
}

func TestNormalizeError(t *testing.T) {
	assert.NilError(t, NormalizeError(nil))

	err := NormalizeError(sql.ErrNoRows)
	assert.Equal(t, err, sql.ErrNoRows)

	err = NormalizeError(&pq.Error{Code: pq.ErrorCode(pgQueryCanceled)})
	assert.Equal(t, storageerrors.GetErrorCode(err), storageerrors.DatabaseTimeout)

	err = NormalizeError(&pq.Error{Code: pq.ErrorCode(pgLockNotAvailable)})
	assert.Equal(t, storageerrors.GetErrorCode(err), storageerrors.ResourceLocked)

	err = NormalizeError(&pq.Error{Code: pq.ErrorCode(pgSerializationFail), Message: "could not serialize"})
	assert.Equal(t, storageerrors.GetErrorCode(err), storageerrors.DatabaseError)

	// already-classified errors pass through unchanged
	locked := storageerrors.NewResourceLocked("objects/avatars/cat.png")
	assert.Equal(t, NormalizeError(locked), locked)

	plain := fmt.Errorf("not a pq error")
	assert.Equal(t, NormalizeError(plain), plain)
}

func TestNullHelpers(t *testing.T) {
	assert.Equal(t, ParseNullString(NullString("hello")), "hello")
	assert.Equal(t, ParseNullString(NullString("")), "")
	assert.Assert(t, !NullString("").Valid)

	assert.Equal(t, NullInt64(42).Int64, int64(42))
	assert.Assert(t, !NullInt64(0).Valid)

	now := time.Now()
	assert.Equal(t, ParseNullTime(NullTime(now)), now)
	assert.Assert(t, !NullTime(time.Time{}).Valid)
	assert.Assert(t, ParseNullTime(pq.NullTime{}).IsZero())
}

func TestCvtToSqlStr(t *testing.T) {
	query := sqrl.Select("id", "name").From("objects").
		Where(sqrl.Eq{"bucket_id": "b-1"}).
		PlaceholderFormat(sqrl.Dollar)
	got := CvtToSqlStr(query)
	assert.Equal(t, got, `SELECT id, name FROM objects WHERE bucket_id = $1 ["b-1"]`)
}
