/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		httpCode int
	}{
		{"noSuchBucket", NewNoSuchBucket("avatars"), NoSuchBucket, http.StatusNotFound},
		{"noSuchKey", NewNoSuchKey("cat.png"), NoSuchKey, http.StatusNotFound},
		{"noSuchUpload", NewNoSuchUpload("t1/b/k"), NoSuchUpload, http.StatusNotFound},
		{"tenantNotFound", NewTenantNotFound("t1"), TenantNotFound, http.StatusBadRequest},
		{"bucketExists", NewBucketAlreadyExists("avatars"), BucketAlreadyExists, http.StatusConflict},
		{"keyExists", NewKeyAlreadyExists("cat.png"), KeyAlreadyExists, http.StatusConflict},
		{"invalidBucketName", NewInvalidBucketName(" spaced "), InvalidBucketName, http.StatusBadRequest},
		{"entityTooLarge", NewEntityTooLarge(1024), EntityTooLarge, http.StatusRequestEntityTooLarge},
		{"resourceLocked", NewResourceLocked("t1/b/k"), ResourceLocked, http.StatusLocked},
		{"lockTimeout", NewLockTimeout("t1/b/k"), LockTimeout, http.StatusServiceUnavailable},
		{"databaseTimeout", NewDatabaseTimeout("statement timeout"), DatabaseTimeout, StatusDatabaseTimeout},
		{"slowDown", NewSlowDown("too many requests"), SlowDown, http.StatusTooManyRequests},
		{"accessDenied", NewAccessDenied("policy"), AccessDenied, http.StatusForbidden},
		{"signatureDoesNotMatch", NewSignatureDoesNotMatch("bad sig"), SignatureDoesNotMatch, http.StatusForbidden},
		{"aborted", NewAborted("client went away"), Aborted, StatusClientClosedRequest},
		{"noCapacity", NewNoCapacity("vector"), NoCapacity, http.StatusServiceUnavailable},
		{"expiredReservation", NewExpiredReservation("r1"), ExpiredReservation, http.StatusConflict},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.code, GetErrorCode(test.err))
			assert.Equal(t, test.httpCode, GetHttpCode(test.err))
			assert.True(t, IsStorageError(test.err))
		})
	}
}

func TestForeignError(t *testing.T) {
	err := fmt.Errorf("boom")
	assert.False(t, IsStorageError(err))
	assert.Equal(t, "", GetErrorCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetHttpCode(err))
}

func TestIsCheckers(t *testing.T) {
	assert.True(t, IsNoSuchBucket(NewNoSuchBucket("b")))
	assert.True(t, IsNotFound(NewNoSuchKey("k")))
	assert.True(t, IsNotFound(NewNoSuchUpload("u")))
	assert.False(t, IsNotFound(NewKeyAlreadyExists("k")))
	assert.True(t, IsAlreadyExists(NewBucketAlreadyExists("b")))
	assert.True(t, IsKeyAlreadyExists(NewKeyAlreadyExists("k")))
	assert.True(t, IsResourceLocked(NewResourceLocked("id")))
	assert.True(t, IsLockTimeout(NewLockTimeout("id")))
	assert.True(t, IsAborted(NewAborted("x")))
	assert.True(t, IsAborted(NewAbortedTerminate("x")))
	assert.False(t, IsAborted(NewInternalError("x")))
}

func TestIgnoreNotFound(t *testing.T) {
	assert.NoError(t, IgnoreNotFound(nil))
	assert.NoError(t, IgnoreNotFound(NewNoSuchKey("k")))
	assert.Error(t, IgnoreNotFound(NewInternalError("x")))
}

func TestNewS3ErrorStatusClamp(t *testing.T) {
	tests := []struct {
		name     string
		upstream int
		want     int
	}{
		{"keeps404", http.StatusNotFound, http.StatusNotFound},
		{"keeps403", http.StatusForbidden, http.StatusForbidden},
		{"clamps502", http.StatusBadGateway, http.StatusInternalServerError},
		{"clamps200", http.StatusOK, http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, GetHttpCode(NewS3Error(test.upstream, "upstream")))
		})
	}
}
