/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"io"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		valid  bool
	}{
		{name: "plain", bucket: "avatars", valid: true},
		{name: "unicode", bucket: "кошки", valid: true},
		{name: "innerSpace", bucket: "my bucket", valid: true},
		{name: "empty", bucket: "", valid: false},
		{name: "leadingSpace", bucket: " avatars", valid: false},
		{name: "trailingTab", bucket: "avatars\t", valid: false},
		{name: "slash", bucket: "a/b", valid: false},
		{name: "nulByte", bucket: "a\x00b", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, storageerrors.InvalidBucketName, storageerrors.GetErrorCode(err))
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{name: "plain", key: "docs/report.txt", valid: true},
		{name: "unicode", key: "докумénты/отчёт.txt", valid: true},
		{name: "singleSegment", key: "report", valid: true},
		{name: "empty", key: "", valid: false},
		{name: "traversal", key: "docs/../secrets", valid: false},
		{name: "dotSegment", key: "docs/./x", valid: false},
		{name: "emptySegment", key: "docs//x", valid: false},
		{name: "trailingSlash", key: "docs/", valid: false},
		{name: "nulByte", key: "docs/\x00", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, storageerrors.InvalidKey, storageerrors.GetErrorCode(err))
		})
	}
}

func TestCheckMimeType(t *testing.T) {
	open := &dbclient.Bucket{}
	assert.NoError(t, checkMimeType(open, "anything/at-all"))

	images := &dbclient.Bucket{AllowedMimeTypes: pq.StringArray{"image/*", "application/pdf"}}
	assert.NoError(t, checkMimeType(images, "image/png"))
	assert.NoError(t, checkMimeType(images, "Image/JPEG"))
	assert.NoError(t, checkMimeType(images, "APPLICATION/PDF"))

	err := checkMimeType(images, "text/html")
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidMimeType, storageerrors.GetErrorCode(err))

	wildcard := &dbclient.Bucket{AllowedMimeTypes: pq.StringArray{"*/*"}}
	assert.NoError(t, checkMimeType(wildcard, "video/mp4"))
}

func TestCappedReaderUnderLimit(t *testing.T) {
	capped := &cappedReader{reader: strings.NewReader("hello"), remaining: 10}
	data, err := io.ReadAll(capped)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.False(t, capped.exceeded)
}

func TestCappedReaderExactLimit(t *testing.T) {
	capped := &cappedReader{reader: strings.NewReader("hello"), remaining: 5}
	data, err := io.ReadAll(capped)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.False(t, capped.exceeded)
}

func TestCappedReaderOverLimit(t *testing.T) {
	capped := &cappedReader{reader: strings.NewReader("hello world"), remaining: 5}
	_, err := io.ReadAll(capped)
	require.Error(t, err)
	assert.True(t, storageerrors.IsEntityTooLarge(err))
	assert.True(t, capped.exceeded)
}

func TestCappedReaderStopsAtCapPlusOne(t *testing.T) {
	// the reader never pulls more than one byte past the cap, so an
	// oversized stream is not drained
	capped := &cappedReader{reader: strings.NewReader(strings.Repeat("x", 1000)), remaining: 3}
	buf := make([]byte, 64)
	n, err := capped.Read(buf)
	assert.Equal(t, 4, n)
	require.Error(t, err)
	assert.True(t, storageerrors.IsEntityTooLarge(err))
	assert.True(t, capped.exceeded)
}
