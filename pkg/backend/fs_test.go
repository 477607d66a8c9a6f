/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// mtime etags keep the suite independent of xattr support on the test
// filesystem.
func newTestFS(t *testing.T) *FSBackend {
	t.Helper()
	return &FSBackend{
		rootDir:   t.TempDir(),
		separator: SeparatorSlash,
		etagMode:  ETagMtime,
	}
}

func readAll(t *testing.T, body io.ReadCloser) string {
	t.Helper()
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	return string(data)
}

func TestFSWriteReadRoundTrip(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	meta, err := b.Write(ctx, "bkt", "t1/docs/report.txt", "v1",
		strings.NewReader("hello world"), "text/plain", "max-age=60")
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Size)
	assert.NotEmpty(t, meta.ETag)

	result, err := b.Read(ctx, "bkt", "t1/docs/report.txt", "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, int64(11), result.Metadata.Size)
	assert.Equal(t, "hello world", readAll(t, result.Body))

	stats, err := b.Stats(ctx, "bkt", "t1/docs/report.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, meta.ETag, stats.ETag)
	assert.Equal(t, meta.Size, stats.Size)
}

func TestFSWriteZeroByte(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	meta, err := b.Write(ctx, "bkt", "t1/empty.bin", "v1", strings.NewReader(""), "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), meta.Size)
	assert.NotEmpty(t, meta.ETag)

	result, err := b.Read(ctx, "bkt", "t1/empty.bin", "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "", readAll(t, result.Body))
}

func TestFSReadNotModified(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	meta, err := b.Write(ctx, "bkt", "t1/a", "v1", strings.NewReader("x"), "", "")
	require.NoError(t, err)

	result, err := b.Read(ctx, "bkt", "t1/a", "v1", &ReadOptions{IfNoneMatch: meta.ETag})
	require.NoError(t, err)
	assert.Equal(t, 304, result.Status)
	assert.Nil(t, result.Body)
}

func TestFSReadRange(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()
	_, err := b.Write(ctx, "bkt", "t1/digits", "v1", strings.NewReader("0123456789"), "", "")
	require.NoError(t, err)

	tests := []struct {
		name         string
		rng          ByteRange
		body         string
		contentRange string
	}{
		{name: "interior", rng: ByteRange{First: 2, Last: 5}, body: "2345", contentRange: "bytes 2-5/10"},
		{name: "clampedTail", rng: ByteRange{First: 4, Last: 99}, body: "456789", contentRange: "bytes 4-9/10"},
		{name: "singleByte", rng: ByteRange{First: 9, Last: 9}, body: "9", contentRange: "bytes 9-9/10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := b.Read(ctx, "bkt", "t1/digits", "v1", &ReadOptions{Range: &tt.rng})
			require.NoError(t, err)
			assert.Equal(t, 206, result.Status)
			assert.Equal(t, tt.contentRange, result.ContentRange)
			assert.Equal(t, int64(len(tt.body)), result.Metadata.Size)
			assert.Equal(t, tt.body, readAll(t, result.Body))
		})
	}
}

func TestFSReadRangeBeyondSize(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()
	_, err := b.Write(ctx, "bkt", "t1/digits", "v1", strings.NewReader("0123456789"), "", "")
	require.NoError(t, err)

	_, err = b.Read(ctx, "bkt", "t1/digits", "v1", &ReadOptions{Range: &ByteRange{First: 10, Last: 12}})
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidRange, storageerrors.GetErrorCode(err))
}

func TestFSReadMissingKey(t *testing.T) {
	b := newTestFS(t)
	_, err := b.Read(context.Background(), "bkt", "t1/nope", "v1", nil)
	require.Error(t, err)
	assert.Equal(t, storageerrors.NoSuchKey, storageerrors.GetErrorCode(err))
}

func TestFSRemoveMissingIsNil(t *testing.T) {
	b := newTestFS(t)
	assert.NoError(t, b.Remove(context.Background(), "bkt", "t1/ghost", "v1"))
}

func TestFSPutIfAbsentConflicts(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, b.PutIfAbsent(ctx, "bkt", "locks/alpha", []byte("holder-1")))
	err := b.PutIfAbsent(ctx, "bkt", "locks/alpha", []byte("holder-2"))
	require.Error(t, err)
	assert.Equal(t, storageerrors.ResourceAlreadyExists, storageerrors.GetErrorCode(err))

	// unconditional put still overwrites
	require.NoError(t, b.Put(ctx, "bkt", "locks/alpha", []byte("holder-1-renewed")))
}

func TestFSList(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()
	for _, key := range []string{"t1/a/1", "t1/a/2", "t1/b/1", "t2/c/1"} {
		_, err := b.Write(ctx, "bkt", key, "v1", strings.NewReader("x"), "", "")
		require.NoError(t, err)
	}

	result, err := b.List(ctx, "bkt", &ListOptions{Prefix: "t1/"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, "t1/a/1/v1", result.Entries[0].Key)

	result, err = b.List(ctx, "bkt", &ListOptions{Prefix: "t1/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Equal(t, []string{"t1/a/", "t1/b/"}, result.CommonPrefixes)

	result, err = b.List(ctx, "bkt", &ListOptions{MaxKeys: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	require.NotEmpty(t, result.NextToken)

	rest, err := b.List(ctx, "bkt", &ListOptions{MaxKeys: 2, NextToken: result.NextToken})
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 2)
	assert.Empty(t, rest.NextToken)
}

func TestFSMultipartCompleteOrdersParts(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	uploadId, err := b.CreateMultipartUpload(ctx, "bkt", "t1/big", "v1", "application/octet-stream", "")
	require.NoError(t, err)

	// out of order on purpose
	second, err := b.UploadPart(ctx, "bkt", "t1/big", "v1", uploadId, 2, strings.NewReader("-world"), 0)
	require.NoError(t, err)
	first, err := b.UploadPart(ctx, "bkt", "t1/big", "v1", uploadId, 1, strings.NewReader("hello"), 0)
	require.NoError(t, err)

	meta, err := b.CompleteMultipartUpload(ctx, "bkt", "t1/big", "v1", uploadId,
		[]UploadedPart{*second, *first})
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Size)

	result, err := b.Read(ctx, "bkt", "t1/big", "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", readAll(t, result.Body))

	// staging directory is gone
	_, err = b.UploadPart(ctx, "bkt", "t1/big", "v1", uploadId, 3, strings.NewReader("x"), 0)
	require.Error(t, err)
	assert.Equal(t, storageerrors.NoSuchUpload, storageerrors.GetErrorCode(err))
}

func TestFSMultipartCompleteMissingPart(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	uploadId, err := b.CreateMultipartUpload(ctx, "bkt", "t1/big", "v1", "", "")
	require.NoError(t, err)
	_, err = b.CompleteMultipartUpload(ctx, "bkt", "t1/big", "v1", uploadId,
		[]UploadedPart{{PartNumber: 1}})
	require.Error(t, err)
	assert.Equal(t, storageerrors.MissingPart, storageerrors.GetErrorCode(err))
}

func TestFSAbortMultipartIdempotent(t *testing.T) {
	b := newTestFS(t)
	ctx := context.Background()

	uploadId, err := b.CreateMultipartUpload(ctx, "bkt", "t1/big", "v1", "", "")
	require.NoError(t, err)
	require.NoError(t, b.AbortMultipartUpload(ctx, "bkt", "t1/big", "v1", uploadId))
	require.NoError(t, b.AbortMultipartUpload(ctx, "bkt", "t1/big", "v1", uploadId))

	_, err = b.UploadPart(ctx, "bkt", "t1/big", "v1", uploadId, 1, strings.NewReader("x"), 0)
	require.Error(t, err)
	assert.Equal(t, storageerrors.NoSuchUpload, storageerrors.GetErrorCode(err))
}
