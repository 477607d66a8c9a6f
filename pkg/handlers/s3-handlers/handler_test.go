/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name   string
		header string
		first  int64
		last   int64
	}{
		{"closed", "bytes=0-99", 0, 99},
		{"openEnded", "bytes=500-", 500, math.MaxInt64 - 1},
		{"singleByte", "bytes=7-7", 7, 7},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			byteRange, err := parseRange(test.header)
			require.NoError(t, err)
			require.NotNil(t, byteRange)
			assert.Equal(t, test.first, byteRange.First)
			assert.Equal(t, test.last, byteRange.Last)
		})
	}
}

func TestParseRangeEmpty(t *testing.T) {
	byteRange, err := parseRange("")
	assert.NoError(t, err)
	assert.Nil(t, byteRange)
}

func TestParseRangeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"noPrefix", "0-99"},
		{"multiRange", "bytes=0-1,5-9"},
		{"noDash", "bytes=42"},
		{"backwards", "bytes=9-5"},
		{"garbage", "bytes=a-b"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseRange(test.header)
			require.Error(t, err)
			assert.Equal(t, storageerrors.InvalidRange, storageerrors.GetErrorCode(err))
		})
	}
}

func TestParseRangeSuffixIsUnsatisfiable(t *testing.T) {
	_, err := parseRange("bytes=-500")
	require.Error(t, err)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, storageerrors.GetHttpCode(err))
}

func TestETagQuoting(t *testing.T) {
	assert.Equal(t, `"abc"`, quoteETag("abc"))
	assert.Equal(t, `"abc"`, quoteETag(`"abc"`))
	assert.Equal(t, "", quoteETag(""))
	assert.Equal(t, "abc", unquoteETag(`"abc"`))
	assert.Equal(t, "abc", unquoteETag("abc"))
}

func TestParseCopySource(t *testing.T) {
	tests := []struct {
		name   string
		header string
		bucket string
		key    string
	}{
		{"plain", "avatars/cat.png", "avatars", "cat.png"},
		{"leadingSlash", "/avatars/cat.png", "avatars", "cat.png"},
		{"nestedKey", "avatars/users/42/cat.png", "avatars", "users/42/cat.png"},
		{"escaped", "avatars/space%20cat.png", "avatars", "space cat.png"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bucket, key, err := parseCopySource(test.header)
			require.NoError(t, err)
			assert.Equal(t, test.bucket, bucket)
			assert.Equal(t, test.key, key)
		})
	}
}

func TestParseCopySourceInvalid(t *testing.T) {
	for _, header := range []string{"", "bucketonly", "/", "bucket/", "/key", "bad%zz/key"} {
		_, _, err := parseCopySource(header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestParsePartNumber(t *testing.T) {
	n, err := parsePartNumber("1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	n, err = parsePartNumber("10000")
	require.NoError(t, err)
	assert.Equal(t, int32(10000), n)

	for _, raw := range []string{"", "0", "-1", "10001", "abc"} {
		_, err = parsePartNumber(raw)
		assert.Error(t, err, "partNumber %q", raw)
	}
}

func TestFoldKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		prefix    string
		delimiter string
		entry     string
		group     string
	}{
		{"noDelimiter", "a/b/c", "", "", "a/b/c", ""},
		{"topLevelFile", "readme.txt", "", "/", "readme.txt", ""},
		{"folded", "photos/2026/cat.png", "", "/", "", "photos/"},
		{"underPrefix", "photos/2026/cat.png", "photos/", "/", "", "photos/2026/"},
		{"prefixLeaf", "photos/cat.png", "photos/", "/", "photos/cat.png", ""},
		{"multiCharDelimiter", "a--b--c", "", "--", "", "a--"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entry, group := foldKey(test.key, test.prefix, test.delimiter)
			assert.Equal(t, test.entry, entry)
			assert.Equal(t, test.group, group)
		})
	}
}
