/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase64RoundTrip(t *testing.T) {
	assert.Equal(t, "YXZhdGFycw==", Base64Encode("avatars"))
	assert.Equal(t, "avatars", Base64Decode("YXZhdGFycw=="))
	assert.Equal(t, "", Base64Encode(""))
	assert.Equal(t, "", Base64Decode(""))
	assert.Equal(t, "", Base64Decode("not base64"))
}

func TestIsBase64(t *testing.T) {
	assert.True(t, IsBase64("YXZhdGFycw=="))
	assert.True(t, IsBase64("Y2F0"))
	assert.False(t, IsBase64("not base64"))
	assert.False(t, IsBase64("abc"))
}

func TestMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5(""))
	assert.Equal(t, "9e107d9d372bb6826bd81d3542a419d6", MD5("The quick brown fox jumps over the lazy dog"))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Split(" a, b ,c ", ","))
	assert.Equal(t, []string{"a"}, Split("a,,  ,", ","))
	assert.Nil(t, Split("", ","))
}

func TestStrCaseEqual(t *testing.T) {
	assert.True(t, StrCaseEqual("Content-Type", "content-type"))
	assert.False(t, StrCaseEqual("a", "b"))
}
