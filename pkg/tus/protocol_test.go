/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestUploadIdRoundTrip(t *testing.T) {
	id := UploadId{TenantId: "t1", Bucket: "avatars", Key: "photos/cat.png", Version: "v-123"}
	parsed, err := ParseUploadId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, *parsed)
}

func TestUploadIdRoundTripCustomSeparator(t *testing.T) {
	config.SetValue("storage.file.version_separator", "-$v-")
	defer config.SetValue("storage.file.version_separator", "/")

	id := UploadId{TenantId: "t1", Bucket: "avatars", Key: "cat.png", Version: "v-123"}
	assert.Equal(t, "t1/avatars/cat.png-$v-v-123", id.String())
	parsed, err := ParseUploadId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, *parsed)
}

func TestParseUploadIdInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"noVersion", "t1/avatars/cat.png/"},
		{"missingKey", "t1/avatars/v-123"},
		{"missingTenant", "/avatars/cat.png/v-123"},
		{"traversalKey", "t1/avatars/../cat.png/v-123"},
		{"bucketWithSpace", "t1/ avatars/cat.png/v-123"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseUploadId(test.raw)
			require.Error(t, err)
			assert.Equal(t, storageerrors.InvalidUploadId, storageerrors.GetErrorCode(err))
		})
	}
}

func TestParseMetadata(t *testing.T) {
	header := "bucketName YXZhdGFycw==,objectName Y2F0LnBuZw==, contentType aW1hZ2UvcG5n"
	metadata, err := ParseMetadata(header)
	require.NoError(t, err)
	assert.Equal(t, "avatars", metadata[MetaBucketName])
	assert.Equal(t, "cat.png", metadata[MetaObjectName])
	assert.Equal(t, "image/png", metadata[MetaContentType])
}

func TestParseMetadataEmptyValue(t *testing.T) {
	metadata, err := ParseMetadata("isConfidential,bucketName YXZhdGFycw==")
	require.NoError(t, err)
	assert.Equal(t, "", metadata["isConfidential"])
	assert.Equal(t, "avatars", metadata[MetaBucketName])
}

func TestParseMetadataEmptyHeader(t *testing.T) {
	metadata, err := ParseMetadata("")
	require.NoError(t, err)
	assert.Empty(t, metadata)
}

func TestParseMetadataBadBase64(t *testing.T) {
	_, err := ParseMetadata("bucketName not-base64!!")
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidParameter, storageerrors.GetErrorCode(err))
}

func TestEncodeMetadataRoundTrip(t *testing.T) {
	in := map[string]string{
		MetaBucketName:  "avatars",
		MetaObjectName:  "photos/space cat.png",
		MetaContentType: "image/png",
		"flag":          "",
	}
	out, err := ParseMetadata(EncodeMetadata(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
