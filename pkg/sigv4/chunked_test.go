/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func chunkSignature(auth *Authorization, previous, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	stringToSign := strings.Join([]string{
		algorithmHeader + "-PAYLOAD",
		auth.AmzDate,
		auth.Credential.Scope(),
		previous,
		emptyPayloadHash,
		hex.EncodeToString(sum[:]),
	}, "\n")
	return hex.EncodeToString(hmacSHA256(signingKey(testSecretKey, auth.Credential), []byte(stringToSign)))
}

func TestChunkReaderUnsignedTrailer(t *testing.T) {
	body := "5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n" +
		"x-amz-checksum-crc32c:sOO8/Q==\r\n" +
		"\r\n"
	reader, err := NewChunkReader(strings.NewReader(body), StreamingUnsignedTrailer, "", nil, "",
		[]string{"x-amz-checksum-crc32c"})
	require.NoError(t, err)

	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(payload))
	assert.Equal(t, "sOO8/Q==", reader.TrailerHeaders().Get("X-Amz-Checksum-Crc32c"))
}

func TestChunkReaderUnexpectedTrailer(t *testing.T) {
	body := "5\r\nhello\r\n0\r\nx-amz-other:v\r\n\r\n"
	reader, err := NewChunkReader(strings.NewReader(body), StreamingUnsignedTrailer, "", nil, "",
		[]string{"x-amz-checksum-crc32c"})
	require.NoError(t, err)
	_, err = io.ReadAll(reader)
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidParameter, storageerrors.GetErrorCode(err))
}

func TestChunkReaderSignedPayload(t *testing.T) {
	auth := testAuthorization()
	seed := strings.Repeat("0", 64)
	first := chunkSignature(auth, seed, "hello")
	final := chunkSignature(auth, first, "")
	body := "5;chunk-signature=" + first + "\r\nhello\r\n" +
		"0;chunk-signature=" + final + "\r\n" +
		"\r\n"
	reader, err := NewChunkReader(strings.NewReader(body), StreamingSignedPayload, seed, auth, testSecretKey, nil)
	require.NoError(t, err)

	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}

func TestChunkReaderBrokenChain(t *testing.T) {
	auth := testAuthorization()
	seed := strings.Repeat("0", 64)
	// first chunk signed against the wrong previous signature
	first := chunkSignature(auth, strings.Repeat("1", 64), "hello")
	body := "5;chunk-signature=" + first + "\r\nhello\r\n"
	reader, err := NewChunkReader(strings.NewReader(body), StreamingSignedPayload, seed, auth, testSecretKey, nil)
	require.NoError(t, err)

	_, err = io.ReadAll(reader)
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidUploadSignature, storageerrors.GetErrorCode(err))
}

func TestChunkReaderMissingSignature(t *testing.T) {
	auth := testAuthorization()
	reader, err := NewChunkReader(strings.NewReader("5\r\nhello\r\n"), StreamingSignedPayload,
		strings.Repeat("0", 64), auth, testSecretKey, nil)
	require.NoError(t, err)
	_, err = io.ReadAll(reader)
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidUploadSignature, storageerrors.GetErrorCode(err))
}

func TestChunkReaderMalformedFraming(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"badSize", "zz\r\nhello\r\n0\r\n\r\n"},
		{"truncated", "5\r\nhel"},
		{"missingCRLF", "5\r\nhelloXX0\r\n\r\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reader, err := NewChunkReader(strings.NewReader(test.body), StreamingUnsignedTrailer, "", nil, "", nil)
			require.NoError(t, err)
			_, err = io.ReadAll(reader)
			assert.Error(t, err)
		})
	}
}

func TestChunkReaderRejectsNonStreaming(t *testing.T) {
	_, err := NewChunkReader(strings.NewReader(""), UnsignedPayload, "", nil, "", nil)
	assert.Error(t, err)
}
