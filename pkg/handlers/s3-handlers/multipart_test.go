/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3_handlers

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

func uploadWithParts(t *testing.T, parts ...backend.UploadedPart) *dbclient.Upload {
	t.Helper()
	return &dbclient.Upload{
		Id:    "upload-1",
		Parts: jsonutils.MarshalSilently(parts),
	}
}

func TestStoredParts(t *testing.T) {
	parts, err := storedParts(&dbclient.Upload{})
	require.NoError(t, err)
	assert.Empty(t, parts)

	upload := uploadWithParts(t,
		backend.UploadedPart{PartNumber: 2, ETag: "e2", Size: 10},
		backend.UploadedPart{PartNumber: 1, ETag: "e1", Size: 5},
	)
	parts, err = storedParts(upload)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, int32(2), parts[0].PartNumber)
}

func TestStoredPartsCorrupt(t *testing.T) {
	_, err := storedParts(&dbclient.Upload{Parts: []byte("not json")})
	require.Error(t, err)
	assert.Equal(t, storageerrors.InternalError, storageerrors.GetErrorCode(err))
}

func TestMatchParts(t *testing.T) {
	upload := uploadWithParts(t,
		backend.UploadedPart{PartNumber: 1, ETag: "e1", Size: 5},
		backend.UploadedPart{PartNumber: 2, ETag: "e2", Size: 10},
		backend.UploadedPart{PartNumber: 3, ETag: "e3", Size: 15},
	)
	request := &CompleteMultipartUpload{Parts: []CompletedPart{
		{PartNumber: 1, ETag: `"e1"`},
		{PartNumber: 2, ETag: "e2"},
		{PartNumber: 3},
	}}
	ordered, err := matchParts(request, upload)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "e2", ordered[1].ETag)
	assert.Equal(t, int64(15), ordered[2].Size)
}

func TestMatchPartsSubsetIsAllowed(t *testing.T) {
	// a client may complete with fewer parts than it uploaded; the extras
	// are discarded with the backend upload
	upload := uploadWithParts(t,
		backend.UploadedPart{PartNumber: 1, ETag: "e1"},
		backend.UploadedPart{PartNumber: 2, ETag: "e2"},
	)
	request := &CompleteMultipartUpload{Parts: []CompletedPart{{PartNumber: 2, ETag: "e2"}}}
	ordered, err := matchParts(request, upload)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	assert.Equal(t, int32(2), ordered[0].PartNumber)
}

func TestMatchPartsOutOfOrder(t *testing.T) {
	upload := uploadWithParts(t,
		backend.UploadedPart{PartNumber: 1, ETag: "e1"},
		backend.UploadedPart{PartNumber: 2, ETag: "e2"},
	)
	request := &CompleteMultipartUpload{Parts: []CompletedPart{
		{PartNumber: 2, ETag: "e2"},
		{PartNumber: 1, ETag: "e1"},
	}}
	_, err := matchParts(request, upload)
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidParameter, storageerrors.GetErrorCode(err))
}

func TestMatchPartsMissing(t *testing.T) {
	upload := uploadWithParts(t, backend.UploadedPart{PartNumber: 1, ETag: "e1"})
	request := &CompleteMultipartUpload{Parts: []CompletedPart{
		{PartNumber: 1, ETag: "e1"},
		{PartNumber: 2, ETag: "e2"},
	}}
	_, err := matchParts(request, upload)
	require.Error(t, err)
	assert.Equal(t, storageerrors.MissingPart, storageerrors.GetErrorCode(err))
}

func TestMatchPartsChecksumMismatch(t *testing.T) {
	upload := uploadWithParts(t, backend.UploadedPart{PartNumber: 1, ETag: "e1"})
	request := &CompleteMultipartUpload{Parts: []CompletedPart{{PartNumber: 1, ETag: `"other"`}}}
	_, err := matchParts(request, upload)
	require.Error(t, err)
	assert.Equal(t, storageerrors.InvalidChecksum, storageerrors.GetErrorCode(err))
}

func TestCompleteMultipartUploadDocument(t *testing.T) {
	doc := []byte(`<CompleteMultipartUpload>
		<Part><PartNumber>1</PartNumber><ETag>"e1"</ETag></Part>
		<Part><PartNumber>2</PartNumber><ETag>"e2"</ETag></Part>
	</CompleteMultipartUpload>`)
	var request CompleteMultipartUpload
	require.NoError(t, xml.Unmarshal(doc, &request))
	require.Len(t, request.Parts, 2)
	assert.Equal(t, int32(2), request.Parts[1].PartNumber)
	assert.Equal(t, `"e2"`, request.Parts[1].ETag)
}
