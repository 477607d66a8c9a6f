/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package object_handlers

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

func TestParseRangeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   *backend.ByteRange
	}{
		{name: "absent", header: "", want: nil},
		{name: "closed", header: "bytes=0-499", want: &backend.ByteRange{First: 0, Last: 499}},
		{name: "interior", header: "bytes=500-999", want: &backend.ByteRange{First: 500, Last: 999}},
		{name: "openEnded", header: "bytes=100-", want: &backend.ByteRange{First: 100, Last: math.MaxInt64 - 1}},
		{name: "singleByte", header: "bytes=7-7", want: &backend.ByteRange{First: 7, Last: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRangeHeader(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRangeHeaderInvalid(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "noUnit", header: "0-499"},
		{name: "wrongUnit", header: "items=0-4"},
		{name: "multiRange", header: "bytes=0-4,10-14"},
		{name: "noDash", header: "bytes=100"},
		{name: "descending", header: "bytes=500-100"},
		{name: "spacedFirst", header: "bytes= 5-10"},
		{name: "garbage", header: "bytes=abc-def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := parseRangeHeader(tt.header)
			assert.Nil(t, rng)
			require.Error(t, err)
			assert.Equal(t, storageerrors.InvalidRange, storageerrors.GetErrorCode(err))
		})
	}
}

// A suffix range cannot be resolved before the object size is known, so it
// is refused with 416 rather than treated as invalid syntax.
func TestParseRangeHeaderSuffixNotSatisfiable(t *testing.T) {
	rng, err := parseRangeHeader("bytes=-500")
	assert.Nil(t, rng)
	require.Error(t, err)

	apiErr := apiutils.ConvertToApiError(err)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, apiErr.HttpCode)
	assert.Equal(t, storageerrors.InvalidRange, apiErr.Code)
}
