/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package jsonutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func TestUnmarshal(t *testing.T) {
	var p payload
	require.NoError(t, Unmarshal([]byte(`{"name":"cat.png","size":42,"extra":true}`), &p))
	assert.Equal(t, "cat.png", p.Name)
	assert.Equal(t, int64(42), p.Size)
}

func TestUnmarshalStrict(t *testing.T) {
	var p payload
	require.NoError(t, UnmarshalStrict([]byte(`{"name":"cat.png"}`), &p))
	assert.Error(t, UnmarshalStrict([]byte(`{"name":"cat.png","extra":true}`), &p))
}

func TestMarshalSilently(t *testing.T) {
	assert.Equal(t, `{"name":"cat.png","size":42}`, string(MarshalSilently(payload{Name: "cat.png", Size: 42})))
	assert.Nil(t, MarshalSilently(nil))
	// unmarshalable values swallow the error and return nil
	assert.Nil(t, MarshalSilently(func() {}))
}
