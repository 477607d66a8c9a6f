/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/shard"
)

func TestRandomHex(t *testing.T) {
	access, err := randomHex(accessKeyBytes)
	require.NoError(t, err)
	assert.Len(t, access, accessKeyBytes*2)

	secret, err := randomHex(secretKeyBytes)
	require.NoError(t, err)
	assert.Len(t, secret, secretKeyBytes*2)
	assert.NotEqual(t, access, secret)
}

func TestToTenantResponseHidesSecrets(t *testing.T) {
	record := &dbclient.Tenant{
		Id:                "tenant-a",
		DatabaseUrl:       "postgres://user:secret@db/tenant",
		JwtSecret:         "jwt-secret",
		MaxConnections:    20,
		MigrationsVersion: "0042_add_cache_control",
		MigrationsStatus:  dbclient.MigrationsCompleted,
		CursorId:          7,
		CreatedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	response := toTenantResponse(record)
	assert.Equal(t, "tenant-a", response.Id)
	assert.Equal(t, int64(7), response.CursorId)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", response.CreatedAt)
	assert.Empty(t, response.UpdatedAt)

	encoded, err := json.Marshal(response)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "secret")
}

func TestToShardResponse(t *testing.T) {
	now := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	response := toShardResponse(&shard.Shard{
		Id:        "s-1",
		Kind:      "vector",
		ShardKey:  "pg-eu-1",
		Capacity:  64,
		NextSlot:  3,
		Status:    shard.StatusActive,
		CreatedAt: pq.NullTime{Time: now, Valid: true},
	})
	assert.Equal(t, "pg-eu-1", response.ShardKey)
	assert.Equal(t, 64, response.Capacity)
	assert.Equal(t, "2026-05-04T03:02:01.000Z", response.CreatedAt)
	assert.Empty(t, response.UpdatedAt)
}

func TestCredentialResponseOmitsEmptySecret(t *testing.T) {
	encoded, err := json.Marshal(&CredentialResponse{Id: "c1", AccessKey: "ak"})
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "secretKey")
}

func TestNdjsonStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest("GET", "/admin/tenants/t/buckets/b/orphan-objects", nil)

	stream := newNdjsonStream(c)
	stream.write(gin.H{"event": "data", "key": "a"})
	stream.write(gin.H{"event": "done"})
	stream.close()

	assert.Equal(t, ndjsonContentType, recorder.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "data", first["event"])
}
