/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package shard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

func TestReserveRejectsMissingParameters(t *testing.T) {
	a := &Allocator{retryLimit: 1}
	tests := []struct {
		name       string
		kind       string
		resourceId string
	}{
		{name: "emptyKind", kind: "", resourceId: "res-1"},
		{name: "emptyResource", kind: KindVector, resourceId: ""},
		{name: "bothEmpty", kind: "", resourceId: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Reserve(context.Background(), tt.kind, "tenant-1", tt.resourceId, 1000)
			require.Error(t, err)
			assert.Equal(t, storageerrors.MissingParameter, storageerrors.GetErrorCode(err))
		})
	}
}

func TestNewReservationRowTenantNullability(t *testing.T) {
	before := time.Now()
	row := newReservationRow(KindVector, "res-1", "", "shard-1", 3, 30000)

	assert.NotEmpty(t, row.Id)
	assert.Equal(t, KindVector, row.Kind)
	assert.Equal(t, "res-1", row.ResourceId)
	assert.False(t, row.TenantId.Valid, "empty tenant must persist as NULL")
	assert.Equal(t, "shard-1", row.ShardId)
	assert.Equal(t, 3, row.SlotNo)
	assert.False(t, row.LeaseExpiresAt.Before(before.Add(30*time.Second)))

	row = newReservationRow(KindIcebergTable, "res-2", "tenant-1", "shard-2", 0, 1000)
	require.True(t, row.TenantId.Valid)
	assert.Equal(t, "tenant-1", row.TenantId.String)
}

func TestNewReservationRowDistinctIds(t *testing.T) {
	first := newReservationRow(KindVector, "res-1", "t", "s", 0, 1)
	second := newReservationRow(KindVector, "res-1", "t", "s", 0, 1)
	assert.NotEqual(t, first.Id, second.Id)
}

func TestPlacementLockKey(t *testing.T) {
	assert.Equal(t, placementLockKey(KindVector), placementLockKey(KindVector))
	assert.NotEqual(t, placementLockKey(KindVector), placementLockKey(KindIcebergTable))
}

// The slot selection queries carry the contract that keeps concurrent
// reservations from colliding: free rows still covered by a live pending
// lease are invisible, claims skip peer-locked rows instead of blocking,
// and minting never passes the capacity watermark.
func TestSlotQueriesExcludeLeasedAndLockedSlots(t *testing.T) {
	for _, cmd := range []string{findShardCmd, claimFreeSlotCmd} {
		assert.Contains(t, cmd, "resource_id IS NULL")
		assert.Contains(t, cmd, "NOT EXISTS")
		assert.Contains(t, cmd, "'"+ReservationPending+"'")
		assert.Contains(t, cmd, "lease_expires_at > now()")
	}
	assert.Contains(t, claimFreeSlotCmd, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, claimFreeSlotCmd, "ORDER BY slot_no")

	assert.Contains(t, mintSlotCmd, "next_slot < capacity")
	assert.Contains(t, mintSlotCmd, "RETURNING next_slot - 1")
}

func TestFindShardFillsLeastFreeFirst(t *testing.T) {
	ordering := strings.Index(findShardCmd, "ORDER BY")
	require.Positive(t, ordering)
	clause := findShardCmd[ordering:]
	assert.Contains(t, clause, "coalesce(f.free_count, 0) ASC")
	assert.Contains(t, clause, "shard_key ASC")
	assert.Contains(t, findShardCmd, "'"+StatusActive+"'")
}

func TestConfirmOnlyTakesFreeSlots(t *testing.T) {
	assert.Contains(t, confirmCmd, "lease_expires_at > now()")
	assert.Contains(t, confirmCmd, "sl.resource_id IS NULL")
	assert.Contains(t, confirmCmd, "'"+ReservationConfirmed+"'")
}
