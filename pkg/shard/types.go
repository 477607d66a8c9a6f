/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package shard places tenant resources onto capacity-bounded backend
// shards. Allocation is two-phase: reserve a slot under an expiring lease,
// then confirm or cancel. Cancelled and expired slots are reused without
// widening the shard's slot watermark.
package shard

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Resource kinds the allocator places.
const (
	KindVector       = "vector"
	KindIcebergTable = "iceberg-table"
)

// Shard states.
const (
	StatusActive   = "active"
	StatusDraining = "draining"
	StatusDisabled = "disabled"
)

// Reservation states.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
	ReservationExpired   = "expired"
)

const (
	TShard       = "shards"
	TSlot        = "shard_slots"
	TReservation = "shard_reservations"
)

// Shard is one placement target.
type Shard struct {
	Id        string      `db:"id"`
	Kind      string      `db:"kind"`
	ShardKey  string      `db:"shard_key"`
	Capacity  int         `db:"capacity"`
	NextSlot  int         `db:"next_slot"`
	Status    string      `db:"status"`
	CreatedAt pq.NullTime `db:"created_at"`
	UpdatedAt pq.NullTime `db:"updated_at"`
}

// Slot is one allocation location on a shard; a null resource means free.
type Slot struct {
	ShardId    string         `db:"shard_id"`
	SlotNo     int            `db:"slot_no"`
	ResourceId sql.NullString `db:"resource_id"`
	TenantId   sql.NullString `db:"tenant_id"`
	CreatedAt  pq.NullTime    `db:"created_at"`
	UpdatedAt  pq.NullTime    `db:"updated_at"`
}

// ReservationRow is the persisted claim. TenantId is nullable like the
// slot's: a reservation may be minted before its tenant exists.
type ReservationRow struct {
	Id             string         `db:"id"`
	Kind           string         `db:"kind"`
	ResourceId     string         `db:"resource_id"`
	TenantId       sql.NullString `db:"tenant_id"`
	ShardId        string         `db:"shard_id"`
	SlotNo         int            `db:"slot_no"`
	Status         string         `db:"status"`
	LeaseExpiresAt time.Time      `db:"lease_expires_at"`
	CreatedAt      pq.NullTime    `db:"created_at"`
	UpdatedAt      pq.NullTime    `db:"updated_at"`
}

// Reservation is what Reserve returns to the caller.
type Reservation struct {
	ReservationId  string    `json:"reservationId"`
	ShardId        string    `json:"shardId"`
	ShardKey       string    `json:"shardKey"`
	SlotNo         int       `json:"slotNo"`
	LeaseExpiresAt time.Time `json:"leaseExpiresAt"`
}
