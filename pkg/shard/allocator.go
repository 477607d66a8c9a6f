/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package shard

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

var (
	// findShardCmd picks the active shard with the least free capacity so
	// shards fill up one at a time; ties break by shard_key ascending.
	findShardCmd = fmt.Sprintf(`SELECT s.*
		FROM %s s
		LEFT JOIN (
			SELECT sl.shard_id, count(*) AS free_count
			FROM %s sl
			WHERE sl.resource_id IS NULL
			  AND NOT EXISTS (
				SELECT 1 FROM %s r
				WHERE r.shard_id = sl.shard_id AND r.slot_no = sl.slot_no
				  AND r.status = '%s' AND r.lease_expires_at > now())
			GROUP BY sl.shard_id
		) f ON f.shard_id = s.id
		WHERE s.kind = $1 AND s.status = '%s'
		  AND (s.capacity - s.next_slot) + coalesce(f.free_count, 0) > 0
		ORDER BY (s.capacity - s.next_slot) + coalesce(f.free_count, 0) ASC, s.shard_key ASC
		LIMIT 1`, TShard, TSlot, TReservation, ReservationPending, StatusActive)
	countActiveCmd = fmt.Sprintf(`SELECT count(*) FROM %s WHERE kind = $1 AND status = '%s'`,
		TShard, StatusActive)
	claimFreeSlotCmd = fmt.Sprintf(`SELECT slot_no FROM %s sl
		WHERE sl.shard_id = $1 AND sl.resource_id IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM %s r
			WHERE r.shard_id = sl.shard_id AND r.slot_no = sl.slot_no
			  AND r.status = '%s' AND r.lease_expires_at > now())
		ORDER BY slot_no
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, TSlot, TReservation, ReservationPending)
	mintSlotCmd = fmt.Sprintf(`UPDATE %s SET next_slot = next_slot + 1, updated_at = now()
		WHERE id = $1 AND next_slot < capacity
		RETURNING next_slot - 1`, TShard)
	insertSlotCmd = fmt.Sprintf(`INSERT INTO %s (shard_id, slot_no, created_at, updated_at)
		VALUES ($1, $2, now(), now())`, TSlot)
	insertReservationCmd = fmt.Sprintf(`INSERT INTO %s
		(id, kind, resource_id, tenant_id, shard_id, slot_no, status, lease_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '%s', $7, now(), now())`, TReservation, ReservationPending)
	confirmCmd = fmt.Sprintf(`WITH claim AS (
			SELECT id, shard_id, slot_no FROM %s
			WHERE id = $1 AND status = '%s' AND lease_expires_at > now()
			FOR UPDATE
		), slot AS (
			UPDATE %s sl SET resource_id = $2, tenant_id = $3, updated_at = now()
			FROM claim
			WHERE sl.shard_id = claim.shard_id AND sl.slot_no = claim.slot_no
			  AND sl.resource_id IS NULL
			RETURNING sl.shard_id
		)
		UPDATE %s r SET status = '%s', updated_at = now()
		FROM claim, slot
		WHERE r.id = claim.id`,
		TReservation, ReservationPending, TSlot, TReservation, ReservationConfirmed)
	getReservationCmd = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TReservation)
	cancelCmd         = fmt.Sprintf(`UPDATE %s SET status = '%s', updated_at = now()
		WHERE id = $1 AND status = '%s'`, TReservation, ReservationCancelled, ReservationPending)
	expireLeasesCmd = fmt.Sprintf(`UPDATE %s SET status = '%s', updated_at = now()
		WHERE status = '%s' AND lease_expires_at < now()`,
		TReservation, ReservationExpired, ReservationPending)
	freeByLocationCmd = fmt.Sprintf(`UPDATE %s sl SET resource_id = NULL, tenant_id = NULL, updated_at = now()
		FROM %s s
		WHERE s.id = sl.shard_id AND s.kind = $1 AND s.shard_key = $2 AND sl.slot_no = $3`,
		TSlot, TShard)
	freeByResourceCmd = fmt.Sprintf(`UPDATE %s sl SET resource_id = NULL, tenant_id = NULL, updated_at = now()
		FROM %s s
		WHERE s.id = sl.shard_id AND s.kind = $1 AND sl.resource_id = $2
		RETURNING sl.shard_id, sl.slot_no`, TSlot, TShard)
	deleteReservationBySlotCmd = fmt.Sprintf(`DELETE FROM %s WHERE shard_id = $1 AND slot_no = $2`, TReservation)
	deleteReservationByResCmd  = fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND resource_id = $2`, TReservation)
)

// Allocator is the placement engine over the registry database.
type Allocator struct {
	db         *sqlx.DB
	retryLimit int
}

// New binds the allocator to the registry database.
func New(client *dbclient.Client) (*Allocator, error) {
	db, err := client.DB()
	if err != nil {
		return nil, err
	}
	retryLimit := config.GetShardReserveRetryLimit()
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &Allocator{db: db, retryLimit: retryLimit}, nil
}

// Reserve claims a slot for the resource under an expiring lease. Under
// SKIP LOCKED contention a pass can come up empty even when capacity
// exists, so the outer loop re-drives before giving up.
func (a *Allocator) Reserve(ctx context.Context, kind, tenantId, resourceId string, leaseMs int) (*Reservation, error) {
	if kind == "" || resourceId == "" {
		return nil, storageerrors.NewMissingParameter("kind/resourceId")
	}
	if leaseMs <= 0 {
		leaseMs = config.GetShardDefaultLeaseMs()
	}
	var lastErr error
	for attempt := 0; attempt < a.retryLimit; attempt++ {
		reservation, err := a.tryReserve(ctx, kind, tenantId, resourceId, leaseMs)
		if err != nil {
			if storageerrors.IsNoCapacity(err) || storageerrors.IsResourceLocked(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if reservation != nil {
			return reservation, nil
		}
		lastErr = storageerrors.NewNoCapacity(kind)
	}
	if lastErr == nil {
		lastErr = storageerrors.NewNoCapacity(kind)
	}
	return nil, lastErr
}

// tryReserve makes one placement attempt inside its own transaction. A nil
// reservation with nil error means the attempt lost a race and should be
// re-driven.
func (a *Allocator) tryReserve(ctx context.Context, kind, tenantId, resourceId string, leaseMs int) (*Reservation, error) {
	var reservation *Reservation
	err := a.withTx(ctx, func(tx *sqlx.Tx) error {
		// serialize placement per kind; the lock dies with the transaction
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, placementLockKey(kind)); err != nil {
			return utils.NormalizeError(err)
		}

		var shard Shard
		if err := tx.GetContext(ctx, &shard, findShardCmd, kind); err != nil {
			if !stderrors.Is(err, sql.ErrNoRows) {
				return utils.NormalizeError(err)
			}
			var active int
			if countErr := tx.GetContext(ctx, &active, countActiveCmd, kind); countErr != nil {
				return utils.NormalizeError(countErr)
			}
			if active == 0 {
				return storageerrors.NewNoActiveShard(kind)
			}
			return storageerrors.NewNoCapacity(kind)
		}

		slotNo, err := a.claimSlot(ctx, tx, &shard)
		if err != nil {
			return err
		}
		if slotNo < 0 {
			// all candidate rows were locked by peers; re-drive
			return nil
		}

		row := newReservationRow(kind, resourceId, tenantId, shard.Id, slotNo, leaseMs)
		if _, err = tx.ExecContext(ctx, insertReservationCmd,
			row.Id, row.Kind, row.ResourceId, row.TenantId,
			row.ShardId, row.SlotNo, row.LeaseExpiresAt); err != nil {
			return utils.NormalizeError(err)
		}
		reservation = &Reservation{
			ReservationId:  row.Id,
			ShardId:        shard.Id,
			ShardKey:       shard.ShardKey,
			SlotNo:         slotNo,
			LeaseExpiresAt: row.LeaseExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// newReservationRow builds the pending claim; an empty tenant is stored as
// NULL, matching the nullable column.
func newReservationRow(kind, resourceId, tenantId, shardId string, slotNo, leaseMs int) *ReservationRow {
	return &ReservationRow{
		Id:             uuid.NewString(),
		Kind:           kind,
		ResourceId:     resourceId,
		TenantId:       utils.NullString(tenantId),
		ShardId:        shardId,
		SlotNo:         slotNo,
		LeaseExpiresAt: time.Now().Add(time.Duration(leaseMs) * time.Millisecond),
	}
}

// claimSlot reuses a free existing row or mints a new slot under the
// capacity watermark. Returns -1 when the attempt should be re-driven.
func (a *Allocator) claimSlot(ctx context.Context, tx *sqlx.Tx, shard *Shard) (int, error) {
	var slotNo int
	err := tx.GetContext(ctx, &slotNo, claimFreeSlotCmd, shard.Id)
	if err == nil {
		return slotNo, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return -1, utils.NormalizeError(err)
	}
	// no reusable row visible; mint from the watermark
	err = tx.GetContext(ctx, &slotNo, mintSlotCmd, shard.Id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return -1, nil
		}
		return -1, utils.NormalizeError(err)
	}
	if _, err = tx.ExecContext(ctx, insertSlotCmd, shard.Id, slotNo); err != nil {
		return -1, utils.NormalizeError(err)
	}
	return slotNo, nil
}

// Confirm commits a pending reservation: the slot takes the resource and
// the reservation flips to confirmed, atomically. Confirming an
// already-confirmed reservation is a no-op; a dead lease fails with
// ExpiredReservation.
func (a *Allocator) Confirm(ctx context.Context, reservationId, resourceId, tenantId string) error {
	return a.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, confirmCmd, reservationId, resourceId, utils.NullString(tenantId))
		if err != nil {
			return utils.NormalizeError(err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			return nil
		}
		var row ReservationRow
		if err = tx.GetContext(ctx, &row, getReservationCmd, reservationId); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return storageerrors.NewExpiredReservation(reservationId)
			}
			return utils.NormalizeError(err)
		}
		if row.Status == ReservationConfirmed && row.ResourceId == resourceId {
			return nil
		}
		return storageerrors.NewExpiredReservation(reservationId)
	})
}

// Cancel abandons a pending reservation; the slot becomes reusable.
func (a *Allocator) Cancel(ctx context.Context, reservationId string) error {
	result, err := a.db.ExecContext(ctx, cancelCmd, reservationId)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewExpiredReservation(reservationId)
	}
	return nil
}

// ExpireLeases marks every pending reservation whose lease has elapsed.
func (a *Allocator) ExpireLeases(ctx context.Context) (int, error) {
	result, err := a.db.ExecContext(ctx, expireLeasesCmd)
	if err != nil {
		return 0, utils.NormalizeError(err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		klog.Infof("expired %d shard reservations", n)
	}
	return int(n), nil
}

// FreeByLocation clears one slot on resource deletion; the watermark never
// shrinks, the row is reused.
func (a *Allocator) FreeByLocation(ctx context.Context, kind, shardKey string, slotNo int) error {
	return a.withTx(ctx, func(tx *sqlx.Tx) error {
		var shardId string
		query := fmt.Sprintf(`SELECT id FROM %s WHERE kind = $1 AND shard_key = $2 LIMIT 1`, TShard)
		if err := tx.GetContext(ctx, &shardId, query, kind, shardKey); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return storageerrors.NewInvalidParameter(
					fmt.Sprintf("no shard %s/%s", kind, shardKey))
			}
			return utils.NormalizeError(err)
		}
		if _, err := tx.ExecContext(ctx, freeByLocationCmd, kind, shardKey, slotNo); err != nil {
			return utils.NormalizeError(err)
		}
		_, err := tx.ExecContext(ctx, deleteReservationBySlotCmd, shardId, slotNo)
		return utils.NormalizeError(err)
	})
}

// FreeByResource clears every slot the resource holds.
func (a *Allocator) FreeByResource(ctx context.Context, kind, resourceId string) error {
	return a.withTx(ctx, func(tx *sqlx.Tx) error {
		type location struct {
			ShardId string `db:"shard_id"`
			SlotNo  int    `db:"slot_no"`
		}
		var freed []location
		if err := tx.SelectContext(ctx, &freed, freeByResourceCmd, kind, resourceId); err != nil {
			return utils.NormalizeError(err)
		}
		if _, err := tx.ExecContext(ctx, deleteReservationByResCmd, kind, resourceId); err != nil {
			return utils.NormalizeError(err)
		}
		for _, loc := range freed {
			klog.V(4).Infof("freed slot %s/%d for resource %s", loc.ShardId, loc.SlotNo, resourceId)
		}
		return nil
	})
}

func (a *Allocator) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return utils.NormalizeError(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = utils.NormalizeError(tx.Commit())
	}()
	err = fn(tx)
	return err
}

// placementLockKey hashes the shard class string the placement path
// serializes on.
func placementLockKey(kind string) int64 {
	return int64(xxhash.Sum64String("shard-placement/" + kind))
}
