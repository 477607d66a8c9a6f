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

	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

var (
	insertShardCmd = fmt.Sprintf(`INSERT INTO %s (id, kind, shard_key, capacity, next_slot, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, now(), now())`, TShard)
	listShardsCmd = fmt.Sprintf(`SELECT * FROM %s WHERE kind = $1 ORDER BY shard_key`, TShard)
	getShardCmd   = fmt.Sprintf(`SELECT * FROM %s WHERE kind = $1 AND shard_key = $2 LIMIT 1`, TShard)
	setStatusCmd  = fmt.Sprintf(`UPDATE %s SET status = $3, updated_at = now()
		WHERE kind = $1 AND shard_key = $2`, TShard)
)

// CreateShard registers a placement target. Capacity must be explicit when
// no default is configured; a silent zero would make every reserve fail.
func (a *Allocator) CreateShard(ctx context.Context, kind, shardKey string, capacity int, status string) (*Shard, error) {
	if kind == "" || shardKey == "" {
		return nil, storageerrors.NewMissingParameter("kind/shardKey")
	}
	if capacity <= 0 {
		capacity = config.GetShardDefaultCapacity()
	}
	if capacity <= 0 {
		return nil, storageerrors.NewInvalidParameter(
			"shard capacity must be set explicitly when no default is configured")
	}
	if status == "" {
		status = StatusActive
	}
	switch status {
	case StatusActive, StatusDraining, StatusDisabled:
	default:
		return nil, storageerrors.NewInvalidParameter("unknown shard status " + status)
	}
	shard := &Shard{
		Id:       uuid.NewString(),
		Kind:     kind,
		ShardKey: shardKey,
		Capacity: capacity,
		Status:   status,
	}
	if _, err := a.db.ExecContext(ctx, insertShardCmd,
		shard.Id, shard.Kind, shard.ShardKey, shard.Capacity, shard.Status); err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, storageerrors.NewResourceAlreadyExists(
				fmt.Sprintf("shard %s/%s already exists", kind, shardKey))
		}
		return nil, utils.NormalizeError(err)
	}
	return shard, nil
}

// ListShards returns every shard of a kind.
func (a *Allocator) ListShards(ctx context.Context, kind string) ([]*Shard, error) {
	var shards []*Shard
	if err := a.db.SelectContext(ctx, &shards, listShardsCmd, kind); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return shards, nil
}

// GetShard fetches one shard by its key.
func (a *Allocator) GetShard(ctx context.Context, kind, shardKey string) (*Shard, error) {
	var shard Shard
	if err := a.db.GetContext(ctx, &shard, getShardCmd, kind, shardKey); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, storageerrors.NewInvalidParameter(
				fmt.Sprintf("no shard %s/%s", kind, shardKey))
		}
		return nil, utils.NormalizeError(err)
	}
	return &shard, nil
}

// SetShardStatus moves a shard between active, draining and disabled.
func (a *Allocator) SetShardStatus(ctx context.Context, kind, shardKey, status string) error {
	switch status {
	case StatusActive, StatusDraining, StatusDisabled:
	default:
		return storageerrors.NewInvalidParameter("unknown shard status " + status)
	}
	result, err := a.db.ExecContext(ctx, setStatusCmd, kind, shardKey, status)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewInvalidParameter(
			fmt.Sprintf("no shard %s/%s", kind, shardKey))
	}
	return nil
}
