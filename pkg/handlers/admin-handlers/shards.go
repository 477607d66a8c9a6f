/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/shard"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

// CreateShardRequest registers one placement target.
type CreateShardRequest struct {
	Kind     string `json:"kind" binding:"required"`
	ShardKey string `json:"shardKey" binding:"required"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// SetShardStatusRequest moves a shard between active/draining/disabled.
type SetShardStatusRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// ReserveSlotRequest claims one slot under a lease.
type ReserveSlotRequest struct {
	Kind       string `json:"kind" binding:"required"`
	TenantId   string `json:"tenantId" binding:"required"`
	ResourceId string `json:"resourceId" binding:"required"`
	LeaseMs    int    `json:"leaseMs"`
}

// ConfirmReservationRequest finalizes a pending reservation.
type ConfirmReservationRequest struct {
	ResourceId string `json:"resourceId" binding:"required"`
	TenantId   string `json:"tenantId" binding:"required"`
}

// ShardResponse is the wire shape of a shard.
type ShardResponse struct {
	Id        string `json:"id"`
	Kind      string `json:"kind"`
	ShardKey  string `json:"shardKey"`
	Capacity  int    `json:"capacity"`
	NextSlot  int    `json:"nextSlot"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// CreateShard handles POST /admin/shards.
func (h *Handler) CreateShard(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req CreateShardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		if req.Capacity <= 0 {
			req.Capacity = config.GetShardDefaultCapacity()
		}
		if req.Capacity <= 0 {
			return nil, storageerrors.NewInvalidParameter(
				"capacity must be set explicitly or via shard.default_capacity")
		}
		if req.Status == "" {
			req.Status = shard.StatusActive
		}
		created, err := h.allocator.CreateShard(c.Request.Context(), req.Kind, req.ShardKey,
			req.Capacity, req.Status)
		if err != nil {
			return nil, err
		}
		c.Status(http.StatusCreated)
		return toShardResponse(created), nil
	})
}

// ListShards handles GET /admin/shards?kind=.
func (h *Handler) ListShards(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		kind := c.Query("kind")
		if kind == "" {
			return nil, storageerrors.NewMissingParameter("kind")
		}
		shards, err := h.allocator.ListShards(c.Request.Context(), kind)
		if err != nil {
			return nil, err
		}
		response := make([]*ShardResponse, 0, len(shards))
		for _, row := range shards {
			response = append(response, toShardResponse(row))
		}
		return response, nil
	})
}

// GetShard handles GET /admin/shards/:shardKey?kind=.
func (h *Handler) GetShard(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		kind := c.Query("kind")
		if kind == "" {
			return nil, storageerrors.NewMissingParameter("kind")
		}
		row, err := h.allocator.GetShard(c.Request.Context(), kind, c.Param("shardKey"))
		if err != nil {
			return nil, err
		}
		return toShardResponse(row), nil
	})
}

// SetShardStatus handles PUT /admin/shards/:shardKey/status.
func (h *Handler) SetShardStatus(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req SetShardStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		switch req.Status {
		case shard.StatusActive, shard.StatusDraining, shard.StatusDisabled:
		default:
			return nil, storageerrors.NewInvalidParameter("status")
		}
		err := h.allocator.SetShardStatus(c.Request.Context(), req.Kind, c.Param("shardKey"), req.Status)
		if err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully updated"}, nil
	})
}

// ReserveSlot handles POST /admin/shards/reservations.
func (h *Handler) ReserveSlot(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req ReserveSlotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		if req.LeaseMs <= 0 {
			req.LeaseMs = config.GetShardDefaultLeaseMs()
		}
		reservation, err := h.allocator.Reserve(c.Request.Context(), req.Kind, req.TenantId,
			req.ResourceId, req.LeaseMs)
		if err != nil {
			return nil, err
		}
		c.Status(http.StatusCreated)
		return reservation, nil
	})
}

// ConfirmReservation handles POST /admin/shards/reservations/:id/confirm.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req ConfirmReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		err := h.allocator.Confirm(c.Request.Context(), c.Param("id"), req.ResourceId, req.TenantId)
		if err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully confirmed"}, nil
	})
}

// CancelReservation handles POST /admin/shards/reservations/:id/cancel.
func (h *Handler) CancelReservation(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		if err := h.allocator.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			return nil, err
		}
		return gin.H{"message": "Successfully cancelled"}, nil
	})
}

func toShardResponse(row *shard.Shard) *ShardResponse {
	response := &ShardResponse{
		Id:       row.Id,
		Kind:     row.Kind,
		ShardKey: row.ShardKey,
		Capacity: row.Capacity,
		NextSlot: row.NextSlot,
		Status:   row.Status,
	}
	if row.CreatedAt.Valid {
		response.CreatedAt = timeutil.FormatRFC3339(row.CreatedAt.Time)
	}
	if row.UpdatedAt.Valid {
		response.UpdatedAt = timeutil.FormatRFC3339(row.UpdatedAt.Time)
	}
	return response
}
