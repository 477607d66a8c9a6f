/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/scanner"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
	apiutils "github.com/AMD-AIG-AIMA/PrimusStore/pkg/utils"
)

const ndjsonContentType = "application/x-ndjson"

// orphanScanner is the slice of the scanner the orphan endpoints drive.
// Scans emit data pages only; these handlers own the terminal done event.
type orphanScanner interface {
	ListOrphaned(ctx context.Context, tenantId, bucket string, params *scanner.ScanParams, emit scanner.EmitFunc) (string, error)
	DeleteOrphans(ctx context.Context, tenantId, bucket string, params *scanner.DeleteParams, emit scanner.EmitFunc) (int, error)
}

// DeleteOrphansRequest is the DELETE orphan-objects body.
type DeleteOrphansRequest struct {
	DeleteDbKeys bool      `json:"deleteDbKeys"`
	DeleteS3Keys bool      `json:"deleteS3Keys"`
	Before       time.Time `json:"before"`
	TmpTable     string    `json:"tmpTable"`
}

// DeleteAllBeforeRequest enqueues a bulk version purge.
type DeleteAllBeforeRequest struct {
	Before time.Time `json:"before" binding:"required"`
}

// ndjsonStream serializes events onto a chunked response, interleaving
// keep-alive pings so idle scan phases do not stall proxies.
type ndjsonStream struct {
	mu      sync.Mutex
	writer  gin.ResponseWriter
	encoder *json.Encoder
	done    chan struct{}
}

func newNdjsonStream(c *gin.Context) *ndjsonStream {
	c.Writer.Header().Set("Content-Type", ndjsonContentType)
	c.Writer.WriteHeader(http.StatusOK)
	stream := &ndjsonStream{
		writer:  c.Writer,
		encoder: json.NewEncoder(c.Writer),
		done:    make(chan struct{}),
	}
	interval := time.Duration(config.GetScannerPingIntervalSecond()) * time.Second
	go stream.pingLoop(interval)
	return stream
}

func (s *ndjsonStream) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.write(gin.H{"event": "ping"})
		}
	}
}

func (s *ndjsonStream) write(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.encoder.Encode(payload)
	s.writer.Flush()
}

func (s *ndjsonStream) close() {
	close(s.done)
}

// ListOrphanObjects handles GET
// /admin/tenants/:tenantId/buckets/:bucketId/orphan-objects?before=: drift
// between the catalog and the backend, streamed as NDJSON events.
func (h *Handler) ListOrphanObjects(c *gin.Context) {
	params := &scanner.ScanParams{
		TmpTable: c.Query("tmpTable"),
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apiutils.AbortWithApiError(c, storageerrors.NewInvalidParameter("before"))
			return
		}
		params.Before = before
	}
	if c.Query("keepTmpTable") == "true" {
		params.KeepTmpTable = true
	}

	stream := newNdjsonStream(c)
	defer stream.close()

	table, err := h.scanner.ListOrphaned(c.Request.Context(), c.Param("tenantId"), c.Param("bucketId"),
		params, func(event *scanner.Event) error {
			stream.write(event)
			return c.Request.Context().Err()
		})
	if err != nil {
		stream.write(gin.H{"event": "error", "message": err.Error(), "code": storageerrors.GetErrorCode(err)})
		return
	}
	done := gin.H{"event": scanner.EventDone}
	if params.KeepTmpTable {
		done["tmpTable"] = table
	}
	stream.write(done)
}

// DeleteOrphanObjects handles DELETE
// /admin/tenants/:tenantId/buckets/:bucketId/orphan-objects.
func (h *Handler) DeleteOrphanObjects(c *gin.Context) {
	var req DeleteOrphansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutils.AbortWithApiError(c, storageerrors.NewInvalidParameter(err.Error()))
		return
	}

	stream := newNdjsonStream(c)
	defer stream.close()

	deleted, err := h.scanner.DeleteOrphans(c.Request.Context(), c.Param("tenantId"), c.Param("bucketId"),
		&scanner.DeleteParams{
			DeleteDbKeys: req.DeleteDbKeys,
			DeleteS3Keys: req.DeleteS3Keys,
			Before:       req.Before,
			TmpTable:     req.TmpTable,
		}, func(event *scanner.Event) error {
			stream.write(event)
			return c.Request.Context().Err()
		})
	if err != nil {
		stream.write(gin.H{"event": "error", "message": err.Error(), "code": storageerrors.GetErrorCode(err)})
		return
	}
	stream.write(gin.H{"event": scanner.EventDone, "deleted": deleted})
}

// EnqueueDeleteAllBefore handles POST
// /admin/tenants/:tenantId/buckets/:bucketId/delete-all-before: the purge
// runs on the job queue, not in the request.
func (h *Handler) EnqueueDeleteAllBefore(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req DeleteAllBeforeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, storageerrors.NewInvalidParameter(err.Error())
		}
		jobId, err := h.jobQueue.Send(c.Request.Context(), queue.JobObjectAdminDeleteAllBefore,
			&queue.DeleteAllBeforePayload{
				Tenant:   c.Param("tenantId"),
				BucketId: c.Param("bucketId"),
				Before:   timeutil.FormatRFC3339(req.Before),
				ReqId:    middleware.GetRequestId(c),
			})
		if err != nil {
			return nil, err
		}
		c.Status(http.StatusAccepted)
		return gin.H{"jobId": jobId}, nil
	})
}
