/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package scanner reconciles the metadata catalog with the blob backend.
// It reports two drift sets for a bucket: backend keys the catalog no
// longer references (s3 orphans) and catalog rows whose bytes are missing
// (db orphans). Results stream to the caller in pages.
package scanner

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

const pageSize = 1000

// Event kinds emitted during a scan.
const (
	EventData     = "data"
	EventProgress = "progress"
	EventDone     = "done"
)

// Event is one streamed scan result page.
type Event struct {
	Event     string                       `json:"event"`
	S3Orphans []string                     `json:"s3Orphans,omitempty"`
	DbOrphans []dbclient.ObjectNameVersion `json:"dbOrphans,omitempty"`
	Deleted   int                          `json:"deleted,omitempty"`
}

// EmitFunc receives scan events; returning an error aborts the scan.
type EmitFunc func(event *Event) error

// ScanParams bounds one scan.
type ScanParams struct {
	// Before excludes newer objects from both orphan sets so in-flight
	// uploads never show up as drift.
	Before time.Time
	// KeepTmpTable leaves the snapshot behind so a follow-up delete can
	// reuse the same view.
	KeepTmpTable bool
	// TmpTable reuses a snapshot a previous scan kept.
	TmpTable string
}

// DeleteParams bounds one orphan deletion pass.
type DeleteParams struct {
	DeleteDbKeys bool
	DeleteS3Keys bool
	Before       time.Time
	TmpTable     string
}

// Scanner walks one bucket at a time.
type Scanner struct {
	registry *tenant.Registry
	store    backend.Backend
	bucket   string
}

// New builds a scanner over the catalog and the backend.
func New(registry *tenant.Registry, store backend.Backend) *Scanner {
	return &Scanner{
		registry: registry,
		store:    store,
		bucket:   config.GetStorageBucket(),
	}
}

// ListOrphaned streams the drift sets for the bucket. The scan view is
// consistent with the cutoff: objects newer than Before appear in neither
// set. Only data pages are emitted; the terminal event on the wire is the
// caller's to write.
func (s *Scanner) ListOrphaned(ctx context.Context, tenantId, bucket string, params *ScanParams, emit EmitFunc) (string, error) {
	if params.Before.IsZero() {
		params.Before = time.Now()
	}
	client, err := s.registry.CatalogClient(tenantId)
	if err != nil {
		return "", err
	}
	bucketRow, err := s.resolveBucket(ctx, client, bucket)
	if err != nil {
		return "", err
	}
	table := params.TmpTable
	if table == "" {
		table = snapshotTable(tenantId, bucketRow.Id)
	}

	err = client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		if params.TmpTable == "" {
			if txErr := tx.CreateOrphanTable(table, bucketRow.Id, params.Before); txErr != nil {
				return txErr
			}
		}
		keep := params.KeepTmpTable
		defer func() {
			if keep {
				return
			}
			if dropErr := tx.DropOrphanTable(table); dropErr != nil {
				klog.ErrorS(dropErr, "failed to drop scan snapshot", "table", table)
			}
		}()

		if txErr := s.walkBackend(ctx, tx, table, tenantId, bucket, params.Before, emit); txErr != nil {
			return txErr
		}
		return s.walkUnseen(ctx, tx, table, emit)
	})
	if err != nil {
		return "", err
	}
	if !params.KeepTmpTable {
		table = ""
	}
	return table, nil
}

// walkBackend pages the backend listing, marking snapshot rows seen and
// emitting the keys the catalog does not know.
func (s *Scanner) walkBackend(ctx context.Context, tx *dbclient.Tx, table, tenantId, bucket string,
	before time.Time, emit EmitFunc) error {
	prefix := tenantId + "/" + bucket + "/"
	separator := config.GetFileVersionSeparator()
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return storageerrors.NewAborted(err.Error())
		}
		page, err := s.store.List(ctx, s.bucket, &backend.ListOptions{
			Prefix:     prefix,
			NextToken:  token,
			BeforeDate: &before,
			MaxKeys:    pageSize,
		})
		if err != nil {
			return err
		}
		derived := make([]string, 0, len(page.Entries))
		for _, entry := range page.Entries {
			derived = append(derived, strings.TrimPrefix(entry.Key, prefix))
		}
		orphans, err := tx.MarkOrphanSeen(table, separator, derived)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			if err = emit(&Event{Event: EventData, S3Orphans: orphans}); err != nil {
				return err
			}
		}
		if page.NextToken == "" {
			return nil
		}
		token = page.NextToken
	}
}

// walkUnseen pages the snapshot rows no backend listing covered.
func (s *Scanner) walkUnseen(ctx context.Context, tx *dbclient.Tx, table string, emit EmitFunc) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return storageerrors.NewAborted(err.Error())
		}
		rows, err := tx.ListUnseenOrphans(table, pageSize, offset)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err = emit(&Event{Event: EventData, DbOrphans: rows}); err != nil {
			return err
		}
		if len(rows) < pageSize {
			return nil
		}
		offset += len(rows)
	}
}

// DeleteOrphans removes the drift the scan found, on whichever side the
// caller asked for, in batches with per-batch progress events.
func (s *Scanner) DeleteOrphans(ctx context.Context, tenantId, bucket string, params *DeleteParams, emit EmitFunc) (int, error) {
	if !params.DeleteDbKeys && !params.DeleteS3Keys {
		return 0, storageerrors.NewInvalidParameter("at least one of deleteDbKeys and deleteS3Keys must be set")
	}
	if params.Before.IsZero() {
		params.Before = time.Now()
	}
	client, err := s.registry.CatalogClient(tenantId)
	if err != nil {
		return 0, err
	}
	bucketRow, err := s.resolveBucket(ctx, client, bucket)
	if err != nil {
		return 0, err
	}
	prefix := tenantId + "/" + bucket + "/"
	deleted := 0

	scan := &ScanParams{Before: params.Before, TmpTable: params.TmpTable}
	_, err = s.ListOrphaned(ctx, tenantId, bucket, scan, func(event *Event) error {
		if event.Event != EventData {
			return nil
		}
		if params.DeleteS3Keys && len(event.S3Orphans) > 0 {
			keys := make([]string, 0, len(event.S3Orphans))
			for _, key := range event.S3Orphans {
				keys = append(keys, prefix+key)
			}
			if removeErr := s.store.RemoveMany(ctx, s.bucket, keys); removeErr != nil {
				return removeErr
			}
			deleted += len(keys)
		}
		if params.DeleteDbKeys && len(event.DbOrphans) > 0 {
			names := make([]string, 0, len(event.DbOrphans))
			for _, row := range event.DbOrphans {
				names = append(names, row.Name)
			}
			if dbErr := client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
				_, txErr := tx.DeleteObjects(bucketRow.Id, names)
				return txErr
			}); dbErr != nil {
				return dbErr
			}
			deleted += len(names)
		}
		return emit(&Event{Event: EventProgress, Deleted: deleted})
	})
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (s *Scanner) resolveBucket(ctx context.Context, client *dbclient.TenantClient, bucket string) (*dbclient.Bucket, error) {
	var row *dbclient.Bucket
	err := client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		var txErr error
		row, txErr = tx.GetBucket(bucket)
		return txErr
	})
	return row, err
}

func snapshotTable(tenantId, bucketId string) string {
	sanitize := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
				return r
			case r >= 'A' && r <= 'Z':
				return r + ('a' - 'A')
			default:
				return '_'
			}
		}, s)
	}
	return "orphan_scan_" + sanitize(tenantId) + "_" + sanitize(bucketId)
}
