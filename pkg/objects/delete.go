/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
)

const deleteBatchSize = 1000

// Delete removes the object row and schedules the backend purge of its
// versions.
func (m *Manager) Delete(ctx context.Context, identity dbclient.Identity, tenantId, bucket, name string) error {
	if err := ValidateObjectKey(name); err != nil {
		return err
	}
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return err
	}
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		bucketRow, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.DeleteObject(bucketRow.Id, name)
		return txErr
	})
	if err != nil {
		return err
	}
	m.enqueueVersionPurge(ctx, tenantId, bucket)
	return nil
}

// DeleteMany removes every object whose key starts with one of the prefixes
// and returns the keys actually deleted; row-level policies may filter some
// out silently.
func (m *Manager) DeleteMany(ctx context.Context, identity dbclient.Identity, tenantId, bucket string, prefixes []string) ([]string, error) {
	if len(prefixes) == 0 {
		return nil, storageerrors.NewMissingParameter("prefixes")
	}
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return nil, err
	}
	var deleted []string
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		bucketRow, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		names, txErr := expandPrefixes(tx, bucketRow.Id, prefixes)
		if txErr != nil {
			return txErr
		}
		if len(names) == 0 {
			return nil
		}
		deleted, txErr = tx.DeleteObjects(bucketRow.Id, names)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		m.enqueueVersionPurge(ctx, tenantId, bucket)
	}
	return deleted, nil
}

func expandPrefixes(tx *dbclient.Tx, bucketId string, prefixes []string) ([]string, error) {
	match := sqrl.Or{}
	for _, prefix := range prefixes {
		match = append(match, sqrl.Like{"name": prefix + "%"})
	}
	rows, err := tx.ListObjects(bucketId, match, []string{"name"}, 0, 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names, nil
}

// EmptyBucket deletes every object in the bucket in batches, refusing when
// the object count exceeds the configured ceiling.
func (m *Manager) EmptyBucket(ctx context.Context, identity dbclient.Identity, tenantId, bucket string) error {
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return err
	}
	max := config.GetStorageEmptyBucketMax()
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		bucketRow, txErr := tx.GetBucket(bucket)
		if txErr != nil {
			return txErr
		}
		count, txErr := tx.CountObjectsInBucket(bucketRow.Id, max+1)
		if txErr != nil {
			return txErr
		}
		if count > max {
			return storageerrors.NewUnableToEmptyBucket(bucket)
		}
		for {
			names, txErr := tx.ListObjectNames(bucketRow.Id, deleteBatchSize)
			if txErr != nil {
				return txErr
			}
			if len(names) == 0 {
				return nil
			}
			if _, txErr = tx.DeleteObjects(bucketRow.Id, names); txErr != nil {
				return txErr
			}
			if len(names) < deleteBatchSize {
				return nil
			}
		}
	})
	if err != nil {
		return err
	}
	m.enqueueVersionPurge(ctx, tenantId, bucket)
	return nil
}

// DeleteAllBefore is the purge job body: it walks the backend under the
// bucket prefix and removes every key older than the cutoff that the
// catalog no longer references. Overwritten and deleted versions end here.
func (m *Manager) DeleteAllBefore(ctx context.Context, tenantId, bucket string, before time.Time) (int, error) {
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return 0, err
	}
	bucketRow, err := resolveBucket(ctx, client, bucket)
	if err != nil {
		return 0, err
	}

	table := orphanTableName(tenantId, bucketRow.Id)
	separator := config.GetFileVersionSeparator()
	prefix := tenantId + "/" + bucket + "/"
	removed := 0

	err = client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		if txErr := tx.CreateOrphanTable(table, bucketRow.Id, before); txErr != nil {
			return txErr
		}
		defer func() {
			if dropErr := tx.DropOrphanTable(table); dropErr != nil {
				klog.ErrorS(dropErr, "failed to drop purge snapshot", "table", table)
			}
		}()

		token := ""
		for {
			page, txErr := m.store.List(ctx, m.bucket, &backend.ListOptions{
				Prefix:     prefix,
				NextToken:  token,
				BeforeDate: &before,
				MaxKeys:    deleteBatchSize,
			})
			if txErr != nil {
				return txErr
			}
			derived := make([]string, 0, len(page.Entries))
			for _, entry := range page.Entries {
				derived = append(derived, strings.TrimPrefix(entry.Key, prefix))
			}
			stale, txErr := tx.MarkOrphanSeen(table, separator, derived)
			if txErr != nil {
				return txErr
			}
			if len(stale) > 0 {
				keys := make([]string, 0, len(stale))
				for _, key := range stale {
					keys = append(keys, prefix+key)
				}
				if txErr = m.store.RemoveMany(ctx, m.bucket, keys); txErr != nil {
					return txErr
				}
				removed += len(keys)
			}
			if page.NextToken == "" {
				return nil
			}
			token = page.NextToken
		}
	})
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		klog.Infof("purged %d stale versions for tenant %s bucket %s before %s",
			removed, tenantId, bucket, timeutil.FormatRFC3339(before))
	}
	return removed, nil
}

func resolveBucket(ctx context.Context, client *dbclient.TenantClient, bucket string) (*dbclient.Bucket, error) {
	var row *dbclient.Bucket
	err := client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		var txErr error
		row, txErr = tx.GetBucket(bucket)
		return txErr
	})
	return row, err
}

func orphanTableName(tenantId, bucketId string) string {
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
	return "purge_" + sanitize(tenantId) + "_" + sanitize(bucketId)
}
