/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

const (
	TBucket = "buckets"
	TObject = "objects"
)

var (
	getBucketCmd    = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TBucket)
	insertBucketCmd = fmt.Sprintf(`INSERT INTO %s (id, name, owner, public, file_size_limit, allowed_mime_types, disk_ref, created_at, updated_at)
		VALUES (:id, :name, :owner, :public, :file_size_limit, :allowed_mime_types, :disk_ref, now(), now())`, TBucket)
	updateBucketCmd = fmt.Sprintf(`UPDATE %s
		SET public = :public,
		    file_size_limit = :file_size_limit,
		    allowed_mime_types = :allowed_mime_types,
		    updated_at = now()
		WHERE id = :id`, TBucket)
	deleteBucketCmd      = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TBucket)
	countBucketObjectCmd = fmt.Sprintf(`SELECT count(*) FROM (SELECT 1 FROM %s WHERE bucket_id = $1 LIMIT $2) t`, TObject)
)

// CreateBucket inserts a bucket row; a duplicate name fails with
// BucketAlreadyExists.
func (t *Tx) CreateBucket(bucket *Bucket) error {
	if bucket == nil || bucket.Id == "" {
		return storageerrors.NewMissingParameter("bucket")
	}
	if _, err := t.tx.NamedExec(insertBucketCmd, bucket); err != nil {
		if utils.IsUniqueViolation(err) {
			return storageerrors.NewBucketAlreadyExists(bucket.Name)
		}
		return utils.NormalizeError(err)
	}
	return nil
}

// GetBucket fetches a bucket by id, failing with NoSuchBucket when absent.
func (t *Tx) GetBucket(id string) (*Bucket, error) {
	var bucket Bucket
	if err := t.tx.Get(&bucket, getBucketCmd, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, storageerrors.NewNoSuchBucket(id)
		}
		return nil, utils.NormalizeError(err)
	}
	return &bucket, nil
}

// ListBuckets returns buckets matching the query ordered by the given
// columns.
func (t *Tx) ListBuckets(query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Bucket, error) {
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TBucket)
	if query != nil {
		builder = builder.Where(query)
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit)).Offset(uint64(offset))
	}
	cmd, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var buckets []*Bucket
	if err = t.tx.Select(&buckets, cmd, args...); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return buckets, nil
}

// UpdateBucket updates the mutable bucket attributes.
func (t *Tx) UpdateBucket(bucket *Bucket) error {
	if bucket == nil || bucket.Id == "" {
		return storageerrors.NewMissingParameter("bucket")
	}
	result, err := t.tx.NamedExec(updateBucketCmd, bucket)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewNoSuchBucket(bucket.Id)
	}
	return nil
}

// DeleteBucket removes the bucket row. Deletion is blocked while the bucket
// still holds objects.
func (t *Tx) DeleteBucket(id string) error {
	count, err := t.CountObjectsInBucket(id, 1)
	if err != nil {
		return err
	}
	if count > 0 {
		return storageerrors.NewInvalidParameter(
			fmt.Sprintf("the bucket %s is not empty", id))
	}
	result, err := t.tx.Exec(deleteBucketCmd, id)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewNoSuchBucket(id)
	}
	return nil
}

// CountObjectsInBucket counts objects in the bucket, stopping at limit so
// large buckets do not pay for an exact count.
func (t *Tx) CountObjectsInBucket(id string, limit int) (int, error) {
	var count int
	if err := t.tx.Get(&count, countBucketObjectCmd, id, limit); err != nil {
		return 0, utils.NormalizeError(err)
	}
	return count, nil
}
