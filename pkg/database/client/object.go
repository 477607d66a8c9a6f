/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

var (
	getObjectFormat = `SELECT * FROM ` + TObject + ` WHERE bucket_id = $1 AND name = $2 LIMIT 1 %s`
	insertObjectCmd = fmt.Sprintf(`INSERT INTO %s (id, bucket_id, name, owner, version, metadata, user_metadata, created_at, updated_at)
		VALUES (:id, :bucket_id, :name, :owner, :version, :metadata, :user_metadata, now(), now())`, TObject)
	updateObjectCmd = fmt.Sprintf(`UPDATE %s
		SET version = :version,
		    owner = :owner,
		    metadata = :metadata,
		    user_metadata = :user_metadata,
		    updated_at = now()
		WHERE bucket_id = :bucket_id AND name = :name`, TObject)
	renameObjectCmd = fmt.Sprintf(`UPDATE %s SET name = $3, updated_at = now()
		WHERE bucket_id = $1 AND name = $2`, TObject)
	deleteObjectCmd      = fmt.Sprintf(`DELETE FROM %s WHERE bucket_id = $1 AND name = $2`, TObject)
	deleteObjectManyCmd  = fmt.Sprintf(`DELETE FROM %s WHERE bucket_id = $1 AND name = ANY($2) RETURNING name`, TObject)
	touchObjectCmd       = fmt.Sprintf(`UPDATE %s SET last_accessed_at = now() WHERE bucket_id = $1 AND name = $2`, TObject)
	listObjectNamesCmd   = fmt.Sprintf(`SELECT name FROM %s WHERE bucket_id = $1 ORDER BY name LIMIT $2`, TObject)
	findOrCreateObatCmd  = fmt.Sprintf(`SELECT * FROM %s WHERE bucket_id = $1 AND name = $2 LIMIT 1 FOR UPDATE`, TObject)
	deleteBeforeNamesCmd = fmt.Sprintf(`SELECT name, version FROM %s WHERE bucket_id = $1 AND created_at < $2`, TObject)
)

// FindOrCreateUploadParams drives FindOrCreateObjectForUpload.
type FindOrCreateUploadParams struct {
	BucketId   string
	ObjectName string
	Version    string
	Owner      string
	IsUpsert   bool
}

// GetObject fetches an object row, optionally holding a row lock for the
// transaction's lifetime.
func (t *Tx) GetObject(bucketId, name string, lock LockMode) (*Object, error) {
	var object Object
	cmd := fmt.Sprintf(getObjectFormat, lock)
	if err := t.tx.Get(&object, cmd, bucketId, name); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, storageerrors.NewNoSuchKey(name)
		}
		return nil, utils.NormalizeError(err)
	}
	return &object, nil
}

// FindOrCreateObjectForUpload atomically inserts the object row or returns
// the existing one with a row lock held. When the row exists and the caller
// did not ask for upsert, it fails with KeyAlreadyExists.
func (t *Tx) FindOrCreateObjectForUpload(params *FindOrCreateUploadParams) (*Object, error) {
	object := &Object{
		Id:           uuid.NewString(),
		BucketId:     params.BucketId,
		Name:         params.ObjectName,
		Owner:        utils.NullString(params.Owner),
		Version:      params.Version,
		Metadata:     []byte(`{}`),
		UserMetadata: []byte(`{}`),
	}
	if _, err := t.tx.NamedExec(insertObjectCmd, object); err != nil {
		if !utils.IsUniqueViolation(err) {
			return nil, utils.NormalizeError(err)
		}
		if !params.IsUpsert {
			return nil, storageerrors.NewKeyAlreadyExists(params.ObjectName)
		}
		var existing Object
		if err = t.tx.Get(&existing, findOrCreateObatCmd, params.BucketId, params.ObjectName); err != nil {
			return nil, utils.NormalizeError(err)
		}
		return &existing, nil
	}
	return object, nil
}

// UpdateObject commits a new live version together with its metadata.
func (t *Tx) UpdateObject(object *Object) error {
	if object == nil {
		return storageerrors.NewMissingParameter("object")
	}
	result, err := t.tx.NamedExec(updateObjectCmd, object)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewNoSuchKey(object.Name)
	}
	return nil
}

// RenameObject moves the row to a new key within the same bucket.
func (t *Tx) RenameObject(bucketId, from, to string) error {
	result, err := t.tx.Exec(renameObjectCmd, bucketId, from, to)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return storageerrors.NewKeyAlreadyExists(to)
		}
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewNoSuchKey(from)
	}
	return nil
}

// DeleteObject removes the object row, returning the removed row so the
// caller can enqueue the version purge.
func (t *Tx) DeleteObject(bucketId, name string) (*Object, error) {
	object, err := t.GetObject(bucketId, name, LockUpdate)
	if err != nil {
		return nil, err
	}
	result, err := t.tx.Exec(deleteObjectCmd, bucketId, name)
	if err != nil {
		return nil, utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, storageerrors.NewNoSuchKey(name)
	}
	return object, nil
}

// DeleteObjects removes many rows at once and returns the names actually
// deleted (row-level policies may filter some out).
func (t *Tx) DeleteObjects(bucketId string, names []string) ([]string, error) {
	var deleted []string
	if err := t.tx.Select(&deleted, deleteObjectManyCmd, bucketId, pq.Array(names)); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return deleted, nil
}

// TouchObject records a read for last-accessed bookkeeping; best effort.
func (t *Tx) TouchObject(bucketId, name string) error {
	_, err := t.tx.Exec(touchObjectCmd, bucketId, name)
	return utils.NormalizeError(err)
}

// ListObjects returns object rows matching the query.
func (t *Tx) ListObjects(bucketId string, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Object, error) {
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TObject).
		Where(sqrl.Eq{"bucket_id": bucketId})
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
	var objects []*Object
	if err = t.tx.Select(&objects, cmd, args...); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return objects, nil
}

// ListObjectNames returns up to limit object keys in the bucket, ordered.
func (t *Tx) ListObjectNames(bucketId string, limit int) ([]string, error) {
	var names []string
	if err := t.tx.Select(&names, listObjectNamesCmd, bucketId, limit); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return names, nil
}

// ObjectNameVersion pairs a key with its live version token.
type ObjectNameVersion struct {
	Name    string `db:"name"`
	Version string `db:"version"`
}

// ListObjectsCreatedBefore returns keys and live versions created before the
// cutoff, used by bucket-empty and the orphan scanner.
func (t *Tx) ListObjectsCreatedBefore(bucketId string, before time.Time) ([]ObjectNameVersion, error) {
	var rows []ObjectNameVersion
	if err := t.tx.Select(&rows, deleteBeforeNamesCmd, bucketId, before); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return rows, nil
}
