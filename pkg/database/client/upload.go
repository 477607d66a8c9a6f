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

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

const TUpload = "uploads"

var (
	getUploadCmd    = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1 FOR UPDATE`, TUpload)
	insertUploadCmd = fmt.Sprintf(`INSERT INTO %s (id, bucket_id, object_name, version, upload_type, backend_upload_id, byte_offset, declared_length, content_type, cache_control, parts, status, expires_at, created_at)
		VALUES (:id, :bucket_id, :object_name, :version, :upload_type, :backend_upload_id, :byte_offset, :declared_length, :content_type, :cache_control, :parts, :status, :expires_at, now())`, TUpload)
	updateUploadCmd = fmt.Sprintf(`UPDATE %s
		SET byte_offset = :byte_offset,
		    declared_length = :declared_length,
		    backend_upload_id = :backend_upload_id,
		    parts = :parts,
		    status = :status,
		    expires_at = :expires_at
		WHERE id = :id`, TUpload)
	deleteUploadCmd  = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TUpload)
	expiredUploadCmd = fmt.Sprintf(`SELECT * FROM %s WHERE status = '%s' AND expires_at < $1 LIMIT $2`,
		TUpload, UploadStatusPending)
	bucketUploadsCmd = fmt.Sprintf(`SELECT * FROM %s WHERE bucket_id = $1 AND status = '%s' AND object_name > $2
		ORDER BY object_name, created_at LIMIT $3`, TUpload, UploadStatusPending)
)

// CreateUpload records a new upload; the id is the serialized upload id
// (tenant/bucket/key + separator + version) so resumes find it across
// processes.
func (t *Tx) CreateUpload(upload *Upload) error {
	if upload == nil || upload.Id == "" {
		return storageerrors.NewMissingParameter("upload")
	}
	if upload.Status == "" {
		upload.Status = UploadStatusPending
	}
	if upload.Parts == nil {
		upload.Parts = []byte(`[]`)
	}
	if _, err := t.tx.NamedExec(insertUploadCmd, upload); err != nil {
		if utils.IsUniqueViolation(err) {
			return storageerrors.NewResourceAlreadyExists(
				fmt.Sprintf("upload %s already exists", upload.Id))
		}
		return utils.NormalizeError(err)
	}
	return nil
}

// GetUpload fetches an upload row with a row lock held so concurrent
// PATCHes on the same upload serialize at the catalog.
func (t *Tx) GetUpload(id string) (*Upload, error) {
	var upload Upload
	if err := t.tx.Get(&upload, getUploadCmd, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, storageerrors.NewNoSuchUpload(id)
		}
		return nil, utils.NormalizeError(err)
	}
	return &upload, nil
}

// UpdateUpload persists offset and state changes of an in-flight upload.
func (t *Tx) UpdateUpload(upload *Upload) error {
	if upload == nil || upload.Id == "" {
		return storageerrors.NewMissingParameter("upload")
	}
	result, err := t.tx.NamedExec(updateUploadCmd, upload)
	if err != nil {
		return utils.NormalizeError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storageerrors.NewNoSuchUpload(upload.Id)
	}
	return nil
}

// DeleteUpload removes the upload record; idempotent.
func (t *Tx) DeleteUpload(id string) error {
	_, err := t.tx.Exec(deleteUploadCmd, id)
	return utils.NormalizeError(err)
}

// ListUploadsForBucket pages through a bucket's pending uploads ordered by
// object name; keyMarker is exclusive.
func (t *Tx) ListUploadsForBucket(bucketId, keyMarker string, limit int) ([]*Upload, error) {
	var uploads []*Upload
	if err := t.tx.Select(&uploads, bucketUploadsCmd, bucketId, keyMarker, limit); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return uploads, nil
}

// ListExpiredUploads returns pending uploads whose expiry has passed.
func (t *Tx) ListExpiredUploads(now time.Time, limit int) ([]*Upload, error) {
	var uploads []*Upload
	if err := t.tx.Select(&uploads, expiredUploadCmd, now, limit); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return uploads, nil
}
