/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

const TS3Credential = "s3_credentials"

var (
	getCredentialByKeyCmd = fmt.Sprintf(`SELECT * FROM %s WHERE access_key = $1 LIMIT 1`, TS3Credential)
	insertCredentialCmd   = fmt.Sprintf(`INSERT INTO %s (id, access_key, secret_key, description, claims, created_at)
		VALUES (:id, :access_key, :secret_key, :description, :claims, now())`, TS3Credential)
	deleteCredentialCmd = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TS3Credential)
	listCredentialsCmd  = fmt.Sprintf(`SELECT id, access_key, description, claims, created_at FROM %s ORDER BY created_at`, TS3Credential)
)

// CreateS3Credential inserts an access-key/secret-key pair for the tenant's
// S3-wire surface.
func (t *Tx) CreateS3Credential(cred *S3Credential) error {
	if cred == nil || cred.Id == "" {
		return storageerrors.NewMissingParameter("credential")
	}
	if _, err := t.tx.NamedExec(insertCredentialCmd, cred); err != nil {
		if utils.IsUniqueViolation(err) {
			return storageerrors.NewResourceAlreadyExists(
				fmt.Sprintf("access key %s already exists", cred.AccessKey))
		}
		return utils.NormalizeError(err)
	}
	return nil
}

// GetS3CredentialByAccessKey resolves the credential presented in a SigV4
// request. A missing key surfaces as AccessDenied, not NotFound, so probes
// cannot enumerate keys.
func (t *Tx) GetS3CredentialByAccessKey(accessKey string) (*S3Credential, error) {
	var cred S3Credential
	if err := t.tx.Get(&cred, getCredentialByKeyCmd, accessKey); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, storageerrors.NewAccessDenied("invalid access key")
		}
		return nil, utils.NormalizeError(err)
	}
	return &cred, nil
}

// ListS3Credentials returns the tenant's credentials without secrets.
func (t *Tx) ListS3Credentials() ([]*S3Credential, error) {
	var creds []*S3Credential
	if err := t.tx.Select(&creds, listCredentialsCmd); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return creds, nil
}

// DeleteS3Credential removes a credential by id; idempotent.
func (t *Tx) DeleteS3Credential(id string) error {
	_, err := t.tx.Exec(deleteCredentialCmd, id)
	return utils.NormalizeError(err)
}
