/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"

	"github.com/lib/pq"
)

const (
	DESC = "desc"
	ASC  = "asc"

	CreatedTime = "created_at"
)

// Row lock modes accepted by the object accessors.
type LockMode string

const (
	LockNone     LockMode = ""
	LockUpdate   LockMode = "FOR UPDATE"
	LockShare    LockMode = "FOR SHARE"
	LockKeyShare LockMode = "FOR KEY SHARE"
)

// Upload record types.
const (
	UploadTypeStandard  = "STANDARD"
	UploadTypeMultipart = "MULTIPART"

	UploadStatusPending   = "pending"
	UploadStatusFinalized = "finalized"
)

// Migration fleet states recorded on the tenant row.
const (
	MigrationsPending   = "pending"
	MigrationsCompleted = "completed"
	MigrationsFailed    = "failed"
)

type Bucket struct {
	Id               string         `db:"id"`
	Name             string         `db:"name"`
	Owner            sql.NullString `db:"owner"`
	Public           bool           `db:"public"`
	FileSizeLimit    sql.NullInt64  `db:"file_size_limit"`
	AllowedMimeTypes pq.StringArray `db:"allowed_mime_types"`
	DiskRef          sql.NullString `db:"disk_ref"`
	CreatedAt        pq.NullTime    `db:"created_at"`
	UpdatedAt        pq.NullTime    `db:"updated_at"`
}

type Object struct {
	Id             string         `db:"id"`
	BucketId       string         `db:"bucket_id"`
	Name           string         `db:"name"`
	Owner          sql.NullString `db:"owner"`
	Version        string         `db:"version"`
	Metadata       []byte         `db:"metadata"`
	UserMetadata   []byte         `db:"user_metadata"`
	LastAccessedAt pq.NullTime    `db:"last_accessed_at"`
	CreatedAt      pq.NullTime    `db:"created_at"`
	UpdatedAt      pq.NullTime    `db:"updated_at"`
}

// ObjectMetadata is the system metadata blob stored on the object row.
type ObjectMetadata struct {
	Size         int64  `json:"size"`
	Mimetype     string `json:"mimetype"`
	ETag         string `json:"eTag"`
	LastModified string `json:"lastModified"`
	CacheControl string `json:"cacheControl,omitempty"`
	ContentRange string `json:"contentRange,omitempty"`
}

type Upload struct {
	Id              string         `db:"id"`
	BucketId        string         `db:"bucket_id"`
	ObjectName      string         `db:"object_name"`
	Version         string         `db:"version"`
	UploadType      string         `db:"upload_type"`
	BackendUploadId sql.NullString `db:"backend_upload_id"`
	ByteOffset      int64          `db:"byte_offset"`
	DeclaredLength  sql.NullInt64  `db:"declared_length"`
	ContentType     sql.NullString `db:"content_type"`
	CacheControl    sql.NullString `db:"cache_control"`
	Parts           []byte         `db:"parts"`
	Status          string         `db:"status"`
	ExpiresAt       pq.NullTime    `db:"expires_at"`
	CreatedAt       pq.NullTime    `db:"created_at"`
}

type S3Credential struct {
	Id          string         `db:"id"`
	AccessKey   string         `db:"access_key"`
	SecretKey   string         `db:"secret_key"`
	Description sql.NullString `db:"description"`
	Claims      []byte         `db:"claims"`
	CreatedAt   pq.NullTime    `db:"created_at"`
}

// S3CredentialClaims are embedded in the credential row and become the
// request identity on the S3-wire surface.
type S3CredentialClaims struct {
	Role string `json:"role"`
	Sub  string `json:"sub,omitempty"`
}
