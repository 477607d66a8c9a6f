/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"context"
	"io"
	"time"
)

// Metadata is what the backend knows about a stored object.
type Metadata struct {
	Size         int64
	ContentType  string
	CacheControl string
	ETag         string
	LastModified time.Time
}

// ByteRange is a half-open [First, Last] byte range per HTTP semantics.
type ByteRange struct {
	First int64
	Last  int64
}

// ReadOptions carries the conditional and range headers of a read.
type ReadOptions struct {
	IfNoneMatch     string
	IfModifiedSince *time.Time
	Range           *ByteRange
}

// ReadResult is the outcome of a read: Body is nil when Status is 304.
type ReadResult struct {
	Metadata     Metadata
	Body         io.ReadCloser
	Status       int
	ContentRange string
}

// CopyOptions tunes a backend-side copy.
type CopyOptions struct {
	// Metadata, when set, replaces the destination metadata instead of
	// copying the source's.
	ContentType  string
	CacheControl string
	// Conditions forwarded to the backend (copy-source-if-*).
	IfMatch           string
	IfNoneMatch       string
	IfModifiedSince   *time.Time
	IfUnmodifiedSince *time.Time
}

// ListOptions pages a bucket listing.
type ListOptions struct {
	Prefix     string
	Delimiter  string
	NextToken  string
	StartAfter string
	BeforeDate *time.Time
	MaxKeys    int32
}

// ListEntry is one listed key.
type ListEntry struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ListResult is one listing page.
type ListResult struct {
	Entries        []ListEntry
	CommonPrefixes []string
	NextToken      string
}

// UploadedPart identifies a completed multipart part.
type UploadedPart struct {
	PartNumber int32
	ETag       string
	Size       int64
}

// Backend is the uniform byte-level interface over S3 and the local
// filesystem. Keys passed in are logical; the backend derives physical
// locations by appending the version with its configured separator.
type Backend interface {
	Read(ctx context.Context, bucket, key, version string, opts *ReadOptions) (*ReadResult, error)
	Write(ctx context.Context, bucket, key, version string, body io.Reader, contentType, cacheControl string) (*Metadata, error)
	Remove(ctx context.Context, bucket, key, version string) error
	RemoveMany(ctx context.Context, bucket string, keys []string) error
	Copy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion string, opts *CopyOptions) (*Metadata, error)
	Stats(ctx context.Context, bucket, key, version string) (*Metadata, error)
	List(ctx context.Context, bucket string, opts *ListOptions) (*ListResult, error)

	CreateMultipartUpload(ctx context.Context, bucket, key, version, contentType, cacheControl string) (string, error)
	UploadPart(ctx context.Context, bucket, key, version, uploadId string, partNumber int32, body io.Reader, length int64) (*UploadedPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, version, uploadId string, parts []UploadedPart) (*Metadata, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, version, uploadId string) error
	UploadPartCopy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion, uploadId string, partNumber int32, srcRange *ByteRange) (*UploadedPart, error)

	// Whole-body writes keyed without a version suffix, used for lock
	// objects and other small control records.
	Put(ctx context.Context, bucket, key string, body []byte) error
	PutIfAbsent(ctx context.Context, bucket, key string, body []byte) error

	// TempPrivateAccessUrl returns a short-lived URL for internal renderers.
	TempPrivateAccessUrl(ctx context.Context, bucket, key, version string) (string, error)

	// WithVersion derives the physical key; callers never see path shapes.
	WithVersion(key, version string) string
}
