/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

const (
	multipartsDir       = "multiparts"
	partFileFormat      = "part-%d"
	metadataSidecarName = "metadata.json"

	// ETag derivation modes of the filesystem backend.
	ETagMD5   = "md5"
	ETagMtime = "mtime"
)

// FSBackend implements Backend over a local directory tree. Object metadata
// is persisted as extended attributes; multipart uploads stage parts in a
// temp directory until completion concatenates them.
type FSBackend struct {
	rootDir   string
	separator string
	etagMode  string
}

// sidecar carries multipart metadata that has no file to hang xattrs on yet.
type sidecar struct {
	ContentType  string `json:"contentType"`
	CacheControl string `json:"cacheControl"`
}

// NewFSBackend creates a filesystem backend rooted at the configured path.
func NewFSBackend() (*FSBackend, error) {
	rootDir := config.GetFileRootPath()
	if rootDir == "" {
		return nil, storageerrors.NewInternalError("storage.file.root_path is not configured")
	}
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	b := &FSBackend{
		rootDir:   rootDir,
		separator: config.GetFileVersionSeparator(),
		etagMode:  config.GetFileEtagAlgorithm(),
	}
	klog.Infof("init fs backend, root: %s, separator: %q, etag: %s", rootDir, b.separator, b.etagMode)
	return b, nil
}

// WithVersion derives the physical key.
func (b *FSBackend) WithVersion(key, version string) string {
	return WithVersion(key, version, b.separator)
}

func (b *FSBackend) objectPath(bucket, physicalKey string) string {
	return filepath.Join(b.rootDir, bucket, filepath.FromSlash(physicalKey))
}

func (b *FSBackend) multipartDir(uploadId, bucket, physicalKey string) string {
	return filepath.Join(b.rootDir, multipartsDir, uploadId, bucket, filepath.FromSlash(physicalKey))
}

func (b *FSBackend) etag(path string, info os.FileInfo) string {
	if b.etagMode == ETagMtime {
		return fmt.Sprintf("%x-%x", info.ModTime().Unix(), info.Size())
	}
	return getXattr(path, xattrETag)
}

func (b *FSBackend) metadataOf(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storageerrors.NewNoSuchKey(path)
		}
		return nil, storageerrors.NewInternalError(err.Error())
	}
	return &Metadata{
		Size:         info.Size(),
		ContentType:  getXattr(path, xattrContentType),
		CacheControl: getXattr(path, xattrCacheControl),
		ETag:         b.etag(path, info),
		LastModified: info.ModTime(),
	}, nil
}

// Read opens the object, honoring conditional and range options.
func (b *FSBackend) Read(ctx context.Context, bucket, key, version string, opts *ReadOptions) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageerrors.NewAborted(err.Error())
	}
	path := b.objectPath(bucket, b.WithVersion(key, version))
	meta, err := b.metadataOf(path)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		if opts.IfNoneMatch != "" && opts.IfNoneMatch == meta.ETag {
			return &ReadResult{Metadata: *meta, Status: http.StatusNotModified}, nil
		}
		if opts.IfModifiedSince != nil && !meta.LastModified.After(*opts.IfModifiedSince) {
			return &ReadResult{Metadata: *meta, Status: http.StatusNotModified}, nil
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	result := &ReadResult{Metadata: *meta, Body: file, Status: http.StatusOK}
	if opts != nil && opts.Range != nil {
		first, last := opts.Range.First, opts.Range.Last
		if first >= meta.Size {
			_ = file.Close()
			return nil, storageerrors.NewInvalidRange(
				fmt.Sprintf("range start %d exceeds object size %d", first, meta.Size))
		}
		if last >= meta.Size {
			last = meta.Size - 1
		}
		if _, err = file.Seek(first, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, storageerrors.NewInternalError(err.Error())
		}
		result.Body = &rangeReadCloser{
			Reader: io.LimitReader(file, last-first+1),
			closer: file,
		}
		result.Status = http.StatusPartialContent
		result.ContentRange = fmt.Sprintf("bytes %d-%d/%d", first, last, meta.Size)
		result.Metadata.Size = last - first + 1
	}
	return result, nil
}

type rangeReadCloser struct {
	io.Reader
	closer io.Closer
}

func (r *rangeReadCloser) Close() error {
	return r.closer.Close()
}

// Write stores the stream and persists metadata as xattrs.
func (b *FSBackend) Write(ctx context.Context, bucket, key, version string, body io.Reader, contentType, cacheControl string) (*Metadata, error) {
	path := b.objectPath(bucket, b.WithVersion(key, version))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	hash := md5.New()
	size, err := io.Copy(io.MultiWriter(file, hash), contextReader(ctx, body))
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(path)
		if stderrors.Is(err, context.Canceled) {
			return nil, storageerrors.NewAborted(err.Error())
		}
		return nil, storageerrors.NewInternalError(err.Error())
	}
	if closeErr != nil {
		return nil, storageerrors.NewInternalError(closeErr.Error())
	}
	etag := hex.EncodeToString(hash.Sum(nil))
	b.applyXattrs(path, contentType, cacheControl, etag)
	info, err := os.Stat(path)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	return &Metadata{
		Size:         size,
		ContentType:  contentType,
		CacheControl: cacheControl,
		ETag:         b.etag(path, info),
		LastModified: info.ModTime(),
	}, nil
}

func (b *FSBackend) applyXattrs(path, contentType, cacheControl, etag string) {
	for name, value := range map[string]string{
		xattrContentType:  contentType,
		xattrCacheControl: cacheControl,
		xattrETag:         etag,
	} {
		if err := setXattr(path, name, value); err != nil {
			klog.V(4).Infof("failed to set xattr %s on %s: %v", name, path, err)
		}
	}
}

// Remove deletes one version; missing files are not an error.
func (b *FSBackend) Remove(_ context.Context, bucket, key, version string) error {
	path := b.objectPath(bucket, b.WithVersion(key, version))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return storageerrors.NewInternalError(err.Error())
	}
	return nil
}

// RemoveMany deletes a batch of physical keys.
func (b *FSBackend) RemoveMany(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return storageerrors.NewAborted(err.Error())
		}
		path := b.objectPath(bucket, key)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return storageerrors.NewInternalError(err.Error())
		}
	}
	return nil
}

// Copy duplicates a version, carrying or replacing its metadata.
func (b *FSBackend) Copy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion string, opts *CopyOptions) (*Metadata, error) {
	srcPath := b.objectPath(bucket, b.WithVersion(srcKey, srcVersion))
	srcMeta, err := b.metadataOf(srcPath)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		if opts.IfMatch != "" && opts.IfMatch != srcMeta.ETag {
			return nil, storageerrors.NewS3Error(http.StatusPreconditionFailed, "source etag mismatch")
		}
		if opts.IfNoneMatch != "" && opts.IfNoneMatch == srcMeta.ETag {
			return nil, storageerrors.NewS3Error(http.StatusPreconditionFailed, "source etag matched")
		}
		if opts.IfUnmodifiedSince != nil && srcMeta.LastModified.After(*opts.IfUnmodifiedSince) {
			return nil, storageerrors.NewS3Error(http.StatusPreconditionFailed, "source modified")
		}
		if opts.IfModifiedSince != nil && !srcMeta.LastModified.After(*opts.IfModifiedSince) {
			return nil, storageerrors.NewS3Error(http.StatusPreconditionFailed, "source not modified")
		}
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	defer src.Close()
	contentType := srcMeta.ContentType
	cacheControl := srcMeta.CacheControl
	if opts != nil && opts.ContentType != "" {
		contentType = opts.ContentType
	}
	if opts != nil && opts.CacheControl != "" {
		cacheControl = opts.CacheControl
	}
	return b.Write(ctx, bucket, dstKey, dstVersion, src, contentType, cacheControl)
}

// Stats returns the metadata of one version.
func (b *FSBackend) Stats(_ context.Context, bucket, key, version string) (*Metadata, error) {
	return b.metadataOf(b.objectPath(bucket, b.WithVersion(key, version)))
}

// List walks the bucket directory and pages entries in key order. The
// continuation token is the last key of the previous page.
func (b *FSBackend) List(ctx context.Context, bucket string, opts *ListOptions) (*ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageerrors.NewAborted(err.Error())
	}
	bucketDir := filepath.Join(b.rootDir, bucket)
	var keys []string
	err := filepath.Walk(bucketDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bucketDir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	sort.Strings(keys)

	maxKeys := 1000
	if opts != nil && opts.MaxKeys > 0 {
		maxKeys = int(opts.MaxKeys)
	}
	result := &ListResult{}
	prefixSeen := map[string]bool{}
	for _, key := range keys {
		if opts != nil {
			if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
				continue
			}
			if opts.NextToken != "" && key <= opts.NextToken {
				continue
			}
			if opts.StartAfter != "" && key <= opts.StartAfter {
				continue
			}
			if opts.Delimiter != "" {
				rest := key
				if opts.Prefix != "" {
					rest = strings.TrimPrefix(key, opts.Prefix)
				}
				if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
					prefix := key[:len(key)-len(rest)+idx+len(opts.Delimiter)]
					if !prefixSeen[prefix] {
						prefixSeen[prefix] = true
						result.CommonPrefixes = append(result.CommonPrefixes, prefix)
					}
					continue
				}
			}
		}
		if len(result.Entries) >= maxKeys {
			result.NextToken = result.Entries[len(result.Entries)-1].Key
			break
		}
		path := filepath.Join(bucketDir, filepath.FromSlash(key))
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if opts != nil && opts.BeforeDate != nil && !info.ModTime().Before(*opts.BeforeDate) {
			continue
		}
		result.Entries = append(result.Entries, ListEntry{
			Key:          key,
			Size:         info.Size(),
			ETag:         b.etag(path, info),
			LastModified: info.ModTime(),
		})
	}
	return result, nil
}

// CreateMultipartUpload stages a new multipart upload directory.
func (b *FSBackend) CreateMultipartUpload(_ context.Context, bucket, key, version, contentType, cacheControl string) (string, error) {
	uploadId := uuid.NewString()
	dir := b.multipartDir(uploadId, bucket, b.WithVersion(key, version))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", storageerrors.NewInternalError(err.Error())
	}
	side := sidecar{ContentType: contentType, CacheControl: cacheControl}
	if err := os.WriteFile(filepath.Join(dir, metadataSidecarName),
		jsonutils.MarshalSilently(side), 0o640); err != nil {
		return "", storageerrors.NewInternalError(err.Error())
	}
	return uploadId, nil
}

// UploadPart stores one part file with its checksum as an xattr.
func (b *FSBackend) UploadPart(ctx context.Context, bucket, key, version, uploadId string, partNumber int32, body io.Reader, _ int64) (*UploadedPart, error) {
	dir := b.multipartDir(uploadId, bucket, b.WithVersion(key, version))
	if _, err := os.Stat(dir); err != nil {
		return nil, storageerrors.NewNoSuchUpload(uploadId)
	}
	partPath := filepath.Join(dir, fmt.Sprintf(partFileFormat, partNumber))
	file, err := os.Create(partPath)
	if err != nil {
		return nil, storageerrors.NewInternalError(err.Error())
	}
	hash := md5.New()
	size, err := io.Copy(io.MultiWriter(file, hash), contextReader(ctx, body))
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(partPath)
		if stderrors.Is(err, context.Canceled) {
			return nil, storageerrors.NewAborted(err.Error())
		}
		return nil, storageerrors.NewInternalError(err.Error())
	}
	if closeErr != nil {
		return nil, storageerrors.NewInternalError(closeErr.Error())
	}
	etag := hex.EncodeToString(hash.Sum(nil))
	if err = setXattr(partPath, xattrETag, etag); err != nil {
		klog.V(4).Infof("failed to set part etag xattr: %v", err)
	}
	return &UploadedPart{PartNumber: partNumber, ETag: etag, Size: size}, nil
}

// CompleteMultipartUpload concatenates parts in PartNumber order into the
// final object and removes the staging directory.
func (b *FSBackend) CompleteMultipartUpload(ctx context.Context, bucket, key, version, uploadId string, parts []UploadedPart) (*Metadata, error) {
	dir := b.multipartDir(uploadId, bucket, b.WithVersion(key, version))
	if _, err := os.Stat(dir); err != nil {
		return nil, storageerrors.NewNoSuchUpload(uploadId)
	}
	var side sidecar
	if data, err := os.ReadFile(filepath.Join(dir, metadataSidecarName)); err == nil {
		_ = jsonutils.Unmarshal(data, &side)
	}
	sorted := make([]UploadedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	readers := make([]io.Reader, 0, len(sorted))
	files := make([]*os.File, 0, len(sorted))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, part := range sorted {
		partPath := filepath.Join(dir, fmt.Sprintf(partFileFormat, part.PartNumber))
		file, err := os.Open(partPath)
		if err != nil {
			return nil, storageerrors.NewMissingPart(part.PartNumber, uploadId)
		}
		if part.ETag != "" {
			if stored := getXattr(partPath, xattrETag); stored != "" && stored != part.ETag {
				return nil, storageerrors.NewInvalidChecksum(
					fmt.Sprintf("part %d etag mismatch", part.PartNumber))
			}
		}
		files = append(files, file)
		readers = append(readers, file)
	}
	meta, err := b.Write(ctx, bucket, key, version, io.MultiReader(readers...), side.ContentType, side.CacheControl)
	if err != nil {
		return nil, err
	}
	if err = os.RemoveAll(filepath.Join(b.rootDir, multipartsDir, uploadId)); err != nil {
		klog.V(4).Infof("failed to clean multipart dir %s: %v", uploadId, err)
	}
	return meta, nil
}

// AbortMultipartUpload drops the staging directory; idempotent.
func (b *FSBackend) AbortMultipartUpload(_ context.Context, _, _, _, uploadId string) error {
	if err := os.RemoveAll(filepath.Join(b.rootDir, multipartsDir, uploadId)); err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	return nil
}

// UploadPartCopy copies a byte range of an existing object as one part.
func (b *FSBackend) UploadPartCopy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion, uploadId string, partNumber int32, srcRange *ByteRange) (*UploadedPart, error) {
	srcPath := b.objectPath(bucket, b.WithVersion(srcKey, srcVersion))
	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storageerrors.NewNoSuchKey(srcKey)
		}
		return nil, storageerrors.NewInternalError(err.Error())
	}
	defer src.Close()
	var body io.Reader = src
	if srcRange != nil {
		if _, err = src.Seek(srcRange.First, io.SeekStart); err != nil {
			return nil, storageerrors.NewInternalError(err.Error())
		}
		body = io.LimitReader(src, srcRange.Last-srcRange.First+1)
	}
	return b.UploadPart(ctx, bucket, dstKey, dstVersion, uploadId, partNumber, body, 0)
}

// PutIfAbsent writes a small object only when the key does not exist yet,
// failing with ResourceAlreadyExists otherwise. Used for lock objects.
func (b *FSBackend) PutIfAbsent(_ context.Context, bucket, key string, body []byte) error {
	path := b.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return storageerrors.NewResourceAlreadyExists(key)
		}
		return storageerrors.NewInternalError(err.Error())
	}
	_, writeErr := file.Write(body)
	closeErr := file.Close()
	if writeErr != nil {
		return storageerrors.NewInternalError(writeErr.Error())
	}
	if closeErr != nil {
		return storageerrors.NewInternalError(closeErr.Error())
	}
	return nil
}

// Put overwrites a small object unconditionally. Used by the lock holder's
// renewal timer.
func (b *FSBackend) Put(_ context.Context, bucket, key string, body []byte) error {
	path := b.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	if err := os.WriteFile(path, body, 0o640); err != nil {
		return storageerrors.NewInternalError(err.Error())
	}
	return nil
}

// TempPrivateAccessUrl returns a file URL for in-process renderers.
func (b *FSBackend) TempPrivateAccessUrl(_ context.Context, bucket, key, version string) (string, error) {
	path := b.objectPath(bucket, b.WithVersion(key, version))
	if _, err := os.Stat(path); err != nil {
		return "", storageerrors.NewNoSuchKey(key)
	}
	return "file://" + path, nil
}

// contextReader aborts a copy when the request context is canceled.
func contextReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
