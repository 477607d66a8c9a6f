/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

const deleteBatchSize = 1000

// S3Backend implements Backend over an S3-compatible store through a shared
// pooled transport.
type S3Backend struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presign   *s3.PresignClient
	separator string
	timeout   time.Duration
}

// S3Config carries the connection settings of the blob store.
type S3Config struct {
	Endpoint              string
	Region                string
	AccessKey             string
	SecretKey             string
	ForcePathStyle        bool
	MaxSockets            int
	RequestTimeout        time.Duration
	InsecureSkipTlsVerify bool
	VersionSeparator      string
}

// NewS3ConfigFromEnv builds the backend settings from configuration.
func NewS3ConfigFromEnv() *S3Config {
	return &S3Config{
		Endpoint:              config.GetS3Endpoint(),
		Region:                config.GetS3Region(),
		AccessKey:             config.GetS3AccessKey(),
		SecretKey:             config.GetS3SecretKey(),
		ForcePathStyle:        config.IsS3ForcePathStyle(),
		MaxSockets:            config.GetS3MaxSockets(),
		RequestTimeout:        time.Duration(config.GetS3RequestTimeoutSecond()) * time.Second,
		InsecureSkipTlsVerify: config.IsS3InsecureSkipTlsVerify(),
		VersionSeparator:      config.GetFileVersionSeparator(),
	}
}

// NewS3Backend creates an S3 backend from the given settings.
func NewS3Backend(ctx context.Context, cfg *S3Config) (*S3Backend, error) {
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxSockets,
		MaxConnsPerHost:       cfg.MaxSockets,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
	}
	if cfg.InsecureSkipTlsVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	httpClient := &http.Client{Transport: newMeteredTransport(transport, cfg.MaxSockets)}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	b := &S3Backend{
		client:    client,
		uploader:  manager.NewUploader(client),
		presign:   s3.NewPresignClient(client),
		separator: cfg.VersionSeparator,
		timeout:   cfg.RequestTimeout,
	}
	klog.Infof("init s3 backend, endpoint: %s, region: %s, max-sockets: %d",
		cfg.Endpoint, cfg.Region, cfg.MaxSockets)
	return b, nil
}

// WithVersion derives the physical key.
func (b *S3Backend) WithVersion(key, version string) string {
	return WithVersion(key, version, b.separator)
}

func (b *S3Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Read streams an object, honoring conditional and range headers.
func (b *S3Backend) Read(ctx context.Context, bucket, key, version string, opts *ReadOptions) (*ReadResult, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
	}
	status := http.StatusOK
	if opts != nil {
		if opts.IfNoneMatch != "" {
			input.IfNoneMatch = aws.String(opts.IfNoneMatch)
		}
		if opts.IfModifiedSince != nil {
			input.IfModifiedSince = opts.IfModifiedSince
		}
		if opts.Range != nil {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", opts.Range.First, opts.Range.Last))
			status = http.StatusPartialContent
		}
	}
	// no timeout: body streaming may outlive any fixed request budget
	output, err := b.client.GetObject(ctx, input)
	if err != nil {
		if isNotModified(err) {
			return &ReadResult{Status: http.StatusNotModified}, nil
		}
		return nil, normalizeS3Error(err, key)
	}
	result := &ReadResult{
		Metadata: metadataFromGet(output),
		Body:     output.Body,
		Status:   status,
	}
	if output.ContentRange != nil {
		result.ContentRange = *output.ContentRange
	}
	return result, nil
}

// Write uploads an object from an arbitrary stream. The upload manager
// splits large or unsized bodies into parts transparently.
func (b *S3Backend) Write(ctx context.Context, bucket, key, version string, body io.Reader, contentType, cacheControl string) (*Metadata, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if cacheControl != "" {
		input.CacheControl = aws.String(cacheControl)
	}
	output, err := b.uploader.Upload(ctx, input)
	if err != nil {
		return nil, normalizeS3Error(err, key)
	}
	// the upload response does not echo size; stat for authoritative metadata
	meta, err := b.Stats(ctx, bucket, key, version)
	if err != nil {
		return nil, err
	}
	if output.ETag != nil {
		meta.ETag = trimETag(*output.ETag)
	}
	return meta, nil
}

// Remove deletes one version.
func (b *S3Backend) Remove(ctx context.Context, bucket, key, version string) error {
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	_, err := b.client.DeleteObject(timeoutCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
	})
	if err != nil {
		return normalizeS3Error(err, key)
	}
	return nil
}

// RemoveMany deletes physical keys in batches of up to 1000.
func (b *S3Backend) RemoveMany(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		identifiers := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			identifiers = append(identifiers, types.ObjectIdentifier{Key: aws.String(key)})
		}
		timeoutCtx, cancel := b.withTimeout(ctx)
		_, err := b.client.DeleteObjects(timeoutCtx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: identifiers, Quiet: aws.Bool(true)},
		})
		cancel()
		if err != nil {
			return normalizeS3Error(err, bucket)
		}
	}
	return nil
}

// Copy performs a backend-side copy of one version to a new destination.
func (b *S3Backend) Copy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion string, opts *CopyOptions) (*Metadata, error) {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(b.WithVersion(dstKey, dstVersion)),
		CopySource: aws.String(bucket + "/" + b.WithVersion(srcKey, srcVersion)),
	}
	if opts != nil {
		if opts.ContentType != "" {
			input.ContentType = aws.String(opts.ContentType)
			input.MetadataDirective = types.MetadataDirectiveReplace
		}
		if opts.CacheControl != "" {
			input.CacheControl = aws.String(opts.CacheControl)
			input.MetadataDirective = types.MetadataDirectiveReplace
		}
		if opts.IfMatch != "" {
			input.CopySourceIfMatch = aws.String(opts.IfMatch)
		}
		if opts.IfNoneMatch != "" {
			input.CopySourceIfNoneMatch = aws.String(opts.IfNoneMatch)
		}
		if opts.IfModifiedSince != nil {
			input.CopySourceIfModifiedSince = opts.IfModifiedSince
		}
		if opts.IfUnmodifiedSince != nil {
			input.CopySourceIfUnmodifiedSince = opts.IfUnmodifiedSince
		}
	}
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	if _, err := b.client.CopyObject(timeoutCtx, input); err != nil {
		return nil, normalizeS3Error(err, srcKey)
	}
	return b.Stats(ctx, bucket, dstKey, dstVersion)
}

// Stats heads an object.
func (b *S3Backend) Stats(ctx context.Context, bucket, key, version string) (*Metadata, error) {
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	output, err := b.client.HeadObject(timeoutCtx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
	})
	if err != nil {
		return nil, normalizeS3Error(err, key)
	}
	meta := &Metadata{
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		CacheControl: aws.ToString(output.CacheControl),
		ETag:         trimETag(aws.ToString(output.ETag)),
		LastModified: aws.ToTime(output.LastModified),
	}
	return meta, nil
}

// List pages keys under a prefix.
func (b *S3Backend) List(ctx context.Context, bucket string, opts *ListOptions) (*ListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if opts != nil {
		if opts.Prefix != "" {
			input.Prefix = aws.String(opts.Prefix)
		}
		if opts.Delimiter != "" {
			input.Delimiter = aws.String(opts.Delimiter)
		}
		if opts.NextToken != "" {
			input.ContinuationToken = aws.String(opts.NextToken)
		}
		if opts.StartAfter != "" {
			input.StartAfter = aws.String(opts.StartAfter)
		}
		if opts.MaxKeys > 0 {
			input.MaxKeys = aws.Int32(opts.MaxKeys)
		}
	}
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	output, err := b.client.ListObjectsV2(timeoutCtx, input)
	if err != nil {
		return nil, normalizeS3Error(err, bucket)
	}
	result := &ListResult{}
	for _, item := range output.Contents {
		entry := ListEntry{
			Key:          aws.ToString(item.Key),
			Size:         aws.ToInt64(item.Size),
			ETag:         trimETag(aws.ToString(item.ETag)),
			LastModified: aws.ToTime(item.LastModified),
		}
		if opts != nil && opts.BeforeDate != nil && !entry.LastModified.Before(*opts.BeforeDate) {
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	for _, prefix := range output.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(prefix.Prefix))
	}
	if aws.ToBool(output.IsTruncated) {
		result.NextToken = aws.ToString(output.NextContinuationToken)
	}
	return result, nil
}

// CreateMultipartUpload opens a multipart upload.
func (b *S3Backend) CreateMultipartUpload(ctx context.Context, bucket, key, version, contentType, cacheControl string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if cacheControl != "" {
		input.CacheControl = aws.String(cacheControl)
	}
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	output, err := b.client.CreateMultipartUpload(timeoutCtx, input)
	if err != nil {
		return "", normalizeS3Error(err, key)
	}
	return aws.ToString(output.UploadId), nil
}

// UploadPart streams one part.
func (b *S3Backend) UploadPart(ctx context.Context, bucket, key, version, uploadId string, partNumber int32, body io.Reader, length int64) (*UploadedPart, error) {
	input := &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(b.WithVersion(key, version)),
		UploadId:   aws.String(uploadId),
		PartNumber: aws.Int32(partNumber),
		Body:       body,
	}
	if length > 0 {
		input.ContentLength = aws.Int64(length)
	}
	output, err := b.client.UploadPart(ctx, input)
	if err != nil {
		return nil, normalizeS3Error(err, key)
	}
	return &UploadedPart{
		PartNumber: partNumber,
		ETag:       trimETag(aws.ToString(output.ETag)),
		Size:       length,
	}, nil
}

// CompleteMultipartUpload stitches the parts in PartNumber order.
func (b *S3Backend) CompleteMultipartUpload(ctx context.Context, bucket, key, version, uploadId string, parts []UploadedPart) (*Metadata, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.PartNumber),
		})
	}
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	_, err := b.client.CompleteMultipartUpload(timeoutCtx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(b.WithVersion(key, version)),
		UploadId:        aws.String(uploadId),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, normalizeS3Error(err, key)
	}
	return b.Stats(ctx, bucket, key, version)
}

// AbortMultipartUpload drops an in-flight multipart upload; idempotent.
func (b *S3Backend) AbortMultipartUpload(ctx context.Context, bucket, key, version, uploadId string) error {
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	_, err := b.client.AbortMultipartUpload(timeoutCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(b.WithVersion(key, version)),
		UploadId: aws.String(uploadId),
	})
	if err != nil && !isNoSuchUpload(err) {
		return normalizeS3Error(err, key)
	}
	return nil
}

// UploadPartCopy copies a byte range of an existing object as one part.
func (b *S3Backend) UploadPartCopy(ctx context.Context, bucket, srcKey, srcVersion, dstKey, dstVersion, uploadId string, partNumber int32, srcRange *ByteRange) (*UploadedPart, error) {
	input := &s3.UploadPartCopyInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(b.WithVersion(dstKey, dstVersion)),
		UploadId:   aws.String(uploadId),
		PartNumber: aws.Int32(partNumber),
		CopySource: aws.String(bucket + "/" + b.WithVersion(srcKey, srcVersion)),
	}
	var size int64
	if srcRange != nil {
		input.CopySourceRange = aws.String(fmt.Sprintf("bytes=%d-%d", srcRange.First, srcRange.Last))
		size = srcRange.Last - srcRange.First + 1
	}
	output, err := b.client.UploadPartCopy(ctx, input)
	if err != nil {
		return nil, normalizeS3Error(err, srcKey)
	}
	part := &UploadedPart{PartNumber: partNumber, Size: size}
	if output.CopyPartResult != nil {
		part.ETag = trimETag(aws.ToString(output.CopyPartResult.ETag))
	}
	return part, nil
}

// PutIfAbsent writes a small object only when the key does not exist yet,
// failing with ResourceAlreadyExists otherwise. Used for lock objects.
func (b *S3Backend) PutIfAbsent(ctx context.Context, bucket, key string, body []byte) error {
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	_, err := b.client.PutObject(timeoutCtx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(body)),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if httpStatusOf(err) == http.StatusPreconditionFailed {
			return storageerrors.NewResourceAlreadyExists(key)
		}
		return normalizeS3Error(err, key)
	}
	return nil
}

// Put overwrites a small object unconditionally. Used by the lock holder's
// renewal timer.
func (b *S3Backend) Put(ctx context.Context, bucket, key string, body []byte) error {
	timeoutCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	_, err := b.client.PutObject(timeoutCtx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(string(body)),
	})
	if err != nil {
		return normalizeS3Error(err, key)
	}
	return nil
}

// TempPrivateAccessUrl presigns a short-lived GET for internal consumers.
func (b *S3Backend) TempPrivateAccessUrl(ctx context.Context, bucket, key, version string) (string, error) {
	request, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(b.WithVersion(key, version)),
	}, func(o *s3.PresignOptions) {
		o.Expires = time.Duration(config.GetS3PresignExpireSecond()) * time.Second
	})
	if err != nil {
		return "", normalizeS3Error(err, key)
	}
	return request.URL, nil
}

func metadataFromGet(output *s3.GetObjectOutput) Metadata {
	return Metadata{
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		CacheControl: aws.ToString(output.CacheControl),
		ETag:         trimETag(aws.ToString(output.ETag)),
		LastModified: aws.ToTime(output.LastModified),
	}
}

func trimETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}

func httpStatusOf(err error) int {
	var respErr *smithyhttp.ResponseError
	if stderrors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

func isNotModified(err error) bool {
	return httpStatusOf(err) == http.StatusNotModified
}

func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func isNoSuchUpload(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchUpload"
	}
	return false
}

// normalizeS3Error converts an SDK failure to the closed error set. Client
// failures (4xx) keep their upstream status; everything else becomes S3Error
// with status 500.
func normalizeS3Error(err error, resource string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return storageerrors.NewAborted(err.Error())
	}
	if isNoSuchKey(err) {
		return storageerrors.NewNoSuchKey(resource)
	}
	if isNoSuchUpload(err) {
		return storageerrors.NewNoSuchUpload(resource)
	}
	if status := httpStatusOf(err); status >= 400 && status < 500 {
		return storageerrors.NewS3Error(status, err.Error())
	}
	return storageerrors.NewS3Error(http.StatusInternalServerError, err.Error())
}
