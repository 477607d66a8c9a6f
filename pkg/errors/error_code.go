/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

/*
   Error codes double as the S3-wire <Code> element, so they follow the
   S3 naming convention instead of numeric codes. The set is closed: every
   error that crosses a protocol boundary is one of the reasons below, and
   anything else is normalized to InternalError before rendering.
*/

// catalog lookups
const (
	NoSuchBucket   = "NoSuchBucket"
	NoSuchKey      = "NoSuchKey"
	NoSuchUpload   = "NoSuchUpload"
	TenantNotFound = "TenantNotFound"
)

// unique-violation on create
const (
	BucketAlreadyExists   = "BucketAlreadyExists"
	KeyAlreadyExists      = "KeyAlreadyExists"
	ResourceAlreadyExists = "ResourceAlreadyExists"
)

// input validation
const (
	InvalidBucketName      = "InvalidBucketName"
	InvalidKey             = "InvalidKey"
	InvalidMimeType        = "InvalidMimeType"
	InvalidRange           = "InvalidRange"
	InvalidParameter       = "InvalidParameter"
	MissingParameter       = "MissingParameter"
	MissingContentLength   = "MissingContentLength"
	InvalidChecksum        = "InvalidChecksum"
	MissingPart            = "MissingPart"
	InvalidUploadId        = "InvalidUploadId"
	InvalidUploadSignature = "InvalidUploadSignature"
)

// authentication and policy
const (
	InvalidJWT            = "InvalidJWT"
	InvalidSignature      = "InvalidSignature"
	ExpiredToken          = "ExpiredToken"
	SignatureDoesNotMatch = "SignatureDoesNotMatch"
	AccessDenied          = "AccessDenied"
)

// capacity and locking
const (
	EntityTooLarge = "EntityTooLarge"
	ResourceLocked = "ResourceLocked"
	LockTimeout    = "LockTimeout"
	SlowDown       = "SlowDown"
)

// shard allocation
const (
	NoCapacity         = "NoCapacity"
	NoActiveShard      = "NoActiveShard"
	ExpiredReservation = "ExpiredReservation"
)

// downstream and cancellation
const (
	DatabaseError       = "DatabaseError"
	DatabaseTimeout     = "DatabaseTimeout"
	InternalError       = "InternalError"
	S3Error             = "S3Error"
	Aborted             = "Aborted"
	AbortedTerminate    = "AbortedTerminate"
	UnableToEmptyBucket = "UnableToEmptyBucket"
)

// non-standard HTTP statuses used by the closed set
const (
	StatusClientClosedRequest = 499
	StatusDatabaseTimeout     = 544
)

var knownReasons = map[metav1.StatusReason]struct{}{
	NoSuchBucket: {}, NoSuchKey: {}, NoSuchUpload: {}, TenantNotFound: {},
	BucketAlreadyExists: {}, KeyAlreadyExists: {}, ResourceAlreadyExists: {},
	InvalidBucketName: {}, InvalidKey: {}, InvalidMimeType: {}, InvalidRange: {},
	InvalidParameter: {}, MissingParameter: {}, MissingContentLength: {},
	InvalidChecksum: {}, MissingPart: {}, InvalidUploadId: {}, InvalidUploadSignature: {},
	InvalidJWT: {}, InvalidSignature: {}, ExpiredToken: {}, SignatureDoesNotMatch: {},
	AccessDenied: {}, EntityTooLarge: {}, ResourceLocked: {}, LockTimeout: {},
	SlowDown: {}, NoCapacity: {}, NoActiveShard: {}, ExpiredReservation: {},
	DatabaseError: {}, DatabaseTimeout: {}, InternalError: {}, S3Error: {},
	Aborted: {}, AbortedTerminate: {}, UnableToEmptyBucket: {},
}

// IsStorageError returns true if the error carries one of the closed-set reasons.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := knownReasons[apierrors.ReasonForError(err)]
	return ok
}

func IsNoSuchBucket(err error) bool {
	return apierrors.ReasonForError(err) == NoSuchBucket
}

func IsNoSuchKey(err error) bool {
	return apierrors.ReasonForError(err) == NoSuchKey
}

func IsNoSuchUpload(err error) bool {
	return apierrors.ReasonForError(err) == NoSuchUpload
}

func IsTenantNotFound(err error) bool {
	return apierrors.ReasonForError(err) == TenantNotFound
}

// IsNotFound is true for any of the missing-entity reasons.
func IsNotFound(err error) bool {
	reason := apierrors.ReasonForError(err)
	if reason == NoSuchBucket || reason == NoSuchKey || reason == NoSuchUpload ||
		reason == TenantNotFound {
		return true
	}
	return apierrors.IsNotFound(err)
}

func IsKeyAlreadyExists(err error) bool {
	return apierrors.ReasonForError(err) == KeyAlreadyExists
}

func IsBucketAlreadyExists(err error) bool {
	return apierrors.ReasonForError(err) == BucketAlreadyExists
}

// IsAlreadyExists is true for any of the unique-violation reasons.
func IsAlreadyExists(err error) bool {
	reason := apierrors.ReasonForError(err)
	return reason == BucketAlreadyExists || reason == KeyAlreadyExists ||
		reason == ResourceAlreadyExists
}

func IsResourceLocked(err error) bool {
	return apierrors.ReasonForError(err) == ResourceLocked
}

func IsLockTimeout(err error) bool {
	return apierrors.ReasonForError(err) == LockTimeout
}

func IsEntityTooLarge(err error) bool {
	return apierrors.ReasonForError(err) == EntityTooLarge
}

func IsAccessDenied(err error) bool {
	return apierrors.ReasonForError(err) == AccessDenied
}

func IsDatabaseTimeout(err error) bool {
	return apierrors.ReasonForError(err) == DatabaseTimeout
}

func IsNoCapacity(err error) bool {
	return apierrors.ReasonForError(err) == NoCapacity
}

func IsNoActiveShard(err error) bool {
	return apierrors.ReasonForError(err) == NoActiveShard
}

func IsExpiredReservation(err error) bool {
	return apierrors.ReasonForError(err) == ExpiredReservation
}

func IsAborted(err error) bool {
	reason := apierrors.ReasonForError(err)
	return reason == Aborted || reason == AbortedTerminate
}

func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

// GetErrorCode returns the closed-set reason of the error, or "" for foreign errors.
func GetErrorCode(err error) string {
	if err == nil || !IsStorageError(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

// GetHttpCode returns the HTTP status the error renders with. Foreign errors
// render as 500.
func GetHttpCode(err error) int {
	var statusErr *apierrors.StatusError
	if stderrors.As(err, &statusErr) && statusErr.Status().Code != 0 {
		return int(statusErr.Status().Code)
	}
	return http.StatusInternalServerError
}

func NewNoSuchBucket(bucket string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NoSuchBucket,
		Details: &metav1.StatusDetails{
			Kind: "bucket",
			Name: bucket,
		},
		Message: fmt.Sprintf("Bucket not found: %s", bucket),
	}}
}

func NewNoSuchKey(key string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NoSuchKey,
		Details: &metav1.StatusDetails{
			Kind: "object",
			Name: key,
		},
		Message: "Object not found",
	}}
}

func NewNoSuchUpload(uploadId string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NoSuchUpload,
		Details: &metav1.StatusDetails{
			Kind: "upload",
			Name: uploadId,
		},
		Message: fmt.Sprintf("Upload not found: %s", uploadId),
	}}
}

func NewTenantNotFound(tenantId string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  TenantNotFound,
		Message: fmt.Sprintf("Tenant not found: %s", tenantId),
	}}
}

func NewBucketAlreadyExists(bucket string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  BucketAlreadyExists,
		Message: fmt.Sprintf("Bucket already exists: %s", bucket),
	}}
}

func NewKeyAlreadyExists(key string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  KeyAlreadyExists,
		Message: "The resource already exists",
	}}
}

func NewResourceAlreadyExists(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  ResourceAlreadyExists,
		Message: message,
	}}
}

func NewInvalidBucketName(bucket string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidBucketName,
		Message: fmt.Sprintf("Invalid bucket name: %s", bucket),
	}}
}

func NewInvalidKey(key string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidKey,
		Message: fmt.Sprintf("Invalid key: %s", key),
	}}
}

func NewInvalidMimeType(mimeType string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidMimeType,
		Message: fmt.Sprintf("mime type %s is not supported", mimeType),
	}}
}

func NewInvalidRange(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidRange,
		Message: fmt.Sprintf("Invalid range. %s", message),
	}}
}

func NewInvalidParameter(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidParameter,
		Message: message,
	}}
}

func NewMissingParameter(param string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  MissingParameter,
		Message: fmt.Sprintf("Missing required parameter: %s", param),
	}}
}

func NewMissingContentLength() *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  MissingContentLength,
		Message: "You must provide the Content-Length HTTP header",
	}}
}

func NewInvalidChecksum(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidChecksum,
		Message: message,
	}}
}

func NewMissingPart(partNumber int32, uploadId string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  MissingPart,
		Message: fmt.Sprintf("Part %d of upload %s is missing", partNumber, uploadId),
	}}
}

func NewInvalidUploadId(uploadId string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidUploadId,
		Message: fmt.Sprintf("Invalid upload id: %s", uploadId),
	}}
}

func NewInvalidUploadSignature(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidUploadSignature,
		Message: message,
	}}
}

func NewInvalidJWT(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidJWT,
		Message: fmt.Sprintf("Invalid JWT. %s", message),
	}}
}

func NewInvalidSignature(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  InvalidSignature,
		Message: message,
	}}
}

func NewExpiredToken(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  ExpiredToken,
		Message: message,
	}}
}

func NewSignatureDoesNotMatch(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusForbidden,
		Reason:  SignatureDoesNotMatch,
		Message: message,
	}}
}

func NewAccessDenied(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusForbidden,
		Reason:  AccessDenied,
		Message: fmt.Sprintf("Access denied. %s", message),
	}}
}

func NewEntityTooLarge(maxSize int64) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusRequestEntityTooLarge,
		Reason:  EntityTooLarge,
		Message: fmt.Sprintf("The object exceeded the maximum allowed size of %d bytes", maxSize),
	}}
}

func NewResourceLocked(id string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusLocked,
		Reason: ResourceLocked,
		Details: &metav1.StatusDetails{
			Kind: "lock",
			Name: id,
		},
		Message: fmt.Sprintf("The resource %s is locked by another request", id),
	}}
}

func NewLockTimeout(id string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusServiceUnavailable,
		Reason:  LockTimeout,
		Message: fmt.Sprintf("Timed out acquiring lock %s", id),
	}}
}

func NewSlowDown(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusTooManyRequests,
		Reason:  SlowDown,
		Message: message,
	}}
}

func NewNoCapacity(kind string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusServiceUnavailable,
		Reason:  NoCapacity,
		Message: fmt.Sprintf("No shard of kind %s has free capacity", kind),
	}}
}

func NewNoActiveShard(kind string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusServiceUnavailable,
		Reason:  NoActiveShard,
		Message: fmt.Sprintf("No active shard exists for kind %s", kind),
	}}
}

func NewExpiredReservation(reservationId string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  ExpiredReservation,
		Message: fmt.Sprintf("Reservation %s has expired or no longer matches its slot", reservationId),
	}}
}

func NewDatabaseError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  DatabaseError,
		Message: fmt.Sprintf("Database error. %s", message),
	}}
}

func NewDatabaseTimeout(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    StatusDatabaseTimeout,
		Reason:  DatabaseTimeout,
		Message: fmt.Sprintf("Database timeout. %s", message),
	}}
}

func NewInternalError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  InternalError,
		Message: fmt.Sprintf("Internal error. %s", message),
	}}
}

func NewS3Error(httpCode int, message string) *apierrors.StatusError {
	// upstream 4xx keeps its status, everything else is a 500
	if httpCode < http.StatusBadRequest || httpCode >= http.StatusInternalServerError {
		httpCode = http.StatusInternalServerError
	}
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    int32(httpCode),
		Reason:  S3Error,
		Message: message,
	}}
}

func NewAborted(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    StatusClientClosedRequest,
		Reason:  Aborted,
		Message: message,
	}}
}

func NewAbortedTerminate(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  AbortedTerminate,
		Message: message,
	}}
}

func NewUnableToEmptyBucket(bucket string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  UnableToEmptyBucket,
		Message: fmt.Sprintf("Unable to empty the bucket %s: too many objects", bucket),
	}}
}
