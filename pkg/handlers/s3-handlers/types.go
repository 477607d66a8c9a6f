/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package s3_handlers serves the S3-wire surface: SigV4-authenticated
// bucket, object and multipart operations rendered as S3 XML documents.
package s3_handlers

import (
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers/middleware"
)

const xmlContentType = "application/xml"

// ErrorDocument is the S3 <Error> response.
type ErrorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestId string   `xml:"RequestId"`
}

// Owner is the canonical owner element.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

// BucketEntry is one bucket of a ListBuckets response.
type BucketEntry struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

// ListAllMyBucketsResult is the ListBuckets response document.
type ListAllMyBucketsResult struct {
	XMLName xml.Name      `xml:"ListAllMyBucketsResult"`
	Owner   Owner         `xml:"Owner"`
	Buckets []BucketEntry `xml:"Buckets>Bucket"`
}

// ObjectEntry is one key of a bucket listing.
type ObjectEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

// CommonPrefix folds keys sharing a delimiter-bounded prefix.
type CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}

// ListBucketResult is the ListObjects / ListObjectsV2 response document.
type ListBucketResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	Delimiter             string         `xml:"Delimiter,omitempty"`
	Marker                string         `xml:"Marker,omitempty"`
	NextMarker            string         `xml:"NextMarker,omitempty"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	StartAfter            string         `xml:"StartAfter,omitempty"`
	KeyCount              int            `xml:"KeyCount"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	Contents              []ObjectEntry  `xml:"Contents"`
	CommonPrefixes        []CommonPrefix `xml:"CommonPrefixes"`
}

// InitiateMultipartUploadResult answers CreateMultipartUpload.
type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadId string   `xml:"UploadId"`
}

// CompletedPart is one part of a CompleteMultipartUpload request.
type CompletedPart struct {
	PartNumber int32  `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipartUpload is the CompleteMultipartUpload request body.
type CompleteMultipartUpload struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []CompletedPart `xml:"Part"`
}

// CompleteMultipartUploadResult answers CompleteMultipartUpload.
type CompleteMultipartUploadResult struct {
	XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
	Bucket  string   `xml:"Bucket"`
	Key     string   `xml:"Key"`
	ETag    string   `xml:"ETag"`
}

// CopyObjectResult answers CopyObject and UploadPartCopy.
type CopyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	ETag         string   `xml:"ETag"`
	LastModified string   `xml:"LastModified"`
}

// PartEntry is one part of a ListParts response.
type PartEntry struct {
	PartNumber int32  `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
	Size       int64  `xml:"Size"`
}

// ListPartsResult is the ListParts response document.
type ListPartsResult struct {
	XMLName     xml.Name    `xml:"ListPartsResult"`
	Bucket      string      `xml:"Bucket"`
	Key         string      `xml:"Key"`
	UploadId    string      `xml:"UploadId"`
	IsTruncated bool        `xml:"IsTruncated"`
	Parts       []PartEntry `xml:"Part"`
}

// UploadEntry is one in-flight upload of a ListMultipartUploads response.
type UploadEntry struct {
	Key       string `xml:"Key"`
	UploadId  string `xml:"UploadId"`
	Initiated string `xml:"Initiated"`
}

// ListMultipartUploadsResult is the ListMultipartUploads response document.
type ListMultipartUploadsResult struct {
	XMLName     xml.Name      `xml:"ListMultipartUploadsResult"`
	Bucket      string        `xml:"Bucket"`
	KeyMarker   string        `xml:"KeyMarker,omitempty"`
	IsTruncated bool          `xml:"IsTruncated"`
	Uploads     []UploadEntry `xml:"Upload"`
}

// Delete is the DeleteObjects request body.
type Delete struct {
	XMLName xml.Name           `xml:"Delete"`
	Objects []ObjectIdentifier `xml:"Object"`
	Quiet   bool               `xml:"Quiet"`
}

// ObjectIdentifier names one key of a DeleteObjects request.
type ObjectIdentifier struct {
	Key string `xml:"Key"`
}

// DeletedEntry is one key of a DeleteResult.
type DeletedEntry struct {
	Key string `xml:"Key"`
}

// DeleteError is one failed key of a DeleteResult.
type DeleteError struct {
	Key     string `xml:"Key"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// DeleteResult is the DeleteObjects response document.
type DeleteResult struct {
	XMLName xml.Name       `xml:"DeleteResult"`
	Deleted []DeletedEntry `xml:"Deleted"`
	Errors  []DeleteError  `xml:"Error"`
}

// abortS3 renders an error as the S3 <Error> document with the request id.
func abortS3(c *gin.Context, err error) {
	_ = c.Error(err)
	code := storageerrors.GetErrorCode(err)
	httpCode := storageerrors.GetHttpCode(err)
	if code == "" {
		code = storageerrors.InternalError
		httpCode = http.StatusInternalServerError
	}
	requestId := middleware.GetRequestId(c)
	c.Header("x-amz-request-id", requestId)
	c.AbortWithStatus(httpCode)
	writeXML(c, httpCode, &ErrorDocument{
		Code:      code,
		Message:   err.Error(),
		Resource:  c.Request.URL.Path,
		RequestId: requestId,
	})
}

func writeXML(c *gin.Context, code int, doc interface{}) {
	c.Writer.Header().Set("Content-Type", xmlContentType)
	c.Writer.WriteHeader(code)
	_, _ = c.Writer.WriteString(xml.Header)
	encoded, err := xml.Marshal(doc)
	if err != nil {
		return
	}
	_, _ = c.Writer.Write(encoded)
}
