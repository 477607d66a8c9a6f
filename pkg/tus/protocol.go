/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package tus implements the resumable upload protocol over the blob
// backend and the catalog. Upload state lives in the uploads table, so a
// client can resume against any process; writers serialize through the
// distributed object lock.
package tus

import (
	"encoding/base64"
	"strings"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
)

// Protocol version and headers.
const (
	Version = "1.0.0"

	HeaderResumable   = "Tus-Resumable"
	HeaderVersion     = "Tus-Version"
	HeaderExtension   = "Tus-Extension"
	HeaderMaxSize     = "Tus-Max-Size"
	HeaderLength      = "Upload-Length"
	HeaderDeferLength = "Upload-Defer-Length"
	HeaderOffset      = "Upload-Offset"
	HeaderMetadata    = "Upload-Metadata"
	HeaderExpires     = "Upload-Expires"

	// Extensions implemented by the engine.
	Extensions = "creation,creation-defer-length,expiration,termination"
)

// Metadata keys recognized from Upload-Metadata.
const (
	MetaBucketName   = "bucketName"
	MetaObjectName   = "objectName"
	MetaContentType  = "contentType"
	MetaCacheControl = "cacheControl"
)

// UploadId identifies one resumable upload. Its serialized form is the
// storage key shape tenant/bucket/key followed by the version separator
// and the version token.
type UploadId struct {
	TenantId string
	Bucket   string
	Key      string
	Version  string
}

// String serializes the id.
func (id UploadId) String() string {
	return id.TenantId + "/" + id.Bucket + "/" + id.Key +
		config.GetFileVersionSeparator() + id.Version
}

// ParseUploadId parses a serialized upload id. Parsing is strict: every
// component must be present and the bucket and key must pass the same
// validation as the REST paths.
func ParseUploadId(raw string) (*UploadId, error) {
	separator := config.GetFileVersionSeparator()
	var base, version string
	if separator == "/" {
		// with the slash separator the version is the last path segment
		cut := strings.LastIndex(raw, "/")
		if cut < 0 {
			return nil, storageerrors.NewInvalidUploadId(raw)
		}
		base, version = raw[:cut], raw[cut+1:]
	} else {
		var found bool
		base, version, found = cutLast(raw, separator)
		if !found {
			return nil, storageerrors.NewInvalidUploadId(raw)
		}
	}
	if version == "" {
		return nil, storageerrors.NewInvalidUploadId(raw)
	}
	parts := strings.SplitN(base, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, storageerrors.NewInvalidUploadId(raw)
	}
	id := &UploadId{TenantId: parts[0], Bucket: parts[1], Key: parts[2], Version: version}
	if err := objects.ValidateBucketName(id.Bucket); err != nil {
		return nil, storageerrors.NewInvalidUploadId(raw)
	}
	if err := objects.ValidateObjectKey(id.Key); err != nil {
		return nil, storageerrors.NewInvalidUploadId(raw)
	}
	return id, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// ParseMetadata decodes the Upload-Metadata header: comma-separated pairs
// of key and base64 value, value optional.
func ParseMetadata(header string) (map[string]string, error) {
	metadata := map[string]string{}
	if header == "" {
		return metadata, nil
	}
	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, encoded, _ := strings.Cut(pair, " ")
		if key == "" {
			return nil, storageerrors.NewInvalidParameter("malformed Upload-Metadata")
		}
		value := ""
		if encoded != "" {
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, storageerrors.NewInvalidParameter("malformed Upload-Metadata value for " + key)
			}
			value = string(decoded)
		}
		metadata[key] = value
	}
	return metadata, nil
}

// EncodeMetadata renders the Upload-Metadata header.
func EncodeMetadata(metadata map[string]string) string {
	var pairs []string
	for key, value := range metadata {
		if value == "" {
			pairs = append(pairs, key)
			continue
		}
		pairs = append(pairs, key+" "+base64.StdEncoding.EncodeToString([]byte(value)))
	}
	return strings.Join(pairs, ",")
}
