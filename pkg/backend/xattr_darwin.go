//go:build darwin

/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

// Extended-attribute keys of the filesystem backend on macOS.
const (
	xattrContentType  = "com.apple.metadata.primus-store.content-type"
	xattrCacheControl = "com.apple.metadata.primus-store.cache-control"
	xattrETag         = "com.apple.metadata.primus-store.etag"
)
