//go:build linux

/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

// Extended-attribute keys of the filesystem backend. The etag lives under
// its own key, never sharing the content-type key.
const (
	xattrContentType  = "user.primus-store.content-type"
	xattrCacheControl = "user.primus-store.cache-control"
	xattrETag         = "user.primus-store.etag"
)
