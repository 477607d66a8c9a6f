/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import "strings"

// Version separators supported by WithVersion. SeparatorSlash nests the
// version under the key as a path element; SeparatorMarker appends a marker
// so the key stays a single path element.
const (
	SeparatorSlash  = "/"
	SeparatorMarker = "-$v-"
)

// WithVersion derives the physical key for a logical key and version token.
func WithVersion(key, version, separator string) string {
	if version == "" {
		return key
	}
	if separator == "" {
		separator = SeparatorSlash
	}
	return key + separator + version
}

// SplitVersion undoes WithVersion for keys produced with the marker
// separator; slash-separated keys are ambiguous and return ok=false.
func SplitVersion(physicalKey, separator string) (key, version string, ok bool) {
	if separator == SeparatorSlash || separator == "" {
		return "", "", false
	}
	idx := strings.LastIndex(physicalKey, separator)
	if idx < 0 {
		return "", "", false
	}
	return physicalKey[:idx], physicalKey[idx+len(separator):], true
}
