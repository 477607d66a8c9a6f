/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"context"
	"fmt"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// Backend types selectable through configuration.
const (
	TypeFile = "file"
	TypeS3   = "s3"
)

// New selects and builds the configured backend variant at startup.
func New(ctx context.Context) (Backend, error) {
	switch backendType := config.GetStorageBackendType(); backendType {
	case TypeS3:
		return NewS3Backend(ctx, NewS3ConfigFromEnv())
	case TypeFile:
		return NewFSBackend()
	default:
		return nil, fmt.Errorf("unknown storage backend type %q", backendType)
	}
}
