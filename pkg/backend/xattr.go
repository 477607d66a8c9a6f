//go:build linux || darwin

/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"golang.org/x/sys/unix"
)

func setXattr(path, name, value string) error {
	if value == "" {
		return nil
	}
	return unix.Setxattr(path, name, []byte(value), 0)
}

func getXattr(path, name string) string {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil || size <= 0 {
		return ""
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil || n <= 0 {
		return ""
	}
	return string(buf[:n])
}
