/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "file", GetStorageBackendType())
	assert.Equal(t, "/", GetFileVersionSeparator())
	assert.Equal(t, "md5", GetFileEtagAlgorithm())
	assert.Equal(t, 5, GetLockAcquireTimeoutSecond())
	assert.Equal(t, 500, GetLockRetryIntervalMs())
	assert.Equal(t, "tus-locks/", GetLockS3KeyPrefix())
	assert.Equal(t, 30, GetLockTTLSecond())
	assert.Equal(t, 10, GetLockRenewIntervalSecond())
	assert.Equal(t, int64(8*1024*1024), GetSigv4MaxChunkSize())
	assert.Equal(t, int64(5*1024*1024*1024), GetStorageCopyMaxPartSize())
	assert.Equal(t, 5, GetStorageCopyConcurrent())
	assert.Equal(t, 0, GetShardDefaultCapacity())
	assert.Equal(t, "none", GetClusterDiscovery())
	assert.Equal(t, 1, GetClusterSize())
	assert.Equal(t, "HS256", GetJwtAlgorithm())
}

func TestSetValueOverridesDefault(t *testing.T) {
	SetValue(storageBackendType, "s3")
	defer SetValue(storageBackendType, "file")
	assert.Equal(t, "s3", GetStorageBackendType())

	SetValue(lockVariant, "s3")
	defer SetValue(lockVariant, "db")
	assert.Equal(t, "s3", GetLockVariant())
}

func TestGetFromFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "host"), []byte("db.internal\n"), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "port"), []byte("5432"), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "user"), []byte("primus\r\n"), 0o600))
	SetValue(dbSecretPath, dir)

	assert.Equal(t, "db.internal", GetDBHost())
	assert.Equal(t, 5432, GetDBPort())
	assert.Equal(t, "primus", GetDBUser())
	assert.Equal(t, "", GetDBPassword())
}

func TestGetAdminApiKeys(t *testing.T) {
	SetValue(authAdminApiKeys, "key-a, key-b,,key-c")
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, GetAdminApiKeys())
}

func TestCryptoKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "key"), []byte("file-key"), 0o600))
	SetValue(cryptoSecretPath, dir)
	assert.Equal(t, "file-key", GetCryptoKey())

	SetValue(authEncryptionKey, "env-key")
	assert.Equal(t, "env-key", GetCryptoKey())
	SetValue(authEncryptionKey, "")
}
