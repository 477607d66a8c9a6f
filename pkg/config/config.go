/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key, value string) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path. The
// environment variables named in the deployment contract override their
// file counterparts.
func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	_ = viper.BindEnv(authEncryptionKey, "AUTH_ENCRYPTION_KEY")
	_ = viper.BindEnv(storageBackendType, "STORAGE_BACKEND_TYPE")
	_ = viper.BindEnv(clusterDiscovery, "CLUSTER_DISCOVERY")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getInt64(key string, defaultValue int64) int64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt64(key)
}

func getFloat(key string, defaultValue float64) float64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetFloat64(key)
}

func getStrings(key string) []string {
	val := viper.GetString(key)
	return removeBlank(strings.Split(val, ","))
}

func removeBlank(slice []string) []string {
	var result []string
	for _, val := range slice {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}

func getFromFile(configPath, item string) string {
	path := getString(configPath, "")
	data, err := os.ReadFile(filepath.Join(path, item))
	if err != nil {
		return ""
	}
	key := string(data)
	return strings.TrimRight(key, "\r\n")
}

// GetServerPort returns the API server port.
func GetServerPort() int {
	return getInt(serverPort, 0)
}

// GetServerShutdownTimeoutSecond returns the graceful shutdown budget.
func GetServerShutdownTimeoutSecond() int {
	return getInt(serverShutdownTimeoutSecond, 30)
}

// GetRequestIdHeader returns the header carrying the caller request id.
func GetRequestIdHeader() string {
	return getString(serverRequestIdHeader, "X-Request-Id")
}

// IsTracingEnable returns whether OpenTelemetry tracing is enabled.
func IsTracingEnable() bool {
	return getBool(tracingEnable, false)
}

// GetTracingMode returns the tracing mode: "all" or "error_only".
func GetTracingMode() string {
	return getString(tracingMode, "error_only")
}

// GetTracingSamplingRatio returns the sampling ratio for trace export (0.0 to 1.0).
func GetTracingSamplingRatio() float64 {
	return getFloat(tracingSamplingRatio, 1.0)
}

// GetTracingOtlpEndpoint returns the OTLP exporter endpoint URL.
func GetTracingOtlpEndpoint() string {
	return getString(tracingOtlpEndpoint, "")
}

// IsCryptoEnable returns whether encryption of tenant records is enabled.
func IsCryptoEnable() bool {
	return getBool(cryptoEnable, true)
}

// GetCryptoKey returns the encryption key for tenant records. The
// AUTH_ENCRYPTION_KEY environment variable wins over the mounted secret.
func GetCryptoKey() string {
	if key := getString(authEncryptionKey, ""); len(key) > 0 {
		return key
	}
	return getFromFile(cryptoSecretPath, "key")
}

// GetDBHost returns the registry database host address.
func GetDBHost() string {
	return getFromFile(dbSecretPath, "host")
}

// GetDBPort returns the registry database port number.
func GetDBPort() int {
	data := getFromFile(dbSecretPath, "port")
	n, err := strconv.Atoi(data)
	if err != nil {
		return 0
	}
	return n
}

// GetDBName returns the registry database name.
func GetDBName() string {
	return getFromFile(dbSecretPath, "dbname")
}

// GetDBUser returns the registry database username.
func GetDBUser() string {
	return getFromFile(dbSecretPath, "user")
}

// GetDBPassword returns the registry database password.
func GetDBPassword() string {
	return getFromFile(dbSecretPath, "password")
}

// GetDBSslMode returns the database SSL mode.
func GetDBSslMode() string {
	return getString(dbSslMode, "require")
}

// GetDBMaxOpenConns returns the maximum number of open database connections.
func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 100)
}

// GetDBMaxIdleConns returns the maximum number of idle database connections.
func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 10)
}

// GetDBMaxLifetimeSecond returns the maximum lifetime of database connections in seconds.
func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetime, 600)
}

// GetDBMaxIdleTimeSecond returns the maximum idle time of database connections in seconds.
func GetDBMaxIdleTimeSecond() int {
	return getInt(dbMaxIdleTimeSecond, 60)
}

// GetDBConnectTimeoutSecond returns the database connection timeout in seconds.
func GetDBConnectTimeoutSecond() int {
	return getInt(dbConnectTimeoutSecond, 10)
}

// GetDBRequestTimeoutSecond returns the database request timeout in seconds.
func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeoutSecond, 20)
}

// GetJwtSecret returns the fallback JWT secret used when a tenant carries none.
func GetJwtSecret() string {
	if secret := getString(authJwtSecret, ""); len(secret) > 0 {
		return secret
	}
	return getFromFile(authSecretPath, "jwt_secret")
}

// GetJwtAlgorithm returns the JWT signing algorithm for tenant tokens.
func GetJwtAlgorithm() string {
	return getString(authJwtAlgorithm, "HS256")
}

// GetAdminApiKeys returns the API keys accepted on the admin surface.
func GetAdminApiKeys() []string {
	if keys := getStrings(authAdminApiKeys); len(keys) > 0 {
		return keys
	}
	return removeBlank(strings.Split(getFromFile(authSecretPath, "apikeys"), ","))
}

// GetUrlSigningExpireLimitSecond caps the requested expiry of signed URLs.
func GetUrlSigningExpireLimitSecond() int {
	return getInt(authUrlSigningExpireLimit, 7*24*3600)
}

// GetTenantDefaultId returns the tenant served when a request carries no
// tenant header; single-tenant deployments never set the header.
func GetTenantDefaultId() string {
	return getString(tenantDefaultId, "storage")
}

// GetTenantDefaultMaxConns returns the per-tenant connection pool cap used
// when the tenant record carries none.
func GetTenantDefaultMaxConns() int {
	return getInt(tenantDefaultMaxConns, 20)
}

// GetTenantPoolCacheSize returns how many tenant pools the process keeps open.
func GetTenantPoolCacheSize() int {
	return getInt(tenantPoolCacheSize, 200)
}

// GetTenantStatementTimeoutMs returns the default statement timeout applied
// to tenant transactions.
func GetTenantStatementTimeoutMs() int {
	return getInt(tenantStatementTimeoutMs, 20000)
}

// GetStorageBackendType returns the configured blob backend: "file" or "s3".
func GetStorageBackendType() string {
	return getString(storageBackendType, "file")
}

// GetStorageBucket returns the global backend bucket all tenants share.
func GetStorageBucket() string {
	return getString(storageBucket, "")
}

// GetStorageMaxFileSize returns the global upload size cap in bytes.
func GetStorageMaxFileSize() int64 {
	return getInt64(storageMaxFileSize, 50*1024*1024*1024)
}

// GetStorageEmptyBucketMax returns the object-count cap above which
// bucket-empty refuses to run.
func GetStorageEmptyBucketMax() int {
	return getInt(storageEmptyBucketMax, 200000)
}

// GetStorageCopyMaxPartSize returns the segment size for multipart copies.
func GetStorageCopyMaxPartSize() int64 {
	return getInt64(storageCopyMaxPartSize, 5*1024*1024*1024)
}

// GetStorageCopyConcurrent returns how many part copies run concurrently.
func GetStorageCopyConcurrent() int {
	return getInt(storageCopyConcurrent, 5)
}

// GetFileRootPath returns the root directory of the filesystem backend.
func GetFileRootPath() string {
	return getString(storageFileRootPath, "")
}

// GetFileVersionSeparator returns the key/version separator: "/" or "-$v-".
func GetFileVersionSeparator() string {
	return getString(storageFileVersionSeparator, "/")
}

// GetFileEtagAlgorithm returns how the filesystem backend derives ETags:
// "md5" or "mtime".
func GetFileEtagAlgorithm() string {
	return getString(storageFileEtagAlgorithm, "md5")
}

// GetS3AccessKey returns the blob backend access key.
func GetS3AccessKey() string {
	return getFromFile(s3SecretPath, "access_key")
}

// GetS3SecretKey returns the blob backend secret key.
func GetS3SecretKey() string {
	return getFromFile(s3SecretPath, "secret_key")
}

// GetS3Endpoint returns the blob backend endpoint URL.
func GetS3Endpoint() string {
	return getFromFile(s3SecretPath, "endpoint")
}

// GetS3Region returns the blob backend region.
func GetS3Region() string {
	return getString(s3Region, "us-east-1")
}

// IsS3ForcePathStyle returns whether path-style addressing is forced.
func IsS3ForcePathStyle() bool {
	return getBool(s3ForcePathStyle, true)
}

// GetS3MaxSockets returns the socket cap of the shared S3 transport.
func GetS3MaxSockets() int {
	return getInt(s3MaxSockets, 200)
}

// GetS3RequestTimeoutSecond returns the per-request timeout against the backend.
func GetS3RequestTimeoutSecond() int {
	return getInt(s3RequestTimeoutSecond, 180)
}

// GetS3PresignExpireSecond returns the lifetime of internal presigned URLs.
func GetS3PresignExpireSecond() int {
	return getInt(s3PresignExpireSecond, 600)
}

// IsS3InsecureSkipTlsVerify returns whether backend TLS verification is skipped.
func IsS3InsecureSkipTlsVerify() bool {
	return getBool(s3InsecureSkipTlsVerify, false)
}

// GetLockVariant returns the distributed lock implementation: "db" or "s3".
func GetLockVariant() string {
	return getString(lockVariant, "db")
}

// GetLockAcquireTimeoutSecond returns the overall lock acquisition budget.
func GetLockAcquireTimeoutSecond() int {
	return getInt(lockAcquireTimeoutSecond, 5)
}

// GetLockRetryIntervalMs returns the sleep between lock acquisition attempts.
func GetLockRetryIntervalMs() int {
	return getInt(lockRetryIntervalMs, 500)
}

// GetLockS3KeyPrefix returns the key prefix of lock objects on the backend.
func GetLockS3KeyPrefix() string {
	return getString(lockS3KeyPrefix, "tus-locks/")
}

// GetLockTTLSecond returns the lifetime of an object-store lock before renewal.
func GetLockTTLSecond() int {
	return getInt(lockTTLSecond, 30)
}

// GetLockRenewIntervalSecond returns how often a held lock is renewed.
func GetLockRenewIntervalSecond() int {
	return getInt(lockRenewIntervalSecond, 10)
}

// GetLockZombieSweepIntervalSecond returns how often expired lock objects are swept.
func GetLockZombieSweepIntervalSecond() int {
	return getInt(lockZombieSweepIntervalSecond, 300)
}

// GetTusExpirySecond returns how long a resumable upload stays resumable.
func GetTusExpirySecond() int {
	return getInt(tusExpirySecond, 24*3600)
}

// GetTusPartSize returns the part size the TUS engine forwards to the backend.
func GetTusPartSize() int64 {
	return getInt64(tusPartSize, 50*1024*1024)
}

// GetTusSweepIntervalSecond returns how often expired uploads are reaped.
func GetTusSweepIntervalSecond() int {
	return getInt(tusSweepIntervalSecond, 3600)
}

// GetSigv4MaxChunkSize returns the maximum accepted streaming chunk size.
func GetSigv4MaxChunkSize() int64 {
	return getInt64(sigv4MaxChunkSize, 8*1024*1024)
}

// GetScannerPingIntervalSecond returns how often the orphan-scan stream
// interleaves keep-alive pings between data events.
func GetScannerPingIntervalSecond() int {
	return getInt(scannerPingIntervalSecond, 5)
}

// GetShardDefaultCapacity returns the slot capacity of newly created shards.
// Zero means the caller must supply an explicit capacity.
func GetShardDefaultCapacity() int {
	return getInt(shardDefaultCapacity, 0)
}

// GetShardDefaultLeaseMs returns the reservation lease used when the caller
// passes none.
func GetShardDefaultLeaseMs() int {
	return getInt(shardDefaultLeaseMs, 30000)
}

// GetShardReserveRetryLimit bounds the re-drive loop around contended reserves.
func GetShardReserveRetryLimit() int {
	return getInt(shardReserveRetryLimit, 3)
}

// GetShardExpireSweepIntervalSecond returns how often expired leases are swept.
func GetShardExpireSweepIntervalSecond() int {
	return getInt(shardExpireSweepIntervalSecond, 60)
}

// GetQueueWorkerConcurrent returns the worker pool size of the job queue.
func GetQueueWorkerConcurrent() int {
	return getInt(queueWorkerConcurrent, 5)
}

// GetQueueFetchIntervalMs returns the poll interval of idle queue workers.
func GetQueueFetchIntervalMs() int {
	return getInt(queueFetchIntervalMs, 1000)
}

// GetQueueRetryLimit returns how many times a failed job is retried.
func GetQueueRetryLimit() int {
	return getInt(queueRetryLimit, 3)
}

// GetQueueArchiveAfterSecond returns the retention of completed jobs.
func GetQueueArchiveAfterSecond() int {
	return getInt(queueArchiveAfterSecond, 24*3600)
}

// GetQueueSweepIntervalSecond returns how often queue maintenance runs.
func GetQueueSweepIntervalSecond() int {
	return getInt(queueSweepIntervalSecond, 300)
}

// GetMigrationsWorkerConcurrent bounds concurrent per-tenant migrations.
func GetMigrationsWorkerConcurrent() int {
	return getInt(migrationsWorkerConcurrent, 5)
}

// GetMigrationsFailedPageSize returns the page size of the failed-cursor endpoint.
func GetMigrationsFailedPageSize() int {
	return getInt(migrationsFailedPageSize, 50)
}

// GetClusterDiscovery returns the cluster-size discovery mode: none, ECS or EKS.
func GetClusterDiscovery() string {
	return getString(clusterDiscovery, "none")
}

// GetClusterSize returns the statically configured cluster size.
func GetClusterSize() int {
	return getInt(clusterSize, 1)
}

// GetClusterWatchIntervalSecond returns the refresh interval of the cluster watcher.
func GetClusterWatchIntervalSecond() int {
	return getInt(clusterWatchIntervalSecond, 60)
}
