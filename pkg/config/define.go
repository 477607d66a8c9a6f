/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// server
	serverPrefix                = "server."
	serverPort                  = serverPrefix + "port"
	serverShutdownTimeoutSecond = serverPrefix + "shutdown_timeout_second"
	serverRequestIdHeader       = serverPrefix + "request_id_header"

	// tracing
	tracingPrefix        = "tracing."
	tracingEnable        = tracingPrefix + "enable"
	tracingMode          = tracingPrefix + "mode"
	tracingSamplingRatio = tracingPrefix + "sampling_ratio"
	tracingOtlpEndpoint  = tracingPrefix + "otlp_endpoint"

	// crypto
	cryptoPrefix     = "crypto."
	cryptoEnable     = cryptoPrefix + "enable"
	cryptoSecretPath = cryptoPrefix + "secret_path"

	// db: the admin registry database (tenants, shards, job queue)
	dbPrefix               = "db."
	dbSecretPath           = dbPrefix + "secret_path"
	dbSslMode              = dbPrefix + "ssl_mode"
	dbMaxOpenConns         = dbPrefix + "max_open_conns"
	dbMaxIdleConns         = dbPrefix + "max_idle_conns"
	dbMaxLifetime          = dbPrefix + "max_life_time_second"
	dbMaxIdleTimeSecond    = dbPrefix + "max_idle_time_second"
	dbConnectTimeoutSecond = dbPrefix + "connect_timeout_second"
	dbRequestTimeoutSecond = dbPrefix + "request_timeout_second"

	// auth
	authPrefix                = "auth."
	authSecretPath            = authPrefix + "secret_path"
	authEncryptionKey         = authPrefix + "encryption_key"
	authJwtSecret             = authPrefix + "jwt_secret"
	authJwtAlgorithm          = authPrefix + "jwt_algorithm"
	authAdminApiKeys          = authPrefix + "admin_api_keys"
	authUrlSigningExpireLimit = authPrefix + "url_signing_expire_limit_second"

	// tenant
	tenantPrefix             = "tenant."
	tenantDefaultId          = tenantPrefix + "default_id"
	tenantDefaultMaxConns    = tenantPrefix + "default_max_conns"
	tenantPoolCacheSize      = tenantPrefix + "pool_cache_size"
	tenantStatementTimeoutMs = tenantPrefix + "statement_timeout_ms"

	// storage
	storagePrefix               = "storage."
	storageBackendType          = storagePrefix + "backend_type"
	storageBucket               = storagePrefix + "bucket"
	storageMaxFileSize          = storagePrefix + "max_file_size"
	storageEmptyBucketMax       = storagePrefix + "empty_bucket_max"
	storageCopyMaxPartSize      = storagePrefix + "copy_max_part_size"
	storageCopyConcurrent       = storagePrefix + "copy_concurrent"
	storageFilePrefix           = storagePrefix + "file."
	storageFileRootPath         = storageFilePrefix + "root_path"
	storageFileVersionSeparator = storageFilePrefix + "version_separator"
	storageFileEtagAlgorithm    = storageFilePrefix + "etag_algorithm"

	// s3: blob backend credentials and transport
	s3Prefix                = "s3."
	s3SecretPath            = s3Prefix + "secret_path"
	s3Region                = s3Prefix + "region"
	s3ForcePathStyle        = s3Prefix + "force_path_style"
	s3MaxSockets            = s3Prefix + "max_sockets"
	s3RequestTimeoutSecond  = s3Prefix + "request_timeout_second"
	s3PresignExpireSecond   = s3Prefix + "presign_expire_second"
	s3InsecureSkipTlsVerify = s3Prefix + "insecure_skip_tls_verify"

	// lock
	lockPrefix                    = "lock."
	lockVariant                   = lockPrefix + "variant"
	lockAcquireTimeoutSecond      = lockPrefix + "acquire_timeout_second"
	lockRetryIntervalMs           = lockPrefix + "retry_interval_ms"
	lockS3KeyPrefix               = lockPrefix + "s3_key_prefix"
	lockTTLSecond                 = lockPrefix + "ttl_second"
	lockRenewIntervalSecond       = lockPrefix + "renew_interval_second"
	lockZombieSweepIntervalSecond = lockPrefix + "zombie_sweep_interval_second"

	// tus
	tusPrefix              = "tus."
	tusExpirySecond        = tusPrefix + "expiry_second"
	tusPartSize            = tusPrefix + "part_size"
	tusSweepIntervalSecond = tusPrefix + "sweep_interval_second"

	// sigv4
	sigv4Prefix       = "sigv4."
	sigv4MaxChunkSize = sigv4Prefix + "max_chunk_size"

	// scanner
	scannerPrefix             = "scanner."
	scannerPingIntervalSecond = scannerPrefix + "ping_interval_second"

	// shard
	shardPrefix                    = "shard."
	shardDefaultCapacity           = shardPrefix + "default_capacity"
	shardDefaultLeaseMs            = shardPrefix + "default_lease_ms"
	shardReserveRetryLimit         = shardPrefix + "reserve_retry_limit"
	shardExpireSweepIntervalSecond = shardPrefix + "expire_sweep_interval_second"

	// queue
	queuePrefix              = "queue."
	queueWorkerConcurrent    = queuePrefix + "worker_concurrent"
	queueFetchIntervalMs     = queuePrefix + "fetch_interval_ms"
	queueRetryLimit          = queuePrefix + "retry_limit"
	queueArchiveAfterSecond  = queuePrefix + "archive_after_second"
	queueSweepIntervalSecond = queuePrefix + "sweep_interval_second"

	// migrations
	migrationsPrefix           = "migrations."
	migrationsWorkerConcurrent = migrationsPrefix + "worker_concurrent"
	migrationsFailedPageSize   = migrationsPrefix + "failed_page_size"

	// cluster
	clusterPrefix              = "cluster."
	clusterDiscovery           = clusterPrefix + "discovery"
	clusterSize                = clusterPrefix + "size"
	clusterWatchIntervalSecond = clusterPrefix + "watch_interval_second"
)
