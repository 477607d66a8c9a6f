/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package migrations evolves the per-tenant catalog schema. Migrations are
// an ordered list applied inside one transaction per tenant, serialized by
// a per-tenant advisory lock; the registry records each tenant's version
// and status.
package migrations

// Migration is one schema step; Name doubles as the version token recorded
// on the tenant row.
type Migration struct {
	Name string
	SQL  string
}

// List is the ordered schema history. Append only; never reorder or edit a
// shipped entry.
var List = []Migration{
	{
		Name: "0001-initial-catalog",
		SQL: `
CREATE TABLE IF NOT EXISTS buckets (
	id text PRIMARY KEY,
	name text NOT NULL UNIQUE,
	owner text,
	public boolean NOT NULL DEFAULT false,
	file_size_limit bigint,
	allowed_mime_types text[],
	disk_ref text,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS objects (
	id text PRIMARY KEY,
	bucket_id text NOT NULL REFERENCES buckets (id),
	name text NOT NULL,
	owner text,
	version text NOT NULL,
	metadata jsonb NOT NULL DEFAULT '{}',
	user_metadata jsonb NOT NULL DEFAULT '{}',
	last_accessed_at timestamptz,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (bucket_id, name)
);

CREATE INDEX IF NOT EXISTS objects_bucket_created_idx ON objects (bucket_id, created_at);
`,
	},
	{
		Name: "0002-uploads",
		SQL: `
CREATE TABLE IF NOT EXISTS uploads (
	id text PRIMARY KEY,
	bucket_id text NOT NULL,
	object_name text NOT NULL,
	version text NOT NULL,
	upload_type text NOT NULL,
	backend_upload_id text,
	byte_offset bigint NOT NULL DEFAULT 0,
	declared_length bigint,
	content_type text,
	cache_control text,
	parts jsonb NOT NULL DEFAULT '[]',
	status text NOT NULL DEFAULT 'pending',
	expires_at timestamptz,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS uploads_expiry_idx ON uploads (status, expires_at);
`,
	},
	{
		Name: "0003-s3-credentials",
		SQL: `
CREATE TABLE IF NOT EXISTS s3_credentials (
	id text PRIMARY KEY,
	access_key text NOT NULL UNIQUE,
	secret_key text NOT NULL,
	description text,
	claims jsonb NOT NULL DEFAULT '{}',
	created_at timestamptz NOT NULL DEFAULT now()
);
`,
	},
	{
		Name: "0004-row-level-security",
		SQL: `
ALTER TABLE buckets ENABLE ROW LEVEL SECURITY;
ALTER TABLE objects ENABLE ROW LEVEL SECURITY;

DROP POLICY IF EXISTS buckets_owner_all ON buckets;
CREATE POLICY buckets_owner_all ON buckets
	USING (public OR owner IS NULL OR owner = current_setting('request.jwt.claims', true)::jsonb ->> 'sub');

DROP POLICY IF EXISTS objects_owner_all ON objects;
CREATE POLICY objects_owner_all ON objects
	USING (owner IS NULL OR owner = current_setting('request.jwt.claims', true)::jsonb ->> 'sub');
`,
	},
	{
		Name: "0005-object-listing-index",
		SQL: `
CREATE INDEX IF NOT EXISTS objects_name_prefix_idx ON objects (bucket_id, name text_pattern_ops);
CREATE INDEX IF NOT EXISTS objects_last_accessed_idx ON objects (bucket_id, last_accessed_at);
`,
	},
}

// Latest is the newest migration name.
func Latest() string {
	return List[len(List)-1].Name
}

// IndexOf returns a migration's position in the list, or -1.
func IndexOf(name string) int {
	for i, migration := range List {
		if migration.Name == name {
			return i
		}
	}
	return -1
}
