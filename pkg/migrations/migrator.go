/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package migrations

import (
	"context"

	"github.com/lib/pq"
	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

const bookkeepingDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

// Migrator applies the ordered migration list to one tenant at a time.
type Migrator struct {
	registry *tenant.Registry
}

// NewMigrator builds a migrator over the tenant registry.
func NewMigrator(registry *tenant.Registry) *Migrator {
	return &Migrator{registry: registry}
}

// Migrate brings the tenant's catalog to the latest version. The whole run
// is one transaction under a per-tenant advisory lock, so concurrent runs
// from other processes wait rather than interleave. The outcome is
// recorded on the registry tenant row either way.
func (m *Migrator) Migrate(ctx context.Context, tenantId string) error {
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return err
	}
	applied := ""
	err = client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		if txErr := tx.LockClass("tenant-migrations/" + tenantId); txErr != nil {
			return txErr
		}
		if _, txErr := tx.Exec(bookkeepingDDL); txErr != nil {
			return txErr
		}
		done, txErr := appliedSet(tx)
		if txErr != nil {
			return txErr
		}
		for _, migration := range List {
			if done[migration.Name] {
				applied = migration.Name
				continue
			}
			if _, txErr = tx.Exec(migration.SQL); txErr != nil {
				return txErr
			}
			if _, txErr = tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, migration.Name); txErr != nil {
				return txErr
			}
			applied = migration.Name
			klog.V(4).Infof("tenant %s: applied migration %s", tenantId, migration.Name)
		}
		return nil
	})

	registryClient := m.registry.RegistryClient()
	if err != nil {
		if recordErr := registryClient.SetTenantMigrationState(tenantId, applied, dbclient.MigrationsFailed); recordErr != nil {
			klog.ErrorS(recordErr, "failed to record migration failure", "tenant", tenantId)
		}
		return err
	}
	if err = registryClient.SetTenantMigrationState(tenantId, applied, dbclient.MigrationsCompleted); err != nil {
		return err
	}
	klog.Infof("tenant %s: migrations completed at %s", tenantId, applied)
	return nil
}

// Status reports the tenant's recorded migration position.
func (m *Migrator) Status(tenantId string) (version string, status string, isLatest bool, err error) {
	row, err := m.registry.Get(tenantId)
	if err != nil {
		return "", "", false, err
	}
	return row.MigrationsVersion, row.MigrationsStatus,
		row.MigrationsVersion == Latest() && row.MigrationsStatus == dbclient.MigrationsCompleted, nil
}

// Reset marks the migration tail starting at fromName as not yet run so it
// re-applies on the next migrate. With markPreviousApplied the prefix is
// forced into the bookkeeping table, for catalogs created out-of-band.
func (m *Migrator) Reset(ctx context.Context, tenantId, fromName string, markPreviousApplied bool) error {
	index := IndexOf(fromName)
	if index < 0 {
		return storageerrors.NewInvalidParameter("unknown migration " + fromName)
	}
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return err
	}
	err = client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
		if txErr := tx.LockClass("tenant-migrations/" + tenantId); txErr != nil {
			return txErr
		}
		if _, txErr := tx.Exec(bookkeepingDDL); txErr != nil {
			return txErr
		}
		names := make([]string, 0, len(List)-index)
		for _, migration := range List[index:] {
			names = append(names, migration.Name)
		}
		if _, txErr := tx.Exec(`DELETE FROM schema_migrations WHERE name = ANY($1)`, pq.Array(names)); txErr != nil {
			return txErr
		}
		if markPreviousApplied {
			for _, migration := range List[:index] {
				if _, txErr := tx.Exec(
					`INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
					migration.Name); txErr != nil {
					return txErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	version := ""
	if index > 0 {
		version = List[index-1].Name
	}
	return m.registry.RegistryClient().SetTenantMigrationState(tenantId, version, dbclient.MigrationsPending)
}

func appliedSet(tx *dbclient.Tx) (map[string]bool, error) {
	var names []string
	if err := tx.Select(&names, `SELECT name FROM schema_migrations ORDER BY name`); err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(names))
	for _, name := range names {
		done[name] = true
	}
	return done, nil
}
