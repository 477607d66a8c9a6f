/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package migrations

import (
	"context"

	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// Fleet drives migrations across every tenant through the job queue. Each
// tenant is one job, so a stuck tenant never blocks the rest and failures
// are retried with the queue's budget.
type Fleet struct {
	registry *tenant.Registry
	queue    *queue.Queue
	migrator *Migrator
}

// NewFleet wires the fleet runner.
func NewFleet(registry *tenant.Registry, jobQueue *queue.Queue, migrator *Migrator) *Fleet {
	return &Fleet{registry: registry, queue: jobQueue, migrator: migrator}
}

// EnqueueAll schedules one migration job per tenant and returns the count.
func (f *Fleet) EnqueueAll(ctx context.Context) (int, error) {
	tenants, err := f.registry.List()
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, row := range tenants {
		if _, err = f.queue.Send(ctx, queue.JobRunMigrationsOnTenants,
			queue.RunMigrationsPayload{TenantId: row.Id}); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	klog.Infof("enqueued migrations for %d tenants", enqueued)
	return enqueued, nil
}

// Progress returns the number of migration jobs still waiting or running.
func (f *Fleet) Progress(ctx context.Context) (int, error) {
	return f.queue.Pending(ctx, queue.JobRunMigrationsOnTenants)
}

// Failed pages through tenants whose last run failed, keyed by cursor id.
func (f *Fleet) Failed(cursor int64, limit int) ([]*dbclient.Tenant, error) {
	return f.registry.RegistryClient().ListFailedMigrations(cursor, limit)
}

// ResetAll re-opens the migration tail from fromName on every tenant.
func (f *Fleet) ResetAll(ctx context.Context, fromName string, markPreviousApplied bool) (int, error) {
	tenants, err := f.registry.List()
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, row := range tenants {
		if err = f.migrator.Reset(ctx, row.Id, fromName, markPreviousApplied); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

// HandleJob is the queue handler for RunMigrationsOnTenants.
func (f *Fleet) HandleJob(ctx context.Context, job *queue.Job) error {
	var payload queue.RunMigrationsPayload
	if err := jsonutils.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	return f.migrator.Migrate(ctx, payload.TenantId)
}
