/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
)

// GetParams describes one read.
type GetParams struct {
	TenantId   string
	Bucket     string
	ObjectName string
	Options    *backend.ReadOptions
	// Touch records last_accessed_at, best effort and off the request path.
	Touch bool
}

// Get verifies the object through the caller's identity and streams the
// live version from the backend. Range, conditional and signed-URL reads
// all come through here.
func (m *Manager) Get(ctx context.Context, identity dbclient.Identity, params *GetParams) (*dbclient.Object, *backend.ReadResult, error) {
	object, err := m.Head(ctx, identity, params)
	if err != nil {
		return nil, nil, err
	}
	key := physicalKey(params.TenantId, params.Bucket, params.ObjectName)
	result, err := m.store.Read(ctx, m.bucket, key, object.Version, params.Options)
	if err != nil {
		return nil, nil, err
	}
	return object, result, nil
}

// Head verifies the object exists for the caller and returns its row; the
// body is never touched.
func (m *Manager) Head(ctx context.Context, identity dbclient.Identity, params *GetParams) (*dbclient.Object, error) {
	if err := ValidateObjectKey(params.ObjectName); err != nil {
		return nil, err
	}
	client, err := m.registry.CatalogClient(params.TenantId)
	if err != nil {
		return nil, err
	}
	var object *dbclient.Object
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		bucket, txErr := tx.GetBucket(params.Bucket)
		if txErr != nil {
			return txErr
		}
		object, txErr = tx.GetObject(bucket.Id, params.ObjectName, dbclient.LockNone)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if params.Touch {
		go m.touch(params.TenantId, params.Bucket, params.ObjectName)
	}
	return object, nil
}

// touch updates last_accessed_at outside the request path.
func (m *Manager) touch(tenantId, bucket, name string) {
	client, err := m.registry.CatalogClient(tenantId)
	if err != nil {
		return
	}
	touchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = client.AsSuperUser(touchCtx, func(tx *dbclient.Tx) error {
		return tx.TouchObject(bucket, name)
	})
	if err != nil {
		klog.V(4).Infof("failed to touch %s/%s: %v", bucket, name, err)
	}
}
