/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tus

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
)

const sweepBatchSize = 100

// SweepExpired walks every tenant and tears down uploads whose expiry has
// passed: the backend multipart is aborted, the upload row removed and the
// object stub cleaned up. One tenant failing does not stop the sweep.
func (e *Engine) SweepExpired(ctx context.Context) {
	tenants, err := e.registry.List()
	if err != nil {
		klog.ErrorS(err, "upload expiry sweep: failed to list tenants")
		return
	}
	for _, row := range tenants {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := e.sweepTenant(ctx, row.Id); err != nil {
			klog.ErrorS(err, "upload expiry sweep failed", "tenant", row.Id)
		}
	}
}

func (e *Engine) sweepTenant(ctx context.Context, tenantId string) error {
	client, err := e.registry.CatalogClient(tenantId)
	if err != nil {
		return err
	}
	for {
		var swept int
		err = client.AsSuperUser(ctx, func(tx *dbclient.Tx) error {
			uploads, txErr := tx.ListExpiredUploads(time.Now(), sweepBatchSize)
			if txErr != nil {
				return txErr
			}
			for _, upload := range uploads {
				if txErr = e.abortUpload(ctx, tx, upload); txErr != nil {
					return txErr
				}
				klog.V(4).Infof("expired upload %s removed", upload.Id)
			}
			swept = len(uploads)
			return nil
		})
		if err != nil || swept < sweepBatchSize {
			return err
		}
	}
}
