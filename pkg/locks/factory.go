/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package locks

import (
	"fmt"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/pubsub"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
)

// New selects the configured lock variant at startup.
func New(registry *tenant.Registry, bus *pubsub.Bus, store ObjectStore) (Locker, error) {
	opts := OptionsFromConfig()
	switch variant := config.GetLockVariant(); variant {
	case VariantDB:
		return NewDBLocker(registry, bus, opts), nil
	case VariantS3:
		return NewS3Locker(store, bus, opts), nil
	default:
		return nil, fmt.Errorf("unknown lock variant %q", variant)
	}
}
