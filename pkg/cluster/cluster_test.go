/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

type fakeProber struct {
	size int
	err  error
}

func (p *fakeProber) Probe(context.Context) (int, error) {
	return p.size, p.err
}

func TestStaticProber(t *testing.T) {
	config.SetValue("cluster.size", "3")
	defer config.SetValue("cluster.size", "1")
	size, err := staticProber{}.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestWatcherRefresh(t *testing.T) {
	prober := &fakeProber{size: 4}
	w := &Watcher{prober: prober, done: make(chan struct{})}
	w.size.Store(1)

	w.refresh(context.Background())
	assert.Equal(t, 4, w.Size())

	// failed probes keep the last size
	prober.err = fmt.Errorf("probe unavailable")
	prober.size = 0
	w.refresh(context.Background())
	assert.Equal(t, 4, w.Size())

	// nonsense sizes clamp to one
	prober.err = nil
	prober.size = -2
	w.refresh(context.Background())
	assert.Equal(t, 1, w.Size())
}

func TestWatcherStartStop(t *testing.T) {
	w := NewWatcher()
	w.Start(context.Background())
	assert.Equal(t, 1, w.Size())
	w.Stop()
}
