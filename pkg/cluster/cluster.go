/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package cluster tracks how many server replicas share the registry
// database. The size feeds the exported metrics; deployment-specific
// discovery (ECS task counts, EKS endpoints) plugs in as a Prober.
package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
)

// Prober reports the current replica count.
type Prober interface {
	Probe(ctx context.Context) (int, error)
}

// staticProber returns the configured size; the fallback for discovery
// mode "none" and for modes with no in-process probe.
type staticProber struct{}

func (staticProber) Probe(_ context.Context) (int, error) {
	return config.GetClusterSize(), nil
}

var (
	sizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "primus_store",
		Subsystem: "cluster",
		Name:      "size",
		Help:      "Number of server replicas sharing the registry.",
	})
	registerOnce sync.Once
)

// Watcher refreshes the cluster size on an interval. It holds the last
// successful probe result so transient probe failures keep the previous
// size.
type Watcher struct {
	prober   Prober
	interval time.Duration
	size     atomic.Int64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher selects the prober from configuration. Discovery modes
// without an in-process probe fall back to the static cluster.size.
func NewWatcher() *Watcher {
	registerOnce.Do(func() {
		prometheus.MustRegister(sizeGauge)
	})
	var prober Prober = staticProber{}
	if mode := config.GetClusterDiscovery(); mode != "none" {
		klog.Warningf("cluster discovery %q has no in-process probe, using cluster.size", mode)
	}
	w := &Watcher{
		prober:   prober,
		interval: time.Duration(config.GetClusterWatchIntervalSecond()) * time.Second,
		done:     make(chan struct{}),
	}
	w.size.Store(1)
	return w
}

// Start probes once synchronously, then refreshes until ctx is canceled
// or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.refresh(runCtx)
	go w.loop(runCtx)
}

// Stop cancels the refresh loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

// Size returns the last known replica count.
func (w *Watcher) Size() int {
	return int(w.size.Load())
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	size, err := w.prober.Probe(ctx)
	if err != nil {
		klog.ErrorS(err, "cluster size probe failed, keeping last size", "size", w.Size())
		return
	}
	if size <= 0 {
		size = 1
	}
	if int64(size) != w.size.Swap(int64(size)) {
		klog.Infof("cluster size is now %d", size)
	}
	sizeGauge.Set(float64(size))
}
