/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package backend

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	transportActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "primus_store",
		Subsystem: "s3_transport",
		Name:      "active_requests",
		Help:      "Requests currently in flight against the blob backend.",
	})
	transportPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "primus_store",
		Subsystem: "s3_transport",
		Name:      "pending_requests",
		Help:      "Requests waiting for a connection slot.",
	})
	transportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "primus_store",
		Subsystem: "s3_transport",
		Name:      "request_errors_total",
		Help:      "Transport-level request failures against the blob backend.",
	})
	transportRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "primus_store",
		Subsystem: "s3_transport",
		Name:      "requests_total",
		Help:      "Total requests issued to the blob backend.",
	})
)

func registerTransportMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(transportActive, transportPending, transportErrors, transportRequests)
	})
}

// meteredTransport counts in-flight requests and failures on the shared
// backend transport so pool pressure is observable.
type meteredTransport struct {
	base http.RoundTripper
	sem  chan struct{}
}

func newMeteredTransport(base http.RoundTripper, maxSockets int) *meteredTransport {
	registerTransportMetrics()
	var sem chan struct{}
	if maxSockets > 0 {
		sem = make(chan struct{}, maxSockets)
	}
	return &meteredTransport{base: base, sem: sem}
}

// RoundTrip implements http.RoundTripper.
func (t *meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	transportRequests.Inc()
	if t.sem != nil {
		transportPending.Inc()
		select {
		case t.sem <- struct{}{}:
			transportPending.Dec()
			defer func() { <-t.sem }()
		case <-req.Context().Done():
			transportPending.Dec()
			transportErrors.Inc()
			return nil, req.Context().Err()
		}
	}
	transportActive.Inc()
	defer transportActive.Dec()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		transportErrors.Inc()
	}
	return resp, err
}
