// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "backend",
		Name:      "events_total",
		Help:      "Total number of filesystem events produced, by backend and action",
	}, []string{"backend", "action"})
	metricNativeOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "backend",
		Name:      "native_overflows_total",
		Help:      "Total number of native events dropped on buffer overflow",
	})
	metricPollTickSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "watcher",
		Subsystem: "backend",
		Name:      "poll_tick_seconds",
		Help:      "Duration of polling scan ticks",
	})
)
