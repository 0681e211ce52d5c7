// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "hub",
		Name:      "events_dispatched_total",
		Help:      "Total number of events delivered to event sinks",
	})
	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "hub",
		Name:      "events_dropped_total",
		Help:      "Total number of events dropped because their channel was no longer watched",
	})
)
