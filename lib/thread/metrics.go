// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package thread

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "thread",
		Name:      "commands_total",
		Help:      "Total number of commands handled, by thread and action",
	}, []string{"thread", "action"})
	metricAcksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watcher",
		Subsystem: "thread",
		Name:      "acks_total",
		Help:      "Total number of acknowledgements emitted, by thread and outcome",
	}, []string{"thread", "outcome"})
)
