// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package status holds the diagnostic accumulator filled by
// CollectStatus down the hub / thread / backend ownership tree.
package status

// Status is the top level accumulator.
type Status struct {
	PendingCommands int
	ActiveChannels  int
	NextCommandID   uint64
	NextChannelID   uint64
	Worker          ThreadStatus
	Polling         ThreadStatus
}

type ThreadStatus struct {
	Name              string
	State             string
	InboundDepth      int
	InboundHighWater  int
	OutboundDepth     int
	OutboundHighWater int
	CommandsHandled   uint64
	EventsEmitted     uint64
	Backend           BackendStatus
}

type BackendStatus struct {
	Kind           string
	ActiveRoots    int
	BufferedEvents int
	// Polling only: cache entries across roots and sweep work carried
	// into the next tick.
	CacheEntries   int
	CarriedEntries int
	// Native only: events dropped on channel overflow.
	Overflows uint64
}
