// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package backend implements the two event sources driven by the
// watcher threads: the native OS notification backend and the stat
// cache polling backend.
package backend

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
)

// Sink is an append-only receiver of filesystem payloads. The owning
// thread passes its outbound queue wrapped in one of these.
type Sink interface {
	Append(*message.FileSystemPayload)
}

// Backend translates filesystem changes on registered roots into
// FileSystemPayloads. A backend is owned by exactly one thread; only
// CollectStatus may be called from elsewhere.
type Backend interface {
	// AddRoot begins watching root and binds it to the channel.
	AddRoot(id message.ChannelID, root string) error
	// RemoveChannel stops watching the channel's root.
	RemoveChannel(id message.ChannelID) error
	// Pending yields when the backend has buffered work. May return
	// nil for backends that are driven by a timer instead.
	Pending() <-chan struct{}
	// Drain flushes buffered activity into sink. For the polling
	// backend this performs one scan tick. An error return from the
	// thread's own drain loop is fatal for the owning thread; from a
	// Drain command it fails that command's ack.
	Drain(sink Sink) error
	CollectStatus(st *status.BackendStatus)
	// Close tears down all roots. The backend is unusable afterwards.
	Close() error
}

// Polling is the backend contract with the two live-reconfigurable
// scan tunables. Implemented by Poller.
type Polling interface {
	Backend
	SetInterval(d time.Duration) error
	Interval() time.Duration
	SetThrottle(n int) error
	Throttle() int
}

func errUnknownChannel(id message.ChannelID) error {
	return fmt.Errorf("unknown channel id %d", id)
}

func errDuplicateChannel(id message.ChannelID) error {
	return fmt.Errorf("channel id %d is already registered", id)
}

func kindOf(fi fs.FileInfo) message.EntryKind {
	switch {
	case fi == nil:
		return message.KindUnknown
	case fi.IsDir():
		return message.KindDirectory
	case fi.Mode().IsRegular():
		return message.KindFile
	default:
		return message.KindUnknown
	}
}
