// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sync provides mutexes that can log long hold times when the
// "sync" debug facility is enabled.
package sync

import (
	"runtime"
	stdsync "sync"
	"time"
)

type Mutex interface {
	Lock()
	Unlock()
}

type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &stdsync.Mutex{}
}

func NewRWMutex() RWMutex {
	if debug {
		return &loggedRWMutex{}
	}
	return &stdsync.RWMutex{}
}

type loggedMutex struct {
	stdsync.Mutex
	lockedAt time.Time
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.lockedAt = time.Now()
}

func (m *loggedMutex) Unlock() {
	held := time.Since(m.lockedAt)
	m.Mutex.Unlock()
	if held > threshold {
		l.Debugf("Mutex held for %v at %s", held, caller(2))
	}
}

type loggedRWMutex struct {
	stdsync.RWMutex
	lockedAt time.Time
}

func (m *loggedRWMutex) Lock() {
	m.RWMutex.Lock()
	m.lockedAt = time.Now()
}

func (m *loggedRWMutex) Unlock() {
	held := time.Since(m.lockedAt)
	m.RWMutex.Unlock()
	if held > threshold {
		l.Debugf("RWMutex held for %v at %s", held, caller(2))
	}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?"
	}
	return shortFile(file, line)
}
