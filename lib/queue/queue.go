// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package queue implements the unbounded message queues connecting the
// hub to the worker and polling threads.
package queue

import (
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/sync"
	"github.com/syncthing/watcher/lib/wakeup"
)

// Queue is a mutex guarded growable buffer of messages. Producers
// append under the lock; the consumer swaps the whole buffer out to
// drain it in one batch. Every non-empty push raises the paired signal.
type Queue struct {
	signal    *wakeup.Signal
	mut       sync.Mutex
	buf       []message.Message
	highWater int
}

// New returns a queue raising signal on every push. The signal is
// shared, not owned: closing it is the caller's business.
func New(signal *wakeup.Signal) *Queue {
	return &Queue{
		signal: signal,
		mut:    sync.NewMutex(),
	}
}

// Push appends msgs and raises the wakeup signal.
func (q *Queue) Push(msgs ...message.Message) {
	if len(msgs) == 0 {
		return
	}
	q.mut.Lock()
	q.buf = append(q.buf, msgs...)
	if len(q.buf) > q.highWater {
		q.highWater = len(q.buf)
	}
	q.mut.Unlock()
	q.signal.Raise()
}

// TakeAll atomically drains the queue, returning the messages in push
// order. Returns nil when the queue is empty.
func (q *Queue) TakeAll() []message.Message {
	q.mut.Lock()
	buf := q.buf
	q.buf = nil
	q.mut.Unlock()
	return buf
}

// Wait is the channel raised on push. It may spuriously yield after a
// TakeAll already emptied the queue; consumers must tolerate an empty
// drain.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal.C()
}

func (q *Queue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return len(q.buf)
}

// HighWater is the largest buffer length observed since creation.
func (q *Queue) HighWater() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return q.highWater
}
