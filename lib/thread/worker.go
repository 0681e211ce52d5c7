// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package thread

import (
	"context"

	"github.com/syncthing/watcher/lib/backend"
	"github.com/syncthing/watcher/lib/svcutil"
	"github.com/syncthing/watcher/lib/wakeup"
)

// WorkerThread drives the native events backend for all natively
// watched roots.
type WorkerThread struct {
	thread
}

func NewWorker(b backend.Backend, hubSignal *wakeup.Signal) *WorkerThread {
	return &WorkerThread{
		thread: newThread("worker", b, hubSignal),
	}
}

func (t *WorkerThread) Serve(ctx context.Context) error {
	if !t.serveEnter() {
		return svcutil.NoRestartErr(nil)
	}
	defer t.serveExit()

	sink := outboxSink{&t.thread}
	l.Debugln(t, "starting")

	// Commands may have been queued before the thread started.
	if t.processInbox(sink) {
		t.shutdown(sink)
		return svcutil.NoRestartErr(nil)
	}

	for {
		select {
		case <-ctx.Done():
			t.shutdown(sink)
			return svcutil.NoRestartErr(nil)
		case <-t.inbox.Wait():
			if t.processInbox(sink) {
				t.shutdown(sink)
				return svcutil.NoRestartErr(nil)
			}
		case <-t.backend.Pending():
			if err := t.backend.Drain(sink); err != nil {
				t.fatal(err, sink)
				return svcutil.NoRestartErr(err)
			}
		}
	}
}
