// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package thread

import (
	"context"
	"time"

	"github.com/syncthing/watcher/lib/backend"
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/svcutil"
	"github.com/syncthing/watcher/lib/wakeup"
)

// PollingThread drives the stat cache backend for all polled roots. It
// runs a scan tick per interval, sleeping for the interval minus the
// tick's own duration, floored at zero.
type PollingThread struct {
	thread
	poller backend.Polling
}

func NewPolling(b backend.Polling, hubSignal *wakeup.Signal) *PollingThread {
	t := &PollingThread{
		thread: newThread("polling", b, hubSignal),
		poller: b,
	}
	t.thread.extra = t.handleTuning
	return t
}

func (t *PollingThread) handleTuning(cmd *message.CommandPayload) (bool, error) {
	switch cmd.Action {
	case message.CmdPollingInterval:
		return true, t.poller.SetInterval(time.Duration(cmd.Arg) * time.Millisecond)
	case message.CmdPollingThrottle:
		return true, t.poller.SetThrottle(int(cmd.Arg))
	default:
		return false, nil
	}
}

func (t *PollingThread) Serve(ctx context.Context) error {
	if !t.serveEnter() {
		return svcutil.NoRestartErr(nil)
	}
	defer t.serveExit()

	sink := outboxSink{&t.thread}
	l.Debugln(t, "starting")

	if t.processInbox(sink) {
		t.shutdown(sink)
		return svcutil.NoRestartErr(nil)
	}

	interval := t.poller.Interval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

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
			if d := t.poller.Interval(); d != interval {
				interval = d
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(interval)
			}

		case <-timer.C:
			t0 := time.Now()
			if err := t.poller.Drain(sink); err != nil {
				t.fatal(err, sink)
				return svcutil.NoRestartErr(err)
			}
			interval = t.poller.Interval()
			sleep := interval - time.Since(t0)
			if sleep < 0 {
				sleep = 0
			}
			timer.Reset(sleep)
		}
	}
}
