// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package queue_test

import (
	"testing"
	"time"

	"github.com/d4l3k/messagediff"

	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/queue"
	"github.com/syncthing/watcher/lib/wakeup"
)

const timeout = 100 * time.Millisecond

func TestPushTakeAllPreservesOrderAndPayloads(t *testing.T) {
	q := queue.New(wakeup.New())

	sent := []message.Message{
		&message.FileSystemPayload{Channel: 1, Action: message.ActionCreated, Kind: message.KindFile, Path: "/a/x"},
		&message.CommandPayload{ID: 2, Action: message.CmdAdd, Root: "/a", Arg: 1},
		&message.AckPayload{Key: 2, Channel: 1, Success: true},
		&message.FileSystemPayload{Channel: 1, Action: message.ActionRenamed, Kind: message.KindFile, OldPath: "/a/x", Path: "/a/y"},
	}
	for _, m := range sent {
		q.Push(m)
	}

	got := q.TakeAll()
	if diff, equal := messagediff.PrettyDiff(sent, got); !equal {
		t.Fatalf("drained messages differ from pushed:\n%s", diff)
	}

	if again := q.TakeAll(); again != nil {
		t.Fatal("second drain should be empty, got", again)
	}
}

func TestPushRaisesSignal(t *testing.T) {
	q := queue.New(wakeup.New())
	q.Push(&message.AckPayload{Key: 1, Success: true})
	select {
	case <-q.Wait():
	case <-time.After(timeout):
		t.Fatal("push should raise the wakeup signal")
	}
}

func TestHighWater(t *testing.T) {
	q := queue.New(wakeup.New())
	for i := 0; i < 5; i++ {
		q.Push(&message.AckPayload{Key: message.CommandID(i), Success: true})
	}
	q.TakeAll()
	q.Push(&message.AckPayload{Key: 6, Success: true})

	if q.Len() != 1 {
		t.Error("expected length 1, got", q.Len())
	}
	if q.HighWater() != 5 {
		t.Error("expected high water 5, got", q.HighWater())
	}
}

func TestEmptyPushIsNoop(t *testing.T) {
	q := queue.New(wakeup.New())
	q.Push()
	select {
	case <-q.Wait():
		t.Fatal("empty push should not raise the signal")
	case <-time.After(10 * time.Millisecond):
	}
}
