// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package backend_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/syncthing/watcher/lib/backend"
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
)

type collectSink struct {
	evs []*message.FileSystemPayload
}

func (s *collectSink) Append(p *message.FileSystemPayload) {
	s.evs = append(s.evs, p)
}

func tick(t *testing.T, p *backend.Poller) []*message.FileSystemPayload {
	t.Helper()
	var sink collectSink
	if err := p.Drain(&sink); err != nil {
		t.Fatal(err)
	}
	return sink.evs
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// backdate makes a file's mtime clearly different from "now" so a
// later touch is detectable regardless of filesystem time resolution.
func backdate(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func TestPollerInitialSweepIsSilent(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a"), "a")
	mustWrite(t, filepath.Join(dir, "b"), "b")

	p := backend.NewPoller()
	if err := p.AddRoot(1, dir); err != nil {
		t.Fatal(err)
	}
	if evs := tick(t, p); len(evs) != 0 {
		t.Fatal("priming sweep should emit nothing, got", evs)
	}
}

func TestPollerDetectsCreateModifyDelete(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	mustWrite(t, keep, "keep")

	p := backend.NewPoller()
	if err := p.AddRoot(1, dir); err != nil {
		t.Fatal(err)
	}
	tick(t, p) // prime

	created := filepath.Join(dir, "new")
	mustWrite(t, created, "new")
	evs := tick(t, p)
	if len(evs) != 1 || evs[0].Action != message.ActionCreated || evs[0].Path != created {
		t.Fatal("expected a created event, got", evs)
	}
	if evs[0].Kind != message.KindFile {
		t.Error("expected file kind, got", evs[0].Kind)
	}
	if evs[0].Channel != 1 {
		t.Error("expected channel 1, got", evs[0].Channel)
	}

	backdate(t, keep)
	tick(t, p) // pick up the backdated stamp
	mustWrite(t, keep, "keep again")
	evs = tick(t, p)
	if len(evs) != 1 || evs[0].Action != message.ActionModified || evs[0].Path != keep {
		t.Fatal("expected a modified event, got", evs)
	}

	if err := os.Remove(created); err != nil {
		t.Fatal(err)
	}
	evs = tick(t, p)
	if len(evs) != 1 || evs[0].Action != message.ActionDeleted || evs[0].Path != created {
		t.Fatal("expected a deleted event, got", evs)
	}
	if evs[0].Kind != message.KindFile {
		t.Error("deleted kind should come from the cache, got", evs[0].Kind)
	}
}

func TestPollerThrottleCarriesOver(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d", i))
		mustWrite(t, path, "x")
		files = append(files, path)
	}

	p := backend.NewPoller()
	if err := p.AddRoot(1, dir); err != nil {
		t.Fatal(err)
	}
	tick(t, p) // prime

	for _, f := range files {
		backdate(t, f)
	}
	tick(t, p) // pick up the backdated stamps
	for _, f := range files {
		mustWrite(t, f, "touched")
	}

	if err := p.SetThrottle(2); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]struct{})
	ticks := 0
	for len(seen) < 5 {
		ticks++
		if ticks > 10 {
			t.Fatalf("only %d events after %d ticks", len(seen), ticks)
		}
		evs := tick(t, p)
		if len(evs) > 2 {
			t.Fatalf("tick emitted %d events, throttle is 2", len(evs))
		}
		for _, ev := range evs {
			if ev.Action != message.ActionModified {
				t.Fatal("expected only modifications, got", ev)
			}
			seen[ev.Path] = struct{}{}
		}
	}
	// Five modified files plus the directory itself are six
	// comparisons; at two per tick all events land within three ticks.
	if ticks > 3 {
		t.Error("expected all events within 3 ticks, took", ticks)
	}
}

func TestPollerRoundRobinsAcrossRoots(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	fileA := filepath.Join(dirA, "a")
	fileB := filepath.Join(dirB, "b")
	mustWrite(t, fileA, "a")
	mustWrite(t, fileB, "b")

	p := backend.NewPoller()
	if err := p.AddRoot(1, dirA); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRoot(2, dirB); err != nil {
		t.Fatal(err)
	}
	tick(t, p) // prime both

	for _, f := range []string{fileA, fileB} {
		backdate(t, f)
	}
	tick(t, p)
	mustWrite(t, fileA, "a2")
	mustWrite(t, fileB, "b2")

	// A small budget still serves both roots within a few ticks; no
	// root is starved.
	if err := p.SetThrottle(1); err != nil {
		t.Fatal(err)
	}
	seen := make(map[message.ChannelID]struct{})
	for i := 0; i < 10 && len(seen) < 2; i++ {
		for _, ev := range tick(t, p) {
			seen[ev.Channel] = struct{}{}
		}
	}
	if len(seen) != 2 {
		t.Fatal("both roots should produce events under a tight budget")
	}
}

func TestPollerTunableMinima(t *testing.T) {
	p := backend.NewPoller()
	if err := p.SetInterval(0); err == nil {
		t.Error("zero interval should be rejected")
	}
	if err := p.SetInterval(time.Millisecond); err != nil {
		t.Error("one millisecond interval is the minimum:", err)
	}
	if err := p.SetThrottle(0); err == nil {
		t.Error("zero throttle should be rejected")
	}
	if err := p.SetThrottle(1); err != nil {
		t.Error("throttle one is the minimum:", err)
	}
	if p.Interval() != time.Millisecond {
		t.Error("interval should have been updated")
	}
	if p.Throttle() != 1 {
		t.Error("throttle should have been updated")
	}
}

func TestPollerChannelLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := backend.NewPoller()

	if err := p.AddRoot(1, dir); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRoot(1, dir); err == nil {
		t.Error("duplicate channel should be rejected")
	}
	if err := p.AddRoot(2, filepath.Join(dir, "missing")); err == nil {
		t.Error("missing root should be rejected")
	}
	if err := p.RemoveChannel(9); err == nil {
		t.Error("unknown channel should be rejected")
	}
	if err := p.RemoveChannel(1); err != nil {
		t.Fatal(err)
	}

	var st status.BackendStatus
	p.CollectStatus(&st)
	if st.ActiveRoots != 0 {
		t.Error("expected no active roots, got", st.ActiveRoots)
	}
}
