// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/syncthing/notify"

	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
	"github.com/syncthing/watcher/lib/sync"
	"github.com/syncthing/watcher/lib/wakeup"
)

// Notify does not block on sending to channel, so the channel must be
// buffered. The actual number is magic. Not meant to be changed, but
// must be changeable for tests.
var backendBuffer = 500

// Cap on events buffered between drains. Beyond this we drop and count.
var maxBuffered = 16384

// Overridable for tests that drive the conversion logic without real
// filesystem entries.
var lstat = os.Lstat

type rawEvent struct {
	channel message.ChannelID
	path    string
	op      notify.Event
}

// Native watches roots through the OS notification APIs wrapped by the
// notify library. Each root gets its own buffered notify channel and a
// forwarder goroutine fanning into one shared buffer; the owning
// thread drains that buffer on the pending signal.
type Native struct {
	pending   *wakeup.Signal
	mut       sync.Mutex
	roots     map[message.ChannelID]*nativeRoot
	buf       []rawEvent
	overflows atomic.Uint64
	closed    bool

	// Rename pairing state, touched only by Drain on the owning
	// thread. A source half waits here one extra drain for its
	// destination before degrading to a deletion.
	pendingOld map[message.ChannelID]pendingRename
	drainGen   uint64
}

type pendingRename struct {
	path string
	gen  uint64
}

type nativeRoot struct {
	root string
	ch   chan notify.EventInfo
	stop chan struct{}
	done chan struct{}
}

func NewNative() *Native {
	return &Native{
		pending:    wakeup.New(),
		mut:        sync.NewMutex(),
		roots:      make(map[message.ChannelID]*nativeRoot),
		pendingOld: make(map[message.ChannelID]pendingRename),
	}
}

func (n *Native) AddRoot(id message.ChannelID, root string) error {
	n.mut.Lock()
	if n.closed {
		n.mut.Unlock()
		return fmt.Errorf("backend is closed")
	}
	if _, ok := n.roots[id]; ok {
		n.mut.Unlock()
		return errDuplicateChannel(id)
	}
	n.mut.Unlock()

	ch := make(chan notify.EventInfo, backendBuffer)
	if err := notify.Watch(filepath.Join(root, "..."), ch, notify.All); err != nil {
		notify.Stop(ch)
		return fmt.Errorf("watching %s: %w", root, err)
	}

	r := &nativeRoot{
		root: root,
		ch:   ch,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	n.mut.Lock()
	n.roots[id] = r
	n.mut.Unlock()

	go n.forward(id, r)
	l.Debugln("native: watching", root, "on channel", id)
	return nil
}

func (n *Native) forward(id message.ChannelID, r *nativeRoot) {
	defer close(r.done)
	for {
		select {
		case ei, ok := <-r.ch:
			if !ok {
				return
			}
			n.push(rawEvent{channel: id, path: ei.Path(), op: ei.Event()})
		case <-r.stop:
			return
		}
	}
}

func (n *Native) push(ev rawEvent) {
	n.mut.Lock()
	if len(n.buf) >= maxBuffered {
		n.mut.Unlock()
		n.overflows.Add(1)
		metricNativeOverflows.Inc()
		return
	}
	n.buf = append(n.buf, ev)
	n.mut.Unlock()
	n.pending.Raise()
}

func (n *Native) RemoveChannel(id message.ChannelID) error {
	n.mut.Lock()
	r, ok := n.roots[id]
	if ok {
		delete(n.roots, id)
	}
	n.mut.Unlock()
	if !ok {
		return errUnknownChannel(id)
	}
	notify.Stop(r.ch)
	close(r.stop)
	<-r.done
	l.Debugln("native: stopped watching", r.root, "on channel", id)
	return nil
}

func (n *Native) Pending() <-chan struct{} {
	return n.pending.C()
}

// Drain converts all buffered raw events into payloads. Events whose
// channel was removed since buffering are discarded here; the thread
// contract is that emitted payloads carry a currently active channel.
func (n *Native) Drain(sink Sink) error {
	n.mut.Lock()
	buf := n.buf
	n.buf = nil
	active := make(map[message.ChannelID]struct{}, len(n.roots))
	for id := range n.roots {
		active[id] = struct{}{}
	}
	n.mut.Unlock()

	n.drainGen++

	for _, ev := range buf {
		if _, ok := active[ev.channel]; !ok {
			l.Debugln("native: dropping event for removed channel", ev.channel)
			delete(n.pendingOld, ev.channel)
			continue
		}
		for _, p := range n.convert(ev) {
			sink.Append(p)
			metricEventsTotal.WithLabelValues("native", p.Action.String()).Inc()
		}
	}

	// A rename source carried from an earlier drain whose destination
	// never showed: the entry left the watched tree.
	for id, old := range n.pendingOld {
		if _, ok := active[id]; !ok {
			delete(n.pendingOld, id)
			continue
		}
		if old.gen == n.drainGen {
			continue
		}
		delete(n.pendingOld, id)
		p := &message.FileSystemPayload{
			Channel: id,
			Action:  message.ActionDeleted,
			Kind:    message.KindUnknown,
			Path:    old.path,
		}
		sink.Append(p)
		metricEventsTotal.WithLabelValues("native", p.Action.String()).Inc()
	}
	if len(n.pendingOld) > 0 {
		// Make sure a lone source half gets flushed by the next drain
		// even if no further events arrive.
		n.pending.Raise()
	}
	return nil
}

// convert maps one raw notify event to zero or more payloads,
// threading the rename pairing state through n.pendingOld.
func (n *Native) convert(ev rawEvent) []*message.FileSystemPayload {
	switch ev.op {
	case notify.Create:
		return []*message.FileSystemPayload{{
			Channel: ev.channel,
			Action:  message.ActionCreated,
			Kind:    kindAt(ev.path),
			Path:    ev.path,
		}}
	case notify.Remove:
		return []*message.FileSystemPayload{{
			Channel: ev.channel,
			Action:  message.ActionDeleted,
			Kind:    message.KindUnknown,
			Path:    ev.path,
		}}
	case notify.Write:
		return []*message.FileSystemPayload{{
			Channel: ev.channel,
			Action:  message.ActionModified,
			Kind:    kindAt(ev.path),
			Path:    ev.path,
		}}
	case notify.Rename:
		// The OS reports both halves of a rename as separate events.
		// The half whose path is gone is the source; the half whose
		// path exists is the destination. Pair them when both show up
		// close together, degrade to delete/create otherwise.
		if _, err := lstat(ev.path); err != nil {
			prev, had := n.pendingOld[ev.channel]
			n.pendingOld[ev.channel] = pendingRename{path: ev.path, gen: n.drainGen}
			if had {
				// Two vanished halves in a row: the first one is a
				// plain deletion.
				return []*message.FileSystemPayload{{
					Channel: ev.channel,
					Action:  message.ActionDeleted,
					Kind:    message.KindUnknown,
					Path:    prev.path,
				}}
			}
			return nil
		}
		if old, ok := n.pendingOld[ev.channel]; ok {
			delete(n.pendingOld, ev.channel)
			return []*message.FileSystemPayload{{
				Channel: ev.channel,
				Action:  message.ActionRenamed,
				Kind:    kindAt(ev.path),
				OldPath: old.path,
				Path:    ev.path,
			}}
		}
		// Destination with no known source: moved in from outside the
		// watched tree.
		return []*message.FileSystemPayload{{
			Channel: ev.channel,
			Action:  message.ActionCreated,
			Kind:    kindAt(ev.path),
			Path:    ev.path,
		}}
	default:
		l.Debugf("native: unhandled event %v on %s", ev.op, ev.path)
		return nil
	}
}

func kindAt(path string) message.EntryKind {
	fi, err := lstat(path)
	if err != nil {
		return message.KindUnknown
	}
	return kindOf(fi)
}

func (n *Native) CollectStatus(st *status.BackendStatus) {
	n.mut.Lock()
	st.Kind = "native"
	st.ActiveRoots = len(n.roots)
	st.BufferedEvents = len(n.buf)
	n.mut.Unlock()
	st.Overflows = n.overflows.Load()
}

func (n *Native) Close() error {
	n.mut.Lock()
	if n.closed {
		n.mut.Unlock()
		return nil
	}
	n.closed = true
	roots := n.roots
	n.roots = make(map[message.ChannelID]*nativeRoot)
	n.mut.Unlock()

	for _, r := range roots {
		notify.Stop(r.ch)
		close(r.stop)
		<-r.done
	}
	return nil
}
