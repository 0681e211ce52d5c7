// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package thread implements the worker and polling threads: suture
// services that drain a command queue, drive their backend and feed
// events and acknowledgements back to the hub.
package thread

import (
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"

	"github.com/syncthing/watcher/lib/backend"
	"github.com/syncthing/watcher/lib/logger"
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/queue"
	"github.com/syncthing/watcher/lib/status"
	"github.com/syncthing/watcher/lib/wakeup"
)

// ErrTerminated is returned by Send once the thread is stopping or
// stopped. Commands outstanding at that point receive failure acks
// carrying the same text.
var ErrTerminated = errors.New("thread terminated")

const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

func stateString(s int32) string {
	switch s {
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// thread is the behaviour shared by the worker and polling threads:
// inbound command queue with wakeup, outbound queue raising the hub
// signal, per-thread redirectable logger, uniform command handling and
// acknowledgement.
type thread struct {
	name    string
	log     logger.Logger
	backend backend.Backend
	inbox   *queue.Queue
	outbox  *queue.Queue

	// extra handles specialisation specific commands. It reports
	// whether it recognised the action.
	extra func(cmd *message.CommandPayload) (bool, error)

	stopOnce   stdsync.Once
	done       chan struct{}
	started    atomic.Bool
	terminated atomic.Bool
	state      atomic.Int32

	commandsHandled atomic.Uint64
	eventsEmitted   atomic.Uint64
}

func newThread(name string, b backend.Backend, hubSignal *wakeup.Signal) thread {
	return thread{
		name:    name,
		log:     logger.New(),
		backend: b,
		inbox:   queue.New(wakeup.New()),
		outbox:  queue.New(hubSignal),
		done:    make(chan struct{}),
	}
}

// Send enqueues a command and wakes the thread. It fails synchronously
// once the thread has terminated. Sending before the thread is started
// is fine; queued commands are applied at startup.
func (t *thread) Send(cmd *message.CommandPayload) error {
	if t.terminated.Load() {
		return ErrTerminated
	}
	t.inbox.Push(cmd)
	return nil
}

// TakeAll atomically drains the outbound queue. Called by the hub on
// the host signal.
func (t *thread) TakeAll() []message.Message {
	return t.outbox.TakeAll()
}

// Stop enqueues the terminal command and joins the thread. Idempotent;
// a second call after the join is a no-op.
func (t *thread) Stop() {
	t.stopOnce.Do(func() {
		t.inbox.Push(&message.CommandPayload{Action: message.CmdStop})
	})
	if t.started.Load() {
		<-t.done
	} else {
		t.terminated.Store(true)
	}
}

func (t *thread) String() string {
	return fmt.Sprintf("%sThread@%p", t.name, t)
}

func (t *thread) CollectStatus(st *status.ThreadStatus) {
	st.Name = t.name
	st.State = stateString(t.state.Load())
	st.InboundDepth = t.inbox.Len()
	st.InboundHighWater = t.inbox.HighWater()
	st.OutboundDepth = t.outbox.Len()
	st.OutboundHighWater = t.outbox.HighWater()
	st.CommandsHandled = t.commandsHandled.Load()
	st.EventsEmitted = t.eventsEmitted.Load()
	t.backend.CollectStatus(&st.Backend)
}

// outboxSink appends payloads to the outbound queue, which raises the
// hub signal as a side effect.
type outboxSink struct {
	t *thread
}

func (s outboxSink) Append(p *message.FileSystemPayload) {
	s.t.outbox.Push(p)
	s.t.eventsEmitted.Add(1)
}

// processInbox drains and handles queued commands. It reports whether
// the terminal stop command was seen; commands queued behind it are
// failed, not executed.
func (t *thread) processInbox(sink backend.Sink) (stopping bool) {
	for _, m := range t.inbox.TakeAll() {
		cmd, ok := m.(*message.CommandPayload)
		if !ok {
			t.log.Warnln("unexpected inbound message:", m)
			continue
		}
		if stopping {
			t.ack(cmd, ErrTerminated)
			continue
		}
		if cmd.Action == message.CmdStop {
			stopping = true
			continue
		}
		t.handleCommand(cmd, sink)
	}
	return stopping
}

func (t *thread) handleCommand(cmd *message.CommandPayload, sink backend.Sink) {
	t.log.Debugln("handling", cmd)
	t.commandsHandled.Add(1)
	metricCommandsTotal.WithLabelValues(t.name, cmd.Action.String()).Inc()

	switch cmd.Action {
	case message.CmdLogFile:
		t.ack(cmd, t.log.ToFile(cmd.Root))
	case message.CmdLogStderr:
		t.log.ToStderr()
		t.ack(cmd, nil)
	case message.CmdLogStdout:
		t.log.ToStdout()
		t.ack(cmd, nil)
	case message.CmdLogDisable:
		t.log.Disable()
		t.ack(cmd, nil)
	case message.CmdDrain:
		// Flush backend buffered events ahead of the ack so a caller
		// waiting on it sees everything produced so far.
		t.ack(cmd, t.backend.Drain(sink))
	case message.CmdAdd:
		t.ack(cmd, t.backend.AddRoot(cmd.Channel(), cmd.Root))
	case message.CmdRemove:
		t.ack(cmd, t.backend.RemoveChannel(cmd.Channel()))
	default:
		if t.extra != nil {
			if handled, err := t.extra(cmd); handled {
				t.ack(cmd, err)
				return
			}
		}
		t.ack(cmd, fmt.Errorf("unrecognized command action %v", cmd.Action))
	}
}

func (t *thread) ack(cmd *message.CommandPayload, err error) {
	ack := message.AckFor(cmd, err)
	if err != nil {
		t.log.Debugln("failing", cmd, err)
	}
	metricAcksTotal.WithLabelValues(t.name, outcome(ack)).Inc()
	t.outbox.Push(ack)
}

func outcome(ack *message.AckPayload) string {
	if ack.Success {
		return "success"
	}
	return "failure"
}

// shutdown moves the thread to stopping, fails every command still in
// the inbound queue, flushes the backend into outbound and closes it.
func (t *thread) shutdown(sink backend.Sink) {
	t.state.Store(stateStopping)
	t.terminated.Store(true)
	for _, m := range t.inbox.TakeAll() {
		if cmd, ok := m.(*message.CommandPayload); ok && cmd.Action != message.CmdStop {
			t.ack(cmd, ErrTerminated)
		}
	}
	if err := t.backend.Drain(sink); err != nil {
		t.log.Debugln("final drain:", err)
	}
	if err := t.backend.Close(); err != nil {
		t.log.Debugln("closing backend:", err)
	}
}

// fatal handles an unrecoverable backend error: every outstanding
// command is failed and the thread transitions to stopping.
func (t *thread) fatal(err error, sink backend.Sink) {
	t.log.Warnln(t.name, "thread: fatal backend error:", err)
	t.shutdown(sink)
}

// serveEnter flips the thread into the running state. It returns false
// when the thread has already run once; suture must not run us again.
func (t *thread) serveEnter() bool {
	if !t.started.CompareAndSwap(false, true) {
		return false
	}
	t.state.Store(stateRunning)
	return true
}

// serveExit is deferred by Serve.
func (t *thread) serveExit() {
	t.state.Store(stateStopped)
	t.terminated.Store(true)
	close(t.done)
}
