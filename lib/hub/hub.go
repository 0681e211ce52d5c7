// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package hub implements the host facing surface of the watcher: it
// owns the worker and polling threads, allocates channel and command
// identifiers, routes commands to the right thread and dispatches
// events and acknowledgements back to the caller's sinks.
//
// A Hub belongs to the goroutine that created it. All methods except
// Wakeup must be called from that goroutine; the wakeup channel tells
// it when HandleEvents has work to do.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/syncthing/watcher/lib/backend"
	"github.com/syncthing/watcher/lib/logger"
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
	"github.com/syncthing/watcher/lib/svcutil"
	"github.com/syncthing/watcher/lib/thread"
	"github.com/syncthing/watcher/lib/wakeup"
)

// AckFunc is invoked exactly once when the command it was registered
// for has taken effect. A nil error means success.
type AckFunc func(err error)

// EventFunc receives filesystem events for one channel in the order
// the owning thread emitted them. Consecutive events for the same
// channel may arrive coalesced into one call.
type EventFunc func(evs []*message.FileSystemPayload)

type pendingCommand struct {
	ack     AckFunc
	action  message.CommandAction
	channel message.ChannelID
}

type channelSub struct {
	events EventFunc
	poll   bool
}

type Hub struct {
	signal  *wakeup.Signal
	worker  *thread.WorkerThread
	polling *thread.PollingThread
	sup     *suture.Supervisor
	mainLog logger.Logger

	cancel  context.CancelFunc
	supDone <-chan error

	nextCommand message.CommandID
	nextChannel message.ChannelID
	pending     map[message.CommandID]pendingCommand
	channels    map[message.ChannelID]channelSub

	warnOrphans rate.Sometimes
	warnAcks    rate.Sometimes
}

type Option func(*opts)

type opts struct {
	native  backend.Backend
	polling backend.Polling
	mainLog logger.Logger
}

// WithNativeBackend replaces the notify based native backend, mainly
// for tests.
func WithNativeBackend(b backend.Backend) Option {
	return func(o *opts) { o.native = b }
}

// WithPollingBackend replaces the stat cache polling backend.
func WithPollingBackend(b backend.Polling) Option {
	return func(o *opts) { o.polling = b }
}

// WithMainLogger sets the logger affected by the main log admin calls.
func WithMainLogger(log logger.Logger) Option {
	return func(o *opts) { o.mainLog = log }
}

func New(options ...Option) *Hub {
	o := opts{
		mainLog: logger.DefaultLogger,
	}
	for _, opt := range options {
		opt(&o)
	}
	if o.native == nil {
		o.native = backend.NewNative()
	}
	if o.polling == nil {
		o.polling = backend.NewPoller()
	}

	signal := wakeup.New()
	h := &Hub{
		signal:      signal,
		worker:      thread.NewWorker(o.native, signal),
		polling:     thread.NewPolling(o.polling, signal),
		mainLog:     o.mainLog,
		pending:     make(map[message.CommandID]pendingCommand),
		channels:    make(map[message.ChannelID]channelSub),
		warnOrphans: rate.Sometimes{First: 3, Interval: 10 * time.Second},
		warnAcks:    rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
	h.sup = suture.New("hub", svcutil.SpecWithDebugLogger(l))
	h.sup.Add(h.worker)
	h.sup.Add(h.polling)
	return h
}

// Start launches the worker and polling threads under the hub's
// supervisor.
func (h *Hub) Start() {
	if h.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.supDone = h.sup.ServeBackground(ctx)
}

// Stop terminates both threads, delivers their terminal acks and
// closes the wakeup signal. Idempotent.
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	if err := <-h.supDone; err != nil && !errors.Is(err, context.Canceled) {
		l.Debugln("supervisor:", err)
	}
	// Usually no-ops; guarantees terminated threads even if the
	// supervisor was cancelled before it ever ran them.
	h.worker.Stop()
	h.polling.Stop()
	// The threads failed whatever was still outstanding on their way
	// out; deliver those acks before going quiet. Anything that still
	// has no ack (the thread was torn down before it ever drained) is
	// failed here so the exactly-once ack contract holds.
	h.HandleEvents()
	for id, pc := range h.pending {
		delete(h.pending, id)
		if pc.action == message.CmdAdd {
			delete(h.channels, pc.channel)
		}
		if pc.ack != nil {
			pc.ack(thread.ErrTerminated)
		}
	}
	h.signal.Close()
}

// Wakeup yields whenever a thread has produced output. The owning
// goroutine must call HandleEvents on each wakeup. Raises coalesce.
func (h *Hub) Wakeup() <-chan struct{} {
	return h.signal.C()
}

// Watch begins watching root and binds it to a fresh channel. The
// channel id is returned synchronously; ack reports later whether the
// backend accepted the root. Events flow to events until Unwatch.
func (h *Hub) Watch(root string, poll bool, ack AckFunc, events EventFunc) (message.ChannelID, error) {
	h.nextChannel++
	id := h.nextChannel
	h.channels[id] = channelSub{events: events, poll: poll}

	if err := h.sendCommand(poll, message.CmdAdd, root, uint64(id), ack); err != nil {
		delete(h.channels, id)
		return message.NoChannel, err
	}
	l.Debugln("watch", root, "poll:", poll, "-> channel", id)
	return id, nil
}

// Unwatch stops the channel. The event sink stays registered until the
// remove ack arrives, so events already in flight are still delivered.
// An unknown channel id fails the ack immediately.
func (h *Hub) Unwatch(id message.ChannelID, ack AckFunc) error {
	sub, ok := h.channels[id]
	if !ok {
		if ack != nil {
			ack(fmt.Errorf("unknown channel id %d", id))
		}
		return nil
	}
	return h.sendCommand(sub.poll, message.CmdRemove, "", uint64(id), ack)
}

// Main log admin, immediate on the calling goroutine.

func (h *Hub) UseMainLogFile(path string) error { return h.mainLog.ToFile(path) }
func (h *Hub) UseMainLogStderr()                { h.mainLog.ToStderr() }
func (h *Hub) UseMainLogStdout()                { h.mainLog.ToStdout() }
func (h *Hub) DisableMainLog()                  { h.mainLog.Disable() }

// Worker and polling log admin, acknowledged once the thread has
// applied the change.

func (h *Hub) UseWorkerLogFile(path string, ack AckFunc) error {
	return h.sendCommand(false, message.CmdLogFile, path, 0, ack)
}

func (h *Hub) UseWorkerLogStderr(ack AckFunc) error {
	return h.sendCommand(false, message.CmdLogStderr, "", 0, ack)
}

func (h *Hub) UseWorkerLogStdout(ack AckFunc) error {
	return h.sendCommand(false, message.CmdLogStdout, "", 0, ack)
}

func (h *Hub) DisableWorkerLog(ack AckFunc) error {
	return h.sendCommand(false, message.CmdLogDisable, "", 0, ack)
}

func (h *Hub) UsePollingLogFile(path string, ack AckFunc) error {
	return h.sendCommand(true, message.CmdLogFile, path, 0, ack)
}

func (h *Hub) UsePollingLogStderr(ack AckFunc) error {
	return h.sendCommand(true, message.CmdLogStderr, "", 0, ack)
}

func (h *Hub) UsePollingLogStdout(ack AckFunc) error {
	return h.sendCommand(true, message.CmdLogStdout, "", 0, ack)
}

func (h *Hub) DisablePollingLog(ack AckFunc) error {
	return h.sendCommand(true, message.CmdLogDisable, "", 0, ack)
}

// SetPollingInterval sets the time between scan ticks. Values below
// one millisecond are rejected through the ack.
func (h *Hub) SetPollingInterval(d time.Duration, ack AckFunc) error {
	return h.sendCommand(true, message.CmdPollingInterval, "", uint64(d.Milliseconds()), ack)
}

// SetPollingThrottle caps events emitted per scan tick.
func (h *Hub) SetPollingThrottle(n int, ack AckFunc) error {
	return h.sendCommand(true, message.CmdPollingThrottle, "", uint64(n), ack)
}

// DrainWorker and DrainPolling flush backend buffered events ahead of
// the ack.

func (h *Hub) DrainWorker(ack AckFunc) error {
	return h.sendCommand(false, message.CmdDrain, "", 0, ack)
}

func (h *Hub) DrainPolling(ack AckFunc) error {
	return h.sendCommand(true, message.CmdDrain, "", 0, ack)
}

func (h *Hub) sendCommand(poll bool, action message.CommandAction, root string, arg uint64, ack AckFunc) error {
	h.nextCommand++
	cmd := &message.CommandPayload{
		ID:     h.nextCommand,
		Action: action,
		Root:   root,
		Arg:    arg,
	}
	h.pending[cmd.ID] = pendingCommand{ack: ack, action: action, channel: cmd.Channel()}

	var err error
	if poll {
		err = h.polling.Send(cmd)
	} else {
		err = h.worker.Send(cmd)
	}
	if err != nil {
		delete(h.pending, cmd.ID)
		return err
	}
	return nil
}

// HandleEvents drains both threads' outbound queues and dispatches to
// the registered sinks. The worker thread drains first; within a
// thread, strict FIFO.
func (h *Hub) HandleEvents() {
	h.dispatch(h.worker.TakeAll())
	h.dispatch(h.polling.TakeAll())
}

func (h *Hub) dispatch(msgs []message.Message) {
	var batch []*message.FileSystemPayload
	var batchChannel message.ChannelID

	flush := func() {
		if len(batch) == 0 {
			return
		}
		sub := h.channels[batchChannel]
		evs := batch
		batch = nil
		metricEventsDispatched.Add(float64(len(evs)))
		if sub.events != nil {
			sub.events(evs)
		}
	}

	for _, m := range msgs {
		switch m := m.(type) {
		case *message.FileSystemPayload:
			// The channel must still be registered at invocation time.
			// Registration only changes on acks, which flush first, so
			// checking at batch time is equivalent.
			if _, ok := h.channels[m.Channel]; !ok {
				metricEventsDropped.Inc()
				h.warnOrphans.Do(func() {
					l.Warnln("dropping event for unwatched channel:", m)
				})
				continue
			}
			if len(batch) > 0 && batchChannel != m.Channel {
				flush()
			}
			batchChannel = m.Channel
			batch = append(batch, m)

		case *message.AckPayload:
			flush()
			h.handleAck(m)

		default:
			l.Warnln("unexpected outbound message:", m)
		}
	}
	flush()
}

func (h *Hub) handleAck(ack *message.AckPayload) {
	pc, ok := h.pending[ack.Key]
	if !ok {
		h.warnAcks.Do(func() {
			l.Warnln("dropping ack for unknown command:", ack)
		})
		return
	}
	delete(h.pending, ack.Key)

	switch {
	case pc.action == message.CmdAdd && !ack.Success:
		// The preallocated subscription never became live.
		delete(h.channels, pc.channel)
	case pc.action == message.CmdRemove && ack.Success:
		delete(h.channels, pc.channel)
	}

	if pc.ack == nil {
		return
	}
	if ack.Success {
		pc.ack(nil)
	} else {
		pc.ack(errors.New(ack.Message))
	}
}

// CollectStatus fills st with hub level counts and both thread
// statuses.
func (h *Hub) CollectStatus(st *status.Status) {
	st.PendingCommands = len(h.pending)
	st.ActiveChannels = len(h.channels)
	st.NextCommandID = uint64(h.nextCommand)
	st.NextChannelID = uint64(h.nextChannel)
	h.worker.CollectStatus(&st.Worker)
	h.polling.CollectStatus(&st.Polling)
}
