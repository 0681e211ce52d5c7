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
	"slices"
	"time"

	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
	"github.com/syncthing/watcher/lib/sync"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultPollThrottle = 1000

	MinPollInterval = time.Millisecond
	MinPollThrottle = 1
)

// Poller detects changes by comparing stat results against a per root
// entry cache. A scan tick spends at most throttle entry comparisons,
// round-robinning across roots; unfinished sweeps carry over to the
// next tick. The first sweep after AddRoot primes the cache without
// emitting events.
type Poller struct {
	mut      sync.Mutex
	roots    []*pollRoot
	byChan   map[message.ChannelID]*pollRoot
	interval time.Duration
	throttle int
	rotate   int
}

type pollRoot struct {
	id      message.ChannelID
	root    string
	primed  bool
	entries map[string]pollEntry
	// Sweep state, carried across ticks while non-empty.
	sweep   []string
	seen    map[string]struct{}
	deletes []string
}

type pollEntry struct {
	mtime time.Time
	size  int64
	isDir bool
}

func NewPoller() *Poller {
	return &Poller{
		mut:      sync.NewMutex(),
		byChan:   make(map[message.ChannelID]*pollRoot),
		interval: DefaultPollInterval,
		throttle: DefaultPollThrottle,
	}
}

func (p *Poller) AddRoot(id message.ChannelID, root string) error {
	if _, err := lstat(root); err != nil {
		return fmt.Errorf("polling %s: %w", root, err)
	}
	p.mut.Lock()
	defer p.mut.Unlock()
	if _, ok := p.byChan[id]; ok {
		return errDuplicateChannel(id)
	}
	r := &pollRoot{
		id:      id,
		root:    root,
		entries: make(map[string]pollEntry),
	}
	p.roots = append(p.roots, r)
	p.byChan[id] = r
	l.Debugln("poll: watching", root, "on channel", id)
	return nil
}

func (p *Poller) RemoveChannel(id message.ChannelID) error {
	p.mut.Lock()
	defer p.mut.Unlock()
	r, ok := p.byChan[id]
	if !ok {
		return errUnknownChannel(id)
	}
	delete(p.byChan, id)
	p.roots = slices.DeleteFunc(p.roots, func(c *pollRoot) bool { return c == r })
	l.Debugln("poll: stopped watching", r.root, "on channel", id)
	return nil
}

// Pending returns nil; the polling thread is timer driven.
func (p *Poller) Pending() <-chan struct{} {
	return nil
}

func (p *Poller) SetInterval(d time.Duration) error {
	if d < MinPollInterval {
		return fmt.Errorf("polling interval %v below minimum %v", d, MinPollInterval)
	}
	p.mut.Lock()
	p.interval = d
	p.mut.Unlock()
	return nil
}

func (p *Poller) Interval() time.Duration {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.interval
}

func (p *Poller) SetThrottle(n int) error {
	if n < MinPollThrottle {
		return fmt.Errorf("polling throttle %d below minimum %d", n, MinPollThrottle)
	}
	p.mut.Lock()
	p.throttle = n
	p.mut.Unlock()
	return nil
}

func (p *Poller) Throttle() int {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.throttle
}

// Drain performs one scan tick.
func (p *Poller) Drain(sink Sink) error {
	t0 := time.Now()
	defer func() {
		metricPollTickSeconds.Observe(time.Since(t0).Seconds())
	}()

	p.mut.Lock()
	defer p.mut.Unlock()

	// Roots that finished their previous sweep start a fresh one.
	for _, r := range p.roots {
		if len(r.sweep) == 0 && len(r.deletes) == 0 {
			r.sweep = []string{r.root}
			r.seen = make(map[string]struct{})
		}
	}

	budget := p.throttle
	for budget > 0 {
		r := p.nextWithWork()
		if r == nil {
			break
		}
		budget -= p.step(r, sink)
	}
	return nil
}

// nextWithWork advances the rotation to the next root that has sweep or
// delete work, or returns nil if none do.
func (p *Poller) nextWithWork() *pollRoot {
	for i := 0; i < len(p.roots); i++ {
		r := p.roots[p.rotate%len(p.roots)]
		p.rotate++
		if len(r.sweep) > 0 || len(r.deletes) > 0 {
			return r
		}
	}
	return nil
}

// step performs one unit of work on r and returns its budget cost.
func (p *Poller) step(r *pollRoot, sink Sink) int {
	if len(r.deletes) > 0 {
		path := r.deletes[0]
		r.deletes = r.deletes[1:]
		old := r.entries[path]
		delete(r.entries, path)
		p.emit(sink, &message.FileSystemPayload{
			Channel: r.id,
			Action:  message.ActionDeleted,
			Kind:    cachedKind(old),
			Path:    path,
		})
		return 1
	}

	path := r.sweep[len(r.sweep)-1]
	r.sweep = r.sweep[:len(r.sweep)-1]

	fi, err := lstat(path)
	if err != nil {
		// Vanished mid-sweep; the completion diff picks it up.
		p.finishSweepIfDone(r)
		return 1
	}
	r.seen[path] = struct{}{}

	if fi.IsDir() {
		names, err := readDirNames(path)
		if err != nil {
			l.Debugln("poll: listing", path, err)
		}
		for _, name := range names {
			r.sweep = append(r.sweep, filepath.Join(path, name))
		}
	}

	cur := pollEntry{mtime: fi.ModTime(), size: fi.Size(), isDir: fi.IsDir()}
	old, known := r.entries[path]
	r.entries[path] = cur

	switch {
	case !known:
		if r.primed {
			p.emit(sink, &message.FileSystemPayload{
				Channel: r.id,
				Action:  message.ActionCreated,
				Kind:    kindOf(fi),
				Path:    path,
			})
		}
	case old.isDir != cur.isDir:
		// The entry was replaced by one of a different kind.
		p.emit(sink, &message.FileSystemPayload{
			Channel: r.id,
			Action:  message.ActionDeleted,
			Kind:    cachedKind(old),
			Path:    path,
		})
		p.emit(sink, &message.FileSystemPayload{
			Channel: r.id,
			Action:  message.ActionCreated,
			Kind:    kindOf(fi),
			Path:    path,
		})
	case !cur.isDir && (!old.mtime.Equal(cur.mtime) || old.size != cur.size):
		p.emit(sink, &message.FileSystemPayload{
			Channel: r.id,
			Action:  message.ActionModified,
			Kind:    kindOf(fi),
			Path:    path,
		})
	}

	p.finishSweepIfDone(r)
	return 1
}

// finishSweepIfDone diffs the cache against the paths seen once the
// sweep queue empties, queueing deletions for budgeted emission.
func (p *Poller) finishSweepIfDone(r *pollRoot) {
	if len(r.sweep) > 0 {
		return
	}
	for path := range r.entries {
		if _, ok := r.seen[path]; !ok {
			r.deletes = append(r.deletes, path)
		}
	}
	// Deterministic emission order for a deterministic cache diff.
	slices.Sort(r.deletes)
	r.seen = nil
	r.primed = true
}

func (p *Poller) emit(sink Sink, ev *message.FileSystemPayload) {
	sink.Append(ev)
	metricEventsTotal.WithLabelValues("poll", ev.Action.String()).Inc()
}

func cachedKind(e pollEntry) message.EntryKind {
	if e.isDir {
		return message.KindDirectory
	}
	return message.KindFile
}

func readDirNames(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, err
}

func (p *Poller) CollectStatus(st *status.BackendStatus) {
	p.mut.Lock()
	defer p.mut.Unlock()
	st.Kind = "poll"
	st.ActiveRoots = len(p.roots)
	for _, r := range p.roots {
		st.CacheEntries += len(r.entries)
		st.CarriedEntries += len(r.sweep) + len(r.deletes)
	}
}

func (p *Poller) Close() error {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.roots = nil
	p.byChan = make(map[message.ChannelID]*pollRoot)
	return nil
}
