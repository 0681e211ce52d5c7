// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command watcher watches the given roots and prints filesystem events
// as JSON lines, one per event. It is the reference host process for
// the watcher library: it drives the hub from a single goroutine and
// drains on the wakeup signal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/syncthing/watcher/lib/hub"
	"github.com/syncthing/watcher/lib/ignore"
	"github.com/syncthing/watcher/lib/logger"
	"github.com/syncthing/watcher/lib/message"
	"github.com/syncthing/watcher/lib/status"
	"github.com/syncthing/watcher/lib/svcutil"
)

type CLI struct {
	Roots         []string      `arg:"" name:"root" help:"Directories to watch." type:"existingdir"`
	Poll          bool          `help:"Use the stat polling backend instead of OS notifications."`
	Interval      time.Duration `default:"100ms" help:"Polling scan interval."`
	Throttle      int           `default:"1000" help:"Maximum events per polling tick."`
	Ignore        []string      `placeholder:"GLOB" help:"Drop events whose path matches any of these globs."`
	LogFile       string        `placeholder:"PATH" help:"Redirect the main log to a file."`
	WorkerLog     string        `placeholder:"PATH" help:"Redirect the worker thread log to a file."`
	PollingLog    string        `placeholder:"PATH" help:"Redirect the polling thread log to a file."`
	MetricsListen string        `placeholder:"ADDR" help:"Serve prometheus metrics on this address."`
	StatusEvery   time.Duration `help:"Dump diagnostic status at this interval."`
}

type eventLine struct {
	Channel uint64 `json:"channel"`
	Action  string `json:"action"`
	Kind    string `json:"kind"`
	OldPath string `json:"oldPath,omitempty"`
	Path    string `json:"path"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("watcher"),
		kong.Description("Watch directories and print filesystem events as JSON lines."),
	)
	kctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	matcher, err := ignore.New(cli.Ignore...)
	if err != nil {
		return err
	}

	h := hub.New()
	if cli.LogFile != "" {
		if err := h.UseMainLogFile(cli.LogFile); err != nil {
			return err
		}
	}

	if cli.MetricsListen != "" {
		serveMetrics(cli.MetricsListen)
	}

	h.Start()
	defer h.Stop()

	// Thread log redirection and tuning are acknowledged commands;
	// queue them before the watches so they apply first.
	ackOrWarn := func(what string) hub.AckFunc {
		return func(err error) {
			if err != nil {
				logger.DefaultLogger.Warnf("%s: %v", what, err)
			}
		}
	}
	if cli.WorkerLog != "" {
		if err := h.UseWorkerLogFile(cli.WorkerLog, ackOrWarn("worker log")); err != nil {
			return err
		}
	}
	if cli.PollingLog != "" {
		if err := h.UsePollingLogFile(cli.PollingLog, ackOrWarn("polling log")); err != nil {
			return err
		}
	}
	if cli.Poll {
		if err := h.SetPollingInterval(cli.Interval, ackOrWarn("polling interval")); err != nil {
			return err
		}
		if err := h.SetPollingThrottle(cli.Throttle, ackOrWarn("polling throttle")); err != nil {
			return err
		}
	}

	out := json.NewEncoder(os.Stdout)
	printEvents := func(evs []*message.FileSystemPayload) {
		for _, ev := range evs {
			if matcher.Match(ev.Path) || (ev.OldPath != "" && matcher.Match(ev.OldPath)) {
				continue
			}
			out.Encode(eventLine{
				Channel: uint64(ev.Channel),
				Action:  ev.Action.String(),
				Kind:    ev.Kind.String(),
				OldPath: ev.OldPath,
				Path:    ev.Path,
			})
		}
	}

	for _, root := range cli.Roots {
		root := root
		_, err := h.Watch(root, cli.Poll, func(err error) {
			if err != nil {
				logger.DefaultLogger.Warnf("watching %s: %v", root, err)
			} else {
				logger.DefaultLogger.Infof("watching %s", root)
			}
		}, printEvents)
		if err != nil {
			return err
		}
	}

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt, syscall.SIGTERM)

	var statusC <-chan time.Time
	if cli.StatusEvery > 0 {
		ticker := time.NewTicker(cli.StatusEvery)
		defer ticker.Stop()
		statusC = ticker.C
	}

	for {
		select {
		case <-h.Wakeup():
			h.HandleEvents()
		case <-statusC:
			var st status.Status
			h.CollectStatus(&st)
			blob, _ := json.Marshal(st)
			fmt.Fprintln(os.Stderr, string(blob))
		case <-intr:
			return nil
		}
	}
}

// serveMetrics runs the prometheus endpoint under its own little
// supervisor so a flaky listener doesn't take the watcher down.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	sup := suture.New("metrics", svcutil.SpecWithInfoLogger(logger.DefaultLogger))
	sup.Add(svcutil.AsService(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		return srv.ListenAndServe()
	}, "metrics/http"))
	sup.ServeBackground(context.Background())
}
