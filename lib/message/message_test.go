// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package message_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/syncthing/watcher/lib/message"
)

func TestKindsDiffer(t *testing.T) {
	cases := []struct {
		a, b message.EntryKind
		want bool
	}{
		{message.KindFile, message.KindFile, false},
		{message.KindDirectory, message.KindDirectory, false},
		{message.KindFile, message.KindDirectory, true},
		{message.KindDirectory, message.KindFile, true},
		{message.KindUnknown, message.KindFile, false},
		{message.KindFile, message.KindUnknown, false},
		{message.KindUnknown, message.KindUnknown, false},
	}
	for _, tc := range cases {
		if got := message.KindsDiffer(tc.a, tc.b); got != tc.want {
			t.Errorf("KindsDiffer(%v, %v) == %v, expected %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCommandChannel(t *testing.T) {
	add := &message.CommandPayload{ID: 1, Action: message.CmdAdd, Root: "/somewhere", Arg: 42}
	if add.Channel() != 42 {
		t.Error("add command should target channel 42, got", add.Channel())
	}
	iv := &message.CommandPayload{ID: 2, Action: message.CmdPollingInterval, Arg: 42}
	if iv.Channel() != message.NoChannel {
		t.Error("interval command should target no channel, got", iv.Channel())
	}
}

func TestAckForSuccess(t *testing.T) {
	cmd := &message.CommandPayload{ID: 7, Action: message.CmdRemove, Arg: 3}
	ack := message.AckFor(cmd, nil)
	if ack.Key != 7 {
		t.Error("ack key should match command id, got", ack.Key)
	}
	if ack.Channel != 3 {
		t.Error("ack should carry the targeted channel, got", ack.Channel)
	}
	if !ack.Success {
		t.Error("nil error should ack success")
	}
	if ack.Message != "" {
		t.Error("success ack should have an empty message, got", ack.Message)
	}
}

func TestAckForFailure(t *testing.T) {
	cmd := &message.CommandPayload{ID: 8, Action: message.CmdAdd, Root: "/nope", Arg: 4}
	ack := message.AckFor(cmd, errors.New("no such directory"))
	if ack.Success {
		t.Error("error should ack failure")
	}
	if ack.Message != "no such directory" {
		t.Error("failure ack should carry the error text, got", ack.Message)
	}
}

func TestDescribeStrings(t *testing.T) {
	cases := []struct {
		msg  message.Message
		want string
	}{
		{
			&message.FileSystemPayload{Channel: 1, Action: message.ActionCreated, Kind: message.KindFile, Path: "/tmp/a/x"},
			"[FileSystemPayload file created /tmp/a/x]",
		},
		{
			&message.FileSystemPayload{Channel: 1, Action: message.ActionRenamed, Kind: message.KindFile, OldPath: "/tmp/a/x", Path: "/tmp/a/y"},
			"[FileSystemPayload file renamed {/tmp/a/x => /tmp/a/y}]",
		},
		{
			&message.CommandPayload{ID: 42, Action: message.CmdAdd, Root: "/root"},
			"[CommandPayload id 42 add /root]",
		},
		{
			&message.CommandPayload{ID: 43, Action: message.CmdPollingInterval, Arg: 250},
			"[CommandPayload id 43 polling interval 250]",
		},
		{
			&message.AckPayload{Key: 42, Success: true},
			"[AckPayload ack 42]",
		},
	}
	for _, tc := range cases {
		if got := tc.msg.String(); got != tc.want {
			t.Errorf("got %q, expected %q", got, tc.want)
		}
	}

	failed := &message.AckPayload{Key: 9, Success: false, Message: "boom"}
	if s := failed.String(); !strings.Contains(s, "failed") || !strings.Contains(s, "boom") {
		t.Errorf("failure ack string should mention the failure: %q", s)
	}
}
