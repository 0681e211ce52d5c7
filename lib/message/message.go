// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package message defines the payload types exchanged between the hub
// and the worker and polling threads.
package message

import "fmt"

// ChannelID identifies a live subscription binding one root path to one
// event sink. IDs are allocated by the hub, start at 1 and are never
// reused within a process.
type ChannelID uint64

// CommandID identifies a host originated command. Like channel IDs they
// are monotonic and never reused.
type CommandID uint64

const (
	// NoChannel is the reserved "none" channel ID.
	NoChannel ChannelID = 0
	// NoCommand is the reserved "none" command ID.
	NoCommand CommandID = 0
)

// EntryKind tells what kind of filesystem entry an event refers to.
type EntryKind int

const (
	KindUnknown EntryKind = iota
	KindFile
	KindDirectory
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "dir"
	default:
		return "unknown"
	}
}

// KindsDiffer returns true only when both kinds are known and unequal.
func KindsDiffer(a, b EntryKind) bool {
	if a == KindUnknown || b == KindUnknown {
		return false
	}
	return a != b
}

// FileSystemAction is the change a filesystem event reports.
type FileSystemAction int

const (
	ActionCreated FileSystemAction = iota
	ActionDeleted
	ActionModified
	ActionRenamed
)

func (a FileSystemAction) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionDeleted:
		return "deleted"
	case ActionModified:
		return "modified"
	case ActionRenamed:
		return "renamed"
	default:
		return fmt.Sprintf("!!action=%d", int(a))
	}
}

// CommandAction selects what a command does. Root and Arg of the
// carrying payload are interpreted per action.
type CommandAction int

const (
	CmdAdd CommandAction = iota
	CmdRemove
	CmdLogFile
	CmdLogStderr
	CmdLogStdout
	CmdLogDisable
	CmdPollingInterval
	CmdPollingThrottle
	CmdDrain
	// CmdStop is the terminal command a thread enqueues to itself on
	// Stop(). It is never acknowledged.
	CmdStop
)

func (a CommandAction) String() string {
	switch a {
	case CmdAdd:
		return "add"
	case CmdRemove:
		return "remove"
	case CmdLogFile:
		return "log to file"
	case CmdLogStderr:
		return "log to stderr"
	case CmdLogStdout:
		return "log to stdout"
	case CmdLogDisable:
		return "disable logging"
	case CmdPollingInterval:
		return "polling interval"
	case CmdPollingThrottle:
		return "polling throttle"
	case CmdDrain:
		return "drain"
	case CmdStop:
		return "stop"
	default:
		return fmt.Sprintf("!!action=%d", int(a))
	}
}

// Message is the envelope travelling through the inter-thread queues.
// Exactly the three payload types below implement it.
type Message interface {
	fmt.Stringer
	message()
}

// FileSystemPayload reports one filesystem change on a watched channel.
// OldPath is set if and only if Action is ActionRenamed.
type FileSystemPayload struct {
	Channel ChannelID
	Action  FileSystemAction
	Kind    EntryKind
	OldPath string
	Path    string
}

func (*FileSystemPayload) message() {}

func (p *FileSystemPayload) String() string {
	if p.Action == ActionRenamed {
		return fmt.Sprintf("[FileSystemPayload %v renamed {%s => %s}]", p.Kind, p.OldPath, p.Path)
	}
	return fmt.Sprintf("[FileSystemPayload %v %v %s]", p.Kind, p.Action, p.Path)
}

// CommandPayload is a host originated request to a thread. Root is the
// path argument where the action takes one; Arg carries the channel ID
// for Add/Remove and the numeric argument for polling tuning.
type CommandPayload struct {
	ID     CommandID
	Action CommandAction
	Root   string
	Arg    uint64
}

func (*CommandPayload) message() {}

// Channel returns the channel ID an Add or Remove command targets.
func (p *CommandPayload) Channel() ChannelID {
	switch p.Action {
	case CmdAdd, CmdRemove:
		return ChannelID(p.Arg)
	default:
		return NoChannel
	}
}

func (p *CommandPayload) String() string {
	switch p.Action {
	case CmdAdd, CmdRemove, CmdLogFile:
		return fmt.Sprintf("[CommandPayload id %d %v %s]", p.ID, p.Action, p.Root)
	case CmdPollingInterval, CmdPollingThrottle:
		return fmt.Sprintf("[CommandPayload id %d %v %d]", p.ID, p.Action, p.Arg)
	default:
		return fmt.Sprintf("[CommandPayload id %d %v]", p.ID, p.Action)
	}
}

// AckPayload acknowledges one command. Message is empty on success.
type AckPayload struct {
	Key     CommandID
	Channel ChannelID
	Success bool
	Message string
}

func (*AckPayload) message() {}

func (p *AckPayload) String() string {
	if !p.Success {
		return fmt.Sprintf("[AckPayload ack %d failed: %s]", p.Key, p.Message)
	}
	return fmt.Sprintf("[AckPayload ack %d]", p.Key)
}

// AckFor builds the acknowledgement for cmd. A nil err acks success,
// anything else carries the error text.
func AckFor(cmd *CommandPayload, err error) *AckPayload {
	ack := &AckPayload{
		Key:     cmd.ID,
		Channel: cmd.Channel(),
		Success: err == nil,
	}
	if err != nil {
		ack.Message = err.Error()
	}
	return ack
}
