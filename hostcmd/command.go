// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hostcmd

import (
	"fmt"

	"github.com/platinasystems/l2br/internal/m"
)

type Opcode uint8

const (
	Init     Opcode = 0x01
	Add      Opcode = 0x02
	Delete   Opcode = 0x03
	Update   Opcode = 0x04
	Search   Opcode = 0x05
	MemRead  Opcode = 0x06
	MemWrite Opcode = 0x07
	Flush    Opcode = 0x08
)

var opcodeStrings = [...]string{
	Init:     "init",
	Add:      "add",
	Delete:   "delete",
	Update:   "update",
	Search:   "search",
	MemRead:  "mem-read",
	MemWrite: "mem-write",
	Flush:    "flush",
}

// NOpcode bounds the opcode space for per-opcode counters.
const NOpcode = int(Flush) + 1

func (o Opcode) String() string {
	if int(o) < len(opcodeStrings) && len(opcodeStrings[o]) > 0 {
		return opcodeStrings[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// Command register word.
// [7:0] opcode, [15:8] field valid mask, [19:16] port, [24] flush all
type Command struct {
	Opcode     Opcode
	FieldValid uint8
	Port       uint8
	FlushAll   bool
}

const (
	cmdFieldValidShift = 8
	cmdPortShift       = 16
	cmdPortMask        = 0xf
	cmdFlushAll        = 1 << 24
)

func (c Command) Uint32() uint32 {
	v := uint32(c.Opcode) |
		uint32(c.FieldValid)<<cmdFieldValidShift |
		uint32(c.Port&cmdPortMask)<<cmdPortShift
	if c.FlushAll {
		v |= cmdFlushAll
	}
	return v
}

func (c *Command) FromUint32(v uint32) {
	c.Opcode = Opcode(v)
	c.FieldValid = uint8(v >> cmdFieldValidShift)
	c.Port = uint8(v>>cmdPortShift) & cmdPortMask
	c.FlushAll = v&cmdFlushAll != 0
}

func (c Command) String() string {
	s := c.Opcode.String()
	if c.FieldValid != 0 {
		s += fmt.Sprintf(" valid:0x%02x", c.FieldValid)
	}
	if c.Port != 0 {
		s += fmt.Sprintf(" port:%d", c.Port)
	}
	if c.FlushAll {
		s += " all"
	}
	return s
}

// Status register word; bits self clear when written with ones.
type Status uint32

const (
	Done          Status = 1 << 0
	EntryNotFound Status = 1 << 1
	InitDone      Status = 1 << 2
	EntryAdded    Status = 1 << 3
	Match         Status = 1 << 4
)

// Written to the status register to acknowledge a command.
const StatusAck Status = ^Status(0)

var statusStrings = []string{
	0: "done",
	1: "entry-not-found",
	2: "init-done",
	3: "entry-added",
	4: "match",
}

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	return m.FlagStringer(statusStrings, uint64(s))
}

func (s Status) Has(x Status) bool { return s&x == x }
