// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hostcmd drives a lookup table's host command interface: argument
// registers are loaded, a command is written and the status register is
// polled for the done bit within a fixed budget.
package hostcmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"
)

const (
	DefaultPollCount = 1000
	DefaultPollDelay = 10 * time.Microsecond
)

var ErrTimeout = errors.New("timeout")

// Poll budget of a command. Not characterized for any particular
// accelerator revision.
type Config struct {
	// Status register reads before the command times out.
	PollCount int
	// Delay between status reads.
	PollDelay time.Duration
}

// Budget is the worst case time a command may poll.
func (cf Config) Budget() time.Duration {
	return time.Duration(cf.PollCount) * cf.PollDelay
}

// Channel is not safe for concurrent use; owners serialize commands since
// each one overwrites the argument registers.
type Channel struct {
	Regs
	Config
}

func New(r Regs, cf Config) *Channel {
	if cf.PollCount == 0 {
		cf.PollCount = DefaultPollCount
	}
	if cf.PollDelay == 0 {
		cf.PollDelay = DefaultPollDelay
	}
	return &Channel{Regs: r, Config: cf}
}

// Exec loads args into the argument registers, issues the command and waits
// for done. The status register is acknowledged whether or not done is seen.
func (c *Channel) Exec(cmd Command, args []uint32) (Status, error) {
	if len(args) > NArg {
		return 0, fmt.Errorf("%v: %d args > %d", cmd, len(args), NArg)
	}
	for i, v := range args {
		c.Set(RegArg0+Reg(i), v)
	}
	c.Set(RegCmd, cmd.Uint32())
	s, err := c.poll()
	c.Set(RegStatus, uint32(StatusAck))
	if err != nil {
		log.Print("debug", "hostcmd: ", cmd, ": ", err, " after ",
			c.Budget(), " status ", s)
		return s, fmt.Errorf("%v: %w", cmd, err)
	}
	return s, nil
}

func (c *Channel) poll() (Status, error) {
	var s Status
	for i := 0; i < c.PollCount; i++ {
		s = Status(c.Get(RegStatus))
		if s&Done != 0 {
			return s, nil
		}
		time.Sleep(c.PollDelay)
	}
	return s, ErrTimeout
}

// Result copies the argument registers left by the last command into rx.
func (c *Channel) Result(rx []uint32) {
	for i := range rx {
		if i >= NArg {
			break
		}
		rx[i] = c.Get(RegArg0 + Reg(i))
	}
}

// Read fetches the record at table address addr.
func (c *Channel) Read(addr uint32, rx []uint32) error {
	c.Set(RegEntry, addr)
	if _, err := c.Exec(Command{Opcode: MemRead}, nil); err != nil {
		return err
	}
	c.Result(rx)
	return nil
}

// Write stores the record at table address addr.
func (c *Channel) Write(addr uint32, tx []uint32) error {
	c.Set(RegEntry, addr)
	_, err := c.Exec(Command{Opcode: MemWrite}, tx)
	return err
}

// SetFreeList programs the collision space free list bookkeeping.
func (c *Channel) SetFreeList(head, tail, n uint32) {
	c.Set(RegFreeListHead, head)
	c.Set(RegFreeListTail, tail)
	c.Set(RegFreeListEntries, n)
}

// FreeEntries returns the number of unused collision slots.
func (c *Channel) FreeEntries() uint32 { return c.Get(RegFreeListEntries) }
