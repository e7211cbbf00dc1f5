// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"fmt"
	"sync"

	"github.com/platinasystems/l2br/hostcmd"
	"github.com/platinasystems/log"
)

// Engine serializes all command sequences of one table behind its mutex;
// at most one hardware command is in flight per table.
type Engine struct {
	mu    sync.Mutex
	t     TableType
	geo   Geometry
	ch    *hostcmd.Channel // nil once closed
	stats Stats
}

// New returns an engine for table type t and initializes the table.
func New(t TableType, ch *hostcmd.Channel) (*Engine, error) {
	if t >= NTableType {
		return nil, fmt.Errorf("%v: %w", t, ErrInvalid)
	}
	if ch == nil {
		return nil, fmt.Errorf("%v: %w: no command channel", t, ErrInvalid)
	}
	e := &Engine{t: t, geo: t.Geometry(), ch: ch}
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) Type() TableType    { return e.t }
func (e *Engine) Geometry() Geometry { return e.geo }

// Stats returns a snapshot of the command counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Init wipes the table and links the whole collision space into the free
// list: slot hash+i points at hash+i+1 and the last slot terminates it.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return e.errorf(hostcmd.Init, ErrClosed)
	}
	s, err := e.exec(hostcmd.Command{Opcode: hostcmd.Init}, nil)
	if err != nil {
		return e.errorf(hostcmd.Init, err)
	}
	if !s.Has(hostcmd.InitDone) {
		return e.fail(hostcmd.Init, s)
	}
	// Free slots carry only the collision pointer; valid stays clear so
	// that valid always means occupied, for searches and iteration alike.
	x := NewEntry(e.t)
	for i := uint32(0); i < e.geo.CollDepth; i++ {
		addr := e.geo.HashDepth + i
		x.head().link(addr+1, i+1 < e.geo.CollDepth)
		if err = e.write(addr, x); err != nil {
			return e.errorf(hostcmd.MemWrite, err)
		}
	}
	e.ch.SetFreeList(e.geo.HashDepth, e.geo.Depth()-1, e.geo.CollDepth)
	return nil
}

// Flush removes every entry, hash and collision space, in one command.
// Free list bookkeeping is left to hardware.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return e.errorf(hostcmd.Flush, ErrClosed)
	}
	return e.flush()
}

func (e *Engine) flush() error {
	e.ch.Set(hostcmd.RegEntry, 0)
	args := make([]uint32, hostcmd.NArg)
	_, err := e.exec(hostcmd.Command{Opcode: hostcmd.Flush, FlushAll: true}, args)
	if err != nil {
		return e.errorf(hostcmd.Flush, err)
	}
	return nil
}

// Add inserts x, taking a free collision slot when its bucket is occupied.
// x needs its key and action data set.
func (e *Engine) Add(x Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.keyed(hostcmd.Add, x)
	if err != nil {
		return err
	}
	if !s.Has(hostcmd.EntryAdded) {
		return e.fail(hostcmd.Add, s)
	}
	return nil
}

// Delete removes the entry keyed by x.  Deleting an absent key succeeds.
func (e *Engine) Delete(x Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.keyed(hostcmd.Delete, x)
	if err != nil {
		return err
	}
	if s.Has(hostcmd.EntryNotFound) {
		e.stats.NotFound++
		log.Print("debug", e.t, " delete ", x, ": ", ErrNotFound)
	}
	return nil
}

// Update replaces the action data of the entry keyed by x.
func (e *Engine) Update(x Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.keyed(hostcmd.Update, x)
	if err != nil {
		return err
	}
	if s.Has(hostcmd.EntryNotFound) {
		return e.notFound(hostcmd.Update)
	}
	return nil
}

// Search looks up the entry keyed by x and merges the stored action data,
// port and flags into x.
func (e *Engine) Search(x Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.keyed(hostcmd.Search, x)
	if err != nil {
		return err
	}
	if !s.Has(hostcmd.Match) {
		return e.notFound(hostcmd.Search)
	}
	var b [entryBits / 32]uint32
	e.ch.Result(b[:])
	y, err := Decode(b[:], e.t)
	if err != nil {
		return e.errorf(hostcmd.Search, err)
	}
	x.SetAction(y.Action())
	h, yh := x.head(), y.head()
	h.port = yh.port
	h.valid = yh.valid
	h.colPtr, h.colValid = yh.colPtr, yh.colValid
	return nil
}

// ReadIndexed returns the record at table address addr.
func (e *Engine) ReadIndexed(addr uint32) (Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return nil, e.errorf(hostcmd.MemRead, ErrClosed)
	}
	if addr >= e.geo.Depth() {
		return nil, e.errorf(hostcmd.MemRead,
			fmt.Errorf("%w: address %d >= %d", ErrInvalid, addr, e.geo.Depth()))
	}
	x, err := e.read(addr)
	if err != nil {
		return nil, e.errorf(hostcmd.MemRead, err)
	}
	return x, nil
}

// WriteIndexed stores x at table address addr as is.
func (e *Engine) WriteIndexed(addr uint32, x Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return e.errorf(hostcmd.MemWrite, ErrClosed)
	}
	if addr >= e.geo.Depth() {
		return e.errorf(hostcmd.MemWrite,
			fmt.Errorf("%w: address %d >= %d", ErrInvalid, addr, e.geo.Depth()))
	}
	if x == nil || x.Type() != e.t {
		return e.errorf(hostcmd.MemWrite,
			fmt.Errorf("%w: not a %v entry", ErrInvalid, e.t))
	}
	if err := e.write(addr, x); err != nil {
		return e.errorf(hostcmd.MemWrite, err)
	}
	return nil
}

// FreeEntries returns the number of collision slots on the free list.
func (e *Engine) FreeEntries() (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return 0, fmt.Errorf("%v: %w", e.t, ErrClosed)
	}
	return e.ch.FreeEntries(), nil
}

// Close flushes the table and detaches the command channel.  Later
// operations return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		return nil
	}
	err := e.flush()
	e.ch = nil
	return err
}

func (e *Engine) validate(op hostcmd.Opcode, x Entry) error {
	if x == nil || x.Type() != e.t {
		return fmt.Errorf("%w: not a %v entry", ErrInvalid, e.t)
	}
	h := x.head()
	switch e.t {
	case MacVlan:
		if !h.macSet && !h.vlanSet {
			return fmt.Errorf("%w: mac or vlan required", ErrInvalid)
		}
	case Vlan:
		if !h.vlanSet {
			return fmt.Errorf("%w: vlan required", ErrInvalid)
		}
	}
	if op == hostcmd.Add && !h.actionSet {
		return fmt.Errorf("%w: action required", ErrInvalid)
	}
	return nil
}

// keyed issues a command carrying x in the argument registers.
func (e *Engine) keyed(op hostcmd.Opcode, x Entry) (hostcmd.Status, error) {
	if e.ch == nil {
		return 0, e.errorf(op, ErrClosed)
	}
	if err := e.validate(op, x); err != nil {
		return 0, e.errorf(op, err)
	}
	cmd := hostcmd.Command{
		Opcode:     op,
		FieldValid: x.FieldValid(),
		Port:       x.Port(),
	}
	s, err := e.exec(cmd, Encode(x))
	if err != nil {
		return s, e.errorf(op, err)
	}
	return s, nil
}

func (e *Engine) exec(cmd hostcmd.Command, args []uint32) (hostcmd.Status, error) {
	s, err := e.ch.Exec(cmd, args)
	e.stats.count(cmd.Opcode, err)
	return s, err
}

func (e *Engine) read(addr uint32) (Entry, error) {
	var b [entryBits / 32]uint32
	err := e.ch.Read(addr, b[:])
	e.stats.count(hostcmd.MemRead, err)
	if err != nil {
		return nil, err
	}
	return Decode(b[:], e.t)
}

func (e *Engine) write(addr uint32, x Entry) error {
	err := e.ch.Write(addr, Encode(x))
	e.stats.count(hostcmd.MemWrite, err)
	return err
}

func (e *Engine) errorf(op hostcmd.Opcode, err error) error {
	return fmt.Errorf("%v %v: %w", e.t, op, err)
}

func (e *Engine) fail(op hostcmd.Opcode, s hostcmd.Status) error {
	e.stats.Failures++
	err := e.errorf(op, &StatusError{Op: op, Status: s})
	log.Print("err", err)
	return err
}

func (e *Engine) notFound(op hostcmd.Opcode) error {
	e.stats.NotFound++
	return e.errorf(op, ErrNotFound)
}
