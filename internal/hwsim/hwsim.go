// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hwsim models the accelerator's bridge lookup table behind its host
// command register block. Records are addressed hash space first, collision
// space after; unused collision slots form a free list linked through their
// collision pointers.
package hwsim

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/platinasystems/l2br/hostcmd"
	"github.com/platinasystems/l2br/internal/m"
)

type Kind uint8

const (
	Mac2f Kind = iota
	Vlan
)

// Field valid bits.
const (
	fieldMac  = 1 << 0
	fieldVlan = 1 << 1
	fieldPort = 1 << 2
)

const nWords = 4

type record [nWords]uint32

// Shared tail of both record layouts.
func (r *record) fieldValid() uint8 { return uint8(m.MemGet(r[:], 103, 96)) }
func (r *record) port() uint8       { return uint8(m.MemGet(r[:], 107, 104)) }
func (r *record) colPtr() uint32    { return uint32(m.MemGet(r[:], 123, 108)) }
func (r *record) valid() bool       { return m.MemGet1(r[:], 124) }
func (r *record) colValid() bool    { return m.MemGet1(r[:], 125) }

func (r *record) setValid(v bool) { m.MemSet1(r[:], 124, v) }
func (r *record) setPort(v uint8) { m.MemSet(r[:], 107, 104, uint64(v)) }

func (r *record) link(next uint32, valid bool) {
	m.MemSet(r[:], 123, 108, uint64(next))
	m.MemSet1(r[:], 125, valid)
}

type Config struct {
	// Status register reads before done is asserted.
	Latency int
	// Never assert done.
	Stuck bool
	// Bucket hash; defaults to xxhash.
	Hash func([]byte) uint64
}

type Table struct {
	mu sync.Mutex
	Config
	kind      Kind
	hashDepth uint32
	collDepth uint32
	mem       []record
	regs      [hostcmd.NReg]uint32
	pending   hostcmd.Status
	reads     int
}

func New(k Kind, hashDepth, collDepth int, cf Config) *Table {
	if cf.Hash == nil {
		cf.Hash = xxhash.Sum64
	}
	return &Table{
		Config:    cf,
		kind:      k,
		hashDepth: uint32(hashDepth),
		collDepth: uint32(collDepth),
		mem:       make([]record, hashDepth+collDepth),
	}
}

func (t *Table) Get(r hostcmd.Reg) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r != hostcmd.RegStatus {
		return t.regs[r]
	}
	if t.pending != 0 && !t.Stuck {
		if t.reads >= t.Latency {
			t.regs[r] |= uint32(t.pending)
			t.pending = 0
		}
		t.reads++
	}
	return t.regs[r]
}

func (t *Table) Set(r hostcmd.Reg, v uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r {
	case hostcmd.RegStatus:
		t.regs[r] &^= v
	case hostcmd.RegCmd:
		t.regs[r] = v
		var c hostcmd.Command
		c.FromUint32(v)
		t.pending = hostcmd.Done | t.exec(c)
		t.reads = 0
	default:
		t.regs[r] = v
	}
}

// Peek returns the raw record at table address addr.
func (t *Table) Peek(addr int) [nWords]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem[addr]
}

func (t *Table) args() (r record) {
	copy(r[:], t.regs[hostcmd.RegArg0:])
	return
}

func (t *Table) setArgs(r *record) {
	copy(t.regs[hostcmd.RegArg0:], r[:])
}

func (t *Table) exec(c hostcmd.Command) hostcmd.Status {
	switch c.Opcode {
	case hostcmd.Init:
		for i := range t.mem {
			t.mem[i] = record{}
		}
		t.regs[hostcmd.RegFreeListEntries] = 0
		t.regs[hostcmd.RegFreeListHead] = 0
		t.regs[hostcmd.RegFreeListTail] = 0
		return hostcmd.InitDone
	case hostcmd.MemRead:
		if a := t.regs[hostcmd.RegEntry]; a < uint32(len(t.mem)) {
			t.setArgs(&t.mem[a])
		}
	case hostcmd.MemWrite:
		if a := t.regs[hostcmd.RegEntry]; a < uint32(len(t.mem)) {
			t.mem[a] = t.args()
		}
	case hostcmd.Add:
		return t.add(c)
	case hostcmd.Delete:
		return t.del(c)
	case hostcmd.Update:
		return t.update(c)
	case hostcmd.Search:
		return t.search(c)
	case hostcmd.Flush:
		if c.FlushAll {
			t.flush()
		}
	}
	return 0
}

// Key bits of each layout: MAC2F mac [47:0] vlan [60:48]; VLAN vlan [12:0].
func (t *Table) key(r *record, mask, port uint8) []byte {
	var b [16]byte
	b[0] = mask
	switch t.kind {
	case Mac2f:
		if mask&fieldMac != 0 {
			binary.LittleEndian.PutUint64(b[1:], m.MemGet(r[:], 47, 0))
		}
		if mask&fieldVlan != 0 {
			binary.LittleEndian.PutUint16(b[9:], uint16(m.MemGet(r[:], 60, 48)))
		}
	case Vlan:
		if mask&fieldVlan != 0 {
			binary.LittleEndian.PutUint16(b[9:], uint16(m.MemGet(r[:], 12, 0)))
		}
	}
	if mask&fieldPort != 0 {
		b[11] = port
	}
	return b[:12]
}

func (t *Table) bucket(key []byte) uint32 {
	return uint32(t.Hash(key) % uint64(t.hashDepth))
}

func (t *Table) matches(r *record, key []byte, mask uint8) bool {
	if !r.valid() || r.fieldValid() != mask {
		return false
	}
	return string(t.key(r, mask, r.port())) == string(key)
}

// find walks the bucket chain for key.  Returns the matching address and
// its predecessor in the chain (prev == addr for a bucket head).
func (t *Table) find(key []byte, mask uint8) (addr, prev uint32, found, occupied bool) {
	addr = t.bucket(key)
	prev = addr
	if !t.mem[addr].valid() {
		return
	}
	occupied = true
	for {
		r := &t.mem[addr]
		if t.matches(r, key, mask) {
			found = true
			return
		}
		if !r.colValid() {
			return
		}
		prev, addr = addr, r.colPtr()
	}
}

func (t *Table) alloc() (uint32, bool) {
	n := t.regs[hostcmd.RegFreeListEntries]
	if n == 0 {
		return 0, false
	}
	a := t.regs[hostcmd.RegFreeListHead]
	if n > 1 {
		t.regs[hostcmd.RegFreeListHead] = t.mem[a].colPtr()
	}
	t.regs[hostcmd.RegFreeListEntries] = n - 1
	return a, true
}

func (t *Table) free(a uint32) {
	t.mem[a] = record{}
	t.mem[a].link(t.hashDepth+t.collDepth, false)
	n := t.regs[hostcmd.RegFreeListEntries]
	if n == 0 {
		t.regs[hostcmd.RegFreeListHead] = a
	} else {
		t.mem[t.regs[hostcmd.RegFreeListTail]].link(a, true)
	}
	t.regs[hostcmd.RegFreeListTail] = a
	t.regs[hostcmd.RegFreeListEntries] = n + 1
}

func (t *Table) add(c hostcmd.Command) hostcmd.Status {
	r := t.args()
	r.setValid(true)
	r.link(0, false)
	m.MemSet(r[:], 103, 96, uint64(c.FieldValid))
	r.setPort(c.Port)
	key := t.key(&r, c.FieldValid, r.port())
	addr := t.bucket(key)
	if !t.mem[addr].valid() {
		t.mem[addr] = r
		return hostcmd.EntryAdded
	}
	for {
		x := &t.mem[addr]
		if t.matches(x, key, c.FieldValid) {
			r.link(x.colPtr(), x.colValid())
			*x = r
			return hostcmd.EntryAdded
		}
		if !x.colValid() {
			break
		}
		addr = x.colPtr()
	}
	slot, ok := t.alloc()
	if !ok {
		return 0
	}
	t.mem[slot] = r
	t.mem[addr].link(slot, true)
	return hostcmd.EntryAdded
}

func (t *Table) del(c hostcmd.Command) hostcmd.Status {
	r := t.args()
	key := t.key(&r, c.FieldValid, r.port())
	addr, prev, found, _ := t.find(key, c.FieldValid)
	if !found {
		return hostcmd.EntryNotFound
	}
	x := &t.mem[addr]
	switch {
	case x.colValid():
		// Shift successor into the freed position.
		next := x.colPtr()
		*x = t.mem[next]
		t.free(next)
	case addr < t.hashDepth:
		*x = record{}
	default:
		t.mem[prev].link(0, false)
		t.free(addr)
	}
	return 0
}

func (t *Table) update(c hostcmd.Command) hostcmd.Status {
	r := t.args()
	key := t.key(&r, c.FieldValid, r.port())
	addr, _, found, _ := t.find(key, c.FieldValid)
	if !found {
		return hostcmd.EntryNotFound
	}
	x := &t.mem[addr]
	switch t.kind {
	case Mac2f:
		m.MemSet(x[:], 94, 64, m.MemGet(r[:], 94, 64))
	case Vlan:
		m.MemSet(x[:], 63, 32, m.MemGet(r[:], 63, 32))
		m.MemSet(x[:], 86, 64, m.MemGet(r[:], 86, 64))
	}
	return 0
}

func (t *Table) search(c hostcmd.Command) hostcmd.Status {
	r := t.args()
	key := t.key(&r, c.FieldValid, r.port())
	addr, _, found, occupied := t.find(key, c.FieldValid)
	switch {
	case found:
		t.setArgs(&t.mem[addr])
		return hostcmd.Match
	case occupied:
		return 0
	}
	return hostcmd.EntryNotFound
}

func (t *Table) flush() {
	for h := uint32(0); h < t.hashDepth; h++ {
		x := &t.mem[h]
		if !x.valid() {
			continue
		}
		for a, ok := x.colPtr(), x.colValid(); ok; {
			next, more := t.mem[a].colPtr(), t.mem[a].colValid()
			t.free(a)
			a, ok = next, more
		}
		*x = record{}
	}
}
