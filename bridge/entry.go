// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"fmt"
	"net"

	"github.com/platinasystems/l2br/internal/m"
)

// Field valid bits select the fields an entry is matched on.
const (
	FieldMac  uint8 = 1 << 0
	FieldVlan uint8 = 1 << 1
	FieldPort uint8 = 1 << 2
)

var fieldStrings = []string{"mac", "vlan", "port"}

// Entry is a table record; either *MacEntry or *VlanEntry.
type Entry interface {
	m.MemGetSetter
	Type() TableType

	Vlan() uint16
	SetVlan(v uint16)
	Action() uint64
	SetAction(v uint64)
	Port() uint8
	SetPort(p uint8)
	FieldValid() uint8
	SetFieldValid(f uint8)

	// Valid is set when hardware holds the entry.
	Valid() bool
	// CollisionPointer is the next address in the bucket chain; ok is
	// false for a chain terminator.
	CollisionPointer() (addr uint16, ok bool)

	String() string

	head() *header
}

// NewEntry returns an empty entry of the table's record shape.
func NewEntry(t TableType) Entry {
	switch t {
	case MacVlan:
		return new(MacEntry)
	case Vlan:
		return new(VlanEntry)
	}
	return nil
}

// Equal reports whether a and b hold the same key: the same table, field
// valid mask and the fields the mask selects.
func Equal(a, b Entry) bool {
	if a.Type() != b.Type() || a.FieldValid() != b.FieldValid() {
		return false
	}
	f := a.FieldValid()
	if f&FieldVlan != 0 && a.Vlan() != b.Vlan() {
		return false
	}
	if f&FieldPort != 0 && a.Port() != b.Port() {
		return false
	}
	x, xok := a.(*MacEntry)
	y, yok := b.(*MacEntry)
	if f&FieldMac != 0 && xok && yok && x.mac != y.mac {
		return false
	}
	return true
}

// Fields common to both record shapes, packed in the record's last word.
type header struct {
	fieldValid uint8
	// 4 bits
	port uint8

	colPtr   uint16
	valid    bool
	colValid bool

	// Fields given by the caller; not stored in hardware.
	macSet, vlanSet, actionSet bool
}

func (h *header) head() *header { return h }

func (h *header) Port() uint8           { return h.port }
func (h *header) SetPort(p uint8)       { h.port = p & 0xf }
func (h *header) FieldValid() uint8     { return h.fieldValid }
func (h *header) SetFieldValid(f uint8) { h.fieldValid = f }
func (h *header) Valid() bool           { return h.valid }

func (h *header) CollisionPointer() (uint16, bool) { return h.colPtr, h.colValid }

func (h *header) link(addr uint32, ok bool) {
	h.colPtr, h.colValid = uint16(addr), ok
}

// [103:96] field valid, [107:104] port, [123:108] collision pointer,
// [124] valid, [125] collision pointer valid, [127:126] reserved
func (h *header) memGetSet(b []uint32, isSet bool) {
	i := m.MemGetSetUint8(&h.fieldValid, b, 103, 96, isSet)
	i = m.MemGetSetUint8(&h.port, b, i+3, i, isSet)
	i = m.MemGetSetUint16(&h.colPtr, b, i+15, i, isSet)
	i = m.MemGetSet1(&h.valid, b, i, isSet)
	i = m.MemGetSet1(&h.colValid, b, i, isSet)
	if i != 126 {
		panic("entry tail 126")
	}
	if !isSet {
		h.macSet, h.vlanSet, h.actionSet = true, true, true
	}
}

func (h *header) String() string {
	s := fmt.Sprintf("port %d", h.port)
	if h.fieldValid != 0 {
		s += " match " + m.FlagStringer(fieldStrings, uint64(h.fieldValid))
	}
	if h.valid {
		s += " valid"
	}
	if h.colValid {
		s += fmt.Sprintf(" next %d", h.colPtr)
	}
	return s
}

const entryBits = 128

type MacAddress [6]byte

func (a MacAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a[0], a[1], a[2], a[3], a[4], a[5])
}

// ParseMac accepts aa:bb:cc:dd:ee:ff, aa-bb-cc-dd-ee-ff and aabb.ccdd.eeff.
func ParseMac(s string) (a MacAddress, err error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(hw) != len(a) {
		return a, fmt.Errorf("%s: %w: not a 48 bit address", s, ErrInvalid)
	}
	copy(a[:], hw)
	return a, nil
}

// MAC address in network byte order: bytes 2..5 in the low word,
// bytes 0..1 in the following half word.
func (a *MacAddress) memGetSet(b []uint32, lo int, isSet bool) int {
	var mac [2]uint32
	if isSet {
		mac[0] = uint32(a[2])<<24 | uint32(a[3])<<16 | uint32(a[4])<<8 | uint32(a[5])
		mac[1] = uint32(a[0])<<8 | uint32(a[1])
	}
	i := m.MemGetSetUint32(&mac[0], b, lo+31, lo, isSet)
	i = m.MemGetSetUint32(&mac[1], b, i+15, i, isSet)
	if !isSet {
		a[0] = byte(mac[1] >> 8)
		a[1] = byte(mac[1] >> 0)
		a[2] = byte(mac[0] >> 24)
		a[3] = byte(mac[0] >> 16)
		a[4] = byte(mac[0] >> 8)
		a[5] = byte(mac[0] >> 0)
	}
	return lo + 48
}

// Encode packs the entry into register words.
func Encode(x Entry) []uint32 { return m.Get(x) }

// Decode unpacks register words of the given table's shape.
func Decode(b []uint32, t TableType) (Entry, error) {
	x := NewEntry(t)
	if x == nil {
		return nil, fmt.Errorf("%v: %w", t, ErrInvalid)
	}
	if n := m.NWords(x); len(b) < n {
		return nil, fmt.Errorf("%v: %w: %d words < %d", t, ErrInvalid, len(b), n)
	}
	x.MemGetSet(b, false)
	return x, nil
}
