// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"fmt"

	"github.com/platinasystems/l2br/internal/m"
)

const (
	vlanBits      = 13
	vlanMask      = 1<<vlanBits - 1
	macActionBits = 31
	macActionMask = 1<<macActionBits - 1
)

// Action data bits reserved for the aging subsystem.
const (
	macActionStatic = 1 << 29
	macActionFresh  = 1 << 30
)

// MacEntry is a MAC2F record keyed on MAC address and VLAN.
type MacEntry struct {
	header
	mac    MacAddress
	vlan   uint16
	action uint32
}

func (e *MacEntry) Type() TableType { return MacVlan }
func (e *MacEntry) MemBits() int    { return entryBits }

func (e *MacEntry) Mac() MacAddress { return e.mac }

func (e *MacEntry) SetMac(a MacAddress) {
	e.mac = a
	e.macSet = true
	e.fieldValid |= FieldMac
}

func (e *MacEntry) Vlan() uint16 { return e.vlan }

func (e *MacEntry) SetVlan(v uint16) {
	e.vlan = v & vlanMask
	e.vlanSet = true
	e.fieldValid |= FieldVlan
}

// Action is the 31 bit action data including the fresh and static bits.
func (e *MacEntry) Action() uint64 { return uint64(e.action) }

func (e *MacEntry) SetAction(v uint64) {
	e.action = uint32(v & macActionMask)
	e.actionSet = true
}

func (e *MacEntry) Fresh() bool  { return e.action&macActionFresh != 0 }
func (e *MacEntry) Static() bool { return e.action&macActionStatic != 0 }

func (e *MacEntry) SetFresh(v bool)  { e.setActionBit(macActionFresh, v) }
func (e *MacEntry) SetStatic(v bool) { e.setActionBit(macActionStatic, v) }

func (e *MacEntry) setActionBit(bit uint32, v bool) {
	if v {
		e.action |= bit
	} else {
		e.action &^= bit
	}
	e.actionSet = true
}

// [47:0] mac, [60:48] vlan, [94:64] action data
func (e *MacEntry) MemGetSet(b []uint32, isSet bool) {
	i := e.mac.memGetSet(b, 0, isSet)
	i = m.MemGetSetUint16(&e.vlan, b, i+vlanBits-1, i, isSet)
	if i != 61 {
		panic("mac2f vlan 61")
	}
	i = m.MemGetSetUint32(&e.action, b, 64+macActionBits-1, 64, isSet)
	if i != 95 {
		panic("mac2f action 95")
	}
	e.header.memGetSet(b, isSet)
}

func (e *MacEntry) String() string {
	s := fmt.Sprintf("%v vlan %d action 0x%x", e.mac, e.vlan, e.action)
	if e.Static() {
		s += " static"
	}
	if e.Fresh() {
		s += " fresh"
	}
	return s + " " + e.header.String()
}
