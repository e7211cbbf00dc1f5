// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"fmt"

	"github.com/platinasystems/l2br/internal/m"
)

const (
	vlanActionBits = 55
	vlanActionMask = 1<<vlanActionBits - 1
)

// VlanEntry is a VLAN classification record keyed on VLAN.
type VlanEntry struct {
	header
	vlan   uint16
	action uint64
}

func (e *VlanEntry) Type() TableType { return Vlan }
func (e *VlanEntry) MemBits() int    { return entryBits }

func (e *VlanEntry) Vlan() uint16 { return e.vlan }

func (e *VlanEntry) SetVlan(v uint16) {
	e.vlan = v & vlanMask
	e.vlanSet = true
	e.fieldValid |= FieldVlan
}

func (e *VlanEntry) Action() uint64 { return e.action }

func (e *VlanEntry) SetAction(v uint64) {
	e.action = v & vlanActionMask
	e.actionSet = true
}

// [12:0] vlan, [63:32] action data low, [86:64] action data high
func (e *VlanEntry) MemGetSet(b []uint32, isSet bool) {
	i := m.MemGetSetUint16(&e.vlan, b, vlanBits-1, 0, isSet)
	if i != 13 {
		panic("vlan vlan 13")
	}
	var lo uint32
	var hi uint64
	if isSet {
		lo, hi = uint32(e.action), e.action>>32
	}
	i = m.MemGetSetUint32(&lo, b, 63, 32, isSet)
	i = m.MemGetSetUint64(&hi, b, i+vlanActionBits-32-1, i, isSet)
	if i != 87 {
		panic("vlan action 87")
	}
	if !isSet {
		e.action = hi<<32 | uint64(lo)
	}
	e.header.memGetSet(b, isSet)
}

func (e *VlanEntry) String() string {
	return fmt.Sprintf("vlan %d action 0x%x %s", e.vlan, e.action,
		e.header.String())
}
