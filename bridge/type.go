// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package bridge drives the accelerator's L2 bridge lookup tables: the
// MAC+VLAN (2 field) forwarding table and the VLAN classification table.
//
// Each table is a hash space indexed by a hash of the key followed by a
// collision space that chains entries whose bucket is taken.  Unused
// collision slots are kept by hardware on a free list linked through their
// collision pointers.
package bridge

import "fmt"

type TableType uint8

const (
	MacVlan TableType = iota
	Vlan
	NTableType
)

var tableTypeStrings = [...]string{
	MacVlan: "mac2f",
	Vlan:    "vlan",
}

func (t TableType) String() string {
	if t < NTableType {
		return tableTypeStrings[t]
	}
	return fmt.Sprintf("table(%d)", uint8(t))
}

// ParseTableType accepts the names printed by String.
func ParseTableType(s string) (TableType, error) {
	for t, name := range tableTypeStrings {
		if s == name {
			return TableType(t), nil
		}
	}
	return 0, fmt.Errorf("%s: %w: unknown table", s, ErrInvalid)
}

// Geometry of a table's address space: hash space [0, HashDepth) then
// collision space [HashDepth, HashDepth+CollDepth).
type Geometry struct {
	HashDepth uint32
	CollDepth uint32
}

var geometries = [...]Geometry{
	MacVlan: {HashDepth: 512, CollDepth: 255},
	Vlan:    {HashDepth: 128, CollDepth: 63},
}

func (t TableType) Geometry() Geometry { return geometries[t] }

func (g Geometry) Depth() uint32 { return g.HashDepth + g.CollDepth }

func (g Geometry) IsCollision(addr uint32) bool {
	return addr >= g.HashDepth && addr < g.Depth()
}

// Criterion selects the entries an Iterator yields.
type Criterion uint8

const (
	MatchAll Criterion = iota
	MatchValid
)

func (c Criterion) String() string {
	switch c {
	case MatchAll:
		return "all"
	case MatchValid:
		return "valid"
	}
	return fmt.Sprintf("criterion(%d)", uint8(c))
}
