// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package m packs and unpacks hardware table records held as slices of
// 32 bit register words.
package m

import "fmt"

// Bits per register word.
const WordBits = 32

type MemGetSetter interface {
	// Number of bits in memory.
	MemBits() int
	// Method to encode/decode memory as slice of uint32.
	MemGetSet(b []uint32, isSet bool)
}

// NWords returns the number of register words needed for the record.
func NWords(x MemGetSetter) int { return (x.MemBits() + WordBits - 1) / WordBits }

// Get encodes x into a fresh slice of register words.
func Get(x MemGetSetter) []uint32 {
	b := make([]uint32, NWords(x))
	x.MemGetSet(b, true)
	return b
}

func MemGet1(x []uint32, lo int) bool {
	l0, l1 := uint(lo/WordBits), uint(lo%WordBits)
	return x[l0]&(1<<l1) != 0
}

func MemSet1(x []uint32, lo int, v bool) {
	l0, l1 := uint(lo/WordBits), uint(lo%WordBits)
	m := uint32(1) << l1
	if v {
		x[l0] |= m
	} else {
		x[l0] &^= m
	}
}

func MemGetSet1(v *bool, x []uint32, lo int, isSet bool) int {
	if isSet {
		MemSet1(x, lo, *v)
	} else {
		*v = MemGet1(x, lo)
	}
	return lo + 1
}

// Get or Set bits lo <= i <= hi, so hi - lo + 1 bits total.
// Set clears the field before writing so records may be re-encoded in place.
// Value bits beyond the field width are dropped.
func MemGetSet(v *uint64, x []uint32, hi, lo int, isSet bool) int {
	nBits := 1 + uint(hi-lo)
	if nBits > 64 {
		panic(fmt.Errorf("more than 64 bits"))
	}
	nLeft := nBits
	r := uint64(0)
	if isSet {
		r = *v
	}
	nDone := uint(0)
	i := uint(lo)
	for nLeft > 0 {
		i0, i1 := i/WordBits, i%WordBits
		m := WordBits - i1
		if m > nLeft {
			m = nLeft
		}
		mask := uint64(1)<<m - 1
		if isSet {
			x[i0] &^= uint32(mask << i1)
			x[i0] |= uint32(((r >> nDone) & mask) << i1)
		} else {
			r |= ((uint64(x[i0]) >> i1) & mask) << nDone
		}
		nDone += m
		nLeft -= m
		i += m
	}
	if !isSet {
		*v = r
	}
	return hi + 1
}

func MemGet(x []uint32, hi, lo int) (v uint64) { MemGetSet(&v, x, hi, lo, false); return }
func MemSet(x []uint32, hi, lo int, v uint64)  { MemGetSet(&v, x, hi, lo, true) }

func MemGetSetUint8(v *uint8, x []uint32, hi, lo int, isSet bool) int {
	w := uint64(*v)
	MemGetSet(&w, x, hi, lo, isSet)
	*v = uint8(w)
	return hi + 1
}

func MemGetSetUint16(v *uint16, x []uint32, hi, lo int, isSet bool) int {
	w := uint64(*v)
	MemGetSet(&w, x, hi, lo, isSet)
	*v = uint16(w)
	return hi + 1
}

func MemGetSetUint32(v *uint32, x []uint32, hi, lo int, isSet bool) int {
	w := uint64(*v)
	MemGetSet(&w, x, hi, lo, isSet)
	*v = uint32(w)
	return hi + 1
}

func MemGetSetUint64(v *uint64, x []uint32, hi, lo int, isSet bool) int {
	return MemGetSet(v, x, hi, lo, isSet)
}
