// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hostcmd

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// Reg indexes the 32 bit registers of a table's host command block.
type Reg uint8

const (
	RegCmd Reg = iota
	RegArg0
	RegArg1
	RegArg2
	RegArg3
	RegArg4
	// Table address for MemRead and MemWrite.
	RegEntry
	RegStatus
	RegFreeListEntries
	RegFreeListHead
	RegFreeListTail
	NReg
)

// Argument registers available to carry a record.
const NArg = int(RegArg4-RegArg0) + 1

var regStrings = [...]string{
	RegCmd:             "cmd",
	RegArg0:            "arg0",
	RegArg1:            "arg1",
	RegArg2:            "arg2",
	RegArg3:            "arg3",
	RegArg4:            "arg4",
	RegEntry:           "entry",
	RegStatus:          "status",
	RegFreeListEntries: "free-list-entries",
	RegFreeListHead:    "free-list-head",
	RegFreeListTail:    "free-list-tail",
}

func (r Reg) String() string {
	if r < NReg {
		return regStrings[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// Regs is one table's command/argument/status register block.
type Regs interface {
	Get(r Reg) uint32
	Set(r Reg, v uint32)
}

// MappedRegs is a register block in a memory mapped device resource.
type MappedRegs struct {
	mem []byte
	off int
}

// MapRegs maps the register block found at offset bytes into the given
// resource file, e.g. /sys/bus/pci/devices/0000:01:00.0/resource0.
func MapRegs(name string, offset int64) (*MappedRegs, error) {
	if offset&3 != 0 {
		return nil, fmt.Errorf("%s: offset 0x%x: unaligned", name, offset)
	}
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pg := int64(os.Getpagesize())
	start := offset &^ (pg - 1)
	size := int(offset-start) + int(NReg)*4
	mem, err := syscall.Mmap(int(f.Fd()), start, size,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %s", name, err)
	}
	return &MappedRegs{mem: mem, off: int(offset - start)}, nil
}

func (r *MappedRegs) addr(x Reg) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[r.off+int(x)*4]))
}

func (r *MappedRegs) Get(x Reg) uint32    { return atomic.LoadUint32(r.addr(x)) }
func (r *MappedRegs) Set(x Reg, v uint32) { atomic.StoreUint32(r.addr(x), v) }

func (r *MappedRegs) Close() (err error) {
	if r.mem != nil {
		err = syscall.Munmap(r.mem)
		if err != nil {
			err = fmt.Errorf("munmap: %s", err)
		}
		r.mem = nil
	}
	return
}
