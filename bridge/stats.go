// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"errors"

	"github.com/platinasystems/l2br/hostcmd"
)

// Stats counts the commands an engine has issued and how they ended.
type Stats struct {
	Commands [hostcmd.NOpcode]uint64
	Timeouts uint64
	// Completed without the expected status.
	Failures uint64
	// Delete, update and search of absent keys.
	NotFound uint64
}

// ForEach calls fn with each non-empty per-opcode count then the outcome
// counters.
func (s *Stats) ForEach(fn func(name string, v uint64)) {
	for op, n := range s.Commands {
		if n != 0 {
			fn(hostcmd.Opcode(op).String(), n)
		}
	}
	fn("timeouts", s.Timeouts)
	fn("failures", s.Failures)
	fn("not-found", s.NotFound)
}

func (s *Stats) count(op hostcmd.Opcode, err error) {
	s.Commands[op]++
	if errors.Is(err, hostcmd.ErrTimeout) {
		s.Timeouts++
	}
}
