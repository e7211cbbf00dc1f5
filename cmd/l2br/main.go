// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// l2br is an operator tool for the accelerator's bridge lookup tables.
//
//	l2br [-table mac2f|vlan] [-mmio FILE [-offset N]] [-poll-count N]
//		[-poll-delay D] COMMAND [ARGS] [; COMMAND [ARGS]]...
//
// Without -mmio the commands run against a simulated table that lives for
// the one invocation.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinasystems/l2br/bridge"
	"github.com/platinasystems/l2br/hostcmd"
	"github.com/platinasystems/l2br/internal/goes"
	"github.com/platinasystems/l2br/internal/hwsim"
	"github.com/platinasystems/parms"
)

var Prog = filepath.Base(os.Args[0])

func main() {
	ctx := goes.New(context.Background(), os.Stdout, Prog)
	if err := run(ctx, os.Args[1:]...); err != nil {
		// Errors are already prefaced by the command path.
		log.SetFlags(0)
		log.Fatal(err)
	}
}

type config struct {
	table  bridge.TableType
	mmio   string
	offset int64
	hostcmd.Config
}

func parseConfig(parm *parms.Parms) (cf config, err error) {
	if s := parm.ByName["-table"]; len(s) > 0 {
		if cf.table, err = bridge.ParseTableType(s); err != nil {
			return
		}
	}
	cf.mmio = parm.ByName["-mmio"]
	if s := parm.ByName["-offset"]; len(s) > 0 {
		if cf.offset, err = strconv.ParseInt(s, 0, 64); err != nil {
			return
		}
	}
	if s := parm.ByName["-poll-count"]; len(s) > 0 {
		if cf.PollCount, err = strconv.Atoi(s); err != nil {
			return
		}
	}
	if s := parm.ByName["-poll-delay"]; len(s) > 0 {
		cf.PollDelay, err = time.ParseDuration(s)
	}
	return
}

const synopsis = "[-table mac2f|vlan] [-mmio FILE [-offset N]]" +
	" [-poll-count N] [-poll-delay D] COMMAND [; COMMAND]..."

// globals counts the leading NAME VALUE and NAME=VALUE options; the first
// other argument names a command.
func globals(args []string) int {
	n := 0
	for n < len(args) && strings.HasPrefix(args[n], "-") {
		if strings.Contains(args[n], "=") {
			n++
		} else {
			n += 2
		}
	}
	if n > len(args) {
		n = len(args)
	}
	return n
}

func run(ctx context.Context, args ...string) error {
	ctx, args = goes.Preempt(ctx, args)
	n := globals(args)
	parm, opts := parms.New(args[:n], "-table", "-mmio", "-offset",
		"-poll-count", "-poll-delay")
	if len(opts) > 0 {
		return goes.Errorf(ctx, "%v: unexpected", opts)
	}
	args = args[n:]
	cf, err := parseConfig(parm)
	if err != nil {
		return goes.Errorf(ctx, "%w", err)
	}
	ctx = goes.WithUsage(ctx, synopsis)
	if goes.Preemption(ctx) != "" {
		return (*table)(nil).commands().Select(ctx, args...)
	}
	tbl, err := open(cf)
	if err != nil {
		return goes.Errorf(ctx, "%w", err)
	}
	defer tbl.close()
	cmds := goes.Sequence(args)
	if len(cmds) == 0 {
		return tbl.commands().Select(ctx)
	}
	for _, cmd := range cmds {
		if err = tbl.commands().Select(ctx, cmd...); err != nil {
			return err
		}
	}
	return nil
}

func open(cf config) (*table, error) {
	tbl := new(table)
	var regs hostcmd.Regs
	if len(cf.mmio) > 0 {
		m, err := hostcmd.MapRegs(cf.mmio, cf.offset)
		if err != nil {
			return nil, err
		}
		tbl.mapped = m
		regs = m
	} else {
		g := cf.table.Geometry()
		kind := hwsim.Mac2f
		if cf.table == bridge.Vlan {
			kind = hwsim.Vlan
		}
		regs = hwsim.New(kind, int(g.HashDepth), int(g.CollDepth),
			hwsim.Config{})
	}
	e, err := bridge.New(cf.table, hostcmd.New(regs, cf.Config))
	if err != nil {
		tbl.close()
		return nil, err
	}
	tbl.e = e
	return tbl, nil
}
