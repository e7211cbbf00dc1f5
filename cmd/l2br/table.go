// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/l2br/bridge"
	"github.com/platinasystems/l2br/hostcmd"
	"github.com/platinasystems/l2br/internal/goes"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis/publisher"
)

type table struct {
	e      *bridge.Engine
	mapped *hostcmd.MappedRegs
}

func (t *table) close() {
	if t.mapped != nil {
		if err := t.mapped.Close(); err != nil {
			log.Print("err", err)
		}
		t.mapped = nil
	}
}

func (t *table) commands() goes.Selection {
	return goes.Selection{
		"init":   t.init,
		"flush":  t.flush,
		"stats":  t.stats,
		"add":    t.add,
		"del":    t.del,
		"search": t.search,
		"update": t.update,
		"show":   t.show,
	}
}

// preempted prints usage for "help"; "complete" has nothing to offer
// past the command name.
func preempted(ctx context.Context, usage string) bool {
	switch goes.Preemption(ctx) {
	case "":
		return false
	case "help":
		goes.Usage(ctx, usage)
	}
	return true
}

func noArgs(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return goes.Errorf(ctx, "%v: unexpected", args)
	}
	return nil
}

func (t *table) init(ctx context.Context, args ...string) error {
	if preempted(ctx, "") {
		return nil
	}
	if err := noArgs(ctx, args); err != nil {
		return err
	}
	return t.e.Init()
}

func (t *table) flush(ctx context.Context, args ...string) error {
	if preempted(ctx, "") {
		return nil
	}
	if err := noArgs(ctx, args); err != nil {
		return err
	}
	return t.e.Flush()
}

func (t *table) stats(ctx context.Context, args ...string) error {
	if preempted(ctx, "[-publish]") {
		return nil
	}
	flag, args := flags.New(args, "-publish")
	if err := noArgs(ctx, args); err != nil {
		return err
	}
	free, err := t.e.FreeEntries()
	if err != nil {
		return err
	}
	st := t.e.Stats()
	goes.Println(ctx, "free:", free)
	st.ForEach(func(name string, v uint64) {
		goes.Printf(ctx, "%s: %d\n", name, v)
	})
	if !flag.ByName["-publish"] {
		return nil
	}
	pub, err := publisher.New()
	if err != nil {
		return err
	}
	defer pub.Close()
	prefix := fmt.Sprint("l2br.", t.e.Type(), ".")
	if _, err = pub.Print(prefix, "free: ", free); err != nil {
		return err
	}
	st.ForEach(func(name string, v uint64) {
		if err == nil {
			_, err = pub.Print(prefix, name, ": ", v)
		}
	})
	return err
}

// entry builds an entry from "mac M vlan V action A port P" arguments.
func (t *table) entry(ctx context.Context, args []string, withAction bool) (bridge.Entry, error) {
	names := []interface{}{"mac", "vlan", "port"}
	if withAction {
		names = append(names, "action")
	}
	flag, args := flags.New(args, "-static", "-fresh")
	parm, args := parms.New(args, names...)
	if err := noArgs(ctx, args); err != nil {
		return nil, err
	}
	x := bridge.NewEntry(t.e.Type())
	if s := parm.ByName["mac"]; len(s) > 0 {
		me, ok := x.(*bridge.MacEntry)
		if !ok {
			return nil, goes.Errorf(ctx, "mac: %w: %v table",
				bridge.ErrInvalid, t.e.Type())
		}
		a, err := bridge.ParseMac(s)
		if err != nil {
			return nil, goes.Errorf(ctx, "%w", err)
		}
		me.SetMac(a)
	}
	for _, p := range []struct {
		name string
		bits int
		set  func(uint64)
	}{
		{"vlan", 13, func(v uint64) { x.SetVlan(uint16(v)) }},
		{"port", 4, func(v uint64) {
			x.SetPort(uint8(v))
			x.SetFieldValid(x.FieldValid() | bridge.FieldPort)
		}},
		{"action", 64, x.SetAction},
	} {
		s := parm.ByName[p.name]
		if len(s) == 0 {
			continue
		}
		v, err := strconv.ParseUint(s, 0, p.bits)
		if err != nil {
			return nil, goes.Errorf(ctx, "%s: %w", p.name, err)
		}
		p.set(v)
	}
	if me, ok := x.(*bridge.MacEntry); ok {
		if flag.ByName["-static"] {
			me.SetStatic(true)
		}
		if flag.ByName["-fresh"] {
			me.SetFresh(true)
		}
	}
	return x, nil
}

func (t *table) add(ctx context.Context, args ...string) error {
	if preempted(ctx, "mac M vlan V action A [port P] [-static] [-fresh]") {
		return nil
	}
	x, err := t.entry(ctx, args, true)
	if err != nil {
		return err
	}
	return t.e.Add(x)
}

func (t *table) del(ctx context.Context, args ...string) error {
	if preempted(ctx, "mac M vlan V [port P]") {
		return nil
	}
	x, err := t.entry(ctx, args, false)
	if err != nil {
		return err
	}
	return t.e.Delete(x)
}

func (t *table) search(ctx context.Context, args ...string) error {
	if preempted(ctx, "mac M vlan V [port P]") {
		return nil
	}
	x, err := t.entry(ctx, args, false)
	if err != nil {
		return err
	}
	if err = t.e.Search(x); err != nil {
		return err
	}
	goes.Println(ctx, x)
	return nil
}

func (t *table) update(ctx context.Context, args ...string) error {
	if preempted(ctx, "mac M vlan V action A [-static] [-fresh]") {
		return nil
	}
	x, err := t.entry(ctx, args, true)
	if err != nil {
		return err
	}
	return t.e.Update(x)
}

func (t *table) show(ctx context.Context, args ...string) error {
	if preempted(ctx, "[-valid]") {
		return nil
	}
	flag, args := flags.New(args, "-valid")
	if err := noArgs(ctx, args); err != nil {
		return err
	}
	c := bridge.MatchAll
	if flag.ByName["-valid"] {
		c = bridge.MatchValid
	}
	var it bridge.Iterator
	x, err := it.GetFirst(t.e, c)
	for ; err == nil; x, err = it.GetNext() {
		goes.Println(ctx, x)
	}
	if errors.Is(err, bridge.ErrNotFound) {
		err = nil
	}
	return err
}
