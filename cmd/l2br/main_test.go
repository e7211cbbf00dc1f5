// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/platinasystems/l2br/bridge"
	"github.com/platinasystems/l2br/internal/goes"
	"github.com/platinasystems/l2br/internal/test"
)

func runArgs(t *testing.T, line string) (string, error) {
	t.Helper()
	w := new(strings.Builder)
	ctx := goes.New(context.Background(), w, "l2br")
	err := run(ctx, strings.Fields(line)...)
	return w.String(), err
}

func TestSequence(t *testing.T) {
	assert := test.Assert{TB: t}
	out, err := runArgs(t, "-poll-delay 1us"+
		" add mac aa:bb:cc:dd:ee:ff vlan 10 action 0x1234 -static ;"+
		" search mac aa:bb:cc:dd:ee:ff vlan 10 ;"+
		" update mac aa:bb:cc:dd:ee:ff vlan 10 action 7 ;"+
		" search mac aa:bb:cc:dd:ee:ff vlan 10 ;"+
		" del mac aa:bb:cc:dd:ee:ff vlan 10 ;"+
		" show -valid")
	assert.Nil(err)
	assert.Equal(out,
		"aa:bb:cc:dd:ee:ff vlan 10 action 0x20001234 static port 0 match mac, vlan valid\n"+
			"aa:bb:cc:dd:ee:ff vlan 10 action 0x7 port 0 match mac, vlan valid\n")
}

func TestSearchMissing(t *testing.T) {
	_, err := runArgs(t, "-table vlan -poll-delay 1us search vlan 3")
	test.Assert{TB: t}.Error(err, bridge.ErrNotFound)
}

func TestStats(t *testing.T) {
	assert := test.Assert{TB: t}
	out, err := runArgs(t, "-table vlan -poll-delay 1us"+
		" add vlan 5 action 1 ; del vlan 5 ; del vlan 5 ; stats")
	assert.Nil(err)
	assert.Equal(out, "free: 63\n"+
		"init: 1\n"+
		"add: 1\n"+
		"delete: 2\n"+
		"mem-write: 63\n"+
		"timeouts: 0\n"+
		"failures: 0\n"+
		"not-found: 1\n")
}

func TestBadArgs(t *testing.T) {
	assert := test.Assert{TB: t}
	for _, line := range []string{
		"-table bogus show",
		"-poll-delay 1us show extra",
		"-poll-delay 1us -table vlan add mac 00:00:00:00:00:01 action 1",
		"-poll-delay 1us add mac zz vlan 1 action 1",
		"-poll-delay 1us add mac 00:00:00:00:00:01 vlan 1",
	} {
		_, err := runArgs(t, line)
		if !errors.Is(err, bridge.ErrInvalid) && (err == nil ||
			!strings.Contains(err.Error(), "unexpected")) {
			t.Errorf("%q: %v", line, err)
		}
	}
	_, err := runArgs(t, "-poll-delay 1us bogus")
	assert.Match(err.Error(), "bogus: not found$")
	_, err = runArgs(t, "-poll-delay 1us")
	assert.Match(err.Error(), "incomplete$")
}

func TestGlobalsLead(t *testing.T) {
	assert := test.Assert{TB: t}
	out, err := runArgs(t, "-table=vlan -poll-delay 1us"+
		" add vlan 5 action 1 ; search vlan 5")
	assert.Nil(err)
	assert.Equal(out, "vlan 5 action 0x1 port 0 match vlan valid\n")
	// Options after the first command belong to that command.
	_, err = runArgs(t, "-table vlan -poll-delay 1us"+
		" add vlan 5 action 1 -poll-count 3")
	assert.Match(err.Error(), "^l2br add: .*unexpected$")
	_, err = runArgs(t, "-table vlan -poll-delay 1us init ; -offset 4")
	assert.Match(err.Error(), "^l2br: -offset: not found$")
}

func TestHelp(t *testing.T) {
	assert := test.Assert{TB: t}
	out, err := runArgs(t, "help add")
	assert.Nil(err)
	assert.Equal(out, "usage: l2br add mac M vlan V action A [port P] [-static] [-fresh]\n")
	out, err = runArgs(t, "complete s")
	assert.Nil(err)
	assert.Equal(out, "search\nshow\nstats\n")
	out, err = runArgs(t, "help")
	assert.Nil(err)
	assert.Match(out, "^usage: l2br \\[-table mac2f\\|vlan\\]")
	assert.Match(out, "\n  update\n$")
}
