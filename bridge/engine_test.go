// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/platinasystems/l2br/bridge"
	"github.com/platinasystems/l2br/hostcmd"
	"github.com/platinasystems/l2br/internal/hwsim"
	"github.com/platinasystems/l2br/internal/test"
)

var fastPoll = hostcmd.Config{PollCount: 10, PollDelay: time.Microsecond}

// One bucket for every key.
func sameBucket([]byte) uint64 { return 7 }

func newSim(tt bridge.TableType, cf hwsim.Config) *hwsim.Table {
	g := tt.Geometry()
	kind := hwsim.Mac2f
	if tt == bridge.Vlan {
		kind = hwsim.Vlan
	}
	return hwsim.New(kind, int(g.HashDepth), int(g.CollDepth), cf)
}

func newEngine(t *testing.T, tt bridge.TableType, cf hwsim.Config) (*bridge.Engine, *hwsim.Table) {
	t.Helper()
	sim := newSim(tt, cf)
	e, err := bridge.New(tt, hostcmd.New(sim, fastPoll))
	if err != nil {
		t.Fatal(err)
	}
	return e, sim
}

func macEntry(t *testing.T, mac string, vlan uint16) *bridge.MacEntry {
	t.Helper()
	a, err := bridge.ParseMac(mac)
	if err != nil {
		t.Fatal(err)
	}
	x := new(bridge.MacEntry)
	x.SetMac(a)
	x.SetVlan(vlan)
	return x
}

func randomMac(r *rand.Rand) (a bridge.MacAddress) {
	r.Read(a[:])
	return
}

func TestInit(t *testing.T) {
	for _, tt := range []bridge.TableType{bridge.MacVlan, bridge.Vlan} {
		tt := tt
		t.Run(tt.String(), func(t *testing.T) {
			assert := test.Assert{TB: t}
			e, _ := newEngine(t, tt, hwsim.Config{})
			g := e.Geometry()
			for i := uint32(0); i < g.CollDepth; i++ {
				x, err := e.ReadIndexed(g.HashDepth + i)
				assert.Nil(err)
				assert.False(x.Valid())
				ptr, ok := x.CollisionPointer()
				assert.Uint(uint64(ptr), uint64(g.HashDepth+i+1))
				assert.True(ok == (i+1 < g.CollDepth))
			}
			n, err := e.FreeEntries()
			assert.Nil(err)
			assert.Uint(uint64(n), uint64(g.CollDepth))

			// Init again wipes added entries.
			x := macEntryOrVlan(t, tt, 5)
			assert.Nil(e.Add(x))
			assert.Nil(e.Init())
			assert.Error(e.Search(x), bridge.ErrNotFound)
		})
	}
}

func macEntryOrVlan(t *testing.T, tt bridge.TableType, vlan uint16) bridge.Entry {
	t.Helper()
	if tt == bridge.MacVlan {
		x := macEntry(t, "00:11:22:33:44:55", vlan)
		x.SetAction(0x77)
		return x
	}
	x := new(bridge.VlanEntry)
	x.SetVlan(vlan)
	x.SetAction(0x77)
	return x
}

func TestScenario(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{Latency: 3})
	g := e.Geometry()
	assert.Uint(uint64(g.HashDepth), 512)
	assert.Uint(uint64(g.CollDepth), 255)

	x := macEntry(t, "AA:BB:CC:DD:EE:FF", 10)
	x.SetAction(0x1234)
	assert.Nil(e.Add(x))

	y := macEntry(t, "aa:bb:cc:dd:ee:ff", 10)
	assert.Nil(e.Search(y))
	assert.Uint(y.Action(), 0x1234)
	assert.False(y.Fresh())
	assert.False(y.Static())
	assert.True(y.Valid())

	assert.Nil(e.Delete(macEntry(t, "aa:bb:cc:dd:ee:ff", 10)))
	assert.Error(e.Search(macEntry(t, "aa:bb:cc:dd:ee:ff", 10)),
		bridge.ErrNotFound)

	st := e.Stats()
	assert.Uint(st.Commands[hostcmd.Add], 1)
	assert.Uint(st.Commands[hostcmd.Search], 2)
	assert.Uint(st.NotFound, 1)
	assert.Uint(st.Timeouts, 0)
}

func TestAddSearch(t *testing.T) {
	assert := test.Assert{TB: t}
	r := rand.New(rand.NewSource(1))
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{})
	want := make(map[bridge.MacAddress]uint64)
	for len(want) < 300 {
		x := new(bridge.MacEntry)
		x.SetMac(randomMac(r))
		x.SetVlan(1)
		// Bits beyond the 31 bit action are dropped.
		v := r.Uint64()
		x.SetAction(v)
		assert.Nil(e.Add(x))
		want[x.Mac()] = v & (1<<31 - 1)
	}
	for mac, action := range want {
		x := new(bridge.MacEntry)
		x.SetMac(mac)
		x.SetVlan(1)
		assert.Nil(e.Search(x))
		assert.Uint(x.Action(), action)
	}
}

func TestVlanAddSearch(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.Vlan, hwsim.Config{})
	for v := uint16(1); v <= 100; v++ {
		x := new(bridge.VlanEntry)
		x.SetVlan(v)
		x.SetAction(uint64(v)<<40 | 0xdeadbeef)
		assert.Nil(e.Add(x))
	}
	for v := uint16(1); v <= 100; v++ {
		x := new(bridge.VlanEntry)
		x.SetVlan(v)
		assert.Nil(e.Search(x))
		assert.Uint(x.Action(), uint64(v)<<40|0xdeadbeef)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{})
	x := macEntry(t, "02:00:00:00:00:01", 3)
	x.SetAction(1)
	assert.Nil(e.Add(x))
	assert.Nil(e.Delete(x))
	assert.Error(e.Search(macEntry(t, "02:00:00:00:00:01", 3)), bridge.ErrNotFound)
	assert.Nil(e.Delete(x))
	assert.Error(e.Search(macEntry(t, "02:00:00:00:00:01", 3)), bridge.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{Hash: sameBucket})
	for i, mac := range []string{"02:00:00:00:00:01", "02:00:00:00:00:02"} {
		x := macEntry(t, mac, 9)
		x.SetAction(uint64(i))
		x.SetPort(3)
		assert.Nil(e.Add(x))
	}

	x := macEntry(t, "02:00:00:00:00:02", 9)
	x.SetAction(0x55)
	x.SetStatic(true)
	assert.Nil(e.Update(x))

	y := macEntry(t, "02:00:00:00:00:02", 9)
	assert.Nil(e.Search(y))
	assert.Uint(y.Action(), 0x55|1<<29)
	assert.True(y.Static())
	assert.Uint(uint64(y.Port()), 3)
	assert.Equal(y.Mac().String(), "02:00:00:00:00:02")
	assert.Uint(uint64(y.Vlan()), 9)

	// The other chain member is unchanged.
	z := macEntry(t, "02:00:00:00:00:01", 9)
	assert.Nil(e.Search(z))
	assert.Uint(z.Action(), 0)

	missing := macEntry(t, "02:00:00:00:00:03", 9)
	missing.SetAction(1)
	assert.Error(e.Update(missing), bridge.ErrNotFound)
}

func TestSearchMismatch(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{Hash: sameBucket})
	x := macEntry(t, "02:00:00:00:00:01", 1)
	x.SetAction(1)
	assert.Nil(e.Add(x))
	// Occupied bucket, different key.
	assert.Error(e.Search(macEntry(t, "02:00:00:00:00:02", 1)), bridge.ErrNotFound)
}

func TestChain(t *testing.T) {
	assert := test.Assert{TB: t}
	e, sim := newEngine(t, bridge.Vlan, hwsim.Config{Hash: sameBucket})
	g := e.Geometry()
	for v := uint16(1); v <= 4; v++ {
		x := new(bridge.VlanEntry)
		x.SetVlan(v)
		x.SetAction(uint64(v))
		assert.Nil(e.Add(x))
	}
	n, err := e.FreeEntries()
	assert.Nil(err)
	assert.Uint(uint64(n), uint64(g.CollDepth-3))

	head, err := e.ReadIndexed(7)
	assert.Nil(err)
	assert.Uint(uint64(head.Vlan()), 1)
	ptr, ok := head.CollisionPointer()
	assert.True(ok)
	assert.True(g.IsCollision(uint32(ptr)))

	raw := sim.Peek(int(ptr))
	x, err := bridge.Decode(raw[:], bridge.Vlan)
	assert.Nil(err)
	assert.Uint(uint64(x.Vlan()), 2)

	// Deleting the head shifts its successor into the hash slot.
	del := new(bridge.VlanEntry)
	del.SetVlan(1)
	assert.Nil(e.Delete(del))
	head, err = e.ReadIndexed(7)
	assert.Nil(err)
	assert.Uint(uint64(head.Vlan()), 2)
	n, err = e.FreeEntries()
	assert.Nil(err)
	assert.Uint(uint64(n), uint64(g.CollDepth-2))

	assert.Nil(e.Flush())
	n, err = e.FreeEntries()
	assert.Nil(err)
	assert.Uint(uint64(n), uint64(g.CollDepth))
	for v := uint16(2); v <= 4; v++ {
		x := new(bridge.VlanEntry)
		x.SetVlan(v)
		assert.Error(e.Search(x), bridge.ErrNotFound)
	}
}

func TestFreeListExhausted(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.Vlan, hwsim.Config{Hash: sameBucket})
	g := e.Geometry()
	add := func(v uint16) error {
		x := new(bridge.VlanEntry)
		x.SetVlan(v)
		x.SetAction(uint64(v))
		return e.Add(x)
	}
	// The bucket itself plus every collision slot.
	for v := uint16(0); v <= uint16(g.CollDepth); v++ {
		assert.Nil(add(v))
	}
	err := add(uint16(g.CollDepth) + 1)
	assert.Error(err, bridge.ErrCommandFailed)
	var se *bridge.StatusError
	assert.True(errors.As(err, &se))
	assert.True(se.Op == hostcmd.Add)
	assert.False(se.Status.Has(hostcmd.EntryAdded))
	n, err := e.FreeEntries()
	assert.Nil(err)
	assert.Uint(uint64(n), 0)
	assert.Uint(e.Stats().Failures, 1)
}

func TestConcurrent(t *testing.T) {
	const goroutines, perGoroutine = 8, 7
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.Vlan, hwsim.Config{Hash: sameBucket})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				v := uint16(g*perGoroutine + i + 1)
				x := new(bridge.VlanEntry)
				x.SetVlan(v)
				x.SetAction(uint64(v) << 4)
				if err := e.Add(x); err != nil {
					t.Error(err)
					return
				}
				y := new(bridge.VlanEntry)
				y.SetVlan(v)
				if err := e.Search(y); err != nil {
					t.Error(v, err)
					return
				}
				if got, want := y.Action(), uint64(v)<<4; got != want {
					t.Errorf("vlan %d action: got %#x want %#x", v, got, want)
				}
			}
		}(g)
	}
	wg.Wait()
	if t.Failed() {
		return
	}
	n := 0
	err := bridge.Walk(e, bridge.MatchValid, func(bridge.Entry) (bridge.WalkAction, error) {
		n++
		return bridge.WalkContinue, nil
	})
	assert.Nil(err)
	if got, want := n, goroutines*perGoroutine; got != want {
		t.Errorf("entries: got %d want %d", got, want)
	}
	free, err := e.FreeEntries()
	assert.Nil(err)
	assert.Uint(uint64(free), uint64(e.Geometry().CollDepth)-(goroutines*perGoroutine-1))
	assert.Uint(e.Stats().Commands[hostcmd.Add], goroutines*perGoroutine)
	assert.Uint(e.Stats().Commands[hostcmd.Search], goroutines*perGoroutine)
}

func TestTimeout(t *testing.T) {
	assert := test.Assert{TB: t}
	e, sim := newEngine(t, bridge.MacVlan, hwsim.Config{})
	sim.Stuck = true

	x := macEntry(t, "02:00:00:00:00:01", 1)
	x.SetAction(1)
	ops := []struct {
		name string
		f    func() error
	}{
		{"init", e.Init},
		{"flush", e.Flush},
		{"add", func() error { return e.Add(x) }},
		{"delete", func() error { return e.Delete(x) }},
		{"update", func() error { return e.Update(x) }},
		{"search", func() error { return e.Search(x) }},
		{"read", func() error { _, err := e.ReadIndexed(0); return err }},
		{"write", func() error { return e.WriteIndexed(0, x) }},
	}
	// Generous bound on the poll budget for a loaded test host.
	limit := fastPoll.Budget() + time.Second
	for _, op := range ops {
		t0 := time.Now()
		err := op.f()
		if d := time.Since(t0); d > limit {
			t.Errorf("%s: took %v", op.name, d)
		}
		assert.Error(err, bridge.ErrTimeout)
	}
	assert.Uint(e.Stats().Timeouts, uint64(len(ops)))

	// The engine is usable once the hardware answers again.
	sim.Stuck = false
	assert.Nil(e.Add(x))
	assert.Nil(e.Search(macEntry(t, "02:00:00:00:00:01", 1)))
}

func TestCreateTimeout(t *testing.T) {
	sim := newSim(bridge.Vlan, hwsim.Config{Stuck: true})
	_, err := bridge.New(bridge.Vlan, hostcmd.New(sim, fastPoll))
	test.Assert{TB: t}.Error(err, bridge.ErrTimeout)
}

func TestInvalid(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{})
	g := e.Geometry()
	before := e.Stats()

	_, err := e.ReadIndexed(g.Depth())
	assert.Error(err, bridge.ErrInvalid)
	x := macEntry(t, "02:00:00:00:00:01", 1)
	assert.Error(e.WriteIndexed(g.Depth(), x), bridge.ErrInvalid)

	// Missing action.
	assert.Error(e.Add(x), bridge.ErrInvalid)
	// Missing key.
	y := new(bridge.MacEntry)
	y.SetAction(1)
	assert.Error(e.Add(y), bridge.ErrInvalid)
	assert.Error(e.Search(y), bridge.ErrInvalid)
	// Wrong record shape.
	v := new(bridge.VlanEntry)
	v.SetVlan(1)
	v.SetAction(1)
	assert.Error(e.Add(v), bridge.ErrInvalid)
	assert.Error(e.WriteIndexed(0, v), bridge.ErrInvalid)

	// Nothing reached the registers.
	assert.True(e.Stats() == before)

	_, err = bridge.New(bridge.NTableType, hostcmd.New(newSim(bridge.Vlan, hwsim.Config{}), fastPoll))
	assert.Error(err, bridge.ErrInvalid)

	// A vlan only key is enough for the mac2f table.
	z := new(bridge.MacEntry)
	z.SetVlan(4)
	z.SetAction(2)
	assert.Nil(e.Add(z))
	w := new(bridge.MacEntry)
	w.SetVlan(4)
	assert.Nil(e.Search(w))
	assert.Uint(w.Action(), 2)
}

func TestClose(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.MacVlan, hwsim.Config{})
	x := macEntry(t, "02:00:00:00:00:01", 1)
	x.SetAction(1)
	assert.Nil(e.Add(x))
	assert.Nil(e.Close())
	assert.Nil(e.Close())

	assert.Error(e.Init(), bridge.ErrClosed)
	assert.Error(e.Flush(), bridge.ErrClosed)
	assert.Error(e.Add(x), bridge.ErrClosed)
	assert.Error(e.Delete(x), bridge.ErrClosed)
	assert.Error(e.Update(x), bridge.ErrClosed)
	assert.Error(e.Search(x), bridge.ErrClosed)
	_, err := e.ReadIndexed(0)
	assert.Error(err, bridge.ErrClosed)
	assert.Error(e.WriteIndexed(0, x), bridge.ErrClosed)
	_, err = e.FreeEntries()
	assert.Error(err, bridge.ErrClosed)
	var it bridge.Iterator
	_, err = it.GetFirst(e, bridge.MatchAll)
	assert.Error(err, bridge.ErrClosed)
}

func TestStatsForEach(t *testing.T) {
	assert := test.Assert{TB: t}
	e, _ := newEngine(t, bridge.Vlan, hwsim.Config{})
	x := new(bridge.VlanEntry)
	x.SetVlan(2)
	x.SetAction(1)
	assert.Nil(e.Add(x))
	assert.Nil(e.Delete(x))
	assert.Nil(e.Delete(x))

	got := make(map[string]uint64)
	st := e.Stats()
	st.ForEach(func(name string, v uint64) { got[name] = v })
	assert.Uint(got["init"], 1)
	assert.Uint(got["mem-write"], uint64(e.Geometry().CollDepth))
	assert.Uint(got["add"], 1)
	assert.Uint(got["delete"], 2)
	assert.Uint(got["not-found"], 1)
	assert.Uint(got["timeouts"], 0)
	_, ok := got["search"]
	assert.False(ok)
}
