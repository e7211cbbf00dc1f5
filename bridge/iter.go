// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"errors"
	"fmt"
)

// Iterator walks hash space in address order and, for each valid bucket,
// its collision chain as linked.  Each read takes the engine lock on its
// own; a table mutated by others between calls may yield stale results.
// An Iterator is not safe for concurrent use.
type Iterator struct {
	e         *Engine
	criterion Criterion

	curHash uint32
	// Collision address of the last entry yielded; 0 when it came from
	// hash space.
	curColl uint32
	// Next chain address to visit; 0 for none.
	nextColl uint32
	// Chain steps taken in the current bucket.
	chain uint32
	// Set by Halt until the next GetNext.
	halted bool
}

// GetFirst resets the iterator and returns the first entry matching c.
// ErrNotFound marks the end of the table.
func (it *Iterator) GetFirst(e *Engine, c Criterion) (Entry, error) {
	*it = Iterator{e: e, criterion: c}
	return it.GetNext()
}

func (it *Iterator) GetNext() (Entry, error) {
	if it.e == nil {
		return nil, fmt.Errorf("iterator: %w: no table", ErrInvalid)
	}
	it.halted = false
	g := it.e.Geometry()
	for {
		if it.nextColl != 0 {
			addr := it.nextColl
			x, err := it.e.ReadIndexed(addr)
			if err != nil {
				return nil, err
			}
			it.curColl = addr
			it.chain++
			it.nextColl = it.successor(g, x)
			if it.match(x) {
				return x, nil
			}
			continue
		}
		if it.curHash >= g.HashDepth {
			return nil, ErrNotFound
		}
		x, err := it.e.ReadIndexed(it.curHash)
		if err != nil {
			return nil, err
		}
		it.curHash++
		it.curColl = 0
		it.chain = 0
		it.nextColl = 0
		if x.Valid() {
			it.nextColl = it.successor(g, x)
		}
		if it.match(x) {
			return x, nil
		}
	}
}

// Halt rewinds the iterator after the entry it last returned was deleted,
// so GetNext reads the chain successor hardware moved into its place.
// Returns ErrNotFound when no chain follows that entry, since nothing moved,
// and when already halted since the last GetNext.
func (it *Iterator) Halt() error {
	if it.halted || it.nextColl == 0 {
		return ErrNotFound
	}
	it.halted = true
	if it.curColl == 0 {
		it.curHash--
		it.nextColl = 0
	} else {
		it.nextColl = it.curColl
		it.chain--
	}
	return nil
}

// A valid pointer outside collision space, or a chain longer than
// collision space, ends the bucket.
func (it *Iterator) successor(g Geometry, x Entry) uint32 {
	addr, ok := x.CollisionPointer()
	if !ok || !g.IsCollision(uint32(addr)) || it.chain >= g.CollDepth {
		return 0
	}
	return uint32(addr)
}

func (it *Iterator) match(x Entry) bool {
	switch it.criterion {
	case MatchAll:
		return true
	case MatchValid:
		return x.Valid()
	}
	return false
}

type WalkAction uint8

const (
	// Visit the next entry.
	WalkContinue WalkAction = iota
	// The visited entry was deleted; revisit its position.
	WalkHalt
	// End the walk.
	WalkStop
)

// Walk calls fn with every entry matching c.  fn returns WalkHalt after
// deleting the entry it was given.
func Walk(e *Engine, c Criterion, fn func(Entry) (WalkAction, error)) error {
	var it Iterator
	x, err := it.GetFirst(e, c)
	for ; err == nil; x, err = it.GetNext() {
		act, ferr := fn(x)
		if ferr != nil {
			return ferr
		}
		switch act {
		case WalkStop:
			return nil
		case WalkHalt:
			if herr := it.Halt(); herr != nil && !errors.Is(herr, ErrNotFound) {
				return herr
			}
		}
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
