// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes selects and runs context driven commands.  The context
// carries the command path, output and usage; "help" and "complete"
// preempt a command line.
package goes

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type Func = func(context.Context, ...string) error

type Selection map[string]Func

func (sel Selection) Keys() []string {
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Select runs the command named by args[0] with the remaining args.
// Preempted, an unknown or missing name prints the matching names for
// "complete" or the usage for "help".
func (sel Selection) Select(ctx context.Context, args ...string) error {
	var name string
	if len(args) > 0 {
		name = args[0]
		if f, found := sel[name]; found {
			return f(WithCommand(ctx, name), args[1:]...)
		}
	}
	switch Preemption(ctx) {
	case "complete":
		for _, k := range sel.Keys() {
			if strings.HasPrefix(k, name) {
				Println(ctx, k)
			}
		}
	case "help":
		synopsis := frameOf(ctx).usage
		if len(synopsis) == 0 {
			synopsis = "COMMAND [ARG]..."
		}
		Usage(ctx, synopsis)
		for _, k := range sel.Keys() {
			Println(ctx, " ", k)
		}
	default:
		if len(args) == 0 {
			return Errorf(ctx, "incomplete")
		}
		return Errorf(ctx, "%s: not found", name)
	}
	return nil
}

// Sequence splits a command line at ";" arguments, dropping empty
// commands.
func Sequence(args []string) (cmds [][]string) {
	start := 0
	for i, arg := range args {
		if arg == ";" {
			if i > start {
				cmds = append(cmds, args[start:i])
			}
			start = i + 1
		}
	}
	if start < len(args) {
		cmds = append(cmds, args[start:])
	}
	return
}

// Errorf prefaces the formatted error with the command path.
func Errorf(ctx context.Context, format string, args ...interface{}) error {
	return fmt.Errorf(Path(ctx)+": "+format, args...)
}
