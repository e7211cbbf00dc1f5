// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package goes

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// frame is the command state carried by a context: the names leading to
// the running command, where it prints, and any help/complete preemption.
type frame struct {
	path    []string
	w       io.Writer
	preempt string
	usage   string
}

type frameKey struct{}

func frameOf(ctx context.Context) *frame {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		return f
	}
	return &frame{}
}

func with(ctx context.Context, f frame) context.Context {
	return context.WithValue(ctx, frameKey{}, &f)
}

// New returns the context of program prog printing to w.
func New(ctx context.Context, w io.Writer, prog string) context.Context {
	return with(ctx, frame{path: []string{prog}, w: w})
}

// WithCommand appends name to the command path.
func WithCommand(ctx context.Context, name string) context.Context {
	f := *frameOf(ctx)
	f.path = append(f.path[:len(f.path):len(f.path)], name)
	return with(ctx, f)
}

// Path is the space separated command path, e.g. "l2br add".
func Path(ctx context.Context) string {
	return strings.Join(frameOf(ctx).path, " ")
}

// Preempt moves a leading "help" or "complete" argument to the context.
func Preempt(ctx context.Context, args []string) (context.Context, []string) {
	if len(args) == 0 || (args[0] != "help" && args[0] != "complete") {
		return ctx, args
	}
	f := *frameOf(ctx)
	f.preempt = args[0]
	return with(ctx, f), args[1:]
}

// Preemption returns "help", "complete" or an empty string.
func Preemption(ctx context.Context) string { return frameOf(ctx).preempt }

// WithUsage sets the argument synopsis printed by a Selection's help.
func WithUsage(ctx context.Context, usage string) context.Context {
	f := *frameOf(ctx)
	f.usage = usage
	return with(ctx, f)
}

// Usage prints "usage: PATH SYNOPSIS".
func Usage(ctx context.Context, synopsis string) {
	if len(synopsis) == 0 {
		Println(ctx, "usage:", Path(ctx))
	} else {
		Println(ctx, "usage:", Path(ctx), synopsis)
	}
}

// Println writes to the command output until the context is done.
func Println(ctx context.Context, args ...interface{}) {
	if f := frameOf(ctx); f.w != nil && ctx.Err() == nil {
		fmt.Fprintln(f.w, args...)
	}
}

func Printf(ctx context.Context, format string, args ...interface{}) {
	if f := frameOf(ctx); f.w != nil && ctx.Err() == nil {
		fmt.Fprintf(f.w, format, args...)
	}
}
