// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bridge

import (
	"errors"
	"fmt"

	"github.com/platinasystems/l2br/hostcmd"
)

var (
	ErrInvalid       = errors.New("invalid argument")
	ErrNotFound      = errors.New("entry not found")
	ErrCommandFailed = errors.New("command failed")
	ErrClosed        = errors.New("table closed")
	ErrTimeout       = hostcmd.ErrTimeout
)

// StatusError is a command that completed without its success status.
// It matches ErrCommandFailed.
type StatusError struct {
	Op     hostcmd.Opcode
	Status hostcmd.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCommandFailed, e.Status)
}

func (e *StatusError) Is(target error) bool { return target == ErrCommandFailed }
