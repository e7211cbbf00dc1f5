// Copyright © 2015-2022 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package m

import (
	"fmt"
	"math/bits"
)

// FlagStringer names each set bit of x by its index in n; unnamed bits are
// printed with their bit number.
func FlagStringer(n []string, x uint64) (s string) {
	for x != 0 {
		i := bits.TrailingZeros64(x)
		if len(s) > 0 {
			s += ", "
		}
		if i < len(n) && len(n[i]) > 0 {
			s += n[i]
		} else {
			s += fmt.Sprintf("%d", i)
		}
		x &^= 1 << uint(i)
	}
	return
}
