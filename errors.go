// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package bitwise

import (
	"errors"
	"fmt"
)

var (
	// ErrFull is returned by Insert when the item count cannot grow any
	// further. The item is left untouched and can be inserted elsewhere.
	ErrFull = errors.New("bitwise: index is full")
	// ErrCorrupt is wrapped by every violation Verify reports.
	ErrCorrupt = errors.New("bitwise: index is corrupt")
)

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
