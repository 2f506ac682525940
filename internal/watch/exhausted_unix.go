// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// exhausted reports inotify resource exhaustion, after which no further
// events arrive: the watch limit (ENOSPC) or a descriptor limit.
func exhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
