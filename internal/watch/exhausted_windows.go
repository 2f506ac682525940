// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

const (
	errTooManyOpenFiles = syscall.Errno(4)
	errInvalidHandle    = syscall.Errno(6)
	errNotEnoughMemory  = syscall.Errno(8)
)

// exhausted reports ReadDirectoryChangesW failures the watcher cannot
// recover from: handle or memory exhaustion, or a vanished directory.
func exhausted(err error) bool {
	return errors.Is(err, errTooManyOpenFiles) ||
		errors.Is(err, errInvalidHandle) ||
		errors.Is(err, errNotEnoughMemory)
}
