// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes that leave ReadDirectoryChangesW unusable.
const (
	// ERROR_TOO_MANY_OPEN_FILES
	errnoTooManyOpenFiles = syscall.Errno(4)
	// ERROR_INVALID_HANDLE
	errnoInvalidHandle = syscall.Errno(6)
	// ERROR_NOT_ENOUGH_MEMORY
	errnoNotEnoughMemory = syscall.Errno(8)
)

// isFatalFsnotifyError reports errors after which the library can no
// longer be watched, such as the library directory being removed.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, errnoTooManyOpenFiles) ||
		errors.Is(err, errnoInvalidHandle) ||
		errors.Is(err, errnoNotEnoughMemory)
}
