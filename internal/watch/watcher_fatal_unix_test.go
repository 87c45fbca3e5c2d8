// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	assert.True(t, isFatalFsnotifyError(syscall.ENOSPC))
	assert.True(t, isFatalFsnotifyError(fmt.Errorf("add watch: %w", syscall.EMFILE)))
	assert.True(t, isFatalFsnotifyError(syscall.ENFILE))
	assert.False(t, isFatalFsnotifyError(syscall.EACCES))
	assert.False(t, isFatalFsnotifyError(errors.New("queue overflow")))
}
