// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// StreamStdout marks a line written to standard output.
	StreamStdout Stream = "stdout"
	// StreamStderr marks a line written to standard error.
	StreamStderr Stream = "stderr"
)

var (
	// ErrEngineNotReady is returned when the interpreter cannot be initialised.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrContextReleased is returned by Capture after Release has been called.
	ErrContextReleased = errors.New("evaluation context released")
	// ErrMalformedTable is returned when an evaluated value cannot be decoded.
	ErrMalformedTable = errors.New("malformed table output")
)

type (
	// Engine is the evaluation engine contract. Implementations must be safe
	// for concurrent use; they may serialize work internally.
	Engine interface {
		// Init makes the engine ready. It is idempotent and may be called
		// before every operation.
		Init(ctx context.Context) error
		// Evaluate evaluates expr and returns its value coerced to a table.
		Evaluate(ctx context.Context, expr string) (*Value, error)
		// InstallPackages installs the named packages. It returns an error
		// if any package is not available after the attempt.
		InstallPackages(ctx context.Context, names []string) error
		// OpenContext creates a scoped evaluation context. The caller must
		// call Release when done.
		OpenContext(ctx context.Context) (Context, error)
	}

	// Context is a disposable evaluation session. State created by one
	// Capture call does not leak into other contexts.
	Context interface {
		// Capture evaluates expr and returns its output lines. When the
		// expression fails, the lines captured so far are returned together
		// with an *EvalError.
		Capture(ctx context.Context, expr string) ([]OutputLine, error)
		// Release disposes of the context. It is idempotent.
		Release() error
	}

	// Stream identifies the output stream of a captured line.
	Stream string

	// OutputLine is one line of captured output.
	OutputLine struct {
		Stream Stream
		Data   string
	}

	// Column is a named column of an evaluated table.
	Column struct {
		Name   string
		Values []string
	}

	// Value is an evaluated expression, represented column-wise.
	Value struct {
		Columns []Column
	}

	// EvalError reports that the interpreter exited unsuccessfully.
	EvalError struct {
		ExitCode int
		Stderr   string
	}
)

// Column returns the values of the named column.
func (v *Value) Column(name string) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	for _, c := range v.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// Rows returns the number of rows, i.e. the length of the first column.
func (v *Value) Rows() int {
	if v == nil || len(v.Columns) == 0 {
		return 0
	}
	return len(v.Columns[0].Values)
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Sprintf("R exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("R exited with status %d: %s", e.ExitCode, msg)
}

// Stdout returns the data of all stdout lines joined by newlines.
func Stdout(lines []OutputLine) string {
	var b strings.Builder
	first := true
	for _, l := range lines {
		if l.Stream != StreamStdout {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(l.Data)
		first = false
	}
	return b.String()
}
