// File: cmd/tripwire/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/tripwire-cli/cmd"
	"github.com/xkilldash9x/tripwire-cli/internal/runner"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRun_ExitCodes(t *testing.T) {
	defer resetMocks()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"verdict failure", fmt.Errorf("%w: checkout", cmd.ErrRunFailed), 1},
		{"runtime error", errors.New("chrome crashed"), 1},
		{"configuration error", &runner.ConfigError{Err: runner.ErrNoBaseURL}, 2},
		{"wrapped configuration error", fmt.Errorf("outer: %w", &runner.ConfigError{Err: errors.New("bad yaml")}), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(ctx context.Context) error {
				require.NotNil(t, ctx.Done(), "the context is signal aware")
				return tt.err
			}
			assert.Equal(t, tt.want, run())
		})
	}
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var (
		exitCode    = -1
		writtenPath string
		written     []byte
	)
	osExit = func(code int) { exitCode = code }
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		writtenPath = name
		written = data
		return nil
	}

	func() {
		defer handlePanic()
		panic("boom")
	}()

	assert.Equal(t, 1, exitCode)
	assert.Equal(t, panicLogFile, writtenPath)
	assert.Contains(t, string(written), "panic: boom")
	assert.Contains(t, string(written), "goroutine", "the stack trace is included")
}

func TestHandlePanic_WriteFailureStillExits(t *testing.T) {
	defer resetMocks()

	exitCode := -1
	osExit = func(code int) { exitCode = code }
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, exitCode)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	defer resetMocks()

	called := false
	osExit = func(int) { called = true }
	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}
