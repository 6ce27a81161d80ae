// File: cmd/tripwire/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/tripwire-cli/cmd"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
)

const panicLogFile = "tripwire-panic.log"

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
	// Allows replacing the command tree in tests.
	execute = cmd.Execute
)

// main is the entry point of the application.
func main() {
	defer handlePanic()
	osExit(run())
}

// run executes the command tree under a context that is cancelled on
// SIGINT or SIGTERM and returns the process exit status.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return cmd.ExitCode(execute(ctx))
}

// handlePanic writes the panic and its stack to panicLogFile and exits with
// the failure status, so a crashed run never reads as a pass in CI.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
	} else {
		fmt.Fprintf(os.Stderr, "tripwire crashed: %v (details in %s)\n", r, panicLogFile)
	}
	osExit(cmd.ExitFailure)
}
