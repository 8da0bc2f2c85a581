// File: cmd/lancet/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/lancet/cmd"
	"github.com/xkilldash9x/lancet/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables allow tests to intercept process-level effects.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// Renders abort gracefully on SIGINT/SIGTERM through this context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		observability.Sync()
		if errors.Is(err, context.Canceled) {
			osExit(0)
		}
		osExit(1)
	}
	observability.Sync()
}

// handlePanic records an unrecovered panic to a dedicated log file so the
// crash survives terminal scrollback, then exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	observability.Sync()

	stackTrace := debug.Stack()
	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, stackTrace)

	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "lancet crashed; details written to %s\n", panicLogFile)
	osExit(1)
}
