package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/macadm/unisync/pkg/errors"
)

// Mocked for unit testing.
var exit = os.Exit

// friendlyError is implemented by errors whose message should be shown to the
// user without the context chain.
type friendlyError interface {
	FriendlyMessage() string
}

// HandleFatalError prints the error and terminates the process with the exit
// code the error maps to.
func HandleFatalError(err error) {
	if friendly, ok := errors.RootCause(err).(friendlyError); ok {
		fmt.Fprintln(os.Stderr, friendly.FriendlyMessage())
	} else {
		log.WithError(err).Error("Fatal error")
	}
	exit(ExitCode(err))
}

// ExitCode maps an error to the process exit code to terminate with.
func ExitCode(err error) int {
	if coder, ok := errors.RootCause(err).(errors.ExitCoder); ok {
		return coder.ExitCode()
	}
	return 1
}

// HandlePanic recovers from panics, prints the stack, and exits non-zero.
// It's installed by main so that a crash still produces a diagnosable error
// for whoever reads the scheduler's logs.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
	exit(1)
}
