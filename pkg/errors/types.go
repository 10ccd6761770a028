package errors

import (
	"fmt"
)

// Process exit codes for the failure modes that abort a run. These form the
// contract with the launchd job and the monitoring that watches it, so they
// must stay stable across releases.
const (
	ExitIneligibleUser = 11
	ExitMountMissing   = 12
	ExitInvalidTarget  = 13
	ExitConfigNotFound = 14
	ExitIdentity       = 15
)

// ExitCoder is implemented by errors that map to a specific process exit code.
// Errors without one exit with a generic failure code.
type ExitCoder interface {
	ExitCode() int
}

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// DataCollectionError represents a failure to resolve the console user. The
// run can't proceed without an identity, so this always aborts.
type DataCollectionError struct {
	Reason string
}

func (err DataCollectionError) Error() string {
	return fmt.Sprintf("resolve console user: %s", err.Reason)
}

// ExitCode implements ExitCoder.
func (err DataCollectionError) ExitCode() int {
	return ExitIdentity
}

// ConfigurationNotFound represents a missing template file for a sync target.
// It's distinct from FileNotFound so that the run can exit with the dedicated
// missing-template code rather than a generic I/O failure.
type ConfigurationNotFound struct {
	Target string
	Path   string
}

func (err ConfigurationNotFound) Error() string {
	return fmt.Sprintf("no template for target %q: %q does not exist", err.Target, err.Path)
}

// ExitCode implements ExitCoder.
func (err ConfigurationNotFound) ExitCode() int {
	return ExitConfigNotFound
}

// InvalidSyncTarget represents a configured target name that isn't in the
// known target list.
type InvalidSyncTarget struct {
	Target string
}

func (err InvalidSyncTarget) Error() string {
	return fmt.Sprintf("not a valid sync target: %q", err.Target)
}

// ExitCode implements ExitCoder.
func (err InvalidSyncTarget) ExitCode() int {
	return ExitInvalidTarget
}

// MountMissing represents an absent sync mount directory for the resolved
// user. Nothing is synced when the mount isn't there.
type MountMissing struct {
	Path string
}

func (err MountMissing) Error() string {
	return fmt.Sprintf("sync mount %q is missing or not a directory", err.Path)
}

// ExitCode implements ExitCoder.
func (err MountMissing) ExitCode() int {
	return ExitMountMissing
}

// SyncFailure represents a fatal exit from the external sync tool. The tool's
// own exit code is passed through as the process exit code.
type SyncFailure struct {
	Target string
	Code   int
	Output string
}

func (err SyncFailure) Error() string {
	return fmt.Sprintf("unison exited with code %d for target %q", err.Code, err.Target)
}

// ExitCode implements ExitCoder.
func (err SyncFailure) ExitCode() int {
	return err.Code
}
