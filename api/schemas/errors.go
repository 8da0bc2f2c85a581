package schemas

import (
	"fmt"
	"time"
)

// -- Error Taxonomy --
//
// EnvironmentError: the host cannot support sandboxed execution at all; the
// call aborts before producing a snapshot.
// TimeoutError: the call's total budget was exhausted; usually reported as
// data, raised hard only when bootstrap itself cannot complete.
// ExecutionError: one script's top-level evaluation threw; recorded, never
// fatal to the run.
// SecurityError: script execution was requested but refused by policy.

// EnvironmentError means a required host capability is missing or broke
// during sandbox construction.
type EnvironmentError struct {
	Op     string
	Reason string
	Err    error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("environment error during %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("environment error during %s: %s", e.Op, e.Reason)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// NewEnvironmentError wraps err as a fatal sandbox-construction failure.
func NewEnvironmentError(op, reason string, err error) *EnvironmentError {
	return &EnvironmentError{Op: op, Reason: reason, Err: err}
}

// TimeoutError means the shared deadline expired before the phase finished.
type TimeoutError struct {
	Phase  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out during %s after %s", e.Phase, e.Budget)
}

// ExecutionError wraps a script-level throw for callers that want errors.As
// access to the failing script.
type ExecutionError struct {
	ScriptURL string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.ScriptURL != "" {
		return fmt.Sprintf("script %s failed: %v", e.ScriptURL, e.Err)
	}
	return fmt.Sprintf("inline script failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SecurityError signals refusal, not a runtime fault: the caller asked for
// script execution from input the current policy does not allow.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("script execution refused: %s", e.Reason)
}
