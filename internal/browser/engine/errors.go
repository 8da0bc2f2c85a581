// File: internal/browser/engine/errors.go
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// maxEngineErrors caps the recorded error list so a pathological page cannot
// balloon the result.
const maxEngineErrors = 200

// errorSink collects recoverable failures from every corner of one
// execution: script throws, listener panics, shim callbacks, unhandled
// rejections. It is the ReportError hook handed to the bridge and the shim
// environment, so it must be safe to call from the loop goroutine and from
// the engine's own goroutine.
type errorSink struct {
	mu      sync.Mutex
	stage   string
	entries []schemas.ScriptError
	dropped int
}

func newErrorSink() *errorSink {
	return &errorSink{stage: schemas.StageBootstrap}
}

// setStage labels every subsequently recorded error.
func (s *errorSink) setStage(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// add records one error with explicit fields.
func (s *errorSink) add(scriptURL, message, stack string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= maxEngineErrors {
		s.dropped++
		return
	}
	s.entries = append(s.entries, schemas.ScriptError{
		Stage:     s.stage,
		ScriptURL: scriptURL,
		Message:   message,
		Stack:     stack,
	})
}

// record is the hook form: a short context string plus the underlying error.
func (s *errorSink) record(context string, err error) {
	message, stack := describeThrow(err)
	if context != "" {
		message = context + ": " + message
	}
	s.add("", message, stack)
}

// list returns a copy of everything recorded, with a trailing marker when
// the cap was hit.
func (s *errorSink) list() []schemas.ScriptError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ScriptError, len(s.entries), len(s.entries)+1)
	copy(out, s.entries)
	if s.dropped > 0 {
		out = append(out, schemas.ScriptError{
			Stage:   s.stage,
			Message: "error list truncated: additional errors dropped",
		})
	}
	return out
}

// describeThrow extracts a message and, for JS exceptions, the stack trace.
func describeThrow(err error) (message, stack string) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg := ex.Error()
		if v := ex.Value(); v != nil {
			msg = safeValueString(v)
		}
		return msg, ex.String()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return "execution interrupted: " + safeInterruptString(interrupted), ""
	}
	return err.Error(), ""
}

// isInterrupt reports whether err is (or wraps) a watchdog interrupt.
func isInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}

// safeValueString stringifies a JS value without letting a hostile toString
// escape.
func safeValueString(v goja.Value) (s string) {
	defer func() {
		if recover() != nil {
			s = "<unprintable value>"
		}
	}()
	if v == nil {
		return "undefined"
	}
	return v.String()
}

// safeInterruptString renders the value passed to Interrupt, which for the
// engine's own watchdogs is a short reason string.
func safeInterruptString(err *goja.InterruptedError) string {
	if v := err.Value(); v != nil {
		return fmt.Sprint(v)
	}
	return "interrupt"
}
