// File: internal/browser/shims/console.go
package shims

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// MaxConsoleEntries caps the captured console output per execution. Entries
// beyond the cap are counted and summarized in one trailing entry.
const MaxConsoleEntries = 1000

// Collector accumulates console output from the sandbox.
type Collector struct {
	mu      sync.Mutex
	entries []schemas.ConsoleEntry
	dropped int
	now     func() time.Time
}

// NewCollector builds a collector. now may be nil for the wall clock.
func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{now: now}
}

// Add records one console call, dropping past the cap.
func (c *Collector) Add(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= MaxConsoleEntries {
		c.dropped++
		return
	}
	c.entries = append(c.entries, schemas.ConsoleEntry{
		Level:   level,
		Message: message,
		Time:    c.now(),
	})
}

// Entries returns a copy of the captured output, with a summary entry when
// the cap was hit.
func (c *Collector) Entries() []schemas.ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schemas.ConsoleEntry, len(c.entries), len(c.entries)+1)
	copy(out, c.entries)
	if c.dropped > 0 {
		out = append(out, schemas.ConsoleEntry{
			Level:   "warn",
			Message: fmt.Sprintf("console output truncated: %d entries dropped", c.dropped),
			Time:    c.now(),
		})
	}
	return out
}

// Len reports the number of captured entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// installConsole replaces the runtime console with a capturing one.
func installConsole(e *Env, window *goja.Object) error {
	console := e.VM.NewObject()

	record := func(level string, args []goja.Value) {
		e.Metrics.ConsoleCalls.Add(1)
		msg := e.formatConsoleArgs(args)
		e.Console.Add(level, msg)
		if e.Options.ForwardConsole {
			e.forwardConsole(level, msg)
		}
	}
	bind := func(name, level string) {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			record(level, call.Arguments)
			return goja.Undefined()
		})
	}
	bind("log", "log")
	bind("info", "info")
	bind("warn", "warn")
	bind("error", "error")
	bind("debug", "debug")
	bind("trace", "debug")
	_ = console.Set("assert", func(call goja.FunctionCall) goja.Value {
		if call.Argument(0).ToBoolean() {
			return goja.Undefined()
		}
		args := call.Arguments
		if len(args) > 0 {
			args = args[1:]
		}
		msg := "Assertion failed"
		if rest := e.formatConsoleArgs(args); rest != "" {
			msg += ": " + rest
		}
		e.Metrics.ConsoleCalls.Add(1)
		e.Console.Add("error", msg)
		if e.Options.ForwardConsole {
			e.forwardConsole("error", msg)
		}
		return goja.Undefined()
	})

	return window.Set("console", console)
}

func (e *Env) forwardConsole(level, msg string) {
	log := e.Log.Named("console")
	switch level {
	case "error":
		log.Error(msg)
	case "warn":
		log.Warn(msg)
	case "debug":
		log.Debug(msg)
	default:
		log.Info(msg)
	}
}

func (e *Env) formatConsoleArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, e.formatConsoleValue(a))
	}
	return strings.Join(parts, " ")
}

// formatConsoleValue renders one console argument. Errors carry their
// toString plus any extra enumerable own properties; plain objects go
// through JSON.stringify so cycles fail softly instead of recursing.
func (e *Env) formatConsoleValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return "[Function]"
	}
	if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
		return e.formatErrorValue(obj)
	}
	_, stringify, err := jsJSON(e.VM)
	if err == nil {
		if res, serr := stringify(goja.Undefined(), v); serr == nil && res != nil && !goja.IsUndefined(res) {
			return res.String()
		}
	}
	return v.String()
}

// formatErrorValue renders an Error-like object: its toString, then extra
// enumerable own properties as a props suffix.
func (e *Env) formatErrorValue(obj *goja.Object) string {
	base := obj.String()
	extras := make(map[string]interface{})
	for _, key := range obj.Keys() {
		switch key {
		case "name", "message", "stack":
			continue
		}
		if v := obj.Get(key); v != nil {
			extras[key] = v.Export()
		}
	}
	if len(extras) == 0 {
		return base
	}
	_, stringify, err := jsJSON(e.VM)
	if err != nil {
		return base
	}
	rendered, serr := stringify(goja.Undefined(), e.VM.ToValue(extras))
	if serr != nil || rendered == nil {
		return base
	}
	return base + " props: " + rendered.String()
}
