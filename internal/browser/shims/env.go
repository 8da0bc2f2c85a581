// File: internal/browser/shims/env.go

// Package shims builds the browser-like global surface inside a goja
// runtime: console capture, timers, fetch and XMLHttpRequest, storage,
// cookies, navigation, and the permissive fallback stubs. Every installer
// must run on the event loop goroutine that owns the runtime.
package shims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/activity"
	"github.com/xkilldash9x/lancet/internal/browser/dom"
)

// FetchFunc performs one subresource request on behalf of the sandbox. It is
// called off the loop goroutine and must honor ctx.
type FetchFunc func(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error)

// Env bundles everything the shim installers need. The engine builds one Env
// per execution; nothing in it is shared across calls.
type Env struct {
	VM       *goja.Runtime
	Loop     *eventloop.EventLoop
	Bridge   *dom.Bridge
	Tracker  *activity.Tracker
	Registry *Registry
	Console  *Collector
	Metrics  *Metrics
	Options  schemas.ExecutionOptions
	Log      *zap.Logger

	// Ctx bounds every network call made on behalf of the page.
	Ctx   context.Context
	Fetch FetchFunc

	UserAgent string
	Language  string

	// SetCookies seeds document.cookie from the document response before
	// any script runs.
	SetCookies []string

	// Start anchors performance.now and animation frame timestamps.
	Start time.Time

	// ReportError records recoverable sandbox failures (throwing callbacks,
	// rejected shim work) without aborting the run.
	ReportError func(context string, err error)

	// History, set by the navigation installer, snapshots the sandbox's
	// session history. Callers must invoke it on the loop goroutine.
	History func() []schemas.HistoryState
}

// Install wires the full shim surface onto the bridge's window, in layering
// order: console, timers, network, storage, navigation, fallback, probes.
func (e *Env) Install() error {
	window := e.Bridge.Window()
	if window == nil {
		return errors.New("shims: bridge is not bound to a window")
	}
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	if e.Ctx == nil {
		e.Ctx = context.Background()
	}
	if e.Start.IsZero() {
		e.Start = time.Now()
	}

	e.Bridge.SetMutationHook(func(string) { e.Metrics.DOMMutations.Add(1) })
	e.Bridge.SetListenerHook(func() { e.Metrics.ListenersAdded.Add(1) })

	installers := []struct {
		name string
		fn   func(*Env, *goja.Object) error
	}{
		{"console", installConsole},
		{"timers", installTimers},
		{"fetch", installFetch},
		{"xhr", installXHR},
		{"storage", installStorage},
		{"cookies", installCookies},
		{"navigation", installNavigation},
		{"fallback", installFallback},
		{"probes", installProbes},
	}
	for _, inst := range installers {
		if err := inst.fn(e, window); err != nil {
			return fmt.Errorf("shims: installing %s: %w", inst.name, err)
		}
	}
	return nil
}

// reportError funnels shim failures to the host, falling back to a debug log.
func (e *Env) reportError(context string, err error) {
	if e.ReportError != nil {
		e.ReportError(context, err)
		return
	}
	e.Log.Debug("Swallowed sandbox error", zap.String("context", context), zap.Error(err))
}

// callGuarded invokes a page callback, converting panics and returned errors
// into recorded sandbox errors.
func (e *Env) callGuarded(fn goja.Callable, context string, this goja.Value, args ...goja.Value) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				e.reportError(context, err)
				return
			}
			e.reportError(context, fmt.Errorf("%v", r))
		}
	}()
	if _, err := fn(this, args...); err != nil {
		e.reportError(context, err)
	}
}

// defineAccessor installs a read/write accessor property on obj.
func defineAccessor(vm *goja.Runtime, obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	var setter goja.Value
	if set != nil {
		setter = vm.ToValue(set)
	}
	_ = obj.DefineAccessorProperty(name, vm.ToValue(get), setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// installIfAbsent sets a global only when the page or an earlier shim has not
// already defined it.
func installIfAbsent(window *goja.Object, name string, value goja.Value) bool {
	if existing := window.Get(name); existing != nil && !goja.IsUndefined(existing) && !goja.IsNull(existing) {
		return false
	}
	_ = window.Set(name, value)
	return true
}

// jsJSON returns the runtime's JSON.parse and JSON.stringify callables.
func jsJSON(vm *goja.Runtime) (parse, stringify goja.Callable, err error) {
	jsonVal := vm.Get("JSON")
	if jsonVal == nil {
		return nil, nil, errors.New("runtime has no JSON object")
	}
	jsonObj := jsonVal.ToObject(vm)
	p, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return nil, nil, errors.New("JSON.parse is not callable")
	}
	s, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return nil, nil, errors.New("JSON.stringify is not callable")
	}
	return p, s, nil
}
