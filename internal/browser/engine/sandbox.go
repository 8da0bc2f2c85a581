// File: internal/browser/engine/sandbox.go
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/url"
)

// newLoop builds the event loop that owns one execution's runtime. The
// node-style console is disabled; the console shim replaces it.
func newLoop() *eventloop.EventLoop {
	return eventloop.NewEventLoop(eventloop.EnableConsole(false))
}

// bootstrapGlobals aliases the runtime's global object to the browser names
// and enables the URL classes. After this, setting a property on the
// returned window makes it a bare global, which is exactly how scripts
// expect window to behave. A Window constructor is grafted onto the global's
// prototype chain so `window instanceof Window` probes pass.
func bootstrapGlobals(vm *goja.Runtime) (*goja.Object, error) {
	window := vm.GlobalObject()
	for _, alias := range []string{"window", "self", "top", "parent", "frames"} {
		if err := window.Set(alias, window); err != nil {
			return nil, fmt.Errorf("failed to alias global %q: %w", alias, err)
		}
	}

	ctorVal, err := vm.RunString(`(function Window() { throw new TypeError("Illegal constructor"); })`)
	if err != nil {
		return nil, fmt.Errorf("failed to define Window: %w", err)
	}
	ctor := ctorVal.ToObject(vm)
	if proto, ok := ctor.Get("prototype").(*goja.Object); ok {
		if err := window.SetPrototype(proto); err != nil {
			return nil, fmt.Errorf("failed to graft Window.prototype: %w", err)
		}
	}
	if err := window.Set("Window", ctor); err != nil {
		return nil, fmt.Errorf("failed to bind Window: %w", err)
	}

	url.Enable(vm)
	return window, nil
}

// watchdog interrupts the runtime when a phase budget expires. The goja
// interrupt flag is sticky, so the engine disarms the watchdog and clears
// the flag between phases; the mutex closes the window where a firing timer
// could interrupt a runtime that was just cleared.
type watchdog struct {
	vm     *goja.Runtime
	reason string

	mu       sync.Mutex
	timer    *time.Timer
	fired    bool
	disarmed bool
}

func newWatchdog(vm *goja.Runtime, reason string) *watchdog {
	return &watchdog{vm: vm, reason: reason}
}

// arm schedules the interrupt d from now. A non-positive d trips immediately.
func (w *watchdog) arm(d time.Duration) {
	if d <= 0 {
		w.trip()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.disarmed {
		w.timer = time.AfterFunc(d, w.trip)
	}
}

func (w *watchdog) trip() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disarmed || w.fired {
		return
	}
	w.fired = true
	w.vm.Interrupt(w.reason)
}

// disarm stops the timer and reports whether the interrupt already fired.
// Once disarm returns, the watchdog will never touch the runtime again.
func (w *watchdog) disarm() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disarmed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fired
}

// expired reports whether the watchdog has interrupted the runtime.
func (w *watchdog) expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}
