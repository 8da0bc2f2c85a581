// File: internal/browser/shims/timers.go
package shims

import (
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// timerKind distinguishes the loop handle held by a registry entry.
type timerKind int

const (
	kindTimeout timerKind = iota
	kindInterval
	kindImmediate
	kindAnimationFrame
	kindIdleCallback
)

// timerEntry is one live timer. Exactly one of timer and interval is set,
// according to kind.
type timerEntry struct {
	kind     timerKind
	timer    *eventloop.Timer
	interval *eventloop.Interval
}

// Registry tracks every timer the page has scheduled so teardown can cancel
// them all. It is confined to the loop goroutine; nothing here locks.
type Registry struct {
	loop    *eventloop.EventLoop
	nextID  int64
	entries map[int64]*timerEntry
}

// NewRegistry builds a registry bound to the loop whose handles it manages.
func NewRegistry(loop *eventloop.EventLoop) *Registry {
	return &Registry{loop: loop, entries: make(map[int64]*timerEntry)}
}

func (r *Registry) add(entry *timerEntry) int64 {
	r.nextID++
	r.entries[r.nextID] = entry
	return r.nextID
}

// AddTimer registers a one-shot handle of the given kind.
func (r *Registry) AddTimer(kind timerKind, t *eventloop.Timer) int64 {
	return r.add(&timerEntry{kind: kind, timer: t})
}

// AddInterval registers a repeating handle.
func (r *Registry) AddInterval(iv *eventloop.Interval) int64 {
	return r.add(&timerEntry{kind: kindInterval, interval: iv})
}

// Remove forgets an entry whose callback already ran.
func (r *Registry) Remove(id int64) {
	delete(r.entries, id)
}

// Clear cancels and forgets one entry. Unknown ids are ignored, which also
// covers clearTimeout after the callback fired.
func (r *Registry) Clear(id int64) {
	entry, ok := r.entries[id]
	if !ok {
		return
	}
	delete(r.entries, id)
	if entry.interval != nil {
		r.loop.ClearInterval(entry.interval)
		return
	}
	if entry.timer != nil {
		r.loop.ClearTimeout(entry.timer)
	}
}

// ClearAll cancels every live timer. Teardown calls this so interval chains
// cannot outlive the execution.
func (r *Registry) ClearAll() {
	for id := range r.entries {
		r.Clear(id)
	}
}

// Pending reports the number of live entries.
func (r *Registry) Pending() int { return len(r.entries) }

// installTimers binds the scheduling globals to the loop through the
// registry: timeouts, intervals, immediates, animation frames, idle
// callbacks, microtasks, and the performance clock.
func installTimers(e *Env, window *goja.Object) error {
	vm := e.VM

	// callbackFor accepts a function or, for the legacy form, source text.
	callbackFor := func(v goja.Value) (goja.Callable, bool) {
		if fn, ok := goja.AssertFunction(v); ok {
			return fn, true
		}
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, false
		}
		src := v.String()
		return func(this goja.Value, args ...goja.Value) (goja.Value, error) {
			return vm.RunString(src)
		}, true
	}

	delayOf := func(v goja.Value) time.Duration {
		ms := v.ToFloat()
		if ms < 0 || ms != ms {
			ms = 0
		}
		return time.Duration(ms * float64(time.Millisecond))
	}

	fire := func(fn goja.Callable, context string, args ...goja.Value) {
		e.Metrics.TimersFired.Add(1)
		e.Tracker.Note()
		e.callGuarded(fn, context, goja.Undefined(), args...)
	}

	scheduleTimeout := func(kind timerKind, fn goja.Callable, d time.Duration, context string, argsFor func() []goja.Value) int64 {
		e.Metrics.TimersScheduled.Add(1)
		var id int64
		t := e.Loop.SetTimeout(func(*goja.Runtime) {
			e.Registry.Remove(id)
			fire(fn, context, argsFor()...)
		}, d)
		id = e.Registry.AddTimer(kind, t)
		return id
	}

	_ = window.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := callbackFor(call.Argument(0))
		if !ok {
			return vm.ToValue(0)
		}
		extra := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)
		id := scheduleTimeout(kindTimeout, fn, delayOf(call.Argument(1)), "setTimeout", func() []goja.Value { return extra })
		return vm.ToValue(id)
	})
	_ = window.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		e.Registry.Clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})

	_ = window.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		fn, ok := callbackFor(call.Argument(0))
		if !ok {
			return vm.ToValue(0)
		}
		e.Metrics.TimersScheduled.Add(1)
		extra := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)
		iv := e.Loop.SetInterval(func(*goja.Runtime) {
			fire(fn, "setInterval", extra...)
		}, delayOf(call.Argument(1)))
		return vm.ToValue(e.Registry.AddInterval(iv))
	})
	_ = window.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		e.Registry.Clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})

	_ = window.Set("setImmediate", func(call goja.FunctionCall) goja.Value {
		fn, ok := callbackFor(call.Argument(0))
		if !ok {
			return vm.ToValue(0)
		}
		extra := append([]goja.Value(nil), call.Arguments[min(1, len(call.Arguments)):]...)
		id := scheduleTimeout(kindImmediate, fn, 0, "setImmediate", func() []goja.Value { return extra })
		return vm.ToValue(id)
	})
	_ = window.Set("clearImmediate", func(call goja.FunctionCall) goja.Value {
		e.Registry.Clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})

	// Animation frames approximate one 60Hz frame and pass the high
	// resolution timestamp callbacks expect.
	_ = window.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return vm.ToValue(0)
		}
		id := scheduleTimeout(kindAnimationFrame, fn, 16*time.Millisecond, "requestAnimationFrame", func() []goja.Value {
			return []goja.Value{vm.ToValue(e.nowMillis())}
		})
		return vm.ToValue(id)
	})
	_ = window.Set("cancelAnimationFrame", func(call goja.FunctionCall) goja.Value {
		e.Registry.Clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})

	_ = window.Set("requestIdleCallback", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return vm.ToValue(0)
		}
		id := scheduleTimeout(kindIdleCallback, fn, time.Millisecond, "requestIdleCallback", func() []goja.Value {
			deadline := vm.NewObject()
			_ = deadline.Set("didTimeout", false)
			_ = deadline.Set("timeRemaining", func() float64 { return 0 })
			return []goja.Value{deadline}
		})
		return vm.ToValue(id)
	})
	_ = window.Set("cancelIdleCallback", func(call goja.FunctionCall) goja.Value {
		e.Registry.Clear(call.Argument(0).ToInteger())
		return goja.Undefined()
	})

	// queueMicrotask runs as a loop job: after the current job, ahead of
	// timers. Close enough to microtask ordering for settle purposes.
	_ = window.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("queueMicrotask expects a function"))
		}
		e.Loop.RunOnLoop(func(*goja.Runtime) {
			e.Tracker.Note()
			e.callGuarded(fn, "queueMicrotask", goja.Undefined())
		})
		return goja.Undefined()
	})

	perf := vm.NewObject()
	_ = perf.Set("now", func() float64 { return e.nowMillis() })
	_ = perf.Set("timeOrigin", float64(e.Start.UnixNano())/1e6)
	_ = perf.Set("mark", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = perf.Set("measure", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = perf.Set("getEntries", func() goja.Value { return vm.NewArray() })
	_ = perf.Set("getEntriesByType", func(string) goja.Value { return vm.NewArray() })
	_ = perf.Set("getEntriesByName", func(string) goja.Value { return vm.NewArray() })
	return window.Set("performance", perf)
}

func (e *Env) nowMillis() float64 {
	return float64(time.Since(e.Start)) / float64(time.Millisecond)
}
