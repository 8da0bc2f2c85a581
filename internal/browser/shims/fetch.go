// File: internal/browser/shims/fetch.go
package shims

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// pageFetchCeiling caps any single sandbox request. The execution context
// already carries the call deadline, so the effective bound is the smaller
// of the ceiling and the remaining budget.
const pageFetchCeiling = 10 * time.Second

// installFetch binds window.fetch. Requests run off-loop through the host
// network capability; promise settlement always happens back on the loop.
func installFetch(e *Env, window *goja.Object) error {
	vm := e.VM
	return window.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		req, err := e.parseFetchArgs(call)
		if err != nil {
			reject(vm.NewTypeError(err.Error()))
			return vm.ToValue(promise)
		}

		e.Metrics.FetchCalls.Add(1)
		if e.Options.DebugFetch {
			e.Log.Debug("Page fetch", zap.String("method", req.Method), zap.String("url", req.URL))
		}

		started := time.Now()
		e.startFetch(req, func(vm *goja.Runtime, resp *schemas.FetchResponse, err error) {
			if err != nil {
				if e.Options.DebugFetch {
					e.Log.Debug("Page fetch failed",
						zap.String("url", req.URL),
						zap.Duration("elapsed", time.Since(started)),
						zap.Error(err))
				}
				reject(vm.NewTypeError("fetch failed: " + err.Error()))
				return
			}
			if e.Options.DebugFetch {
				e.Log.Debug("Page fetch done",
					zap.String("url", req.URL),
					zap.Int("status", resp.Status),
					zap.Int("bytes", len(resp.Body)),
					zap.Duration("elapsed", time.Since(started)))
			}
			resolve(e.responseObject(vm, resp))
		})
		return vm.ToValue(promise)
	})
}

// startFetch brackets one network call with the activity tracker and
// delivers the outcome on the loop. The tracker balances even when the loop
// has already terminated.
func (e *Env) startFetch(req schemas.FetchRequest, deliver func(vm *goja.Runtime, resp *schemas.FetchResponse, err error)) {
	e.Tracker.FetchStarted()
	fetch := e.Fetch
	go func() {
		var resp *schemas.FetchResponse
		var err error
		if fetch == nil {
			err = errors.New("network access unavailable")
		} else {
			fctx, cancel := context.WithTimeout(e.Ctx, pageFetchCeiling)
			resp, err = fetch(fctx, req)
			cancel()
		}
		delivered := e.Loop.RunOnLoop(func(vm *goja.Runtime) {
			e.Tracker.FetchFinished()
			deliver(vm, resp, err)
		})
		if !delivered {
			e.Tracker.FetchFinished()
		}
	}()
}

// parseFetchArgs extracts the request from fetch(input, init) forms. Relative
// URLs resolve against the document base.
func (e *Env) parseFetchArgs(call goja.FunctionCall) (schemas.FetchRequest, error) {
	var req schemas.FetchRequest
	input := call.Argument(0)
	if input == nil || goja.IsUndefined(input) {
		return req, errors.New("fetch requires a URL")
	}

	raw := input.String()
	if obj, ok := input.(*goja.Object); ok {
		if u := obj.Get("url"); u != nil && !goja.IsUndefined(u) {
			raw = u.String()
		}
		if m := obj.Get("method"); m != nil && !goja.IsUndefined(m) {
			req.Method = strings.ToUpper(m.String())
		}
	}
	resolved, err := e.Bridge.ResolveURL(raw)
	if err != nil {
		return req, err
	}
	req.URL = resolved
	if req.Method == "" {
		req.Method = "GET"
	}

	init, ok := call.Argument(1).(*goja.Object)
	if !ok {
		return req, nil
	}
	if m := init.Get("method"); m != nil && !goja.IsUndefined(m) {
		req.Method = strings.ToUpper(m.String())
	}
	if h := init.Get("headers"); h != nil && !goja.IsUndefined(h) {
		req.Headers = headerPairs(h)
	}
	if b := init.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
		req.Body = []byte(b.String())
	}
	return req, nil
}

// headerPairs flattens a headers init value: a plain object of names to
// values, or an array of [name, value] pairs.
func headerPairs(v goja.Value) []schemas.NVPair {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	var pairs []schemas.NVPair
	if lengthVal := obj.Get("length"); lengthVal != nil && !goja.IsUndefined(lengthVal) {
		length := int(lengthVal.ToInteger())
		for i := 0; i < length; i++ {
			entry, ok := obj.Get(strconv.Itoa(i)).(*goja.Object)
			if !ok {
				continue
			}
			name := entry.Get("0")
			value := entry.Get("1")
			if name == nil || value == nil {
				continue
			}
			pairs = append(pairs, schemas.NVPair{Name: name.String(), Value: value.String()})
		}
		return pairs
	}
	for _, key := range obj.Keys() {
		if val := obj.Get(key); val != nil && !goja.IsUndefined(val) {
			pairs = append(pairs, schemas.NVPair{Name: key, Value: val.String()})
		}
	}
	return pairs
}

// responseObject builds the Response surface over a completed request.
func (e *Env) responseObject(vm *goja.Runtime, resp *schemas.FetchResponse) *goja.Object {
	obj := vm.NewObject()
	body := resp.Body
	_ = obj.Set("url", resp.URL)
	_ = obj.Set("status", resp.Status)
	_ = obj.Set("statusText", resp.StatusText)
	_ = obj.Set("ok", resp.OK())
	_ = obj.Set("redirected", resp.Redirected)
	_ = obj.Set("type", "basic")
	_ = obj.Set("bodyUsed", false)
	_ = obj.Set("headers", e.headersObject(vm, resp))

	consume := func() {
		_ = obj.Set("bodyUsed", true)
	}
	_ = obj.Set("text", func(call goja.FunctionCall) goja.Value {
		consume()
		return e.resolvedPromise(vm, vm.ToValue(string(body)))
	})
	_ = obj.Set("json", func(call goja.FunctionCall) goja.Value {
		consume()
		parse, _, err := jsJSON(vm)
		if err != nil {
			return e.rejectedPromise(vm, vm.NewTypeError(err.Error()))
		}
		parsed, perr := parse(goja.Undefined(), vm.ToValue(string(body)))
		if perr != nil {
			return e.rejectedPromise(vm, vm.NewTypeError("invalid JSON response: "+perr.Error()))
		}
		return e.resolvedPromise(vm, parsed)
	})
	_ = obj.Set("arrayBuffer", func(call goja.FunctionCall) goja.Value {
		consume()
		buf := make([]byte, len(body))
		copy(buf, body)
		return e.resolvedPromise(vm, vm.ToValue(vm.NewArrayBuffer(buf)))
	})
	_ = obj.Set("clone", func(call goja.FunctionCall) goja.Value {
		return e.responseObject(vm, resp)
	})
	return obj
}

// headersObject exposes response headers with the Headers lookup surface.
func (e *Env) headersObject(vm *goja.Runtime, resp *schemas.FetchResponse) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		values := resp.HeaderValues(call.Argument(0).String())
		if len(values) == 0 {
			return goja.Null()
		}
		return vm.ToValue(strings.Join(values, ", "))
	})
	_ = obj.Set("has", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(len(resp.HeaderValues(call.Argument(0).String())) > 0)
	})
	_ = obj.Set("forEach", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		for _, h := range resp.Headers {
			e.callGuarded(fn, "headers.forEach", goja.Undefined(),
				vm.ToValue(h.Value), vm.ToValue(strings.ToLower(h.Name)), obj)
		}
		return goja.Undefined()
	})
	return obj
}

func (e *Env) resolvedPromise(vm *goja.Runtime, v goja.Value) goja.Value {
	p, resolve, _ := vm.NewPromise()
	resolve(v)
	return vm.ToValue(p)
}

func (e *Env) rejectedPromise(vm *goja.Runtime, v goja.Value) goja.Value {
	p, _, reject := vm.NewPromise()
	reject(v)
	return vm.ToValue(p)
}
