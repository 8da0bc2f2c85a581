// File: internal/browser/shims/xhr.go
package shims

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// XMLHttpRequest readyState values.
const (
	xhrUnsent          = 0
	xhrOpened          = 1
	xhrHeadersReceived = 2
	xhrLoading         = 3
	xhrDone            = 4
)

// xhrState carries one request's lifecycle. Confined to the loop goroutine.
type xhrState struct {
	method       string
	url          string
	headers      []schemas.NVPair
	readyState   int
	status       int
	statusText   string
	responseURL  string
	responseText string
	respHeaders  []schemas.NVPair
	responseType string
	sent         bool
	aborted      bool
	listeners    map[string][]goja.Callable
}

// installXHR binds the XMLHttpRequest constructor. Synchronous mode is not
// supported; open(..., false) is treated as asynchronous.
func installXHR(e *Env, window *goja.Object) error {
	vm := e.VM
	return window.Set("XMLHttpRequest", func(call goja.ConstructorCall) *goja.Object {
		this := call.This
		st := &xhrState{listeners: make(map[string][]goja.Callable)}

		fireEvent := func(name string) {
			evt := vm.NewObject()
			_ = evt.Set("type", name)
			_ = evt.Set("target", this)
			if handler := this.Get("on" + name); handler != nil {
				if fn, ok := goja.AssertFunction(handler); ok {
					e.callGuarded(fn, "xhr.on"+name, this, evt)
				}
			}
			for _, fn := range st.listeners[name] {
				e.callGuarded(fn, "xhr:"+name, this, evt)
			}
		}
		setReadyState := func(state int) {
			st.readyState = state
			fireEvent("readystatechange")
		}

		_ = this.Set("open", func(call goja.FunctionCall) goja.Value {
			method := strings.ToUpper(call.Argument(0).String())
			resolved, err := e.Bridge.ResolveURL(call.Argument(1).String())
			if err != nil {
				panic(vm.NewTypeError("invalid URL: " + err.Error()))
			}
			if async := call.Argument(2); !goja.IsUndefined(async) && !async.ToBoolean() {
				e.Log.Debug("Synchronous XMLHttpRequest is not supported; continuing asynchronously",
					zap.String("url", resolved))
			}
			st.method = method
			st.url = resolved
			st.headers = nil
			st.sent = false
			st.aborted = false
			setReadyState(xhrOpened)
			return goja.Undefined()
		})

		_ = this.Set("setRequestHeader", func(call goja.FunctionCall) goja.Value {
			if st.readyState != xhrOpened || st.sent {
				panic(vm.NewTypeError("setRequestHeader requires an opened, unsent request"))
			}
			st.headers = append(st.headers, schemas.NVPair{
				Name:  call.Argument(0).String(),
				Value: call.Argument(1).String(),
			})
			return goja.Undefined()
		})

		_ = this.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
				st.listeners[name] = append(st.listeners[name], fn)
			}
			return goja.Undefined()
		})

		_ = this.Set("send", func(call goja.FunctionCall) goja.Value {
			if st.readyState != xhrOpened || st.sent {
				panic(vm.NewTypeError("send requires an opened, unsent request"))
			}
			st.sent = true
			e.Metrics.XHRCalls.Add(1)

			req := schemas.FetchRequest{Method: st.method, URL: st.url, Headers: st.headers}
			if body := call.Argument(0); !goja.IsUndefined(body) && !goja.IsNull(body) {
				req.Body = []byte(body.String())
			}
			if e.Options.DebugFetch {
				e.Log.Debug("Page XHR", zap.String("method", req.Method), zap.String("url", req.URL))
			}

			e.startFetch(req, func(vm *goja.Runtime, resp *schemas.FetchResponse, err error) {
				if st.aborted {
					return
				}
				if err != nil {
					st.status = 0
					st.statusText = ""
					setReadyState(xhrDone)
					fireEvent("error")
					fireEvent("loadend")
					return
				}
				st.status = resp.Status
				st.statusText = resp.StatusText
				st.responseURL = resp.URL
				st.responseText = string(resp.Body)
				st.respHeaders = resp.Headers
				setReadyState(xhrHeadersReceived)
				setReadyState(xhrLoading)
				setReadyState(xhrDone)
				fireEvent("load")
				fireEvent("loadend")
			})
			return goja.Undefined()
		})

		_ = this.Set("abort", func(call goja.FunctionCall) goja.Value {
			st.aborted = true
			st.readyState = xhrUnsent
			fireEvent("abort")
			return goja.Undefined()
		})

		_ = this.Set("getResponseHeader", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			var values []string
			for _, h := range st.respHeaders {
				if strings.EqualFold(h.Name, name) {
					values = append(values, h.Value)
				}
			}
			if len(values) == 0 {
				return goja.Null()
			}
			return vm.ToValue(strings.Join(values, ", "))
		})
		_ = this.Set("getAllResponseHeaders", func(call goja.FunctionCall) goja.Value {
			var sb strings.Builder
			for _, h := range st.respHeaders {
				sb.WriteString(strings.ToLower(h.Name))
				sb.WriteString(": ")
				sb.WriteString(h.Value)
				sb.WriteString("\r\n")
			}
			return vm.ToValue(sb.String())
		})

		defineAccessor(vm, this, "readyState", func() goja.Value { return vm.ToValue(st.readyState) }, nil)
		defineAccessor(vm, this, "status", func() goja.Value { return vm.ToValue(st.status) }, nil)
		defineAccessor(vm, this, "statusText", func() goja.Value { return vm.ToValue(st.statusText) }, nil)
		defineAccessor(vm, this, "responseURL", func() goja.Value { return vm.ToValue(st.responseURL) }, nil)
		defineAccessor(vm, this, "responseText", func() goja.Value { return vm.ToValue(st.responseText) }, nil)
		defineAccessor(vm, this, "responseType",
			func() goja.Value { return vm.ToValue(st.responseType) },
			func(v goja.Value) { st.responseType = v.String() },
		)
		defineAccessor(vm, this, "response", func() goja.Value {
			switch st.responseType {
			case "", "text":
				return vm.ToValue(st.responseText)
			case "json":
				parse, _, err := jsJSON(vm)
				if err != nil {
					return goja.Null()
				}
				parsed, perr := parse(goja.Undefined(), vm.ToValue(st.responseText))
				if perr != nil {
					return goja.Null()
				}
				return parsed
			default:
				return goja.Null()
			}
		}, nil)

		// Accepted but not enforced; the engine budget bounds the request.
		_ = this.Set("timeout", 0)
		_ = this.Set("withCredentials", false)
		return this
	})
}
