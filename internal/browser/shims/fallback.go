// File: internal/browser/shims/fallback.go
package shims

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// installFallback fills the gaps around the core shims. The first tier is
// real, small implementations every page can rely on (base64, crypto, text
// codecs, structuredClone). The second tier, gated on PermissiveShims,
// installs inert stand-ins for commonly probed APIs so feature checks pass
// instead of throwing. Everything here is insert-if-absent: page-visible
// globals defined earlier in the layering are never clobbered.
func installFallback(e *Env, window *goja.Object) error {
	installEncodingGlobals(e, window)
	installCryptoGlobal(e, window)

	if !e.Options.PermissiveShims {
		return nil
	}
	e.Bridge.EnablePermissive()

	vm := e.VM
	var installed []string
	stub := func(name string, value goja.Value) {
		if installIfAbsent(window, name, value) {
			installed = append(installed, name)
		}
	}

	stub("matchMedia", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		mql := vm.NewObject()
		_ = mql.Set("matches", false)
		_ = mql.Set("media", call.Argument(0).String())
		_ = mql.Set("onchange", goja.Null())
		for _, m := range []string{"addListener", "removeListener", "addEventListener", "removeEventListener"} {
			_ = mql.Set(m, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		}
		return mql
	}))

	stub("getComputedStyle", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		style := vm.NewObject()
		_ = style.Set("getPropertyValue", func(string) string { return "" })
		return style
	}))

	for _, name := range []string{"IntersectionObserver", "ResizeObserver", "PerformanceObserver"} {
		stub(name, vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
			this := call.This
			for _, m := range []string{"observe", "unobserve", "disconnect"} {
				_ = this.Set(m, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
			}
			_ = this.Set("takeRecords", func(goja.FunctionCall) goja.Value { return vm.NewArray() })
			return this
		}))
	}

	noop := vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	for _, name := range []string{"scrollTo", "scrollBy", "scroll", "alert", "print", "focus", "blur"} {
		stub(name, noop)
	}
	stub("confirm", vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(false) }))
	stub("prompt", vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Null() }))

	stub("open", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		e.Metrics.NavigationAttempts.Add(1)
		e.Log.Debug("window.open ignored", zap.String("url", call.Argument(0).String()))
		return goja.Null()
	}))

	stub("Image", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		img := e.Bridge.CreateElement("img")
		if w := call.Argument(0); !goja.IsUndefined(w) {
			_ = img.Set("width", w.ToInteger())
		}
		if h := call.Argument(1); !goja.IsUndefined(h) {
			_ = img.Set("height", h.ToInteger())
		}
		return img
	}))
	stub("Audio", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return e.Bridge.CreateElement("audio")
	}))

	stub("WebSocket", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		e.Log.Debug("WebSocket unavailable in sandbox", zap.String("url", call.Argument(0).String()))
		this := call.This
		_ = this.Set("url", call.Argument(0).String())
		_ = this.Set("readyState", 3)
		for _, m := range []string{"send", "close", "addEventListener", "removeEventListener"} {
			_ = this.Set(m, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		}
		return this
	}))
	stub("Worker", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		e.Log.Debug("Worker unavailable in sandbox", zap.String("url", call.Argument(0).String()))
		this := call.This
		for _, m := range []string{"postMessage", "terminate", "addEventListener", "removeEventListener"} {
			_ = this.Set(m, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		}
		return this
	}))

	if len(installed) > 0 {
		e.Log.Debug("Installed permissive fallback stubs", zap.Strings("globals", installed))
	}
	return nil
}

// installEncodingGlobals provides atob, btoa, TextEncoder, TextDecoder, and
// structuredClone as real implementations.
func installEncodingGlobals(e *Env, window *goja.Object) {
	vm := e.VM

	installIfAbsent(window, "atob", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		in := strings.TrimSpace(call.Argument(0).String())
		data, err := base64.StdEncoding.DecodeString(in)
		if err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(in); err != nil {
				panic(vm.NewTypeError("atob: invalid base64 input"))
			}
		}
		var sb strings.Builder
		for _, b := range data {
			sb.WriteRune(rune(b))
		}
		return vm.ToValue(sb.String())
	}))
	installIfAbsent(window, "btoa", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		in := call.Argument(0).String()
		data := make([]byte, 0, len(in))
		for _, r := range in {
			if r > 0xFF {
				panic(vm.NewTypeError("btoa: input contains characters outside the Latin1 range"))
			}
			data = append(data, byte(r))
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString(data))
	}))

	installIfAbsent(window, "TextEncoder", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		this := call.This
		_ = this.Set("encoding", "utf-8")
		_ = this.Set("encode", func(c goja.FunctionCall) goja.Value {
			data := []byte(c.Argument(0).String())
			ctor := vm.Get("Uint8Array")
			arr, err := vm.New(ctor, vm.ToValue(vm.NewArrayBuffer(data)))
			if err != nil {
				panic(vm.NewTypeError("TextEncoder: " + err.Error()))
			}
			return arr
		})
		return this
	}))
	installIfAbsent(window, "TextDecoder", vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		this := call.This
		_ = this.Set("encoding", "utf-8")
		_ = this.Set("decode", func(c goja.FunctionCall) goja.Value {
			return vm.ToValue(string(bytesFromValue(c.Argument(0))))
		})
		return this
	}))

	installIfAbsent(window, "structuredClone", vm.ToValue(func(call goja.FunctionCall) goja.Value {
		parse, stringify, err := jsJSON(vm)
		if err != nil {
			panic(vm.NewTypeError("structuredClone unavailable"))
		}
		encoded, err := stringify(goja.Undefined(), call.Argument(0))
		if err != nil || encoded == nil || goja.IsUndefined(encoded) {
			panic(vm.NewTypeError("structuredClone: value cannot be cloned"))
		}
		cloned, err := parse(goja.Undefined(), encoded)
		if err != nil {
			panic(vm.NewTypeError("structuredClone: value cannot be cloned"))
		}
		return cloned
	}))
}

// installCryptoGlobal provides crypto.getRandomValues and crypto.randomUUID
// backed by the host CSPRNG.
func installCryptoGlobal(e *Env, window *goja.Object) {
	vm := e.VM
	crypto := vm.NewObject()
	_ = crypto.Set("getRandomValues", func(call goja.FunctionCall) goja.Value {
		arr, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(vm.NewTypeError("getRandomValues expects a typed array"))
		}
		length := int(arr.Get("length").ToInteger())
		bpe := 1
		if v := arr.Get("BYTES_PER_ELEMENT"); v != nil && !goja.IsUndefined(v) {
			bpe = int(v.ToInteger())
		}
		if bpe <= 0 || bpe > 8 {
			bpe = 1
		}
		buf := make([]byte, bpe)
		for i := 0; i < length; i++ {
			if _, err := rand.Read(buf); err != nil {
				panic(vm.NewTypeError("getRandomValues: entropy unavailable"))
			}
			var val uint64
			for _, b := range buf {
				val = val<<8 | uint64(b)
			}
			_ = arr.Set(strconv.Itoa(i), vm.ToValue(val))
		}
		return arr
	})
	_ = crypto.Set("randomUUID", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(uuid.NewString())
	})
	installIfAbsent(window, "crypto", crypto)
}

// bytesFromValue extracts raw bytes from an ArrayBuffer, a typed array, or a
// value exposing a buffer property.
func bytesFromValue(v goja.Value) []byte {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch data := v.Export().(type) {
	case goja.ArrayBuffer:
		return data.Bytes()
	case []byte:
		return data
	}
	if obj, ok := v.(*goja.Object); ok {
		if buf := obj.Get("buffer"); buf != nil {
			if ab, ok := buf.Export().(goja.ArrayBuffer); ok {
				return ab.Bytes()
			}
		}
	}
	return nil
}
