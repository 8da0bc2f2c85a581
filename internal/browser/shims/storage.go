// File: internal/browser/shims/storage.go
package shims

import (
	"github.com/dop251/goja"
)

// storageArea backs one Storage object. Keys keep insertion order so key(i)
// is stable. Fresh per execution; nothing persists across calls.
type storageArea struct {
	env   *Env
	label string
	keys  []string
	data  map[string]string
}

func newStorageArea(e *Env, label string) *storageArea {
	return &storageArea{env: e, label: label, data: make(map[string]string)}
}

func (s *storageArea) setItem(key, value string) {
	if _, exists := s.data[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.data[key] = value
	s.env.Metrics.StorageWrites.Add(1)
	s.env.Tracker.Note()
}

func (s *storageArea) removeItem(key string) bool {
	if _, exists := s.data[key]; !exists {
		return false
	}
	delete(s.data, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	s.env.Metrics.StorageWrites.Add(1)
	s.env.Tracker.Note()
	return true
}

func (s *storageArea) clear() {
	s.keys = nil
	s.data = make(map[string]string)
	s.env.Metrics.StorageWrites.Add(1)
	s.env.Tracker.Note()
}

// Get implements goja.DynamicObject. Method names resolve to bound
// functions; anything else is an item lookup, so both storage.getItem("k")
// and storage.k work.
func (s *storageArea) Get(key string) goja.Value {
	vm := s.env.VM
	switch key {
	case "length":
		return vm.ToValue(len(s.keys))
	case "getItem":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if v, ok := s.data[call.Argument(0).String()]; ok {
				return vm.ToValue(v)
			}
			return goja.Null()
		})
	case "setItem":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			s.setItem(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		})
	case "removeItem":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			s.removeItem(call.Argument(0).String())
			return goja.Undefined()
		})
	case "clear":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			s.clear()
			return goja.Undefined()
		})
	case "key":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			i := int(call.Argument(0).ToInteger())
			if i < 0 || i >= len(s.keys) {
				return goja.Null()
			}
			return vm.ToValue(s.keys[i])
		})
	}
	if v, ok := s.data[key]; ok {
		return vm.ToValue(v)
	}
	return goja.Undefined()
}

// Set implements property-style writes: storage.k = v.
func (s *storageArea) Set(key string, val goja.Value) bool {
	s.setItem(key, val.String())
	return true
}

func (s *storageArea) Has(key string) bool {
	_, ok := s.data[key]
	return ok
}

func (s *storageArea) Delete(key string) bool {
	return s.removeItem(key)
}

func (s *storageArea) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// installStorage binds fresh localStorage and sessionStorage areas.
func installStorage(e *Env, window *goja.Object) error {
	if err := window.Set("localStorage", e.VM.NewDynamicObject(newStorageArea(e, "local"))); err != nil {
		return err
	}
	return window.Set("sessionStorage", e.VM.NewDynamicObject(newStorageArea(e, "session")))
}
