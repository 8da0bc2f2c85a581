// File: internal/browser/dom/events.go
package dom

import (
	"fmt"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// hidden property carrying the Go-side dispatch state of an event object.
const goEventProp = "__go_event__"

// listener is one addEventListener registration. raw keeps the original JS
// value so removeEventListener can match by strict equality.
type listener struct {
	eventType string
	callback  goja.Callable
	raw       goja.Value
	once      bool
}

// eventState tracks the mutable dispatch flags behind an event object.
type eventState struct {
	propagationStopped bool
	immediateStopped   bool
	defaultPrevented   bool
	cancelable         bool
	bubbles            bool
}

// newEventWithDetail builds an event object with working preventDefault and
// propagation controls. detail may be nil.
func (b *Bridge) newEventWithDetail(eventType string, bubbles, cancelable bool, detail goja.Value) *goja.Object {
	state := &eventState{cancelable: cancelable, bubbles: bubbles}
	obj := b.vm.NewObject()
	_ = obj.Set(goEventProp, state)
	_ = obj.Set("type", eventType)
	_ = obj.Set("bubbles", bubbles)
	_ = obj.Set("cancelable", cancelable)
	_ = obj.Set("isTrusted", false)
	_ = obj.Set("target", goja.Null())
	_ = obj.Set("currentTarget", goja.Null())
	if detail != nil {
		_ = obj.Set("detail", detail)
	}
	b.defineGetter(obj, "defaultPrevented", func() goja.Value {
		return b.vm.ToValue(state.defaultPrevented)
	})
	_ = obj.Set("preventDefault", func(call goja.FunctionCall) goja.Value {
		if state.cancelable {
			state.defaultPrevented = true
		}
		return goja.Undefined()
	})
	_ = obj.Set("stopPropagation", func(call goja.FunctionCall) goja.Value {
		state.propagationStopped = true
		return goja.Undefined()
	})
	_ = obj.Set("stopImmediatePropagation", func(call goja.FunctionCall) goja.Value {
		state.propagationStopped = true
		state.immediateStopped = true
		return goja.Undefined()
	})
	return obj
}

func (b *Bridge) newEvent(eventType string, bubbles, cancelable bool) *goja.Object {
	return b.newEventWithDetail(eventType, bubbles, cancelable, nil)
}

// NewEvent builds a synthetic event for hosts outside the package, such as
// the lifecycle synthesizer.
func (b *Bridge) NewEvent(eventType string, bubbles, cancelable bool) *goja.Object {
	return b.newEvent(eventType, bubbles, cancelable)
}

func (b *Bridge) eventStateOf(evt *goja.Object) *eventState {
	hidden := evt.Get(goEventProp)
	if hidden == nil {
		return nil
	}
	state, _ := hidden.Export().(*eventState)
	return state
}

// initEventTarget installs the EventTarget triple on a node wrapper.
func (b *Bridge) initEventTarget(obj *goja.Object, n *html.Node) {
	b.installEventTarget(obj, n)
}

// bindWindowEvents installs the EventTarget triple on the window object,
// keyed by the window sentinel.
func (b *Bridge) bindWindowEvents(window *goja.Object) {
	b.installEventTarget(window, WindowKey)
}

func (b *Bridge) installEventTarget(obj *goja.Object, key interface{}) {
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		eventType := call.Argument(0).String()
		raw := call.Argument(1)
		fn, ok := goja.AssertFunction(raw)
		if !ok {
			return goja.Undefined()
		}
		once := false
		if opts, isObj := call.Argument(2).(*goja.Object); isObj {
			if v := opts.Get("once"); v != nil {
				once = v.ToBoolean()
			}
		}
		b.listeners[key] = append(b.listeners[key], &listener{
			eventType: eventType,
			callback:  fn,
			raw:       raw,
			once:      once,
		})
		if b.listenerHook != nil {
			b.listenerHook()
		}
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		eventType := call.Argument(0).String()
		raw := call.Argument(1)
		regs := b.listeners[key]
		for i, l := range regs {
			if l.eventType == eventType && l.raw.StrictEquals(raw) {
				b.listeners[key] = append(regs[:i], regs[i+1:]...)
				break
			}
		}
		return goja.Undefined()
	})
	_ = obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		evt, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(b.vm.NewTypeError("dispatchEvent expects an event"))
		}
		return b.vm.ToValue(b.DispatchEvent(key, evt))
	})
}

// DispatchDocumentEvent dispatches evt with the document as target.
func (b *Bridge) DispatchDocumentEvent(evt *goja.Object) bool {
	return b.DispatchEvent(b.doc, evt)
}

// DispatchEvent runs the dispatch sequence for evt at target, which is either
// an *html.Node or WindowKey. Listeners fire on the target first; bubbling
// events continue through ancestors, the document, and finally the window.
// Returns false when a listener called preventDefault on a cancelable event.
func (b *Bridge) DispatchEvent(target interface{}, evt *goja.Object) bool {
	state := b.eventStateOf(evt)
	if state == nil {
		state = &eventState{}
	}

	var hops []interface{}
	var targetValue goja.Value
	switch t := target.(type) {
	case *html.Node:
		targetValue = b.wrapNode(t)
		hops = append(hops, t)
		if state.bubbles {
			for p := t.Parent; p != nil; p = p.Parent {
				hops = append(hops, p)
			}
			hops = append(hops, WindowKey)
		}
	default:
		targetValue = b.window
		hops = append(hops, WindowKey)
	}
	if targetValue == nil {
		targetValue = goja.Null()
	}
	_ = evt.Set("target", targetValue)

	eventType := evt.Get("type").String()
	for _, hop := range hops {
		if state.propagationStopped {
			break
		}
		current := b.hopValue(hop)
		_ = evt.Set("currentTarget", current)
		b.invokeHandlerProperty(current, eventType, evt)
		if state.immediateStopped {
			break
		}
		b.invokeListeners(hop, current, eventType, evt, state)
	}
	_ = evt.Set("currentTarget", goja.Null())
	return !state.defaultPrevented
}

func (b *Bridge) hopValue(hop interface{}) goja.Value {
	if n, ok := hop.(*html.Node); ok {
		return b.wrapNode(n)
	}
	if b.window != nil {
		return b.window
	}
	return goja.Null()
}

// invokeHandlerProperty fires an on<type> property handler if one is set.
func (b *Bridge) invokeHandlerProperty(current goja.Value, eventType string, evt *goja.Object) {
	obj, ok := current.(*goja.Object)
	if !ok {
		return
	}
	handler := obj.Get("on" + eventType)
	if handler == nil {
		return
	}
	fn, ok := goja.AssertFunction(handler)
	if !ok {
		return
	}
	b.callGuarded(fn, current, evt, "on"+eventType)
}

func (b *Bridge) invokeListeners(hop interface{}, current goja.Value, eventType string, evt *goja.Object, state *eventState) {
	regs := b.listeners[hop]
	if len(regs) == 0 {
		return
	}
	// Listeners may add or remove registrations while running.
	snapshot := make([]*listener, len(regs))
	copy(snapshot, regs)
	for _, l := range snapshot {
		if l.eventType != eventType {
			continue
		}
		if l.once {
			b.removeListener(hop, l)
		}
		b.callGuarded(l.callback, current, evt, "listener:"+eventType)
		if state.immediateStopped {
			break
		}
	}
}

func (b *Bridge) removeListener(key interface{}, target *listener) {
	regs := b.listeners[key]
	for i, l := range regs {
		if l == target {
			b.listeners[key] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// callGuarded invokes a JS callback and records failures without letting
// them break the dispatch loop.
func (b *Bridge) callGuarded(fn goja.Callable, this goja.Value, evt *goja.Object, context string) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(context, recoveredError(r))
		}
	}()
	if _, err := fn(this, evt); err != nil {
		b.reportError(context, err)
	}
}

func recoveredError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// bindEventConstructors exposes Event and CustomEvent on the window so
// scripts can build and dispatch their own events.
func (b *Bridge) bindEventConstructors(window *goja.Object) {
	readInit := func(call goja.ConstructorCall) (bubbles, cancelable bool, detail goja.Value) {
		if len(call.Arguments) < 2 {
			return
		}
		init, ok := call.Arguments[1].(*goja.Object)
		if !ok {
			return
		}
		if v := init.Get("bubbles"); v != nil {
			bubbles = v.ToBoolean()
		}
		if v := init.Get("cancelable"); v != nil {
			cancelable = v.ToBoolean()
		}
		detail = init.Get("detail")
		return
	}

	_ = window.Set("Event", func(call goja.ConstructorCall) *goja.Object {
		eventType := ""
		if len(call.Arguments) > 0 {
			eventType = call.Arguments[0].String()
		}
		bubbles, cancelable, _ := readInit(call)
		return b.newEvent(eventType, bubbles, cancelable)
	})
	_ = window.Set("CustomEvent", func(call goja.ConstructorCall) *goja.Object {
		eventType := ""
		if len(call.Arguments) > 0 {
			eventType = call.Arguments[0].String()
		}
		bubbles, cancelable, detail := readInit(call)
		return b.newEventWithDetail(eventType, bubbles, cancelable, detail)
	})
}
