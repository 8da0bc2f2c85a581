// File: internal/browser/engine/lifecycle.go
package engine

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser/dom"
)

// synthesizeLifecycle fires the document lifecycle after the page settles,
// exactly once per execution: readystatechange through loading, interactive,
// and complete, DOMContentLoaded bubbling to the window, visibilitychange,
// pageshow, then load, followed by a popstate carrying the current history
// state and a hashchange whose old and new URLs both equal the current href
// (no real navigation happened). Listener failures are recorded through the
// bridge's error hook and never abort the sequence.
func synthesizeLifecycle(bridge *dom.Bridge, log *zap.Logger) {
	bridge.DispatchDocumentEvent(bridge.NewEvent("readystatechange", false, false))

	bridge.SetReadyState("interactive")
	bridge.DispatchDocumentEvent(bridge.NewEvent("readystatechange", false, false))
	bridge.DispatchDocumentEvent(bridge.NewEvent("DOMContentLoaded", true, false))

	bridge.SetReadyState("complete")
	bridge.DispatchDocumentEvent(bridge.NewEvent("readystatechange", false, false))
	bridge.DispatchDocumentEvent(bridge.NewEvent("visibilitychange", true, false))

	pageshow := bridge.NewEvent("pageshow", false, false)
	_ = pageshow.Set("persisted", false)
	bridge.DispatchEvent(dom.WindowKey, pageshow)
	bridge.DispatchEvent(dom.WindowKey, bridge.NewEvent("load", false, false))

	popstate := bridge.NewEvent("popstate", false, false)
	_ = popstate.Set("state", windowProp(bridge, "history", "state"))
	bridge.DispatchEvent(dom.WindowKey, popstate)

	href := currentHref(bridge)
	hashchange := bridge.NewEvent("hashchange", false, false)
	_ = hashchange.Set("oldURL", href)
	_ = hashchange.Set("newURL", href)
	bridge.DispatchEvent(dom.WindowKey, hashchange)

	log.Debug("Synthesized document lifecycle")
}

// windowProp walks a property chain off the window object, tolerating
// missing links so the synthesizer works even on a half-built sandbox.
func windowProp(bridge *dom.Bridge, names ...string) goja.Value {
	var cur goja.Value = bridge.Window()
	for _, name := range names {
		obj, ok := cur.(*goja.Object)
		if !ok || obj == nil {
			return goja.Undefined()
		}
		cur = obj.Get(name)
		if cur == nil {
			return goja.Undefined()
		}
	}
	return cur
}

// currentHref reads location.href, which tracks history updates, falling
// back to the document URL when the navigation shim is absent.
func currentHref(bridge *dom.Bridge) string {
	if v := windowProp(bridge, "location", "href"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		return v.String()
	}
	return bridge.DocumentURL().String()
}
