// File: internal/browser/shims/navigation.go
package shims

import (
	"net/url"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/dom"
)

// navState owns the sandbox's address: the current URL and the history
// stack. Full navigations never happen; same-document fragment and history
// changes are applied and dispatched.
type navState struct {
	env     *Env
	current *url.URL
	entries []historyEntry
	idx     int
}

type historyEntry struct {
	state goja.Value
	title string
	url   *url.URL
}

// installNavigation binds location, history, and navigator to the window,
// and document.domain alongside them.
func installNavigation(e *Env, window *goja.Object) error {
	start := *e.Bridge.DocumentURL()
	nav := &navState{env: e, current: &start}
	nav.entries = []historyEntry{{state: goja.Null(), url: nav.current}}

	loc := nav.buildLocation()
	defineAccessor(e.VM, window, "location",
		func() goja.Value { return loc },
		func(v goja.Value) { nav.navigate(v.String()) },
	)
	if err := window.Set("history", nav.buildHistory()); err != nil {
		return err
	}
	if err := window.Set("navigator", buildNavigator(e)); err != nil {
		return err
	}
	if err := window.Set("origin", origin(nav.current)); err != nil {
		return err
	}

	e.Bridge.DefineDocumentAccessor("domain",
		func() goja.Value { return e.VM.ToValue(nav.current.Hostname()) },
		func(goja.Value) {},
	)
	e.History = nav.snapshotHistory
	return nil
}

// snapshotHistory exports the trail from the first entry to the active one,
// so the last element is the page's logical location. Exporting goja values
// requires the loop goroutine.
func (nav *navState) snapshotHistory() []schemas.HistoryState {
	out := make([]schemas.HistoryState, 0, nav.idx+1)
	for _, entry := range nav.entries[:nav.idx+1] {
		hs := schemas.HistoryState{Title: entry.title, URL: entry.url.String()}
		if entry.state != nil && !goja.IsNull(entry.state) && !goja.IsUndefined(entry.state) {
			hs.State = entry.state.Export()
		}
		out = append(out, hs)
	}
	return out
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// navigate handles an assignment to location. Fragment-only changes dispatch
// hashchange; any other change updates the internal URL and counts as one
// navigation attempt. The document itself is never reloaded or re-fetched.
func (nav *navState) navigate(raw string) {
	e := nav.env
	resolved, err := e.Bridge.ResolveURL(raw)
	if err != nil {
		e.reportError("location", err)
		return
	}
	next, err := url.Parse(resolved)
	if err != nil {
		e.reportError("location", err)
		return
	}

	if nav.sameDocument(next) {
		if next.Fragment == nav.current.Fragment {
			return
		}
		nav.applyHashChange(next)
		return
	}

	from := nav.current.String()
	nav.current = next
	nav.entries = append(nav.entries[:nav.idx+1], historyEntry{state: goja.Null(), url: next})
	nav.idx++
	e.Metrics.NavigationAttempts.Add(1)
	e.Tracker.Note()
	e.Log.Debug("Applied navigation without reload",
		zap.String("from", from),
		zap.String("to", next.String()))
}

func (nav *navState) sameDocument(next *url.URL) bool {
	cur := nav.current
	return next.Scheme == cur.Scheme &&
		next.Host == cur.Host &&
		next.Path == cur.Path &&
		next.RawQuery == cur.RawQuery
}

func (nav *navState) applyHashChange(next *url.URL) {
	e := nav.env
	oldURL := nav.current.String()
	nav.current = next
	nav.entries = append(nav.entries[:nav.idx+1], historyEntry{state: goja.Null(), url: next})
	nav.idx++

	evt := e.Bridge.NewEvent("hashchange", false, false)
	_ = evt.Set("oldURL", oldURL)
	_ = evt.Set("newURL", next.String())
	e.Tracker.Note()
	e.Bridge.DispatchEvent(dom.WindowKey, evt)
}

// buildLocation constructs the location object. Component setters rebuild
// the full URL and route through navigate, so every write lands in one
// place regardless of which property carried it.
func (nav *navState) buildLocation() *goja.Object {
	e := nav.env
	vm := e.VM
	loc := vm.NewObject()

	get := func(read func(*url.URL) string) func() goja.Value {
		return func() goja.Value { return vm.ToValue(read(nav.current)) }
	}
	setVia := func(mutate func(*url.URL, string)) func(goja.Value) {
		return func(v goja.Value) {
			next := *nav.current
			mutate(&next, v.String())
			nav.navigate(next.String())
		}
	}

	defineAccessor(vm, loc, "href",
		get(func(u *url.URL) string { return u.String() }),
		func(v goja.Value) { nav.navigate(v.String()) },
	)
	defineAccessor(vm, loc, "protocol",
		get(func(u *url.URL) string { return u.Scheme + ":" }),
		setVia(func(u *url.URL, v string) { u.Scheme = strings.TrimSuffix(v, ":") }),
	)
	defineAccessor(vm, loc, "host",
		get(func(u *url.URL) string { return u.Host }),
		setVia(func(u *url.URL, v string) { u.Host = v }),
	)
	defineAccessor(vm, loc, "hostname",
		get(func(u *url.URL) string { return u.Hostname() }),
		setVia(func(u *url.URL, v string) {
			if port := u.Port(); port != "" {
				u.Host = v + ":" + port
			} else {
				u.Host = v
			}
		}),
	)
	defineAccessor(vm, loc, "port",
		get(func(u *url.URL) string { return u.Port() }),
		setVia(func(u *url.URL, v string) { u.Host = u.Hostname() + ":" + v }),
	)
	defineAccessor(vm, loc, "pathname",
		get(func(u *url.URL) string {
			if p := u.EscapedPath(); p != "" {
				return p
			}
			return "/"
		}),
		setVia(func(u *url.URL, v string) { u.Path = v }),
	)
	defineAccessor(vm, loc, "search",
		get(func(u *url.URL) string {
			if u.RawQuery == "" {
				return ""
			}
			return "?" + u.RawQuery
		}),
		setVia(func(u *url.URL, v string) { u.RawQuery = strings.TrimPrefix(v, "?") }),
	)
	defineAccessor(vm, loc, "hash",
		get(func(u *url.URL) string {
			if u.Fragment == "" {
				return ""
			}
			return "#" + u.Fragment
		}),
		setVia(func(u *url.URL, v string) { u.Fragment = strings.TrimPrefix(v, "#") }),
	)
	defineAccessor(vm, loc, "origin",
		get(func(u *url.URL) string { return origin(u) }),
		nil,
	)

	_ = loc.Set("assign", func(call goja.FunctionCall) goja.Value {
		nav.navigate(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = loc.Set("replace", func(call goja.FunctionCall) goja.Value {
		nav.navigate(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = loc.Set("reload", func(call goja.FunctionCall) goja.Value {
		e.Metrics.NavigationAttempts.Add(1)
		e.Log.Debug("Reload attempt ignored", zap.String("url", nav.current.String()))
		return goja.Undefined()
	})
	_ = loc.Set("toString", func() string { return nav.current.String() })
	return loc
}

// buildHistory constructs the history object. pushState and replaceState
// apply same-origin URL changes without reloading; go/back/forward move
// through the stack. Each of them dispatches popstate carrying the active
// entry's state so the page can observe its own route changes.
func (nav *navState) buildHistory() *goja.Object {
	e := nav.env
	vm := e.VM
	hist := vm.NewObject()

	firePopState := func(state goja.Value) {
		evt := e.Bridge.NewEvent("popstate", false, false)
		_ = evt.Set("state", state)
		e.Tracker.Note()
		e.Bridge.DispatchEvent(dom.WindowKey, evt)
	}

	resolveSameOrigin := func(raw goja.Value) *url.URL {
		if raw == nil || goja.IsUndefined(raw) || goja.IsNull(raw) {
			next := *nav.current
			return &next
		}
		resolved, err := e.Bridge.ResolveURL(raw.String())
		if err != nil {
			panic(vm.NewTypeError("invalid history URL: " + err.Error()))
		}
		next, err := url.Parse(resolved)
		if err != nil {
			panic(vm.NewTypeError("invalid history URL: " + err.Error()))
		}
		if next.Scheme != nav.current.Scheme || next.Host != nav.current.Host {
			panic(vm.NewTypeError("history URL must be same-origin"))
		}
		return next
	}
	stateArg := func(v goja.Value) goja.Value {
		if v == nil || goja.IsUndefined(v) {
			return goja.Null()
		}
		return v
	}

	_ = hist.Set("pushState", func(call goja.FunctionCall) goja.Value {
		next := resolveSameOrigin(call.Argument(2))
		entry := historyEntry{
			state: stateArg(call.Argument(0)),
			title: call.Argument(1).String(),
			url:   next,
		}
		nav.entries = append(nav.entries[:nav.idx+1], entry)
		nav.idx++
		nav.current = next
		firePopState(entry.state)
		return goja.Undefined()
	})
	_ = hist.Set("replaceState", func(call goja.FunctionCall) goja.Value {
		next := resolveSameOrigin(call.Argument(2))
		state := stateArg(call.Argument(0))
		nav.entries[nav.idx] = historyEntry{
			state: state,
			title: call.Argument(1).String(),
			url:   next,
		}
		nav.current = next
		firePopState(state)
		return goja.Undefined()
	})

	jump := func(delta int64) {
		target := nav.idx + int(delta)
		if target < 0 || target >= len(nav.entries) || target == nav.idx {
			return
		}
		nav.idx = target
		entry := nav.entries[target]
		nav.current = entry.url
		firePopState(entry.state)
	}
	_ = hist.Set("go", func(call goja.FunctionCall) goja.Value {
		jump(call.Argument(0).ToInteger())
		return goja.Undefined()
	})
	_ = hist.Set("back", func(call goja.FunctionCall) goja.Value {
		jump(-1)
		return goja.Undefined()
	})
	_ = hist.Set("forward", func(call goja.FunctionCall) goja.Value {
		jump(1)
		return goja.Undefined()
	})

	defineAccessor(vm, hist, "length", func() goja.Value { return vm.ToValue(len(nav.entries)) }, nil)
	defineAccessor(vm, hist, "state", func() goja.Value { return nav.entries[nav.idx].state }, nil)
	_ = hist.Set("scrollRestoration", "auto")
	return hist
}

func buildNavigator(e *Env) *goja.Object {
	vm := e.VM
	ua := e.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (X11; Linux x86_64) lancet"
	}
	lang := e.Language
	if lang == "" {
		lang = "en-US"
	}
	n := vm.NewObject()
	_ = n.Set("userAgent", ua)
	_ = n.Set("language", lang)
	_ = n.Set("languages", vm.NewArray(lang))
	_ = n.Set("platform", "Linux x86_64")
	_ = n.Set("vendor", "")
	_ = n.Set("cookieEnabled", true)
	_ = n.Set("onLine", true)
	return n
}
