// File: internal/browser/dom/bridge.go

// Package dom exposes a parsed HTML document to a goja runtime: element
// wrappers with query and mutation methods, an event target layer, mutation
// observers, and snapshot serialization. The bridge is confined to the event
// loop goroutine that owns the runtime; nothing here locks.
package dom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// hidden property linking a wrapper object back to its Go node.
const goNodeProp = "__go_node__"

// windowTarget is the sentinel event-target key for the window object.
type windowTarget struct{}

// WindowKey identifies the window in event dispatch paths.
var WindowKey = windowTarget{}

// Hooks are the host capabilities the bridge needs but does not own. All are
// optional; nil hooks degrade to no-ops.
type Hooks struct {
	// Schedule queues fn as a job on the host event loop, used for mutation
	// observer delivery.
	Schedule func(fn func())
	// OnActivity is invoked whenever the page observably changes (DOM
	// mutation, observer delivery).
	OnActivity func()
	// ReportError receives listener and observer failures that must not
	// break dispatch.
	ReportError func(context string, err error)
}

// Bridge owns the parsed document and every JS-visible wrapper around it.
type Bridge struct {
	vm    *goja.Runtime
	log   *zap.Logger
	hooks Hooks

	doc     *html.Node
	docURL  *url.URL
	baseURL *url.URL

	wrappers map[*html.Node]*goja.Object
	docObj   *goja.Object
	window   *goja.Object

	readyState string

	listeners map[interface{}][]*listener
	observers []*mutationObserver
	// true while an observer delivery job is already queued
	deliveryQueued bool

	// permissive adds layout stubs to wrappers created after it is set.
	permissive bool
	// mutationHook counts mutating operations for the debug probes.
	mutationHook func(op string)
	// listenerHook counts addEventListener registrations.
	listenerHook func()
}

// SetListenerHook registers a counter callback invoked on every successful
// addEventListener registration.
func (b *Bridge) SetListenerHook(hook func()) { b.listenerHook = hook }

// NewBridge parses htmlSrc against docURL and prepares the wrapper layer.
// The runtime is not touched until Bind is called.
func NewBridge(vm *goja.Runtime, htmlSrc, docURL string, log *zap.Logger, hooks Hooks) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u, err := url.Parse(docURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document URL %q: %w", docURL, err)
	}
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document HTML: %w", err)
	}

	b := &Bridge{
		vm:         vm,
		log:        log.Named("dom"),
		hooks:      hooks,
		doc:        doc,
		docURL:     u,
		wrappers:   make(map[*html.Node]*goja.Object),
		listeners:  make(map[interface{}][]*listener),
		readyState: "loading",
	}
	b.baseURL = b.computeBaseURL()
	return b, nil
}

// Bind exposes the document on the given window object, installs the window
// event target and the Event/CustomEvent/MutationObserver constructors, and
// remembers the window for event bubbling. Must run on the loop goroutine.
func (b *Bridge) Bind(window *goja.Object) error {
	b.window = window
	doc, err := b.buildDocument()
	if err != nil {
		return err
	}
	b.docObj = doc
	b.bindWindowEvents(window)
	b.bindEventConstructors(window)
	b.bindMutationObserver(window)
	b.bindXPath(window)
	return window.Set("document", doc)
}

// Document returns the bound document object.
func (b *Bridge) Document() *goja.Object { return b.docObj }

// Window returns the window object the bridge was bound to.
func (b *Bridge) Window() *goja.Object { return b.window }

// DocumentURL returns the address the document was parsed against.
func (b *Bridge) DocumentURL() *url.URL { return b.docURL }

// BaseURL returns the effective base: the first <base href> resolved against
// the document URL when present, the document URL otherwise. Always absolute.
func (b *Bridge) BaseURL() *url.URL { return b.baseURL }

// ResolveURL resolves ref against the effective base.
func (b *Bridge) ResolveURL(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", ref, err)
	}
	return b.baseURL.ResolveReference(parsed).String(), nil
}

// ReadyState returns the current document.readyState value.
func (b *Bridge) ReadyState() string { return b.readyState }

// SetReadyState updates document.readyState; the lifecycle synthesizer owns
// the transitions.
func (b *Bridge) SetReadyState(state string) { b.readyState = state }

// computeBaseURL finds the first <base href> in head, if any.
func (b *Bridge) computeBaseURL() *url.URL {
	baseEl := findFirst(b.doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "base" && getAttr(n, "href") != ""
	})
	if baseEl == nil {
		return b.docURL
	}
	ref, err := url.Parse(strings.TrimSpace(getAttr(baseEl, "href")))
	if err != nil {
		b.log.Warn("Ignoring unparseable <base href>", zap.String("href", getAttr(baseEl, "href")))
		return b.docURL
	}
	return b.docURL.ResolveReference(ref)
}

// noteActivity funnels every observable page change to the host.
func (b *Bridge) noteActivity() {
	if b.hooks.OnActivity != nil {
		b.hooks.OnActivity()
	}
}

// reportError funnels listener/observer failures to the host.
func (b *Bridge) reportError(context string, err error) {
	if b.hooks.ReportError != nil {
		b.hooks.ReportError(context, err)
		return
	}
	b.log.Debug("Swallowed DOM callback error", zap.String("context", context), zap.Error(err))
}

// -- small node helpers shared across the package --

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func removeAttr(n *html.Node, name string) bool {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// findFirst walks the tree depth-first and returns the first match.
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects every matching node in document order.
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// detach removes n from its parent, if any.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// -- goja helpers --

// defineGetter installs a read-only accessor property.
func (b *Bridge) defineGetter(obj *goja.Object, name string, get func() goja.Value) {
	_ = obj.DefineAccessorProperty(name, b.vm.ToValue(get), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// defineAccessor installs a read/write accessor property.
func (b *Bridge) defineAccessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	_ = obj.DefineAccessorProperty(name, b.vm.ToValue(get), b.vm.ToValue(set), goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// toArray builds a JS array from wrapper objects.
func (b *Bridge) toArray(items []*goja.Object) goja.Value {
	vals := make([]interface{}, len(items))
	for i, it := range items {
		vals[i] = it
	}
	return b.vm.NewArray(vals...)
}

// unwrapNode recovers the Go node behind a wrapper argument, or nil.
func (b *Bridge) unwrapNode(v goja.Value) *html.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	hidden := obj.Get(goNodeProp)
	if hidden == nil {
		return nil
	}
	node, _ := hidden.Export().(*html.Node)
	return node
}
