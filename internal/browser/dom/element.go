// File: internal/browser/dom/element.go
package dom

import (
	"net/url"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DOM nodeType values the bridge exposes.
const (
	nodeTypeElement  = 1
	nodeTypeText     = 3
	nodeTypeComment  = 8
	nodeTypeDocument = 9
	nodeTypeFragment = 11
)

// EnablePermissive makes subsequently created wrappers carry layout stubs
// (zero rects, no-op scrolling). Wrappers are created lazily on first script
// access, so enabling this during shim installation covers script-visible
// elements.
func (b *Bridge) EnablePermissive() { b.permissive = true }

// SetMutationHook registers a counter callback invoked with the name of every
// mutating DOM operation. Used by the debug probes.
func (b *Bridge) SetMutationHook(hook func(op string)) { b.mutationHook = hook }

func (b *Bridge) countOp(op string) {
	if b.mutationHook != nil {
		b.mutationHook(op)
	}
}

func (b *Bridge) nodeTypeOf(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return nodeTypeElement
	case html.TextNode:
		return nodeTypeText
	case html.CommentNode:
		return nodeTypeComment
	case html.DocumentNode:
		if n == b.doc {
			return nodeTypeDocument
		}
		return nodeTypeFragment
	default:
		return nodeTypeElement
	}
}

// wrapNode returns the JS wrapper for n, creating and caching it on first
// use so identity comparisons hold across accesses.
func (b *Bridge) wrapNode(n *html.Node) *goja.Object {
	if n == nil {
		return nil
	}
	if cached, ok := b.wrappers[n]; ok {
		return cached
	}

	obj := b.vm.NewObject()
	b.wrappers[n] = obj
	_ = obj.Set(goNodeProp, n)

	nt := b.nodeTypeOf(n)
	_ = obj.Set("nodeType", nt)

	switch n.Type {
	case html.TextNode:
		b.initTextNode(obj, n)
		return obj
	case html.CommentNode:
		b.initCommentNode(obj, n)
		return obj
	}

	b.initTreeAccessors(obj, n)
	if n.Type == html.ElementNode {
		b.initAttributes(obj, n)
		b.initContentAccessors(obj, n)
	}
	b.initTreeOps(obj, n)
	b.initQueries(obj, n)
	b.initEventTarget(obj, n)
	if n.Type == html.ElementNode {
		b.initElementMisc(obj, n)
	}
	return obj
}

func (b *Bridge) initTextNode(obj *goja.Object, n *html.Node) {
	_ = obj.Set("nodeName", "#text")
	b.defineAccessor(obj, "nodeValue",
		func() goja.Value { return b.vm.ToValue(n.Data) },
		func(v goja.Value) { n.Data = v.String(); b.noteActivity() },
	)
	b.defineAccessor(obj, "data",
		func() goja.Value { return b.vm.ToValue(n.Data) },
		func(v goja.Value) { n.Data = v.String(); b.noteActivity() },
	)
	b.defineAccessor(obj, "textContent",
		func() goja.Value { return b.vm.ToValue(n.Data) },
		func(v goja.Value) { n.Data = v.String(); b.noteActivity() },
	)
	b.defineGetter(obj, "parentNode", func() goja.Value { return b.nodeOrNull(n.Parent) })
}

func (b *Bridge) initCommentNode(obj *goja.Object, n *html.Node) {
	_ = obj.Set("nodeName", "#comment")
	b.defineAccessor(obj, "nodeValue",
		func() goja.Value { return b.vm.ToValue(n.Data) },
		func(v goja.Value) { n.Data = v.String() },
	)
	b.defineGetter(obj, "parentNode", func() goja.Value { return b.nodeOrNull(n.Parent) })
}

func (b *Bridge) nodeOrNull(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return b.wrapNode(n)
}

// -- tree accessors --

func (b *Bridge) initTreeAccessors(obj *goja.Object, n *html.Node) {
	if n.Type == html.ElementNode {
		_ = obj.Set("tagName", strings.ToUpper(n.Data))
		_ = obj.Set("nodeName", strings.ToUpper(n.Data))
		_ = obj.Set("localName", n.Data)
	}

	b.defineGetter(obj, "parentNode", func() goja.Value { return b.nodeOrNull(n.Parent) })
	b.defineGetter(obj, "parentElement", func() goja.Value {
		if n.Parent != nil && n.Parent.Type == html.ElementNode {
			return b.wrapNode(n.Parent)
		}
		return goja.Null()
	})
	b.defineGetter(obj, "ownerDocument", func() goja.Value {
		if b.docObj != nil {
			return b.docObj
		}
		return goja.Null()
	})

	b.defineGetter(obj, "childNodes", func() goja.Value {
		var kids []*goja.Object
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, b.wrapNode(c))
		}
		return b.toArray(kids)
	})
	b.defineGetter(obj, "children", func() goja.Value {
		return b.toArray(b.elementChildren(n))
	})
	b.defineGetter(obj, "childElementCount", func() goja.Value {
		return b.vm.ToValue(len(b.elementChildren(n)))
	})

	b.defineGetter(obj, "firstChild", func() goja.Value { return b.nodeOrNull(n.FirstChild) })
	b.defineGetter(obj, "lastChild", func() goja.Value { return b.nodeOrNull(n.LastChild) })
	b.defineGetter(obj, "nextSibling", func() goja.Value { return b.nodeOrNull(n.NextSibling) })
	b.defineGetter(obj, "previousSibling", func() goja.Value { return b.nodeOrNull(n.PrevSibling) })

	b.defineGetter(obj, "firstElementChild", func() goja.Value {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return b.wrapNode(c)
			}
		}
		return goja.Null()
	})
	b.defineGetter(obj, "lastElementChild", func() goja.Value {
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == html.ElementNode {
				return b.wrapNode(c)
			}
		}
		return goja.Null()
	})
	b.defineGetter(obj, "nextElementSibling", func() goja.Value {
		for c := n.NextSibling; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return b.wrapNode(c)
			}
		}
		return goja.Null()
	})
	b.defineGetter(obj, "previousElementSibling", func() goja.Value {
		for c := n.PrevSibling; c != nil; c = c.PrevSibling {
			if c.Type == html.ElementNode {
				return b.wrapNode(c)
			}
		}
		return goja.Null()
	})

	_ = obj.Set("hasChildNodes", func() bool { return n.FirstChild != nil })
	_ = obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		target := b.unwrapNode(call.Argument(0))
		for cur := target; cur != nil; cur = cur.Parent {
			if cur == n {
				return b.vm.ToValue(true)
			}
		}
		return b.vm.ToValue(false)
	})
}

func (b *Bridge) elementChildren(n *html.Node) []*goja.Object {
	var kids []*goja.Object
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			kids = append(kids, b.wrapNode(c))
		}
	}
	return kids
}

// -- attributes --

func (b *Bridge) initAttributes(obj *goja.Object, n *html.Node) {
	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		if !hasAttr(n, name) {
			return goja.Null()
		}
		return b.vm.ToValue(getAttr(n, name))
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		val := call.Argument(1).String()
		old := getAttr(n, name)
		setAttr(n, name, val)
		b.countOp("setAttribute")
		b.recordAttributeMutation(n, name, old)
		b.noteActivity()
		return goja.Undefined()
	})
	_ = obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(hasAttr(n, strings.ToLower(call.Argument(0).String())))
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		name := strings.ToLower(call.Argument(0).String())
		old := getAttr(n, name)
		if removeAttr(n, name) {
			b.countOp("removeAttribute")
			b.recordAttributeMutation(n, name, old)
			b.noteActivity()
		}
		return goja.Undefined()
	})
	_ = obj.Set("getAttributeNames", func() []string {
		names := make([]string, 0, len(n.Attr))
		for _, a := range n.Attr {
			names = append(names, a.Key)
		}
		return names
	})

	b.defineAccessor(obj, "id",
		func() goja.Value { return b.vm.ToValue(getAttr(n, "id")) },
		func(v goja.Value) { setAttr(n, "id", v.String()); b.noteActivity() },
	)
	b.defineAccessor(obj, "className",
		func() goja.Value { return b.vm.ToValue(getAttr(n, "class")) },
		func(v goja.Value) {
			setAttr(n, "class", v.String())
			b.countOp("setAttribute")
			b.noteActivity()
		},
	)
	b.defineAccessor(obj, "name",
		func() goja.Value { return b.vm.ToValue(getAttr(n, "name")) },
		func(v goja.Value) { setAttr(n, "name", v.String()) },
	)
	b.defineAccessor(obj, "value",
		func() goja.Value { return b.vm.ToValue(getAttr(n, "value")) },
		func(v goja.Value) { setAttr(n, "value", v.String()); b.noteActivity() },
	)
	b.defineAccessor(obj, "type",
		func() goja.Value { return b.vm.ToValue(getAttr(n, "type")) },
		func(v goja.Value) { setAttr(n, "type", v.String()) },
	)

	// href and src always report the resolved absolute URL, matching the
	// browser guarantee that these element properties are never relative.
	b.defineAccessor(obj, "href",
		func() goja.Value { return b.vm.ToValue(b.resolvedAttr(n, "href")) },
		func(v goja.Value) { setAttr(n, "href", v.String()); b.noteActivity() },
	)
	b.defineAccessor(obj, "src",
		func() goja.Value { return b.vm.ToValue(b.resolvedAttr(n, "src")) },
		func(v goja.Value) { setAttr(n, "src", v.String()); b.noteActivity() },
	)

	_ = obj.Set("classList", b.buildClassList(n))
	_ = obj.Set("dataset", b.vm.NewDynamicObject(&datasetObject{bridge: b, node: n}))
	_ = obj.Set("style", b.vm.NewDynamicObject(&styleObject{bridge: b, node: n}))
}

// resolvedAttr resolves a URL-valued attribute against the effective base.
// The <base> element itself resolves against the document URL, since the base
// cannot depend on itself.
func (b *Bridge) resolvedAttr(n *html.Node, name string) string {
	raw := getAttr(n, name)
	if raw == "" {
		return ""
	}
	base := b.baseURL
	if n.Type == html.ElementNode && n.Data == "base" {
		base = b.docURL
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func (b *Bridge) buildClassList(n *html.Node) *goja.Object {
	list := b.vm.NewObject()
	classes := func() []string {
		return strings.Fields(getAttr(n, "class"))
	}
	write := func(cs []string) {
		setAttr(n, "class", strings.Join(cs, " "))
		b.noteActivity()
	}

	_ = list.Set("contains", func(name string) bool {
		for _, c := range classes() {
			if c == name {
				return true
			}
		}
		return false
	})
	_ = list.Set("add", func(call goja.FunctionCall) goja.Value {
		cs := classes()
		for _, arg := range call.Arguments {
			name := arg.String()
			found := false
			for _, c := range cs {
				if c == name {
					found = true
					break
				}
			}
			if !found {
				cs = append(cs, name)
			}
		}
		write(cs)
		return goja.Undefined()
	})
	_ = list.Set("remove", func(call goja.FunctionCall) goja.Value {
		cs := classes()
		for _, arg := range call.Arguments {
			name := arg.String()
			next := cs[:0]
			for _, c := range cs {
				if c != name {
					next = append(next, c)
				}
			}
			cs = next
		}
		write(cs)
		return goja.Undefined()
	})
	_ = list.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		cs := classes()
		for i, c := range cs {
			if c == name {
				write(append(cs[:i], cs[i+1:]...))
				return b.vm.ToValue(false)
			}
		}
		write(append(cs, name))
		return b.vm.ToValue(true)
	})
	_ = list.Set("item", func(i int) goja.Value {
		cs := classes()
		if i < 0 || i >= len(cs) {
			return goja.Null()
		}
		return b.vm.ToValue(cs[i])
	})
	_ = list.Set("toString", func() string { return getAttr(n, "class") })
	b.defineGetter(list, "length", func() goja.Value { return b.vm.ToValue(len(classes())) })
	return list
}

// -- content accessors --

func (b *Bridge) initContentAccessors(obj *goja.Object, n *html.Node) {
	b.defineAccessor(obj, "innerHTML",
		func() goja.Value { return b.vm.ToValue(b.renderChildren(n)) },
		func(v goja.Value) {
			if err := b.setInnerHTML(n, v.String()); err != nil {
				b.reportError("innerHTML", err)
			}
		},
	)
	b.defineAccessor(obj, "outerHTML",
		func() goja.Value { return b.vm.ToValue(renderNode(n)) },
		func(v goja.Value) {
			if err := b.replaceWithHTML(n, v.String()); err != nil {
				b.reportError("outerHTML", err)
			}
		},
	)
	b.defineAccessor(obj, "textContent",
		func() goja.Value { return b.vm.ToValue(collectText(n)) },
		func(v goja.Value) { b.setTextContent(n, v.String()) },
	)
	b.defineAccessor(obj, "innerText",
		func() goja.Value { return b.vm.ToValue(collectText(n)) },
		func(v goja.Value) { b.setTextContent(n, v.String()) },
	)
}

func (b *Bridge) setTextContent(n *html.Node, text string) {
	removed := removeChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	b.countOp("textContent")
	b.recordChildListMutation(n, nil, removed)
	b.noteActivity()
}

// -- tree mutation --

func (b *Bridge) initTreeOps(obj *goja.Object, n *html.Node) {
	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := b.unwrapNode(call.Argument(0))
		if child == nil {
			panic(b.vm.NewTypeError("appendChild expects a node"))
		}
		added := b.insertNode(n, child, nil)
		b.countOp("appendChild")
		b.recordChildListMutation(n, added, nil)
		b.noteActivity()
		return call.Argument(0)
	})
	_ = obj.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := b.unwrapNode(call.Argument(0))
		if child == nil {
			panic(b.vm.NewTypeError("insertBefore expects a node"))
		}
		ref := b.unwrapNode(call.Argument(1))
		added := b.insertNode(n, child, ref)
		b.countOp("insertBefore")
		b.recordChildListMutation(n, added, nil)
		b.noteActivity()
		return call.Argument(0)
	})
	_ = obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := b.unwrapNode(call.Argument(0))
		if child == nil || child.Parent != n {
			panic(b.vm.NewTypeError("removeChild: node is not a child"))
		}
		n.RemoveChild(child)
		b.countOp("removeChild")
		b.recordChildListMutation(n, nil, []*html.Node{child})
		b.noteActivity()
		return call.Argument(0)
	})
	_ = obj.Set("replaceChild", func(call goja.FunctionCall) goja.Value {
		newChild := b.unwrapNode(call.Argument(0))
		oldChild := b.unwrapNode(call.Argument(1))
		if newChild == nil || oldChild == nil || oldChild.Parent != n {
			panic(b.vm.NewTypeError("replaceChild: invalid arguments"))
		}
		detach(newChild)
		n.InsertBefore(newChild, oldChild)
		n.RemoveChild(oldChild)
		b.countOp("replaceChild")
		b.recordChildListMutation(n, []*html.Node{newChild}, []*html.Node{oldChild})
		b.noteActivity()
		return call.Argument(1)
	})
	_ = obj.Set("append", func(call goja.FunctionCall) goja.Value {
		var added []*html.Node
		for _, arg := range call.Arguments {
			added = append(added, b.appendArgument(n, arg, nil)...)
		}
		b.countOp("append")
		b.recordChildListMutation(n, added, nil)
		b.noteActivity()
		return goja.Undefined()
	})
	_ = obj.Set("prepend", func(call goja.FunctionCall) goja.Value {
		var added []*html.Node
		first := n.FirstChild
		for _, arg := range call.Arguments {
			added = append(added, b.appendArgument(n, arg, first)...)
		}
		b.countOp("prepend")
		b.recordChildListMutation(n, added, nil)
		b.noteActivity()
		return goja.Undefined()
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			parent := n.Parent
			parent.RemoveChild(n)
			b.countOp("removeChild")
			b.recordChildListMutation(parent, nil, []*html.Node{n})
			b.noteActivity()
		}
		return goja.Undefined()
	})
	_ = obj.Set("cloneNode", func(call goja.FunctionCall) goja.Value {
		deep := call.Argument(0).ToBoolean()
		return b.wrapNode(cloneNode(n, deep))
	})
}

// insertNode places child (or a fragment's children) before ref under parent
// and returns the nodes that actually moved.
func (b *Bridge) insertNode(parent, child, ref *html.Node) []*html.Node {
	if b.nodeTypeOf(child) == nodeTypeFragment {
		var moved []*html.Node
		for child.FirstChild != nil {
			c := child.FirstChild
			child.RemoveChild(c)
			if ref != nil {
				parent.InsertBefore(c, ref)
			} else {
				parent.AppendChild(c)
			}
			moved = append(moved, c)
		}
		return moved
	}
	detach(child)
	if ref != nil {
		parent.InsertBefore(child, ref)
	} else {
		parent.AppendChild(child)
	}
	if child.Type == html.ElementNode && child.Data == "script" {
		b.log.Debug("Dynamically inserted script element will not execute",
			zap.String("src", getAttr(child, "src")))
	}
	return []*html.Node{child}
}

// appendArgument handles append/prepend arguments, which may be nodes or
// strings (converted to text nodes).
func (b *Bridge) appendArgument(parent *html.Node, arg goja.Value, ref *html.Node) []*html.Node {
	if node := b.unwrapNode(arg); node != nil {
		return b.insertNode(parent, node, ref)
	}
	text := &html.Node{Type: html.TextNode, Data: arg.String()}
	if ref != nil {
		parent.InsertBefore(text, ref)
	} else {
		parent.AppendChild(text)
	}
	return []*html.Node{text}
}

// -- misc element surface --

func (b *Bridge) initElementMisc(obj *goja.Object, n *html.Node) {
	_ = obj.Set("click", func(call goja.FunctionCall) goja.Value {
		evt := b.newEvent("click", true, true)
		b.DispatchEvent(n, evt)
		return goja.Undefined()
	})
	_ = obj.Set("focus", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = obj.Set("blur", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })

	if !b.permissive {
		return
	}
	zeroRect := func() goja.Value {
		rect := b.vm.NewObject()
		for _, k := range []string{"x", "y", "top", "left", "right", "bottom", "width", "height"} {
			_ = rect.Set(k, 0)
		}
		return rect
	}
	_ = obj.Set("getBoundingClientRect", zeroRect)
	_ = obj.Set("getClientRects", func() goja.Value { return b.vm.NewArray(zeroRect()) })
	_ = obj.Set("scrollIntoView", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	for _, k := range []string{"offsetWidth", "offsetHeight", "clientWidth", "clientHeight", "scrollTop", "scrollLeft"} {
		_ = obj.Set(k, 0)
	}
}

// -- dataset --

// datasetObject maps dataset.camelCase onto data-kebab-case attributes.
type datasetObject struct {
	bridge *Bridge
	node   *html.Node
}

func datasetAttrName(key string) string {
	var sb strings.Builder
	sb.WriteString("data-")
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func datasetKeyName(attr string) string {
	key := strings.TrimPrefix(attr, "data-")
	var sb strings.Builder
	upper := false
	for _, r := range key {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			sb.WriteRune(r - ('a' - 'A'))
		} else {
			sb.WriteRune(r)
		}
		upper = false
	}
	return sb.String()
}

func (d *datasetObject) Get(key string) goja.Value {
	attr := datasetAttrName(key)
	if !hasAttr(d.node, attr) {
		return goja.Undefined()
	}
	return d.bridge.vm.ToValue(getAttr(d.node, attr))
}

func (d *datasetObject) Set(key string, val goja.Value) bool {
	setAttr(d.node, datasetAttrName(key), val.String())
	d.bridge.noteActivity()
	return true
}

func (d *datasetObject) Has(key string) bool {
	return hasAttr(d.node, datasetAttrName(key))
}

func (d *datasetObject) Delete(key string) bool {
	return removeAttr(d.node, datasetAttrName(key))
}

func (d *datasetObject) Keys() []string {
	var keys []string
	for _, a := range d.node.Attr {
		if strings.HasPrefix(a.Key, "data-") {
			keys = append(keys, datasetKeyName(a.Key))
		}
	}
	sort.Strings(keys)
	return keys
}

// -- style --

// styleObject backs element.style with the style attribute. Property reads
// and writes parse and rebuild the attribute text; no CSSOM is emulated.
type styleObject struct {
	bridge *Bridge
	node   *html.Node
}

func cssPropertyName(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func (s *styleObject) declarations() [][2]string {
	var decls [][2]string
	for _, part := range strings.Split(getAttr(s.node, "style"), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, ":"); i > 0 {
			decls = append(decls, [2]string{
				strings.TrimSpace(part[:i]),
				strings.TrimSpace(part[i+1:]),
			})
		}
	}
	return decls
}

func (s *styleObject) write(decls [][2]string) {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d[0]+": "+d[1])
	}
	setAttr(s.node, "style", strings.Join(parts, "; "))
	s.bridge.noteActivity()
}

func (s *styleObject) lookup(prop string) (string, bool) {
	for _, d := range s.declarations() {
		if d[0] == prop {
			return d[1], true
		}
	}
	return "", false
}

func (s *styleObject) setProperty(prop, value string) {
	decls := s.declarations()
	for i := range decls {
		if decls[i][0] == prop {
			decls[i][1] = value
			s.write(decls)
			return
		}
	}
	s.write(append(decls, [2]string{prop, value}))
}

func (s *styleObject) Get(key string) goja.Value {
	vm := s.bridge.vm
	switch key {
	case "cssText":
		return vm.ToValue(getAttr(s.node, "style"))
	case "setProperty":
		return vm.ToValue(func(prop, value string) { s.setProperty(prop, value) })
	case "getPropertyValue":
		return vm.ToValue(func(prop string) string {
			v, _ := s.lookup(prop)
			return v
		})
	case "removeProperty":
		return vm.ToValue(func(prop string) string {
			old := ""
			decls := s.declarations()
			next := decls[:0]
			for _, d := range decls {
				if d[0] == prop {
					old = d[1]
					continue
				}
				next = append(next, d)
			}
			s.write(next)
			return old
		})
	}
	if v, ok := s.lookup(cssPropertyName(key)); ok {
		return vm.ToValue(v)
	}
	return vm.ToValue("")
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		setAttr(s.node, "style", val.String())
		s.bridge.noteActivity()
		return true
	}
	s.setProperty(cssPropertyName(key), val.String())
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.lookup(cssPropertyName(key))
	return ok
}

func (s *styleObject) Delete(key string) bool {
	decls := s.declarations()
	prop := cssPropertyName(key)
	next := decls[:0]
	removed := false
	for _, d := range decls {
		if d[0] == prop {
			removed = true
			continue
		}
		next = append(next, d)
	}
	if removed {
		s.write(next)
	}
	return removed
}

func (s *styleObject) Keys() []string {
	decls := s.declarations()
	keys := make([]string, 0, len(decls))
	for _, d := range decls {
		keys = append(keys, d[0])
	}
	return keys
}
