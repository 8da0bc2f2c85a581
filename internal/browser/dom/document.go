// File: internal/browser/dom/document.go
package dom

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// buildDocument wraps the document node and layers the document-only surface
// on top of the generic node wrapper.
func (b *Bridge) buildDocument() (*goja.Object, error) {
	doc := b.wrapNode(b.doc)
	_ = doc.Set("nodeName", "#document")

	b.defineGetter(doc, "documentElement", func() goja.Value {
		return b.nodeOrNull(b.findElement("html"))
	})
	b.defineGetter(doc, "head", func() goja.Value {
		return b.nodeOrNull(b.findElement("head"))
	})
	b.defineGetter(doc, "body", func() goja.Value {
		return b.nodeOrNull(b.findElement("body"))
	})
	b.defineGetter(doc, "activeElement", func() goja.Value {
		return b.nodeOrNull(b.findElement("body"))
	})
	b.defineGetter(doc, "defaultView", func() goja.Value {
		if b.window != nil {
			return b.window
		}
		return goja.Null()
	})

	b.defineGetter(doc, "readyState", func() goja.Value { return b.vm.ToValue(b.readyState) })
	b.defineGetter(doc, "baseURI", func() goja.Value { return b.vm.ToValue(b.baseURL.String()) })
	b.defineGetter(doc, "URL", func() goja.Value { return b.vm.ToValue(b.docURL.String()) })
	b.defineGetter(doc, "documentURI", func() goja.Value { return b.vm.ToValue(b.docURL.String()) })
	_ = doc.Set("characterSet", "UTF-8")
	_ = doc.Set("charset", "UTF-8")
	_ = doc.Set("contentType", "text/html")
	_ = doc.Set("compatMode", "CSS1Compat")
	_ = doc.Set("hidden", false)
	_ = doc.Set("visibilityState", "visible")
	_ = doc.Set("hasFocus", func(call goja.FunctionCall) goja.Value { return b.vm.ToValue(true) })

	// document.location delegates to the window location object, which the
	// navigation shim installs.
	b.defineAccessor(doc, "location",
		func() goja.Value {
			if b.window != nil {
				if v := b.window.Get("location"); v != nil {
					return v
				}
			}
			return goja.Undefined()
		},
		func(v goja.Value) {
			if b.window != nil {
				_ = b.window.Set("location", v)
			}
		},
	)

	b.defineAccessor(doc, "title",
		func() goja.Value {
			if t := b.findElement("title"); t != nil {
				return b.vm.ToValue(collectText(t))
			}
			return b.vm.ToValue("")
		},
		func(v goja.Value) { b.setTitle(v.String()) },
	)

	_ = doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		found := findFirst(b.doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && getAttr(n, "id") == id
		})
		return b.nodeOrNull(found)
	})
	_ = doc.Set("getElementsByName", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		matches := findAll(b.doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && getAttr(n, "name") == name
		})
		wrapped := make([]*goja.Object, 0, len(matches))
		for _, m := range matches {
			wrapped = append(wrapped, b.wrapNode(m))
		}
		return b.toArray(wrapped)
	})

	_ = doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return b.CreateElement(call.Argument(0).String())
	})
	_ = doc.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	_ = doc.Set("createComment", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(&html.Node{Type: html.CommentNode, Data: call.Argument(0).String()})
	})
	_ = doc.Set("createDocumentFragment", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(&html.Node{Type: html.DocumentNode})
	})
	_ = doc.Set("importNode", func(call goja.FunctionCall) goja.Value {
		n := b.unwrapNode(call.Argument(0))
		if n == nil {
			panic(b.vm.NewTypeError("importNode expects a node"))
		}
		return b.wrapNode(cloneNode(n, call.Argument(1).ToBoolean()))
	})

	// document.write appends to the body; the document is never reopened.
	write := func(parts []goja.Value) {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(p.String())
		}
		b.documentWrite(sb.String())
	}
	_ = doc.Set("write", func(call goja.FunctionCall) goja.Value {
		write(call.Arguments)
		return goja.Undefined()
	})
	_ = doc.Set("writeln", func(call goja.FunctionCall) goja.Value {
		write(append(call.Arguments, b.vm.ToValue("\n")))
		return goja.Undefined()
	})
	_ = doc.Set("open", func(call goja.FunctionCall) goja.Value { return doc })
	_ = doc.Set("close", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = doc.Set("evaluate", b.evaluateXPath)

	b.defineGetter(doc, "forms", func() goja.Value { return b.elementsByTagName(b.doc, "form") })
	b.defineGetter(doc, "images", func() goja.Value { return b.elementsByTagName(b.doc, "img") })
	b.defineGetter(doc, "scripts", func() goja.Value { return b.elementsByTagName(b.doc, "script") })
	b.defineGetter(doc, "links", func() goja.Value {
		matches := findAll(b.doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && (n.Data == "a" || n.Data == "area") && hasAttr(n, "href")
		})
		wrapped := make([]*goja.Object, 0, len(matches))
		for _, m := range matches {
			wrapped = append(wrapped, b.wrapNode(m))
		}
		return b.toArray(wrapped)
	})

	return doc, nil
}

// DefineDocumentAccessor lets shims attach accessor properties such as
// document.cookie without reaching into the wrapper internals.
func (b *Bridge) DefineDocumentAccessor(name string, get func() goja.Value, set func(goja.Value)) {
	if b.docObj == nil {
		return
	}
	b.defineAccessor(b.docObj, name, get, set)
}

// CreateElement builds a detached element wrapper, for shims that construct
// elements directly (new Image()).
func (b *Bridge) CreateElement(tag string) *goja.Object {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return b.wrapNode(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
}

func (b *Bridge) findElement(tag string) *html.Node {
	return findFirst(b.doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	})
}

func (b *Bridge) setTitle(title string) {
	t := b.findElement("title")
	if t == nil {
		head := b.findElement("head")
		if head == nil {
			return
		}
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.AppendChild(t)
	}
	removeChildren(t)
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	b.noteActivity()
}

// documentWrite parses markup and appends it to the body, a close enough
// stand-in for streaming writes against an already parsed document.
func (b *Bridge) documentWrite(markup string) {
	target := b.findElement("body")
	if target == nil {
		target = b.doc
	}
	nodes, err := b.parseFragment(markup, target)
	if err != nil {
		b.reportError("document.write", err)
		return
	}
	for _, n := range nodes {
		detach(n)
		target.AppendChild(n)
	}
	b.countOp("document.write")
	b.recordChildListMutation(target, nodes, nil)
	b.noteActivity()
}
