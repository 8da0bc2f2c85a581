// File: internal/browser/dom/query.go
package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// compileSelector parses a CSS selector group, raising a JS error on syntax
// failures the way browsers do.
func (b *Bridge) compileSelector(sel string) cascadia.SelectorGroup {
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		panic(b.vm.NewTypeError(fmt.Sprintf("invalid selector %q: %v", sel, err)))
	}
	return group
}

func (b *Bridge) querySelectorValue(scope *html.Node, sel string) goja.Value {
	group := b.compileSelector(sel)
	if found := cascadia.Query(scope, group); found != nil {
		return b.wrapNode(found)
	}
	return goja.Null()
}

func (b *Bridge) querySelectorAllValue(scope *html.Node, sel string) goja.Value {
	group := b.compileSelector(sel)
	matches := cascadia.QueryAll(scope, group)
	wrapped := make([]*goja.Object, 0, len(matches))
	for _, m := range matches {
		wrapped = append(wrapped, b.wrapNode(m))
	}
	return b.toArray(wrapped)
}

// elementsByTagName resolves tag lookups through an XPath descendant axis.
func (b *Bridge) elementsByTagName(scope *html.Node, tag string) goja.Value {
	tag = strings.ToLower(strings.TrimSpace(tag))
	expr := "descendant::" + tag
	if tag == "*" {
		expr = "descendant::*"
	}
	nodes, err := htmlquery.QueryAll(scope, expr)
	if err != nil {
		b.log.Debug("Tag name query failed", zap.String("tag", tag), zap.Error(err))
		return b.toArray(nil)
	}
	wrapped := make([]*goja.Object, 0, len(nodes))
	for _, n := range nodes {
		wrapped = append(wrapped, b.wrapNode(n))
	}
	return b.toArray(wrapped)
}

func (b *Bridge) elementsByClassName(scope *html.Node, class string) goja.Value {
	want := strings.Fields(class)
	matches := findAll(scope, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n == scope {
			return false
		}
		have := strings.Fields(getAttr(n, "class"))
		for _, w := range want {
			found := false
			for _, h := range have {
				if h == w {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return len(want) > 0
	})
	wrapped := make([]*goja.Object, 0, len(matches))
	for _, m := range matches {
		wrapped = append(wrapped, b.wrapNode(m))
	}
	return b.toArray(wrapped)
}

// initQueries installs the scoped selection methods shared by elements and
// the document.
func (b *Bridge) initQueries(obj *goja.Object, n *html.Node) {
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.querySelectorValue(n, call.Argument(0).String())
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.querySelectorAllValue(n, call.Argument(0).String())
	})
	_ = obj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.elementsByTagName(n, call.Argument(0).String())
	})
	_ = obj.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return b.elementsByClassName(n, call.Argument(0).String())
	})
	if n.Type != html.ElementNode {
		return
	}
	_ = obj.Set("matches", func(call goja.FunctionCall) goja.Value {
		group := b.compileSelector(call.Argument(0).String())
		return b.vm.ToValue(group.Match(n))
	})
	_ = obj.Set("closest", func(call goja.FunctionCall) goja.Value {
		group := b.compileSelector(call.Argument(0).String())
		for cur := n; cur != nil; cur = cur.Parent {
			if cur.Type == html.ElementNode && group.Match(cur) {
				return b.wrapNode(cur)
			}
		}
		return goja.Null()
	})
}
