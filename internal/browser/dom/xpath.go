// File: internal/browser/dom/xpath.go
package dom

import (
	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// XPathResult type constants, mirrored onto the global XPathResult object.
// Only node-set semantics are implemented; the primitive result types fall
// back to the text of the first matching node.
const (
	xpathAnyType                   = 0
	xpathNumberType                = 1
	xpathStringType                = 2
	xpathBooleanType               = 3
	xpathUnorderedNodeIteratorType = 4
	xpathOrderedNodeIteratorType   = 5
	xpathUnorderedNodeSnapshotType = 6
	xpathOrderedNodeSnapshotType   = 7
	xpathAnyUnorderedNodeType      = 8
	xpathFirstOrderedNodeType      = 9
)

// bindXPath publishes the XPathResult constants pages use as the fourth
// argument to document.evaluate.
func (b *Bridge) bindXPath(window *goja.Object) {
	result := b.vm.NewObject()
	consts := map[string]int{
		"ANY_TYPE":                     xpathAnyType,
		"NUMBER_TYPE":                  xpathNumberType,
		"STRING_TYPE":                  xpathStringType,
		"BOOLEAN_TYPE":                 xpathBooleanType,
		"UNORDERED_NODE_ITERATOR_TYPE": xpathUnorderedNodeIteratorType,
		"ORDERED_NODE_ITERATOR_TYPE":   xpathOrderedNodeIteratorType,
		"UNORDERED_NODE_SNAPSHOT_TYPE": xpathUnorderedNodeSnapshotType,
		"ORDERED_NODE_SNAPSHOT_TYPE":   xpathOrderedNodeSnapshotType,
		"ANY_UNORDERED_NODE_TYPE":      xpathAnyUnorderedNodeType,
		"FIRST_ORDERED_NODE_TYPE":      xpathFirstOrderedNodeType,
	}
	for name, v := range consts {
		_ = result.Set(name, v)
	}
	_ = window.Set("XPathResult", result)
}

// evaluateXPath implements document.evaluate(expression, contextNode,
// resolver, resultType, result). The resolver and reusable result arguments
// are accepted and ignored.
func (b *Bridge) evaluateXPath(call goja.FunctionCall) goja.Value {
	expr := call.Argument(0).String()

	scope := b.doc
	if node := b.unwrapNode(call.Argument(1)); node != nil {
		scope = node
	}

	resultType := xpathAnyType
	if t := call.Argument(3); t != nil && !goja.IsUndefined(t) && !goja.IsNull(t) {
		resultType = int(t.ToInteger())
	}

	nodes, err := htmlquery.QueryAll(scope, expr)
	if err != nil {
		b.log.Debug("Rejecting XPath expression", zap.String("expr", expr), zap.Error(err))
		panic(b.vm.NewTypeError("failed to evaluate XPath expression %q: %v", expr, err))
	}
	return b.buildXPathResult(nodes, resultType)
}

func (b *Bridge) buildXPathResult(nodes []*html.Node, resultType int) goja.Value {
	obj := b.vm.NewObject()
	_ = obj.Set("resultType", resultType)
	_ = obj.Set("invalidIteratorState", false)

	wrap := func(n *html.Node) goja.Value {
		if n == nil {
			return goja.Null()
		}
		return b.wrapNode(n)
	}

	_ = obj.Set("snapshotLength", len(nodes))
	_ = obj.Set("snapshotItem", func(call goja.FunctionCall) goja.Value {
		i := int(call.Argument(0).ToInteger())
		if i < 0 || i >= len(nodes) {
			return goja.Null()
		}
		return wrap(nodes[i])
	})

	cursor := 0
	_ = obj.Set("iterateNext", func(call goja.FunctionCall) goja.Value {
		if cursor >= len(nodes) {
			return goja.Null()
		}
		n := nodes[cursor]
		cursor++
		return wrap(n)
	})

	var first *html.Node
	if len(nodes) > 0 {
		first = nodes[0]
	}
	b.defineGetter(obj, "singleNodeValue", func() goja.Value { return wrap(first) })

	firstText := ""
	if first != nil {
		firstText = collectText(first)
	}
	_ = obj.Set("stringValue", firstText)
	_ = obj.Set("booleanValue", len(nodes) > 0)
	_ = obj.Set("numberValue", float64(len(nodes)))
	return obj
}
