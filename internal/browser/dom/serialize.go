// File: internal/browser/dom/serialize.go
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Snapshot serializes the full document, reflecting every mutation scripts
// have applied so far.
func (b *Bridge) Snapshot() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, b.doc); err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	return sb.String(), nil
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func (b *Bridge) renderChildren(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// parseFragment parses src the way the HTML parser would inside the given
// context element. A synthetic context node keeps the parser from touching
// the live tree.
func (b *Bridge) parseFragment(src string, context *html.Node) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	if context != nil && context.Type == html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: context.Data, DataAtom: context.DataAtom}
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	return nodes, nil
}

func (b *Bridge) setInnerHTML(n *html.Node, src string) error {
	nodes, err := b.parseFragment(src, n)
	if err != nil {
		return err
	}
	removed := removeChildren(n)
	for _, c := range nodes {
		detach(c)
		n.AppendChild(c)
	}
	b.countOp("innerHTML")
	b.recordChildListMutation(n, nodes, removed)
	b.noteActivity()
	return nil
}

func (b *Bridge) replaceWithHTML(n *html.Node, src string) error {
	parent := n.Parent
	if parent == nil {
		return fmt.Errorf("cannot replace a detached node")
	}
	nodes, err := b.parseFragment(src, parent)
	if err != nil {
		return err
	}
	for _, c := range nodes {
		detach(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
	b.countOp("outerHTML")
	b.recordChildListMutation(parent, nodes, []*html.Node{n})
	b.noteActivity()
	return nil
}

func removeChildren(n *html.Node) []*html.Node {
	var removed []*html.Node
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		removed = append(removed, c)
	}
	return removed
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			sb.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(cloneNode(c, true))
		}
	}
	return clone
}
