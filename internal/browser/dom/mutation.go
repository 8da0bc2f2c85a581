// File: internal/browser/dom/mutation.go
package dom

import (
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// mutationObserver is one MutationObserver instance: its callback, the nodes
// it watches, and the records queued for the next delivery.
type mutationObserver struct {
	callback goja.Callable
	jsObj    *goja.Object
	targets  []observeTarget
	queue    []*goja.Object
}

type observeTarget struct {
	node       *html.Node
	subtree    bool
	childList  bool
	attributes bool
}

func (o *mutationObserver) wants(n *html.Node, attribute bool) bool {
	for _, t := range o.targets {
		if attribute && !t.attributes {
			continue
		}
		if !attribute && !t.childList {
			continue
		}
		if t.node == n {
			return true
		}
		if t.subtree && isAncestor(t.node, n) {
			return true
		}
	}
	return false
}

func isAncestor(anc, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// bindMutationObserver exposes the MutationObserver constructor on window.
func (b *Bridge) bindMutationObserver(window *goja.Object) {
	_ = window.Set("MutationObserver", func(call goja.ConstructorCall) *goja.Object {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(b.vm.NewTypeError("MutationObserver expects a callback"))
		}
		obs := &mutationObserver{callback: fn, jsObj: call.This}
		b.observers = append(b.observers, obs)

		_ = call.This.Set("observe", func(c goja.FunctionCall) goja.Value {
			target := b.unwrapNode(c.Argument(0))
			if target == nil {
				panic(b.vm.NewTypeError("observe expects a node"))
			}
			t := observeTarget{node: target}
			if opts, isObj := c.Argument(1).(*goja.Object); isObj {
				if v := opts.Get("childList"); v != nil {
					t.childList = v.ToBoolean()
				}
				if v := opts.Get("attributes"); v != nil {
					t.attributes = v.ToBoolean()
				}
				if v := opts.Get("subtree"); v != nil {
					t.subtree = v.ToBoolean()
				}
			}
			obs.targets = append(obs.targets, t)
			return goja.Undefined()
		})
		_ = call.This.Set("disconnect", func(c goja.FunctionCall) goja.Value {
			obs.targets = nil
			obs.queue = nil
			return goja.Undefined()
		})
		_ = call.This.Set("takeRecords", func(c goja.FunctionCall) goja.Value {
			records := obs.queue
			obs.queue = nil
			return b.toArray(records)
		})
		return call.This
	})
}

// recordChildListMutation queues childList records on every observer watching
// parent and schedules a delivery.
func (b *Bridge) recordChildListMutation(parent *html.Node, added, removed []*html.Node) {
	if len(b.observers) == 0 {
		return
	}
	queued := false
	for _, obs := range b.observers {
		if !obs.wants(parent, false) {
			continue
		}
		rec := b.vm.NewObject()
		_ = rec.Set("type", "childList")
		_ = rec.Set("target", b.wrapNode(parent))
		_ = rec.Set("addedNodes", b.wrapNodes(added))
		_ = rec.Set("removedNodes", b.wrapNodes(removed))
		_ = rec.Set("attributeName", goja.Null())
		_ = rec.Set("oldValue", goja.Null())
		obs.queue = append(obs.queue, rec)
		queued = true
	}
	if queued {
		b.scheduleDelivery()
	}
}

// recordAttributeMutation queues attribute records for node n.
func (b *Bridge) recordAttributeMutation(n *html.Node, name, oldValue string) {
	if len(b.observers) == 0 {
		return
	}
	queued := false
	for _, obs := range b.observers {
		if !obs.wants(n, true) {
			continue
		}
		rec := b.vm.NewObject()
		_ = rec.Set("type", "attributes")
		_ = rec.Set("target", b.wrapNode(n))
		_ = rec.Set("addedNodes", b.vm.NewArray())
		_ = rec.Set("removedNodes", b.vm.NewArray())
		_ = rec.Set("attributeName", name)
		_ = rec.Set("oldValue", oldValue)
		obs.queue = append(obs.queue, rec)
		queued = true
	}
	if queued {
		b.scheduleDelivery()
	}
}

func (b *Bridge) wrapNodes(nodes []*html.Node) goja.Value {
	wrapped := make([]*goja.Object, 0, len(nodes))
	for _, n := range nodes {
		wrapped = append(wrapped, b.wrapNode(n))
	}
	return b.toArray(wrapped)
}

// scheduleDelivery queues a single delivery job on the host loop. Without a
// Schedule hook records are delivered synchronously.
func (b *Bridge) scheduleDelivery() {
	if b.hooks.Schedule == nil {
		b.deliverRecords()
		return
	}
	if b.deliveryQueued {
		return
	}
	b.deliveryQueued = true
	b.hooks.Schedule(func() {
		b.deliveryQueued = false
		b.deliverRecords()
	})
}

// deliverRecords flushes every observer's queue through its callback.
func (b *Bridge) deliverRecords() {
	delivered := false
	for _, obs := range b.observers {
		if len(obs.queue) == 0 {
			continue
		}
		records := obs.queue
		obs.queue = nil
		delivered = true
		recordsArr := b.toArray(records)
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.reportError("mutation observer", recoveredError(r))
				}
			}()
			if _, err := obs.callback(obs.jsObj, recordsArr, obs.jsObj); err != nil {
				b.reportError("mutation observer", err)
			}
		}()
	}
	if delivered {
		b.noteActivity()
	}
}
