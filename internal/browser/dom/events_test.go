// File: internal/browser/dom/events_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenersReceiveDispatchedEvents(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var seen = 0;
		el.addEventListener('ping', function(evt) { if (evt.type === 'ping') seen++; });
		var ok = el.dispatchEvent(new Event('ping'));
		seen + (ok ? 10 : 0);
	`)
	assert.Equal(t, int64(11), v.ToInteger())
}

func TestEventBubblesToDocumentAndWindow(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var order = [];
		var b = document.querySelector('b');
		document.querySelector('p').addEventListener('custom', function() { order.push('p'); });
		document.getElementById('root').addEventListener('custom', function() { order.push('div'); });
		document.addEventListener('custom', function() { order.push('document'); });
		window.addEventListener('custom', function() { order.push('window'); });
		b.addEventListener('custom', function(evt) {
			order.push('target:' + (evt.target === b) + ':' + (evt.currentTarget === b));
		});
		b.dispatchEvent(new Event('custom', { bubbles: true }));
		order.join('|');
	`)
	assert.Equal(t, "target:true:true|p|div|document|window", v.String())
}

func TestNonBubblingEventStaysOnTarget(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var hits = [];
		document.getElementById('root').addEventListener('quiet', function() { hits.push('div'); });
		document.addEventListener('quiet', function() { hits.push('doc'); });
		document.getElementById('root').dispatchEvent(new Event('quiet'));
		hits.join(',');
	`)
	assert.Equal(t, "div", v.String())
}

func TestOnceListenersAndRemoval(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var onceCount = 0, offCount = 0;
		el.addEventListener('tick', function() { onceCount++; }, { once: true });
		var off = function() { offCount++; };
		el.addEventListener('tick', off);
		el.dispatchEvent(new Event('tick'));
		el.removeEventListener('tick', off);
		el.dispatchEvent(new Event('tick'));
		onceCount * 10 + offCount;
	`)
	assert.Equal(t, int64(11), v.ToInteger())
}

func TestHandlerPropertiesAreInvoked(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var got = '';
		el.onclick = function(evt) { got = evt.type; };
		el.click();
		got;
	`)
	assert.Equal(t, "click", v.String())
}

func TestStopPropagationHaltsBubbling(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var hits = [];
		var p = document.querySelector('p');
		p.addEventListener('halt', function(evt) { hits.push('p'); evt.stopPropagation(); });
		document.getElementById('root').addEventListener('halt', function() { hits.push('div'); });
		p.dispatchEvent(new Event('halt', { bubbles: true }));
		hits.join(',');
	`)
	assert.Equal(t, "p", v.String())
}

func TestStopImmediatePropagationSkipsRemainingListeners(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var hits = [];
		el.addEventListener('now', function(evt) { hits.push('first'); evt.stopImmediatePropagation(); });
		el.addEventListener('now', function() { hits.push('second'); });
		el.dispatchEvent(new Event('now'));
		hits.join(',');
	`)
	assert.Equal(t, "first", v.String())
}

func TestPreventDefaultControlsDispatchReturn(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		el.addEventListener('go', function(evt) { evt.preventDefault(); });
		var cancelable = el.dispatchEvent(new Event('go', { cancelable: true }));
		var plain = el.dispatchEvent(new Event('go'));
		(cancelable ? 'x' : 'cancelled') + '|' + (plain ? 'ran' : 'x');
	`)
	assert.Equal(t, "cancelled|ran", v.String())
}

func TestCustomEventCarriesDetail(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var got = null;
		el.addEventListener('data', function(evt) { got = evt.detail.answer; });
		el.dispatchEvent(new CustomEvent('data', { detail: { answer: 42 } }));
		got;
	`)
	assert.Equal(t, int64(42), v.ToInteger())
}

func TestThrowingListenerIsReportedAndOthersStillRun(t *testing.T) {
	vm, _, host := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var ran = false;
		el.addEventListener('boom', function() { throw new Error('listener exploded'); });
		el.addEventListener('boom', function() { ran = true; });
		el.dispatchEvent(new Event('boom'));
		ran;
	`)
	assert.True(t, v.ToBoolean())
	require.NotEmpty(t, host.errors)
	assert.Contains(t, host.errors[0], "listener exploded")
}

func TestHostDispatchReachesWindowListeners(t *testing.T) {
	vm, bridge, _ := newTestBridge(t, fixturePage)

	runJS(t, vm, `var winHits = 0; window.addEventListener('app-ready', function() { winHits++; });`)
	bridge.DispatchEvent(WindowKey, bridge.NewEvent("app-ready", false, false))
	assert.Equal(t, int64(1), runJS(t, vm, `winHits`).ToInteger())
}

func TestDocumentEventBubblesToWindow(t *testing.T) {
	vm, bridge, _ := newTestBridge(t, fixturePage)

	runJS(t, vm, `
		var hits = [];
		document.addEventListener('DOMContentLoaded', function() { hits.push('doc'); });
		window.addEventListener('DOMContentLoaded', function() { hits.push('win'); });
	`)
	bridge.DispatchDocumentEvent(bridge.NewEvent("DOMContentLoaded", true, false))
	assert.Equal(t, "doc,win", runJS(t, vm, `hits.join(',')`).String())
}

func TestIsTrustedIsFalseForScriptedEvents(t *testing.T) {
	vm, _, _ := newTestBridge(t, fixturePage)

	v := runJS(t, vm, `
		var el = document.getElementById('root');
		var trusted = null;
		el.addEventListener('x', function(evt) { trusted = evt.isTrusted; });
		el.dispatchEvent(new Event('x'));
		trusted;
	`)
	assert.False(t, v.ToBoolean())
}
