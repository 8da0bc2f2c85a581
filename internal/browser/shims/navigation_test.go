// File: internal/browser/shims/navigation_test.go
package shims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationComponents(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	assert.Equal(t, shimDocURL, s.mustEval(t, `location.href`))
	assert.Equal(t, "https:", s.mustEval(t, `location.protocol`))
	assert.Equal(t, "app.test:8443", s.mustEval(t, `location.host`))
	assert.Equal(t, "app.test", s.mustEval(t, `location.hostname`))
	assert.Equal(t, "8443", s.mustEval(t, `location.port`))
	assert.Equal(t, "/path/index.html", s.mustEval(t, `location.pathname`))
	assert.Equal(t, "?q=1", s.mustEval(t, `location.search`))
	assert.Equal(t, "", s.mustEval(t, `location.hash`))
	assert.Equal(t, "https://app.test:8443", s.mustEval(t, `location.origin`))
	assert.Equal(t, "https://app.test:8443", s.mustEval(t, `window.origin`))
	assert.Equal(t, "app.test", s.mustEval(t, `document.domain`))
}

func TestHashAssignmentDispatchesHashChange(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `
		window.change = null;
		window.addEventListener('hashchange', function(evt) {
			window.change = { oldURL: evt.oldURL, newURL: evt.newURL };
		});
		location.hash = '#section';
	`)
	s.waitFor(t, `window.change !== null`)

	assert.Equal(t, "#section", s.mustEval(t, `location.hash`))
	assert.Equal(t, shimDocURL, s.mustEval(t, `window.change.oldURL`))
	assert.Equal(t, shimDocURL+"#section", s.mustEval(t, `window.change.newURL`))
}

func TestLocationWritesApplyWithoutReload(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `location.pathname = '/b'`)
	assert.Equal(t, "https://app.test:8443/b?q=1", s.mustEval(t, `location.href`))
	assert.EqualValues(t, 1, s.metrics.NavigationAttempts.Load(), "one write, one attempt")

	s.mustEval(t, `location.assign('https://elsewhere.test/landing')`)
	assert.Equal(t, "https://elsewhere.test/landing", s.mustEval(t, `location.href`))
	assert.Equal(t, int64(3), s.mustEval(t, `history.length`), "navigations append history entries")

	s.mustEval(t, `location.reload()`)
	assert.EqualValues(t, 3, s.metrics.NavigationAttempts.Load())
}

func TestHistoryPushAndTraversal(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `
		window.popped = [];
		window.addEventListener('popstate', function(evt) {
			window.popped.push(evt.state === null ? 'null' : String(evt.state.step));
		});
		history.pushState({step: 1}, '', '/step-1');
	`)
	s.waitFor(t, `window.popped.length === 1`)
	assert.Equal(t, "1", s.mustEval(t, `window.popped[0]`), "pushState hands its state to popstate")
	assert.Equal(t, "/step-1", s.mustEval(t, `location.pathname`))
	assert.Equal(t, int64(1), s.mustEval(t, `history.state.step`))
	assert.Equal(t, int64(2), s.mustEval(t, `history.length`))

	s.mustEval(t, `history.back()`)
	s.waitFor(t, `window.popped.length === 2`)
	assert.Equal(t, "null", s.mustEval(t, `window.popped[1]`))
	assert.Equal(t, "/path/index.html", s.mustEval(t, `location.pathname`))

	s.mustEval(t, `history.forward()`)
	s.waitFor(t, `window.popped.length === 3`)
	assert.Equal(t, "1", s.mustEval(t, `window.popped[2]`))
	assert.Equal(t, "/step-1", s.mustEval(t, `location.pathname`))
}

func TestHistoryReplaceState(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `
		window.rstates = [];
		window.addEventListener('popstate', function(evt) {
			window.rstates.push(evt.state && evt.state.v);
		});
		history.replaceState({v: 2}, '', '/replaced');
	`)
	s.waitFor(t, `window.rstates.length === 1`)

	assert.Equal(t, "/replaced", s.mustEval(t, `location.pathname`))
	assert.Equal(t, int64(1), s.mustEval(t, `history.length`), "replace does not grow the stack")
	assert.Equal(t, int64(2), s.mustEval(t, `history.state.v`))
	assert.Equal(t, int64(2), s.mustEval(t, `window.rstates[0]`))
}

func TestHistorySnapshotEndsAtActiveEntry(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `
		history.pushState({n: 1}, 't1', '/one');
		history.pushState({n: 2}, '', '/two');
		history.back();
	`)

	entries := s.history(t)
	require.Len(t, entries, 2, "the exported trail stops at the active entry")
	assert.Equal(t, shimDocURL, entries[0].URL)
	assert.Nil(t, entries[0].State)
	assert.Equal(t, "https://app.test:8443/one", entries[1].URL)
	assert.Equal(t, "t1", entries[1].Title)
	state, ok := entries[1].State.(map[string]interface{})
	require.True(t, ok, "state should export as a map, got %T", entries[1].State)
	assert.EqualValues(t, 1, state["n"])
}

func TestHistoryRejectsCrossOriginURL(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	_, err := s.eval(`history.pushState(null, '', 'https://evil.test/x')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same-origin")
}

func TestNavigatorIdentity(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	assert.Equal(t, "lancet-test-agent", s.mustEval(t, `navigator.userAgent`))
	assert.Equal(t, "en-US", s.mustEval(t, `navigator.language`))
	assert.Equal(t, "en-US", s.mustEval(t, `navigator.languages[0]`))
	assert.Equal(t, "Linux x86_64", s.mustEval(t, `navigator.platform`))
	assert.Equal(t, true, s.mustEval(t, `navigator.cookieEnabled`))
	assert.Equal(t, true, s.mustEval(t, `navigator.onLine`))
}
