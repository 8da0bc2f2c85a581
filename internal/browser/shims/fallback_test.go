// File: internal/browser/shims/fallback_test.go
package shims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/api/schemas"
)

func permissiveOptions() schemas.ExecutionOptions {
	opts := defaultOptions()
	opts.PermissiveShims = true
	return opts
}

func TestBase64Helpers(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	assert.Equal(t, "aGVsbG8=", s.mustEval(t, `btoa('hello')`))
	assert.Equal(t, "hello", s.mustEval(t, `atob('aGVsbG8=')`))
	assert.Equal(t, "hello", s.mustEval(t, `atob('aGVsbG8')`))

	_, err := s.eval(`atob('%%%')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base64")

	_, err = s.eval(`btoa(String.fromCharCode(0x2603))`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Latin1")
}

func TestTextCodecsRoundTrip(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	v := s.mustEval(t, `
		var enc = new TextEncoder();
		var dec = new TextDecoder();
		dec.decode(enc.encode('héllo wörld'));
	`)
	assert.Equal(t, "héllo wörld", v)

	assert.Equal(t, "utf-8", s.mustEval(t, `new TextEncoder().encoding`))
	assert.Equal(t, int64(2), s.mustEval(t, `new TextEncoder().encode('é').length`))
}

func TestStructuredCloneCopiesDeeply(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	v := s.mustEval(t, `
		var orig = { nested: { n: 1 }, list: [1, 2] };
		var copy = structuredClone(orig);
		copy.nested.n = 99;
		orig.nested.n;
	`)
	assert.Equal(t, int64(1), v)

	_, err := s.eval(`
		var cyc = {};
		cyc.self = cyc;
		structuredClone(cyc);
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be cloned")
}

func TestCryptoPrimitives(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	v := s.mustEval(t, `
		var arr = new Uint8Array(16);
		crypto.getRandomValues(arr);
		var ok = arr.length === 16;
		var anyNonZero = false;
		for (var i = 0; i < arr.length; i++) {
			if (arr[i] !== 0) { anyNonZero = true; }
			if (arr[i] < 0 || arr[i] > 255) { ok = false; }
		}
		ok && anyNonZero;
	`)
	assert.Equal(t, true, v)

	uuidOK := s.mustEval(t, `/^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$/.test(crypto.randomUUID())`)
	assert.Equal(t, true, uuidOK)
}

func TestPermissiveStubsAreGated(t *testing.T) {
	bare := newSandbox(t, defaultOptions(), nil)
	assert.Equal(t, "undefined", bare.mustEval(t, `typeof matchMedia`))
	assert.Equal(t, "undefined", bare.mustEval(t, `typeof IntersectionObserver`))

	s := newSandbox(t, permissiveOptions(), nil)
	assert.Equal(t, false, s.mustEval(t, `matchMedia('(min-width: 600px)').matches`))
	assert.Equal(t, "(min-width: 600px)", s.mustEval(t, `matchMedia('(min-width: 600px)').media`))
	assert.Equal(t, "", s.mustEval(t, `getComputedStyle(document.body).getPropertyValue('color')`))

	v := s.mustEval(t, `
		var seen = [];
		var io = new IntersectionObserver(function() {});
		io.observe(document.body);
		io.disconnect();
		io.takeRecords().length;
	`)
	assert.Equal(t, int64(0), v)
}

func TestPermissiveWindowStubs(t *testing.T) {
	s := newSandbox(t, permissiveOptions(), nil)

	assert.Equal(t, false, s.mustEval(t, `confirm('sure?')`))
	assert.Equal(t, true, s.mustEval(t, `prompt('name?') === null`))
	assert.Equal(t, true, s.mustEval(t, `window.open('https://popup.test') === null`))
	assert.EqualValues(t, 1, s.metrics.NavigationAttempts.Load())

	assert.Equal(t, int64(3), s.mustEval(t, `new WebSocket('wss://feed.test').readyState`))
	assert.Equal(t, "IMG", s.mustEval(t, `new Image(10, 20).tagName`))
	assert.Equal(t, "AUDIO", s.mustEval(t, `new Audio().tagName`))
}

func TestPermissiveEnablesLayoutStubsOnElements(t *testing.T) {
	s := newSandbox(t, permissiveOptions(), nil)

	v := s.mustEval(t, `
		var el = document.getElementById('out');
		var rect = el.getBoundingClientRect();
		rect.width === 0 && el.offsetHeight === 0;
	`)
	assert.Equal(t, true, v)
}
