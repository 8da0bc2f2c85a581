// File: internal/browser/shims/storage_test.go
package shims

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalStorageItemLifecycle(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `localStorage.setItem('alpha', '1')`)
	s.mustEval(t, `localStorage.setItem('beta', '2')`)

	assert.Equal(t, "1", s.mustEval(t, `localStorage.getItem('alpha')`))
	assert.Equal(t, int64(2), s.mustEval(t, `localStorage.length`))
	assert.Equal(t, "alpha", s.mustEval(t, `localStorage.key(0)`))
	assert.Equal(t, "beta", s.mustEval(t, `localStorage.key(1)`))
	assert.Equal(t, true, s.mustEval(t, `localStorage.key(9) === null`))
	assert.Equal(t, true, s.mustEval(t, `localStorage.getItem('missing') === null`))

	s.mustEval(t, `localStorage.removeItem('alpha')`)
	assert.Equal(t, true, s.mustEval(t, `localStorage.getItem('alpha') === null`))
	assert.Equal(t, "beta", s.mustEval(t, `localStorage.key(0)`))

	s.mustEval(t, `localStorage.clear()`)
	assert.Equal(t, int64(0), s.mustEval(t, `localStorage.length`))

	assert.Positive(t, s.metrics.StorageWrites.Load())
}

func TestStoragePropertyStyleAccess(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `localStorage.token = 'secret'`)
	assert.Equal(t, "secret", s.mustEval(t, `localStorage.getItem('token')`))
	assert.Equal(t, "secret", s.mustEval(t, `localStorage.token`))
	assert.Equal(t, true, s.mustEval(t, `'token' in localStorage`))

	s.mustEval(t, `delete localStorage.token`)
	assert.Equal(t, true, s.mustEval(t, `localStorage.getItem('token') === null`))
}

func TestStorageValuesAreStringified(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `localStorage.setItem('n', 42)`)
	assert.Equal(t, "42", s.mustEval(t, `localStorage.getItem('n')`))
	assert.Equal(t, "string", s.mustEval(t, `typeof localStorage.getItem('n')`))
}

func TestSessionStorageIsIndependent(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `localStorage.setItem('shared', 'local')`)
	s.mustEval(t, `sessionStorage.setItem('shared', 'session')`)

	assert.Equal(t, "local", s.mustEval(t, `localStorage.getItem('shared')`))
	assert.Equal(t, "session", s.mustEval(t, `sessionStorage.getItem('shared')`))

	s.mustEval(t, `sessionStorage.clear()`)
	assert.Equal(t, "local", s.mustEval(t, `localStorage.getItem('shared')`))
}

func TestStorageKeysEnumerate(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `
		localStorage.setItem('one', '1');
		localStorage.setItem('two', '2');
	`)
	assert.Equal(t, "one,two", s.mustEval(t, `Object.keys(localStorage).join(',')`))
}
