// File: internal/browser/shims/cookies_test.go
package shims

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentCookieRoundTrip(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	assert.Equal(t, "", s.mustEval(t, `document.cookie`))

	s.mustEval(t, `document.cookie = 'a=1'`)
	s.mustEval(t, `document.cookie = 'b=2; path=/; SameSite=Lax'`)
	assert.Equal(t, "a=1; b=2", s.mustEval(t, `document.cookie`))

	// Overwriting keeps the original position.
	s.mustEval(t, `document.cookie = 'a=9'`)
	assert.Equal(t, "a=9; b=2", s.mustEval(t, `document.cookie`))
}

func TestDocumentCookieExpiryDeletes(t *testing.T) {
	s := newSandbox(t, defaultOptions(), nil)

	s.mustEval(t, `document.cookie = 'gone=soon'`)
	s.mustEval(t, `document.cookie = 'kept=yes'`)
	s.mustEval(t, `document.cookie = 'gone=; Max-Age=0'`)

	assert.Equal(t, "kept=yes", s.mustEval(t, `document.cookie`))
}

func TestCookieJarAppliesAttributes(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	jar := newCookieJar()

	assert.True(t, jar.apply("sid=abc123; Path=/; HttpOnly", now))
	assert.Equal(t, "sid=abc123", jar.serialize())

	assert.True(t, jar.apply("sid=refreshed; Secure", now))
	assert.Equal(t, "sid=refreshed", jar.serialize())

	assert.True(t, jar.apply("old=x; Expires=Thu, 01 Jan 1970 00:00:00 GMT", now))
	assert.Equal(t, "sid=refreshed", jar.serialize())

	assert.True(t, jar.apply("future=y; Expires=Fri, 01 Jan 2100 00:00:00 GMT", now))
	assert.Equal(t, "sid=refreshed; future=y", jar.serialize())
}

func TestCookieJarRejectsMalformedInput(t *testing.T) {
	jar := newCookieJar()

	assert.False(t, jar.apply("not-a-cookie", time.Now()))
	assert.False(t, jar.apply("=bare", time.Now()))
	assert.Equal(t, "", jar.serialize())
}

func TestCookieJarMaxAgeDeletesPastAndKeepsFuture(t *testing.T) {
	jar := newCookieJar()
	now := time.Now()

	jar.apply("keep=1; Max-Age=3600", now)
	jar.apply("drop=1", now)
	jar.apply("drop=1; Max-Age=-5", now)

	assert.Equal(t, "keep=1", jar.serialize())
}
