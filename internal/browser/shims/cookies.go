// File: internal/browser/shims/cookies.go
package shims

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// cookieJar is the per-execution document.cookie store. Attributes other
// than expiry are accepted and ignored; nothing leaves the sandbox.
type cookieJar struct {
	order []string
	vals  map[string]string
}

func newCookieJar() *cookieJar {
	return &cookieJar{vals: make(map[string]string)}
}

func (j *cookieJar) serialize() string {
	parts := make([]string, 0, len(j.order))
	for _, name := range j.order {
		parts = append(parts, name+"="+j.vals[name])
	}
	return strings.Join(parts, "; ")
}

func (j *cookieJar) set(name, value string) {
	if _, exists := j.vals[name]; !exists {
		j.order = append(j.order, name)
	}
	j.vals[name] = value
}

func (j *cookieJar) remove(name string) {
	if _, exists := j.vals[name]; !exists {
		return
	}
	delete(j.vals, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			return
		}
	}
}

// apply parses one document.cookie assignment. An expiry in the past or a
// non-positive Max-Age deletes the cookie.
func (j *cookieJar) apply(raw string, now time.Time) bool {
	segments := strings.Split(raw, ";")
	first := strings.TrimSpace(segments[0])
	eq := strings.Index(first, "=")
	if eq <= 0 {
		return false
	}
	name := strings.TrimSpace(first[:eq])
	value := strings.TrimSpace(first[eq+1:])

	expired := false
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		lower := strings.ToLower(seg)
		switch {
		case strings.HasPrefix(lower, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimSpace(seg[len("max-age="):])); err == nil && secs <= 0 {
				expired = true
			}
		case strings.HasPrefix(lower, "expires="):
			if t, err := http.ParseTime(strings.TrimSpace(seg[len("expires="):])); err == nil && t.Before(now) {
				expired = true
			}
		}
	}
	if expired {
		j.remove(name)
		return true
	}
	j.set(name, value)
	return true
}

// installCookies wires document.cookie to a fresh jar, seeded from the
// document response's Set-Cookie values. Seeding is host work and does not
// count as page activity.
func installCookies(e *Env, _ *goja.Object) error {
	jar := newCookieJar()
	now := time.Now()
	for _, raw := range e.SetCookies {
		jar.apply(raw, now)
	}
	e.Bridge.DefineDocumentAccessor("cookie",
		func() goja.Value { return e.VM.ToValue(jar.serialize()) },
		func(v goja.Value) {
			if jar.apply(v.String(), time.Now()) {
				e.Metrics.StorageWrites.Add(1)
				e.Tracker.Note()
			}
		},
	)
	return nil
}
