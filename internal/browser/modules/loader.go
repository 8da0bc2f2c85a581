// File: internal/browser/modules/loader.go
package modules

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/activity"
)

// FetchFunc retrieves module source on behalf of the loader.
type FetchFunc func(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error)

type moduleState int

const (
	stateLoading moduleState = iota
	stateLoaded
	stateFailed
)

// moduleRecord caches one module's outcome. Records enter the cache before
// evaluation starts, so import cycles observe the partial exports object
// instead of recursing forever.
type moduleRecord struct {
	state   moduleState
	module  *goja.Object
	exports goja.Value
	err     error
}

// Config carries the loader's host wiring.
type Config struct {
	VM          *goja.Runtime
	Log         *zap.Logger
	Tracker     *activity.Tracker
	Fetch       FetchFunc
	Transformer *Transformer
	// Ctx bounds all module fetches.
	Ctx context.Context
	// Deadline is the execution deadline; each fetch gets the smaller of
	// FetchCeiling and the time remaining.
	Deadline     time.Time
	FetchCeiling time.Duration
	// DocBase resolves imports of inline root modules.
	DocBase *url.URL
}

// Loader evaluates module scripts and their static import graphs. Confined
// to the loop goroutine; module fetches block the loop.
type Loader struct {
	cfg   Config
	cache map[string]*moduleRecord
	// inlineSeq names inline root modules for stack traces and caching.
	inlineSeq int
}

// NewLoader builds a loader for one execution.
func NewLoader(cfg Config) *Loader {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	if cfg.FetchCeiling <= 0 {
		cfg.FetchCeiling = 10 * time.Second
	}
	return &Loader{cfg: cfg, cache: make(map[string]*moduleRecord)}
}

// EvaluateRoot runs one module script descriptor: inline source evaluates
// against the document base, external modules are fetched first.
func (l *Loader) EvaluateRoot(desc schemas.ScriptDescriptor) error {
	if desc.Kind != schemas.ScriptModule {
		return fmt.Errorf("descriptor %d is not a module script", desc.Order)
	}
	if desc.URL != "" {
		resolved, err := l.resolveAgainst(desc.URL, l.cfg.DocBase)
		if err != nil {
			return err
		}
		_, err = l.load(resolved)
		return err
	}

	l.inlineSeq++
	name := fmt.Sprintf("%s#module-%d", l.cfg.DocBase.String(), l.inlineSeq)
	_, err := l.evaluate(name, l.cfg.DocBase, desc.Source)
	return err
}

// EvaluateFetched runs already-fetched source as the module at rawURL, so a
// classic script that turns out to use module syntax can be re-run without a
// second network round trip. Imports resolve against the script's own URL.
func (l *Loader) EvaluateFetched(rawURL, src string) error {
	resolved, err := l.resolveAgainst(rawURL, l.cfg.DocBase)
	if err != nil {
		return err
	}
	key := resolved.String()
	if rec, ok := l.cache[key]; ok {
		// Already evaluated under this URL; never run a module twice.
		if rec.state == stateFailed {
			return rec.err
		}
		return nil
	}
	_, err = l.evaluate(key, resolved, src)
	return err
}

// load returns the exports of the module at abs, fetching and evaluating it
// on first use.
func (l *Loader) load(abs *url.URL) (goja.Value, error) {
	key := abs.String()
	if rec, ok := l.cache[key]; ok {
		switch rec.state {
		case stateFailed:
			return nil, rec.err
		default:
			// Loading means a cycle; hand back the partial exports.
			return rec.currentExports(), nil
		}
	}

	src, err := l.fetchSource(key)
	if err != nil {
		l.cache[key] = &moduleRecord{state: stateFailed, err: err}
		return nil, err
	}
	return l.evaluate(key, abs, src)
}

// evaluate transforms and runs module source. The record is cached before
// the wrapped function executes.
func (l *Loader) evaluate(key string, base *url.URL, src string) (goja.Value, error) {
	if l.cfg.Transformer == nil {
		err := schemas.NewEnvironmentError("module", "module transformer unavailable", nil)
		l.cache[key] = &moduleRecord{state: stateFailed, err: err}
		return nil, err
	}

	code, err := l.cfg.Transformer.Transform(src, key)
	if err != nil {
		l.cache[key] = &moduleRecord{state: stateFailed, err: err}
		return nil, err
	}

	vm := l.cfg.VM
	exports := vm.NewObject()
	module := vm.NewObject()
	_ = module.Set("exports", exports)
	rec := &moduleRecord{state: stateLoading, module: module, exports: exports}
	l.cache[key] = rec

	fail := func(err error) (goja.Value, error) {
		rec.state = stateFailed
		rec.err = err
		return nil, err
	}

	wrapped := "(function(exports, require, module) {\n" + code + "\n})"
	prog, err := goja.Compile(key, wrapped, false)
	if err != nil {
		return fail(fmt.Errorf("module %s failed to compile: %w", key, err))
	}
	fnVal, err := vm.RunProgram(prog)
	if err != nil {
		return fail(fmt.Errorf("module %s wrapper failed: %w", key, err))
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return fail(fmt.Errorf("module %s wrapper is not callable", key))
	}

	importerBase := baseOf(base, key)
	if _, err := fn(goja.Undefined(), exports, l.requireFor(importerBase), module); err != nil {
		return fail(fmt.Errorf("module %s threw: %w", key, err))
	}

	rec.state = stateLoaded
	rec.exports = module.Get("exports")
	return rec.exports, nil
}

// requireFor builds the require function handed to a module; specifiers
// resolve against that module's own URL.
func (l *Loader) requireFor(base *url.URL) goja.Value {
	vm := l.cfg.VM
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		resolved, err := l.resolveAgainst(spec, base)
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		exports, err := l.load(resolved)
		if err != nil {
			panic(vm.NewTypeError(fmt.Sprintf("failed to import %q: %v", spec, err)))
		}
		if exports == nil {
			return goja.Undefined()
		}
		return exports
	})
}

// resolveAgainst resolves an import specifier. Bare specifiers have no
// resolution algorithm here and are rejected.
func (l *Loader) resolveAgainst(spec string, base *url.URL) (*url.URL, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty module specifier")
	}
	ref, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid module specifier %q: %w", spec, err)
	}
	if !ref.IsAbs() && !strings.HasPrefix(spec, "/") && !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return nil, fmt.Errorf("bare module specifier %q is not supported", spec)
	}
	if base == nil {
		if ref.IsAbs() {
			return ref, nil
		}
		return nil, fmt.Errorf("relative module specifier %q has no base", spec)
	}
	return base.ResolveReference(ref), nil
}

// fetchSource retrieves module code, bracketing the tracker so the settle
// logic sees the load as pending activity.
func (l *Loader) fetchSource(abs string) (string, error) {
	if l.cfg.Fetch == nil {
		return "", fmt.Errorf("module %s: network access unavailable", abs)
	}
	if l.cfg.Tracker != nil {
		l.cfg.Tracker.ScriptLoadStarted()
		defer l.cfg.Tracker.ScriptLoadFinished()
	}

	budget := l.cfg.FetchCeiling
	if !l.cfg.Deadline.IsZero() {
		remaining := time.Until(l.cfg.Deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("module %s: execution budget exhausted", abs)
		}
		if remaining < budget {
			budget = remaining
		}
	}
	ctx, cancel := context.WithTimeout(l.cfg.Ctx, budget)
	defer cancel()

	started := time.Now()
	resp, err := l.cfg.Fetch(ctx, schemas.FetchRequest{URL: abs, Method: "GET"})
	if err != nil {
		return "", fmt.Errorf("module %s fetch failed: %w", abs, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("module %s fetch returned status %d", abs, resp.Status)
	}
	l.cfg.Log.Debug("Fetched module",
		zap.String("url", abs),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("elapsed", time.Since(started)))
	return string(resp.Body), nil
}

// baseOf derives the URL imports resolve against. Inline roots use the
// document base carried in base; fetched modules use their own URL.
func baseOf(base *url.URL, key string) *url.URL {
	if parsed, err := url.Parse(key); err == nil && parsed.IsAbs() && !strings.Contains(key, "#module-") {
		return parsed
	}
	return base
}

func (r *moduleRecord) currentExports() goja.Value {
	if r.module != nil {
		return r.module.Get("exports")
	}
	return r.exports
}
