// File: internal/browser/engine/engine.go

// Package engine executes discovered scripts against a fetched document in
// an isolated goja runtime and returns a best-effort DOM snapshot. One
// Execute call builds one event loop, one runtime, one DOM bridge, and one
// shim surface; nothing is shared between calls. A page script that throws
// never fails the run: script problems are recorded on the result and
// execution continues with whatever state the page reached.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/activity"
	"github.com/xkilldash9x/lancet/internal/browser/dom"
	"github.com/xkilldash9x/lancet/internal/browser/modules"
	"github.com/xkilldash9x/lancet/internal/browser/settle"
	"github.com/xkilldash9x/lancet/internal/browser/shims"
)

const (
	// budgetReason is the interrupt value the main watchdog plants.
	budgetReason = "execution budget exceeded"
	// graceReason is the interrupt value for the post-settle grace window.
	graceReason = "lifecycle grace exceeded"

	// scriptFetchCeiling caps any single external classic script download.
	scriptFetchCeiling = 10 * time.Second
	// lifecycleGrace bounds the post-settle lifecycle and serialization work.
	lifecycleGrace = 2 * time.Second
	// teardownWait bounds the final drain of the loop during teardown.
	teardownWait = 2 * time.Second
)

// Config wires an Engine. Fetch serves every network request the sandbox
// makes: external scripts, module graphs, fetch, and XHR. A nil Fetch
// degrades all of those to recorded errors instead of failing the run.
type Config struct {
	Log       *zap.Logger
	Fetch     shims.FetchFunc
	UserAgent string
	Language  string
}

// Engine runs sandboxed executions. Safe for concurrent use; every call
// gets its own loop and runtime.
type Engine struct {
	log       *zap.Logger
	fetch     shims.FetchFunc
	userAgent string
	language  string
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:       log.Named("engine"),
		fetch:     cfg.Fetch,
		userAgent: cfg.UserAgent,
		language:  cfg.Language,
	}
}

// Execute runs one request to completion: bootstrap the sandbox, execute
// the discovered scripts in document order, wait for the page to settle,
// fire the document lifecycle, and serialize the DOM. The error return is
// reserved for environment failures where no sandbox could be built;
// script throws and timeouts are reported inside the result.
func (e *Engine) Execute(ctx context.Context, req *schemas.ExecutionRequest) (*schemas.ExecutionResult, error) {
	opts := req.Options
	opts.Normalize()

	start := time.Now()
	deadline := resolveDeadline(ctx, req, opts, start)
	log := e.log.With(zap.String("url", req.FinalURL))

	if !opts.ExecuteScripts {
		log.Debug("Script execution disabled; returning document unchanged")
		return &schemas.ExecutionResult{Snapshot: req.HTML}, nil
	}

	x := &execution{
		engine:   e,
		log:      log,
		req:      req,
		opts:     opts,
		start:    start,
		deadline: deadline,
		loop:     newLoop(),
		tracker:  activity.NewTracker(time.Now),
		console:  shims.NewCollector(time.Now),
		metrics:  &shims.Metrics{},
		sink:     newErrorSink(),
		rejected: make(map[*goja.Promise]string),
	}
	return x.run(ctx)
}

// resolveDeadline picks the hard stop for one call: an explicit request
// deadline wins, otherwise the smaller of the script timeout and the total
// budget; a context deadline caps everything.
func resolveDeadline(ctx context.Context, req *schemas.ExecutionRequest, opts schemas.ExecutionOptions, start time.Time) time.Time {
	deadline := req.Deadline
	if deadline.IsZero() {
		budget := opts.Timeout
		if req.TotalBudget > 0 && req.TotalBudget < budget {
			budget = req.TotalBudget
		}
		deadline = start.Add(budget)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

// execution is the per-call state. The loop goroutine owns vm, bridge,
// registry, loader, and the rejected map; the remaining fields are safe
// from the engine goroutine.
type execution struct {
	engine   *Engine
	log      *zap.Logger
	req      *schemas.ExecutionRequest
	opts     schemas.ExecutionOptions
	start    time.Time
	deadline time.Time

	loop    *eventloop.EventLoop
	tracker *activity.Tracker
	console *shims.Collector
	metrics *shims.Metrics
	sink    *errorSink

	vm       *goja.Runtime
	bridge   *dom.Bridge
	registry *shims.Registry
	loader   *modules.Loader
	env      *shims.Env

	// rejected maps promises rejected without a handler to their reason;
	// entries are removed again when a handler attaches late.
	rejected map[*goja.Promise]string
}

func (x *execution) run(ctx context.Context) (*schemas.ExecutionResult, error) {
	x.loop.Start()
	defer x.teardown()

	// Every fetch the sandbox starts inherits this context, so nothing in
	// flight outlives the call; cancellation runs before teardown drains
	// the loop.
	ctx, cancel := context.WithDeadline(ctx, x.deadline)
	defer cancel()

	if err := x.bootstrap(ctx); err != nil {
		return nil, err
	}

	dog := newWatchdog(x.vm, budgetReason)
	dog.arm(time.Until(x.deadline))

	x.sink.setStage(schemas.StageScript)
	x.runScripts(ctx, dog)

	x.sink.setStage(schemas.StageWait)
	settled := settle.Wait(ctx, settle.Params{
		Strategy:     x.opts.WaitStrategy,
		Deadline:     x.deadline,
		IdleTime:     x.opts.IdleTime,
		PollInterval: x.opts.PollInterval,
		Snapshot:     x.tracker.Snapshot,
	})

	// The main watchdog may have fired during the scripts or the wait. The
	// interrupt flag is sticky, so clear it and give the closing work its
	// own short leash.
	interrupted := dog.disarm()
	x.vm.ClearInterrupt()

	snapshot, history := x.finish()

	result := &schemas.ExecutionResult{
		Snapshot:       snapshot,
		ConsoleEntries: x.console.Entries(),
		EngineErrors:   x.sink.list(),
		History:        history,
		TimedOut:       settled.TimedOut || interrupted,
	}

	m := x.metrics.Snapshot()
	x.log.Debug("Execution finished",
		zap.Bool("timedOut", result.TimedOut),
		zap.Duration("elapsed", time.Since(x.start)),
		zap.Int("consoleEntries", len(result.ConsoleEntries)),
		zap.Int("engineErrors", len(result.EngineErrors)),
		zap.Int64("timersFired", m.TimersFired),
		zap.Int64("fetchCalls", m.FetchCalls),
		zap.Int64("xhrCalls", m.XHRCalls),
		zap.Int64("domMutations", m.DOMMutations))
	return result, nil
}

// bootstrap builds the runtime surface on the loop goroutine: globals, DOM
// bridge, shims, rejection tracker, and module loader. A failure here is
// fatal to the call; no page code has run yet.
func (x *execution) bootstrap(ctx context.Context) error {
	errCh := make(chan error, 1)
	posted := x.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- x.buildSandbox(ctx, vm)
	})
	if !posted {
		return schemas.NewEnvironmentError("bootstrap", "event loop unavailable", nil)
	}
	select {
	case err := <-errCh:
		if err != nil {
			return schemas.NewEnvironmentError("bootstrap", "sandbox construction failed", err)
		}
		return nil
	case <-time.After(time.Until(x.deadline) + lifecycleGrace):
		return &schemas.TimeoutError{Phase: "bootstrap", Budget: x.opts.Timeout}
	}
}

func (x *execution) buildSandbox(ctx context.Context, vm *goja.Runtime) error {
	x.vm = vm

	window, err := bootstrapGlobals(vm)
	if err != nil {
		return err
	}

	bridge, err := dom.NewBridge(vm, x.req.HTML, x.req.FinalURL, x.log, dom.Hooks{
		Schedule: func(fn func()) {
			x.loop.RunOnLoop(func(*goja.Runtime) { fn() })
		},
		OnActivity:  x.tracker.Note,
		ReportError: x.sink.record,
	})
	if err != nil {
		return err
	}
	if err := bridge.Bind(window); err != nil {
		return fmt.Errorf("failed to bind document: %w", err)
	}
	x.bridge = bridge

	x.registry = shims.NewRegistry(x.loop)
	env := &shims.Env{
		VM:          vm,
		Loop:        x.loop,
		Bridge:      bridge,
		Tracker:     x.tracker,
		Registry:    x.registry,
		Console:     x.console,
		Metrics:     x.metrics,
		Options:     x.opts,
		Log:         x.log,
		Ctx:         ctx,
		Fetch:       x.engine.fetch,
		UserAgent:   x.engine.userAgent,
		Language:    x.engine.language,
		SetCookies:  x.req.SetCookies,
		Start:       x.start,
		ReportError: x.sink.record,
	}
	if err := env.Install(); err != nil {
		return err
	}
	x.env = env

	vm.SetPromiseRejectionTracker(func(p *goja.Promise, op goja.PromiseRejectionOperation) {
		switch op {
		case goja.PromiseRejectionReject:
			x.rejected[p] = safeValueString(p.Result())
		case goja.PromiseRejectionHandle:
			delete(x.rejected, p)
		}
	})

	x.loader = modules.NewLoader(modules.Config{
		VM:          vm,
		Log:         x.log,
		Tracker:     x.tracker,
		Fetch:       modules.FetchFunc(x.engine.fetch),
		Transformer: modules.NewTransformer(),
		Ctx:         ctx,
		Deadline:    x.deadline,
		DocBase:     bridge.BaseURL(),
	})
	return nil
}

// runScripts executes the discovered scripts in document order. One failing
// script never stops the next; an interrupt or exhausted budget skips the
// remainder with a recorded marker.
func (x *execution) runScripts(ctx context.Context, dog *watchdog) {
	scripts := x.req.Scripts
	if len(scripts) > x.opts.MaxScripts {
		x.log.Warn("Truncating script list",
			zap.Int("discovered", len(scripts)),
			zap.Int("limit", x.opts.MaxScripts))
		x.sink.add("", fmt.Sprintf("script list truncated: executing %d of %d scripts",
			x.opts.MaxScripts, len(scripts)), "")
		scripts = scripts[:x.opts.MaxScripts]
	}

	for i, desc := range scripts {
		if dog.expired() || !time.Now().Before(x.deadline) {
			x.sink.add("", fmt.Sprintf("skipped %d remaining scripts: execution budget exhausted",
				len(scripts)-i), "")
			return
		}
		x.runScript(ctx, desc)
	}
}

// runScript executes one descriptor. External classic sources are fetched
// off the loop so timers keep firing during the download; module graphs are
// fetched by the loader on the loop.
func (x *execution) runScript(ctx context.Context, desc schemas.ScriptDescriptor) {
	src := desc.Source
	if desc.Kind == schemas.ScriptExternal {
		fetched, err := x.fetchScript(ctx, desc.URL)
		if err != nil {
			x.sink.add(desc.URL, err.Error(), "")
			x.log.Debug("External script fetch failed", zap.String("script", desc.URL), zap.Error(err))
			return
		}
		src = fetched
	}

	done := make(chan struct{})
	posted := x.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		x.executeDescriptor(desc, src)
	})
	if !posted {
		x.sink.add(desc.URL, "event loop terminated before script could run", "")
		return
	}
	select {
	case <-done:
	case <-time.After(time.Until(x.deadline) + lifecycleGrace):
		// The watchdog interrupt should have unwound the job by now; move
		// on and let teardown collect the loop.
		x.log.Warn("Script did not unwind after interrupt",
			zap.String("script", scriptName(desc, x.req.FinalURL)))
	}
}

// executeDescriptor runs one script on the loop goroutine.
func (x *execution) executeDescriptor(desc schemas.ScriptDescriptor, src string) {
	name := scriptName(desc, x.req.FinalURL)
	x.log.Debug("Executing script", zap.String("script", name), zap.String("kind", string(desc.Kind)))

	if desc.Kind == schemas.ScriptModule {
		if err := x.loader.EvaluateRoot(desc); err != nil {
			x.recordScriptError(desc.URL, err)
		}
		return
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		// Pages sometimes ship module syntax without type="module"; try the
		// module pipeline before reporting a parse failure.
		x.log.Debug("Classic script failed to parse; retrying as module",
			zap.String("script", name), zap.Error(err))
		x.retryAsModule(desc, src)
		return
	}
	if _, err := x.vm.RunProgram(prog); err != nil {
		x.recordScriptError(desc.URL, err)
	}
}

func (x *execution) retryAsModule(desc schemas.ScriptDescriptor, src string) {
	var err error
	if desc.URL != "" {
		err = x.loader.EvaluateFetched(desc.URL, src)
	} else {
		err = x.loader.EvaluateRoot(schemas.ScriptDescriptor{
			Kind:   schemas.ScriptModule,
			Source: src,
			Order:  desc.Order,
		})
	}
	if err != nil {
		x.recordScriptError(desc.URL, err)
	}
}

func (x *execution) recordScriptError(scriptURL string, err error) {
	message, stack := describeThrow(err)
	x.sink.add(scriptURL, message, stack)
	if isInterrupt(err) {
		x.log.Debug("Script interrupted", zap.String("script", scriptURL))
	}
}

// fetchScript downloads one external classic script, bracketed as pending
// script-load activity so networkidle waits for it.
func (x *execution) fetchScript(ctx context.Context, rawURL string) (string, error) {
	if x.engine.fetch == nil {
		return "", fmt.Errorf("cannot fetch script %s: network access unavailable", rawURL)
	}
	resolved, err := x.bridge.ResolveURL(rawURL)
	if err != nil {
		return "", err
	}

	x.tracker.ScriptLoadStarted()
	defer x.tracker.ScriptLoadFinished()

	budget := scriptFetchCeiling
	if remaining := time.Until(x.deadline); remaining < budget {
		budget = remaining
	}
	if budget <= 0 {
		return "", fmt.Errorf("cannot fetch script %s: execution budget exhausted", resolved)
	}
	fctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp, err := x.engine.fetch(fctx, schemas.FetchRequest{URL: resolved, Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("failed to fetch script %s: %w", resolved, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("script fetch %s returned status %d", resolved, resp.Status)
	}
	return string(resp.Body), nil
}

// finish runs the closing work on the loop: flush unhandled rejections,
// fire the document lifecycle, serialize the DOM, and export the session
// history. A fresh watchdog bounds the page's lifecycle listeners so a
// pathological load handler cannot wedge the call. Serialization failures
// fall back to the input document so the caller always gets markup.
func (x *execution) finish() (string, []schemas.HistoryState) {
	grace := newWatchdog(x.vm, graceReason)
	grace.arm(lifecycleGrace)
	defer func() {
		grace.disarm()
		x.vm.ClearInterrupt()
	}()

	type finished struct {
		snapshot string
		history  []schemas.HistoryState
		err      error
	}
	ch := make(chan finished, 1)
	posted := x.loop.RunOnLoop(func(vm *goja.Runtime) {
		x.flushRejections()
		synthesizeLifecycle(x.bridge, x.log)
		snap, err := x.bridge.Snapshot()
		var history []schemas.HistoryState
		if x.env != nil && x.env.History != nil {
			history = x.env.History()
		}
		ch <- finished{snapshot: snap, history: history, err: err}
	})
	if !posted {
		x.sink.record("serializing document", errors.New("event loop terminated"))
		return x.req.HTML, nil
	}

	select {
	case fin := <-ch:
		if fin.err != nil {
			x.sink.record("serializing document", fin.err)
			return x.req.HTML, fin.history
		}
		return fin.snapshot, fin.history
	case <-time.After(lifecycleGrace + time.Second):
		x.sink.record("serializing document", errors.New("lifecycle did not complete in time"))
		return x.req.HTML, nil
	}
}

// flushRejections files promises still rejected with no handler attached.
func (x *execution) flushRejections() {
	for _, reason := range x.rejected {
		x.sink.add("", "unhandled promise rejection: "+reason, "")
	}
	x.rejected = make(map[*goja.Promise]string)
}

// teardown stops page timers and the loop. The drain is bounded so a wedged
// job can never leak the call's goroutines past the timeout.
func (x *execution) teardown() {
	done := make(chan struct{})
	posted := x.loop.RunOnLoop(func(vm *goja.Runtime) {
		if x.registry != nil {
			x.registry.ClearAll()
		}
		vm.ClearInterrupt()
		close(done)
	})
	if posted {
		select {
		case <-done:
		case <-time.After(teardownWait):
			x.log.Warn("Teardown timed out waiting for the event loop")
		}
	}
	x.loop.Stop()
}

func scriptName(desc schemas.ScriptDescriptor, docURL string) string {
	if desc.URL != "" {
		return desc.URL
	}
	return fmt.Sprintf("%s#script-%d", docURL, desc.Order)
}
