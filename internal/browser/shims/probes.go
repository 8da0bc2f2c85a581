// File: internal/browser/shims/probes.go
package shims

import (
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const probeSampleInterval = time.Second

// installProbes turns on the debug instrumentation: per-operation DOM
// mutation logging and a periodic activity sample. The sampler is registered
// with the timer registry so teardown cancels it with everything else.
func installProbes(e *Env, _ *goja.Object) error {
	if !e.Options.DebugProbes {
		return nil
	}
	log := e.Log.Named("probes")

	e.Bridge.SetMutationHook(func(op string) {
		e.Metrics.DOMMutations.Add(1)
		log.Debug("DOM mutation", zap.String("op", op))
	})

	iv := e.Loop.SetInterval(func(*goja.Runtime) {
		m := e.Metrics.Snapshot()
		act := e.Tracker.Snapshot()
		log.Debug("Sandbox activity sample",
			zap.Int64("timersScheduled", m.TimersScheduled),
			zap.Int64("timersFired", m.TimersFired),
			zap.Int64("fetchCalls", m.FetchCalls),
			zap.Int64("xhrCalls", m.XHRCalls),
			zap.Int64("domMutations", m.DOMMutations),
			zap.Int64("listenersAdded", m.ListenersAdded),
			zap.Int64("storageWrites", m.StorageWrites),
			zap.Int64("consoleCalls", m.ConsoleCalls),
			zap.Int64("navigationAttempts", m.NavigationAttempts),
			zap.Int64("pendingFetches", act.PendingFetches),
			zap.Int64("pendingScriptLoads", act.PendingScriptLoads),
			zap.Time("lastActivity", act.LastActivity))
	}, probeSampleInterval)
	e.Registry.AddInterval(iv)
	return nil
}
