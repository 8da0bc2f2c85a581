// File: internal/browser/engine/sandbox_test.go
package engine

import (
	"testing"
	"time"

	"github.com/dop251/goja"
	gojarequire "github.com/dop251/goja_nodejs/require"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapGlobalsAliasesWindow(t *testing.T) {
	vm := goja.New()
	// Production runtimes come from eventloop.NewEventLoop, which enables a
	// require registry before bootstrapGlobals runs; url.Enable depends on it.
	new(gojarequire.Registry).Enable(vm)
	window, err := bootstrapGlobals(vm)
	require.NoError(t, err)
	require.NotNil(t, window)

	v, err := vm.RunString(`window === self && self === top && top === parent && typeof URL === 'function'`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())

	v, err = vm.RunString(`typeof Window === 'function' && window instanceof Window && globalThis === window`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())

	_, err = vm.RunString(`new Window()`)
	require.Error(t, err, "Window is not constructible by page code")
}

func TestWatchdogInterruptsARunningScript(t *testing.T) {
	vm := goja.New()
	dog := newWatchdog(vm, budgetReason)
	dog.arm(20 * time.Millisecond)

	_, err := vm.RunString(`for (;;) {}`)
	require.Error(t, err)
	assert.True(t, isInterrupt(err))
	assert.True(t, dog.expired())
	assert.True(t, dog.disarm())
	vm.ClearInterrupt()

	// The runtime works again once the flag is cleared.
	v, err := vm.RunString(`1 + 1`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestWatchdogDisarmPreventsTheInterrupt(t *testing.T) {
	vm := goja.New()
	dog := newWatchdog(vm, budgetReason)
	dog.arm(time.Hour)

	assert.False(t, dog.disarm())
	assert.False(t, dog.expired())

	v, err := vm.RunString(`'still alive'`)
	require.NoError(t, err)
	assert.Equal(t, "still alive", v.String())
}

func TestWatchdogNonPositiveDelayTripsImmediately(t *testing.T) {
	vm := goja.New()
	dog := newWatchdog(vm, budgetReason)
	dog.arm(-time.Second)

	assert.True(t, dog.expired())
	_, err := vm.RunString(`1`)
	require.Error(t, err)
	assert.True(t, isInterrupt(err))
	vm.ClearInterrupt()
}
