// File: internal/browser/modules/transform_test.go
package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformLowersImportsToRequire(t *testing.T) {
	tr := NewTransformer()

	code, err := tr.Transform(`import { a } from './x.js'; export const b = a + 1;`, "https://mods.test/m.js")
	require.NoError(t, err)
	assert.Contains(t, code, `require("./x.js")`)
	assert.NotContains(t, code, "import ")
}

func TestTransformWiresExportsObject(t *testing.T) {
	tr := NewTransformer()

	code, err := tr.Transform(`export function greet() { return 'hi'; }`, "https://mods.test/m.js")
	require.NoError(t, err)
	assert.Contains(t, code, "module.exports")
	assert.Contains(t, code, "greet")
}

func TestTransformPassesPlainCodeThrough(t *testing.T) {
	tr := NewTransformer()

	code, err := tr.Transform(`var answer = 42;`, "https://mods.test/m.js")
	require.NoError(t, err)
	assert.Contains(t, code, "var answer = 42")
}

func TestTransformReportsSyntaxErrors(t *testing.T) {
	tr := NewTransformer()

	_, err := tr.Transform(`export {`, "https://mods.test/broken.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module transform failed")
}

func TestTransformRejectsTopLevelAwait(t *testing.T) {
	tr := NewTransformer()

	_, err := tr.Transform(`const v = await Promise.resolve(1);`, "https://mods.test/tla.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module transform failed")
}

func TestTransformLowersModernSyntaxForTheInterpreter(t *testing.T) {
	tr := NewTransformer()

	// Optional chaining and nullish coalescing postdate the ES2017 target,
	// so the output must not contain them verbatim.
	code, err := tr.Transform(`export const v = globalThis?.missing ?? 'fallback';`, "https://mods.test/m.js")
	require.NoError(t, err)
	assert.NotContains(t, code, "?.")
	assert.NotContains(t, code, "??")
}
