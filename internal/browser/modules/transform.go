// File: internal/browser/modules/transform.go

// Package modules loads ES modules for the sandbox: specifier resolution,
// fetching, esbuild lowering to CommonJS, and cached evaluation. Evaluation
// is synchronous on the loop goroutine; a module graph with slow imports
// blocks the loop for as long as its fetch budget allows.
package modules

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Transformer lowers ES module syntax to CommonJS so the loader can evaluate
// it in a function wrapper. Stateless and safe for concurrent use.
type Transformer struct{}

// NewTransformer returns the esbuild-backed transformer.
func NewTransformer() *Transformer { return &Transformer{} }

// Transform compiles one module source. name appears in error messages and
// stack traces. Top-level await is unsupported in the CommonJS output and
// surfaces here as a transform error.
func (t *Transformer) Transform(src, name string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderJS,
		Format:     api.FormatCommonJS,
		Target:     api.ES2017,
		Platform:   api.PlatformBrowser,
		Sourcefile: name,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("module transform failed: %s", formatMessages(result.Errors))
	}
	return string(result.Code), nil
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
