// File: internal/render/scripts.go
package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// Script types that execute. An empty or absent type means classic JS; data
// blocks (JSON-LD and friends) and custom template types never run.
var executableTypes = map[string]bool{
	"":                         true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"application/ecmascript":   true,
	"text/ecmascript":          true,
	"module":                   true,
}

// DiscoverScripts walks the document and returns one descriptor per
// executable script element, in document order. Async and defer are recorded
// for diagnostics; execution order stays the document order either way.
func DiscoverScripts(htmlSrc string) []schemas.ScriptDescriptor {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	var scripts []schemas.ScriptDescriptor
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typeAttr := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if !executableTypes[typeAttr] {
			return
		}

		desc := schemas.ScriptDescriptor{Order: len(scripts)}
		if typeAttr == "module" {
			desc.Kind = schemas.ScriptModule
		}
		_, desc.Async = s.Attr("async")
		_, desc.Defer = s.Attr("defer")

		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			desc.URL = src
			if desc.Kind != schemas.ScriptModule {
				desc.Kind = schemas.ScriptExternal
			}
		} else {
			source := s.Text()
			if strings.TrimSpace(source) == "" {
				return
			}
			desc.Source = source
			if desc.Kind != schemas.ScriptModule {
				desc.Kind = schemas.ScriptInline
			}
		}
		scripts = append(scripts, desc)
	})
	return scripts
}
