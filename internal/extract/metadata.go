// File: internal/extract/metadata.go
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/lancet/api/schemas"
)

// Metadata pulls document-level metadata out of rendered HTML. Extraction is
// best effort: a page missing every tag yields an empty struct, never an
// error.
func Metadata(htmlSrc, pageURL string) *schemas.PageMetadata {
	meta := &schemas.PageMetadata{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return meta
	}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if v, ok := doc.Find("html").Attr("lang"); ok {
		meta.Lang = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		meta.Description = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		meta.Canonical = resolveRef(pageURL, v)
	}
	meta.OGTitle = metaContent(doc, "og:title")
	meta.OGDesc = metaContent(doc, "og:description")
	meta.OGImage = resolveRef(pageURL, metaContent(doc, "og:image"))
	return meta
}

// metaContent reads an Open Graph value from the property= form, falling
// back to the name= form pages commonly use instead.
func metaContent(doc *goquery.Document, key string) string {
	if v, ok := doc.Find(`meta[property="` + key + `"]`).Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="` + key + `"]`).Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// resolveRef makes ref absolute against base, returning ref untouched when
// either side does not parse.
func resolveRef(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
