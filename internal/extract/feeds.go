// File: internal/extract/feeds.go
package extract

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet/api/schemas"
)

const (
	FeedTypeRSS  = "rss"
	FeedTypeAtom = "atom"
	FeedTypeJSON = "json"
)

var feedMIMETypes = map[string]string{
	"application/rss+xml":   FeedTypeRSS,
	"application/atom+xml":  FeedTypeAtom,
	"application/feed+json": FeedTypeJSON,
	"application/json":      FeedTypeJSON,
}

// Path suffixes that usually point at a feed when they show up in anchors.
var feedPathHints = []string{
	"/feed", "/feed/", "/rss", "/rss/", "/atom",
	"/feed.xml", "/rss.xml", "/atom.xml", "/index.xml", "/feed.json",
}

// DiscoverFeeds finds syndication feed candidates in rendered HTML:
// `<link rel="alternate">` declarations first, then common anchor path
// patterns. Candidates come back absolute, deduplicated, in document order.
func DiscoverFeeds(htmlSrc, pageURL string) []schemas.FeedRef {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}

	var feeds []schemas.FeedRef
	seen := make(map[string]bool)
	add := func(ref schemas.FeedRef) {
		if ref.URL == "" || seen[ref.URL] {
			return
		}
		seen[ref.URL] = true
		feeds = append(feeds, ref)
	}

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		kind, known := feedMIMETypes[strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))]
		if !known {
			return
		}
		add(schemas.FeedRef{
			URL:   resolveRef(pageURL, href),
			Type:  kind,
			Title: strings.TrimSpace(s.AttrOr("title", "")),
		})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		abs := resolveRef(pageURL, href)
		u, err := url.Parse(abs)
		if err != nil {
			return
		}
		p := strings.ToLower(u.Path)
		for _, hint := range feedPathHints {
			if strings.HasSuffix(p, hint) {
				add(schemas.FeedRef{URL: abs, Type: guessTypeFromPath(p)})
				break
			}
		}
	})

	return feeds
}

func guessTypeFromPath(p string) string {
	switch {
	case strings.Contains(p, "atom"):
		return FeedTypeAtom
	case strings.HasSuffix(p, ".json"):
		return FeedTypeJSON
	default:
		return FeedTypeRSS
	}
}

// FetchFunc matches the network collaborator's Do method.
type FetchFunc func(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error)

// ProbeTitles fetches up to limit untitled candidates and fills their titles
// in from the feed documents themselves. Probe failures leave the candidate
// as discovered; feeds is modified in place.
func ProbeTitles(ctx context.Context, feeds []schemas.FeedRef, fetch FetchFunc, limit int) {
	if fetch == nil {
		return
	}
	probed := 0
	for i := range feeds {
		if feeds[i].Title != "" {
			continue
		}
		if limit > 0 && probed >= limit {
			break
		}
		probed++
		resp, err := fetch(ctx, schemas.FetchRequest{URL: feeds[i].URL, Method: http.MethodGet})
		if err != nil || !resp.OK() {
			continue
		}
		if title := feedTitle(resp.Body); title != "" {
			feeds[i].Title = title
		}
	}
}

// feedTitle reads the top-level title from an RSS, Atom, or JSON feed body.
func feedTitle(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var doc struct {
			Title string `json:"title"`
		}
		if err := jsoniter.Unmarshal(trimmed, &doc); err == nil {
			return strings.TrimSpace(doc.Title)
		}
		return ""
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(body); err != nil {
		return ""
	}
	root := tree.Root()
	if root == nil {
		return ""
	}
	switch root.Tag {
	case "rss", "RDF":
		if el := root.FindElement("./channel/title"); el != nil {
			return strings.TrimSpace(el.Text())
		}
	case "feed":
		if el := root.FindElement("./title"); el != nil {
			return strings.TrimSpace(el.Text())
		}
	}
	return ""
}
