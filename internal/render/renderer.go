// File: internal/render/renderer.go
package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/browser/engine"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/extract"
	"github.com/xkilldash9x/lancet/internal/network"
)

// probeCap bounds feed title probing per page.
const probeCap = 5

// Renderer ties the stages of one render together: fetch the document,
// discover its scripts, execute them in the sandbox, and extract structured
// data from the settled DOM. Safe for concurrent use.
type Renderer struct {
	cfg    *config.Config
	client *network.Client
	engine *engine.Engine
	log    *zap.Logger
}

// New builds a Renderer from a validated config.
func New(cfg *config.Config, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}

	netCfg := &network.ClientConfig{
		UserAgent:          cfg.Network.UserAgent,
		AcceptLanguage:     cfg.Network.AcceptLanguage,
		RequestTimeout:     cfg.Network.RequestTimeout,
		MaxBodyBytes:       cfg.Network.MaxBodySize,
		MaxRedirects:       cfg.Network.MaxRedirects,
		InsecureSkipVerify: cfg.Network.InsecureSkipVerify,
		RequestsPerSecond:  cfg.Network.RateLimit,
		Burst:              cfg.Network.RateBurst,
		Logger:             log,
	}
	if cfg.Network.ProxyURL != "" {
		if u, err := url.Parse(cfg.Network.ProxyURL); err == nil {
			netCfg.ProxyURL = u
		}
	}
	client := network.NewClient(netCfg)

	eng := engine.New(engine.Config{
		Log:       log,
		Fetch:     client.Do,
		UserAgent: cfg.Network.UserAgent,
		Language:  firstLanguage(cfg.Network.AcceptLanguage),
	})

	return &Renderer{
		cfg:    cfg,
		client: client,
		engine: eng,
		log:    log.Named("render"),
	}
}

// Close releases pooled network resources.
func (r *Renderer) Close() {
	r.client.CloseIdleConnections()
}

// RenderURL fetches pageURL and renders the response document.
func (r *Renderer) RenderURL(ctx context.Context, pageURL string) (*schemas.RenderResult, error) {
	start := time.Now()
	resp, err := r.client.Do(ctx, schemas.FetchRequest{URL: pageURL, Method: http.MethodGet})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	fetchMs := time.Since(start).Milliseconds()

	res, err := r.renderDocument(ctx, pageURL, resp.URL, string(resp.Body), resp.Status, resp.HeaderValues("Set-Cookie"))
	if err != nil {
		return nil, err
	}
	res.Timing.FetchMs = fetchMs
	res.Timing.TotalMs = time.Since(start).Milliseconds()
	return res, nil
}

// RenderHTML renders already-fetched markup as if it had been served from
// pageURL. No network request is made for the document itself.
func (r *Renderer) RenderHTML(ctx context.Context, pageURL, htmlSrc string) (*schemas.RenderResult, error) {
	start := time.Now()
	res, err := r.renderDocument(ctx, pageURL, pageURL, htmlSrc, http.StatusOK, nil)
	if err != nil {
		return nil, err
	}
	res.Timing.TotalMs = time.Since(start).Milliseconds()
	return res, nil
}

// RenderAll renders urls with bounded concurrency and returns one result per
// URL in input order. Per-URL failures are recorded in the corresponding
// result rather than aborting the batch. A concurrency of zero or less uses
// the configured value.
func (r *Renderer) RenderAll(ctx context.Context, urls []string, concurrency int) []*schemas.RenderResult {
	if concurrency <= 0 {
		concurrency = r.cfg.Render.Concurrency
	}

	results := make([]*schemas.RenderResult, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, pageURL := range urls {
		i, pageURL := i, pageURL
		g.Go(func() error {
			res, err := r.RenderURL(ctx, pageURL)
			if err != nil {
				r.log.Error("Render failed.", zap.String("url", pageURL), zap.Error(err))
				res = failedResult(pageURL, err)
			}
			results[i] = res
			return nil
		})
	}
	// Workers record their own failures and never return an error.
	_ = g.Wait()
	return results
}

func (r *Renderer) renderDocument(ctx context.Context, requestURL, finalURL, htmlSrc string, status int, setCookies []string) (*schemas.RenderResult, error) {
	opts := r.cfg.ExecutionOptions()
	if opts.ExecuteScripts && !r.cfg.Render.AllowScripts {
		return nil, &schemas.SecurityError{Reason: "script execution is disabled by render.allow_scripts"}
	}

	var scripts []schemas.ScriptDescriptor
	if opts.ExecuteScripts {
		scripts = DiscoverScripts(htmlSrc)
	}

	execStart := time.Now()
	execRes, err := r.engine.Execute(ctx, &schemas.ExecutionRequest{
		FinalURL:   finalURL,
		HTML:       htmlSrc,
		Scripts:    scripts,
		SetCookies: setCookies,
		Options:    opts,
	})
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", finalURL, err)
	}

	out := &schemas.RenderResult{
		RenderID: uuid.NewString(),
		URL:      requestURL,
		FinalURL: finalURL,
		Status:   status,
		HTML:     execRes.Snapshot,
		Console:  execRes.ConsoleEntries,
		Errors:   execRes.EngineErrors,
		History:  execRes.History,
		Timing: schemas.RenderTiming{
			ExecuteMs: time.Since(execStart).Milliseconds(),
			TimedOut:  execRes.TimedOut,
		},
	}
	r.extractInto(ctx, out)
	return out, nil
}

// extractInto fills the optional extraction fields per config.
func (r *Renderer) extractInto(ctx context.Context, res *schemas.RenderResult) {
	if r.cfg.Render.ExtractMetadata {
		res.Metadata = extract.Metadata(res.HTML, res.FinalURL)
	}
	if r.cfg.Render.ExtractFeeds {
		res.Feeds = extract.DiscoverFeeds(res.HTML, res.FinalURL)
		if r.cfg.Render.ProbeFeedTitles {
			extract.ProbeTitles(ctx, res.Feeds, extract.FetchFunc(r.client.Do), probeCap)
		}
	}
	if r.cfg.Render.ExtractText {
		res.Text = extract.Text(res.HTML)
	}
}

func failedResult(pageURL string, err error) *schemas.RenderResult {
	return &schemas.RenderResult{
		RenderID: uuid.NewString(),
		URL:      pageURL,
		FinalURL: pageURL,
		Errors: []schemas.ScriptError{{
			Stage:   schemas.StageBootstrap,
			Message: err.Error(),
		}},
	}
}

// firstLanguage reduces an Accept-Language header to the leading tag for
// navigator.language.
func firstLanguage(acceptLanguage string) string {
	first := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	if first == "" {
		return "en-US"
	}
	return first
}
