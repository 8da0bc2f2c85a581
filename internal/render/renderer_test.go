// File: internal/render/renderer_test.go
package render

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet/api/schemas"
	"github.com/xkilldash9x/lancet/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	// Tight budgets keep the suite quick while leaving the loop room to settle.
	cfg.Render.Timeout = 5 * time.Second
	cfg.Render.IdleTime = 100 * time.Millisecond
	cfg.Render.PollInterval = 20 * time.Millisecond
	return cfg
}

func newTestRenderer(t *testing.T, cfg *config.Config) *Renderer {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	r := New(cfg, zaptest.NewLogger(t))
	t.Cleanup(r.Close)
	return r
}

const appPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Loading...</title>
  <meta name="description" content="A scripted page.">
</head>
<body>
  <div id="root"></div>
  <script>
    document.title = 'Rendered';
    const el = document.createElement('p');
    el.id = 'made';
    el.textContent = 'made by script';
    document.getElementById('root').appendChild(el);
  </script>
</body>
</html>`

func TestRenderURLExecutesScriptsAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, appPage)
	}))
	defer srv.Close()

	r := newTestRenderer(t, nil)
	res, err := r.RenderURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, res.URL)
	assert.Equal(t, 200, res.Status)
	assert.Contains(t, res.HTML, `id="made"`)
	assert.Contains(t, res.HTML, "made by script")
	assert.Contains(t, res.HTML, "<title>Rendered</title>")
	assert.Empty(t, res.Errors)
	assert.False(t, res.Timing.TimedOut)

	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Rendered", res.Metadata.Title, "metadata reads the rendered DOM, not the input")
	assert.Equal(t, "A scripted page.", res.Metadata.Description)

	_, err = uuid.Parse(res.RenderID)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, res.Timing.TotalMs, res.Timing.ExecuteMs)
}

func TestRenderURLFetchesExternalScripts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><script src="/js/app.js"></script></head><body></body></html>`)
	})
	mux.HandleFunc("/js/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, `document.body.setAttribute('data-loaded', 'yes');`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newTestRenderer(t, nil)
	res, err := r.RenderURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Contains(t, res.HTML, `data-loaded="yes"`)
}

func TestRenderURLWaitsForSandboxFetches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="out"></div><script>
		  fetch('/api/message')
		    .then(function (r) { return r.text(); })
		    .then(function (text) { document.getElementById('out').textContent = text; });
		</script></body></html>`)
	})
	mux.HandleFunc("/api/message", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello from the api")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newTestRenderer(t, nil)
	res, err := r.RenderURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Contains(t, res.HTML, "hello from the api",
		"networkidle must hold the snapshot until in-flight fetches land")
}

func TestRenderURLSeedsDocumentCookieFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "sid=abc123; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "theme=dark")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><script>document.body.setAttribute('data-cookie', document.cookie);</script></body></html>`)
	}))
	defer srv.Close()

	r := newTestRenderer(t, nil)
	res, err := r.RenderURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Empty(t, res.Errors)
	assert.Contains(t, res.HTML, `data-cookie="sid=abc123; theme=dark"`)
}

func TestRenderURLReportsTheFinalURLAfterRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Landed</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newTestRenderer(t, nil)
	res, err := r.RenderURL(context.Background(), srv.URL+"/start")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/start", res.URL)
	assert.Equal(t, srv.URL+"/final", res.FinalURL)
	assert.Equal(t, 200, res.Status)
}

func TestRenderURLPropagatesFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	r := newTestRenderer(t, nil)
	_, err := r.RenderURL(context.Background(), dead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch")
}

func TestRenderCapturesConsoleAndScriptErrors(t *testing.T) {
	src := `<html><body>
	  <script>console.info('from the page'); throw new Error('page exploded');</script>
	  <script>console.warn('second still runs');</script>
	</body></html>`

	r := newTestRenderer(t, nil)
	res, err := r.RenderHTML(context.Background(), "https://pages.test/app", src)
	require.NoError(t, err, "script throws are data, not render failures")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, schemas.StageScript, res.Errors[0].Stage)
	assert.Contains(t, res.Errors[0].Message, "page exploded")

	var levels []string
	var messages []string
	for _, entry := range res.Console {
		levels = append(levels, entry.Level)
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "from the page")
	assert.Contains(t, messages, "second still runs")
	assert.Contains(t, levels, "info")
	assert.Contains(t, levels, "warn")
}

func TestRenderHTMLReportsScriptDrivenHistory(t *testing.T) {
	src := `<html><body><script>
	  history.pushState({page: 2}, '', '/app/page-2');
	</script></body></html>`

	r := newTestRenderer(t, nil)
	res, err := r.RenderHTML(context.Background(), "https://spa.test/app", src)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	require.Len(t, res.History, 2)
	assert.Equal(t, "https://spa.test/app", res.History[0].URL)
	last := res.History[len(res.History)-1]
	assert.Equal(t, "https://spa.test/app/page-2", last.URL)
	state, ok := last.State.(map[string]interface{})
	require.True(t, ok, "state should survive the export, got %T", last.State)
	assert.EqualValues(t, 2, state["page"])
}

func TestRenderRefusesScriptsWhenPolicyDisallows(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.AllowScripts = false
	cfg.Render.ExecuteScripts = true
	r := newTestRenderer(t, cfg)

	_, err := r.RenderHTML(context.Background(), "https://policy.test/", "<html><body></body></html>")
	require.Error(t, err)

	var secErr *schemas.SecurityError
	require.ErrorAs(t, err, &secErr)
	assert.Contains(t, secErr.Error(), "refused")
}

func TestRenderHTMLWithScriptsDisabledReturnsInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.ExecuteScripts = false
	r := newTestRenderer(t, cfg)

	src := `<html><head><title>Static</title></head><body><script>document.title = 'x';</script></body></html>`
	res, err := r.RenderHTML(context.Background(), "https://static.test/", src)
	require.NoError(t, err)

	assert.Equal(t, src, res.HTML)
	assert.Empty(t, res.Console)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Static", res.Metadata.Title)
}

func TestRenderHTMLExtractsFeedsAndText(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.ExtractFeeds = true
	cfg.Render.ExtractText = true
	r := newTestRenderer(t, cfg)

	src := `<html><head>
	  <title>Feedful</title>
	  <link rel="alternate" type="application/rss+xml" title="Posts" href="/feed.xml">
	</head><body><p>readable body</p></body></html>`

	res, err := r.RenderHTML(context.Background(), "https://feeds.test/", src)
	require.NoError(t, err)

	require.Len(t, res.Feeds, 1)
	assert.Equal(t, "https://feeds.test/feed.xml", res.Feeds[0].URL)
	assert.Equal(t, "Posts", res.Feeds[0].Title)
	assert.Contains(t, res.Text, "readable body")
}

func TestRenderAllKeepsOrderAndRecordsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>A</title></head><body>a</body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>B</title></head><body>b</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deadSrv := httptest.NewServer(http.NotFoundHandler())
	deadURL := deadSrv.URL
	deadSrv.Close()

	r := newTestRenderer(t, nil)
	urls := []string{srv.URL + "/a", deadURL, srv.URL + "/b"}
	results := r.RenderAll(context.Background(), urls, 2)
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Metadata)
	assert.Equal(t, "A", results[0].Metadata.Title)

	assert.Equal(t, deadURL, results[1].URL)
	assert.Zero(t, results[1].Status)
	require.NotEmpty(t, results[1].Errors)
	assert.Equal(t, schemas.StageBootstrap, results[1].Errors[0].Stage)

	require.NotNil(t, results[2].Metadata)
	assert.Equal(t, "B", results[2].Metadata.Title)
}

func TestFirstLanguage(t *testing.T) {
	assert.Equal(t, "en-US", firstLanguage("en-US,en;q=0.9"))
	assert.Equal(t, "de", firstLanguage("de;q=0.8, en;q=0.5"))
	assert.Equal(t, "en-US", firstLanguage(""))
}
